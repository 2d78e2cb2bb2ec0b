package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/surplus2wallbox/internal/adapter/actor"
	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/mqtt"
	"github.com/berfenger/surplus2wallbox/internal/util"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOperator struct {
	mu        sync.Mutex
	calls     []string
	headroom  int
	telemetry bool
	turnOnErr error
}

func (o *fakeOperator) record(call string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *fakeOperator) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func (o *fakeOperator) TurnOn(ctx context.Context) error {
	o.record("on")
	return o.turnOnErr
}

func (o *fakeOperator) TurnOff(ctx context.Context) error {
	o.record("off")
	return nil
}

func (o *fakeOperator) Reinitialize(ctx context.Context) error {
	o.record("reinitialize")
	return nil
}

func (o *fakeOperator) SetHeadroomPower(watts int) error {
	o.record("headroom")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.headroom = watts
	return nil
}

func (o *fakeOperator) SetProtectionPower(watts int) error {
	o.record("protection")
	return nil
}

func (o *fakeOperator) SystemState() domain.SystemState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return domain.SystemState{
		Telemetry: o.telemetry,
		Config:    domain.ControlConfig{HeadroomPower: o.headroom},
	}
}

func (o *fakeOperator) History() []domain.HistoryEntry {
	return nil
}

func spawnMaster(t *testing.T, op *fakeOperator) (*actor.ActorSystem, *actor.PID, *eventstream.EventStream) {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = false
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	es := &eventstream.EventStream{}
	notifierPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewNotifierActor(nil, es, clock.Real(), logger)
	}))

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, es, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, nil, logger)
		}, notifierPID, op, op, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return as, pid, es
}

func TestMasterActorHealth(t *testing.T) {
	op := &fakeOperator{telemetry: true}
	as, pid, _ := spawnMaster(t, op)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, "ok", healthResp.State)

	op.mu.Lock()
	op.telemetry = false
	op.mu.Unlock()

	res, err = as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	healthResp = res.(domain.ActorHealthResponse)
	assert.False(t, healthResp.Healthy)
	assert.Contains(t, healthResp.State, "telemetry")
}

func TestMasterActorOperatorRequests(t *testing.T) {
	op := &fakeOperator{telemetry: true, turnOnErr: errors.New("cooldown")}
	as, pid, es := spawnMaster(t, op)

	switches := make(chan domain.SwitchSensorUpdateEvent, 16)
	es.Subscribe(func(evt any) {
		if sw, ok := evt.(domain.SwitchSensorUpdateEvent); ok {
			switches <- sw
		}
	})

	res, err := as.Root.RequestFuture(pid, domain.WallboxSwitchRequest{Enable: true}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.OperatorResponse)
	require.True(t, ok)
	assert.Equal(t, "wallbox_on", resp.Command)
	assert.Error(t, resp.GetResponseError())

	res, err = as.Root.RequestFuture(pid, domain.SetHeadroomPowerRequest{PowerWatt: 450}, 5*time.Second).Result()
	require.NoError(t, err)
	resp = res.(domain.OperatorResponse)
	assert.NoError(t, resp.GetResponseError())
	assert.Equal(t, domain.INPUT_NUMBER_ID_HEADROOM_POWER, resp.Command)

	// MQTT commands take the same path without a reply
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.BUTTON_ID_WALLBOX_REINITIALIZE,
		Command:  mqtt.MQTT_COMMAND_BUTTON,
		Payload:  mqtt.MQTT_PAYLOAD_PRESS,
	}})
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_WALLBOX_CHARGE,
		Command:  mqtt.MQTT_COMMAND_SWITCH,
		Payload:  mqtt.MQTT_PAYLOAD_OFF,
	}})

	require.Eventually(t, func() bool {
		return len(op.Calls()) == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"on", "headroom", "reinitialize", "off"}, op.Calls())

	// every operator action triggers a state refresh
	select {
	case sw := <-switches:
		assert.Equal(t, domain.SWITCH_ID_WALLBOX_CHARGE, sw.SensorId())
	case <-time.After(2 * time.Second):
		t.Fatal("no state refresh after operator action")
	}
}

func TestOperatorCommandName(t *testing.T) {
	assert.Equal(t, "wallbox_on", OperatorCommandName(domain.WallboxSwitchRequest{Enable: true}))
	assert.Equal(t, "wallbox_off", OperatorCommandName(domain.WallboxSwitchRequest{}))
	assert.Equal(t, domain.BUTTON_ID_WALLBOX_REINITIALIZE, OperatorCommandName(domain.WallboxReinitializeRequest{}))
	assert.Equal(t, domain.INPUT_NUMBER_ID_PROTECTION_POWER, OperatorCommandName(domain.SetProtectionPowerRequest{}))
}
