package actor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	adactor "github.com/berfenger/surplus2wallbox/internal/adapter/actor"
	"github.com/berfenger/surplus2wallbox/internal/config"
	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	. "github.com/berfenger/surplus2wallbox/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const operatorTimeout = 30 * time.Second

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	mqttActor           *actor.PID
	statePublisherActor *actor.PID
	notifierActor       *actor.PID
	mqttActorProvider   MQTTActorProvider
	operator            port.Operator
	stateReader         port.SystemStateReader
	logger              *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksExpected int
	respondTo      *actor.PID
}

type operatorResult struct {
	command string
	err     error
	replyTo *actor.PID
}

// NewMasterOfPuppetsActor builds the root actor. mqttActorProvider may be nil when MQTT is disabled;
// notifierActor is spawned by the caller so notifications can be sent before the master starts.
func NewMasterOfPuppetsActor(config config.Config, eventStream *eventstream.EventStream, mqttActorProvider MQTTActorProvider,
	notifierActor *actor.PID, operator port.Operator, stateReader port.SystemStateReader, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       eventStream,
		mqttActorProvider: mqttActorProvider,
		notifierActor:     notifierActor,
		operator:          operator,
		stateReader:       stateReader,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start MQTT child
		if state.mqttActorProvider != nil {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
		}

		// start StatePublisher child
		statePublisherPID, err := state.startStatePublisherActor(ctx)
		if err != nil {
			panic(err)
		}
		state.statePublisherActor = statePublisherPID

		// start HA Discovery
		if state.mqttActor != nil && state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck = newHealthCheck(ctx.Sender())
		for id, pid := range state.healthCheckedActors() {
			id := id // per-iteration copy; module builds with go 1.21 loop semantics
			state.currentHealthCheck.checksExpected++
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// map MQTT command to an operator request
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Any("command", msg.Command), zap.Error(err))
				return
			}
			if cmd != nil {
				state.runOperatorRequest(ctx, cmd, nil)
			}
		}
	case domain.OperatorRequest:
		state.logger.Debug("master@default OperatorRequest", zap.String("type", fmt.Sprintf("%T", msg)))
		state.runOperatorRequest(ctx, msg, ForRequest(msg).ReplyTo(ctx))
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.Id))
	default:
		state.logger.Debug("master@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx, state.telemetryHealthy())
		ctx.CancelReceiveTimeout()
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx, state.telemetryHealthy())

			ctx.CancelReceiveTimeout()
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) WaitingOperatorReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case operatorResult:
		if msg.err != nil {
			state.logger.Warn("master@operator command failed", zap.String("command", msg.command), zap.Error(msg.err))
		} else {
			state.logger.Info("master@operator command done", zap.String("command", msg.command))
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.OperatorResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.err),
				Command:            msg.command,
			})
		}
		// refresh switch and number states right away
		ctx.Send(state.statePublisherActor, domain.PublishStateRequest{})
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("master@operator stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) runOperatorRequest(ctx actor.Context, req domain.OperatorRequest, replyTo *actor.PID) {
	command := OperatorCommandName(req)
	task := NewBackgroundTaskErr(ctx, func() error {
		opCtx, cancel := context.WithTimeout(context.Background(), operatorTimeout)
		defer cancel()
		return state.applyOperatorRequest(opCtx, req)
	})
	MapBackgroundTask(task, func(*struct{}) *operatorResult {
		return &operatorResult{command: command, replyTo: replyTo}
	}).Recover(func(err error) operatorResult {
		return operatorResult{command: command, err: err, replyTo: replyTo}
	}).WithTimeout(operatorTimeout + time.Second).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingOperatorReceive)
}

func (state *MasterOfPuppetsActor) applyOperatorRequest(ctx context.Context, req domain.OperatorRequest) error {
	switch r := req.(type) {
	case domain.WallboxSwitchRequest:
		if r.Enable {
			return state.operator.TurnOn(ctx)
		}
		return state.operator.TurnOff(ctx)
	case domain.WallboxReinitializeRequest:
		return state.operator.Reinitialize(ctx)
	case domain.SetHeadroomPowerRequest:
		return state.operator.SetHeadroomPower(r.PowerWatt)
	case domain.SetProtectionPowerRequest:
		return state.operator.SetProtectionPower(r.PowerWatt)
	}
	return fmt.Errorf("unsupported operator request %T", req)
}

// OperatorCommandName names the request in logs and responses.
func OperatorCommandName(req domain.OperatorRequest) string {
	switch r := req.(type) {
	case domain.WallboxSwitchRequest:
		if r.Enable {
			return "wallbox_on"
		}
		return "wallbox_off"
	case domain.WallboxReinitializeRequest:
		return domain.BUTTON_ID_WALLBOX_REINITIALIZE
	case domain.SetHeadroomPowerRequest:
		return domain.INPUT_NUMBER_ID_HEADROOM_POWER
	case domain.SetProtectionPowerRequest:
		return domain.INPUT_NUMBER_ID_PROTECTION_POWER
	}
	return fmt.Sprintf("%T", req)
}

func (state *MasterOfPuppetsActor) healthCheckedActors() map[string]*actor.PID {
	actors := map[string]*actor.PID{
		domain.ACTOR_ID_STATE_PUBLISHER: state.statePublisherActor,
	}
	if state.mqttActor != nil {
		actors[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	if state.notifierActor != nil {
		actors[domain.ACTOR_ID_NOTIFIER] = state.notifierActor
	}
	return actors
}

func (state *MasterOfPuppetsActor) telemetryHealthy() bool {
	return state.stateReader.SystemState().Telemetry
}

func (state *MasterOfPuppetsActor) startStatePublisherActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	interval := time.Duration(state.config.Monitor.PublishIntervalMillis) * time.Millisecond
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewStatePublisherActor(state.stateReader, interval, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_STATE_PUBLISHER)
	if err != nil {
		return nil, err
	}

	return pid, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func newHealthCheck(respondTo *actor.PID) healthCheckResult {
	return healthCheckResult{
		healthy:   map[string]bool{},
		respondTo: respondTo,
	}
}

func (state *healthCheckResult) allReceived() bool {
	return len(state.healthy) >= state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.checksExpected {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context, telemetryHealthy bool) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy() && telemetryHealthy,
		State:   state.describe(telemetryHealthy),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}

func (state *healthCheckResult) describe(telemetryHealthy bool) string {
	var unhealthy []string
	for id, healthy := range state.healthy {
		if !healthy {
			unhealthy = append(unhealthy, id)
		}
	}
	if !telemetryHealthy {
		unhealthy = append(unhealthy, "telemetry")
	}
	if len(unhealthy) == 0 {
		return "ok"
	}
	sort.Strings(unhealthy)
	return fmt.Sprintf("unhealthy: %v", unhealthy)
}
