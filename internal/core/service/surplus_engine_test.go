package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, historySize int) (*SurplusEngine, *loopFixture) {
	f := newLoopFixture(t, testControlConfig())
	engine := NewSurplusEngine(NewEnergyMonitor(), f.ctrl, f.ctrl.settings, f.logic, historySize, f.clk, zap.Must(zap.NewDevelopment()))
	return engine, f
}

func TestEngineTurnsOnFromPhaseReading(t *testing.T) {
	assert := assert.New(t)
	engine, f := newTestEngine(t, 30)

	r := engine.HandleReading(context.Background(), domain.PhaseReading{
		Channels:   [6]float64{400, 300, 300, 1000, 1000, 1000},
		ReceivedAt: f.clk.Now(),
	})
	require.NoError(t, r.Err)
	assert.Equal(domain.ACTION_TURN_ON, r.Action)

	state := engine.SystemState()
	assert.True(state.Wallbox.IsOn)
	assert.Equal(1000.0, state.Energy.GridTotal)
	assert.Equal(3000.0, state.Energy.SolarTotal)
	assert.Equal(f.clk.Now(), state.ServerTime)

	h := engine.History()
	require.Len(t, h, 1)
	assert.Equal(domain.HistoryEntry{Grid: 1000, Solar: 3000, Wallbox: 0, Time: f.clk.Now()}, h[0])
}

func TestEngineSolarSampleRunsLoop(t *testing.T) {
	engine, f := newTestEngine(t, 30)

	r := engine.HandleReading(context.Background(), domain.PhaseReading{
		Channels:   [6]float64{1000, 0, 0, 0, 0, 0},
		ReceivedAt: f.clk.Now(),
	})
	assert.Equal(t, domain.ACTION_NONE, r.Action)

	r = engine.HandleReading(context.Background(), domain.SolarSample{Generating: 3000, ReceivedAt: f.clk.Now()})
	assert.Equal(t, domain.ACTION_TURN_ON, r.Action)
	assert.Len(t, engine.History(), 1, "solar samples are not part of the history")
}

func TestEngineIgnoresUnrecognized(t *testing.T) {
	engine, f := newTestEngine(t, 30)
	r := engine.HandleReading(context.Background(), domain.Unrecognized{Reason: errors.New("bad xml")})
	assert.Equal(t, domain.ACTION_NONE, r.Action)
	assert.Zero(t, engine.SystemState().Energy.PhaseReadings)
	assert.Empty(t, f.dev.Calls)
}

func TestEngineHistoryIsBounded(t *testing.T) {
	engine, f := newTestEngine(t, 3)
	for i := 0; i < 5; i++ {
		f.clk.Advance(time.Second)
		engine.HandleReading(context.Background(), domain.PhaseReading{
			Channels:   [6]float64{float64(i), 0, 0, 0, 0, 0},
			ReceivedAt: f.clk.Now(),
		})
	}
	h := engine.History()
	require.Len(t, h, 3)
	assert.Equal(t, 2.0, h[0].Grid)
	assert.Equal(t, 4.0, h[2].Grid)
}

func TestEngineOperator(t *testing.T) {
	assert := assert.New(t)
	engine, f := newTestEngine(t, 30)

	require.NoError(t, engine.TurnOn(context.Background()))
	assert.True(engine.SystemState().Wallbox.IsOn)

	// operator off is always forced, even right after turning on
	require.NoError(t, engine.TurnOff(context.Background()))
	assert.False(engine.SystemState().Wallbox.IsOn)

	f.dev.On("QueryPhaseMode").Return(domain.ThreePhase, nil)
	require.NoError(t, engine.Reinitialize(context.Background()))
	assert.Equal(domain.ThreePhase, engine.SystemState().Wallbox.PhaseMode)

	require.NoError(t, engine.SetHeadroomPower(500))
	require.Error(t, engine.SetProtectionPower(9000))
	assert.Equal(500, engine.SystemState().Config.HeadroomPower)
	assert.Equal(300, engine.SystemState().Config.ProtectionPower)

	assert.False(engine.TelemetryHealthy())
	engine.SetTelemetryHealthy(true)
	assert.True(engine.SystemState().Telemetry)
}
