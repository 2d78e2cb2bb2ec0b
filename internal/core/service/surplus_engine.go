package service

import (
	"context"
	"sync/atomic"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	"github.com/berfenger/surplus2wallbox/internal/metrics"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"
	"github.com/berfenger/surplus2wallbox/internal/util/ringbuf"
	"go.uber.org/zap"
)

// SurplusEngine feeds decoded readings to the monitor and the control loop,
// and is the only entry point for observers and operator actions.
type SurplusEngine struct {
	monitor    *EnergyMonitor
	controller *WallboxController
	settings   *ControlSettings
	logic      port.SurplusControlLogic
	history    *ringbuf.Ringbuf[domain.HistoryEntry]
	clock      clock.Clock
	logger     *zap.Logger
	telemetry  atomic.Bool
}

var (
	_ port.SystemStateReader = (*SurplusEngine)(nil)
	_ port.Operator          = (*SurplusEngine)(nil)
)

func NewSurplusEngine(monitor *EnergyMonitor, controller *WallboxController, settings *ControlSettings,
	logic port.SurplusControlLogic, historySize int, clk clock.Clock, logger *zap.Logger) *SurplusEngine {
	return &SurplusEngine{
		monitor:    monitor,
		controller: controller,
		settings:   settings,
		logic:      logic,
		history:    ringbuf.NewRingbuf[domain.HistoryEntry](historySize),
		clock:      clk,
		logger:     logger.With(zap.String("component", "engine")),
	}
}

// HandleReading applies one decoded datagram and runs the control loop for it.
// Must be called from a single goroutine, in arrival order.
func (e *SurplusEngine) HandleReading(ctx context.Context, reading domain.Reading) domain.SurplusControlTickResult {
	metrics.TelemetryDatagrams.With(domain.ReadingKind(reading)).Add(1)

	switch r := reading.(type) {
	case domain.PhaseReading:
		e.monitor.ApplyPhaseReading(r)
		e.history.Add(domain.HistoryEntry{
			Grid:    r.GridTotal(),
			Solar:   r.SolarTotal(),
			Wallbox: float64(e.controller.State().ChargingPower()),
			Time:    r.ReceivedAt,
		})
	case domain.SolarSample:
		e.monitor.ApplySolarSample(r)
	default:
		return domain.SurplusControlTickResult{Action: domain.ACTION_NONE}
	}

	snapshot := e.monitor.Snapshot()
	metrics.GridPower.With().Set(snapshot.GridTotal)
	metrics.SolarPower.With().Set(snapshot.SolarTotal)

	result := e.logic.Loop(ctx, snapshot, e.controller)
	if result.Action != domain.ACTION_NONE && result.Action != domain.ACTION_NO_DATA {
		e.logger.Debug("engine@tick: control loop result",
			zap.String("action", string(result.Action)),
			zap.Int("target", result.Target),
			zap.Float64("produced", result.Produced),
			zap.Float64("exportable", result.Exportable),
			zap.Error(result.Err))
	}
	return result
}

func (e *SurplusEngine) SetTelemetryHealthy(healthy bool) {
	e.telemetry.Store(healthy)
}

func (e *SurplusEngine) TelemetryHealthy() bool {
	return e.telemetry.Load()
}

func (e *SurplusEngine) SystemState() domain.SystemState {
	return domain.SystemState{
		Energy:     e.monitor.Snapshot(),
		Wallbox:    e.controller.State(),
		Config:     e.settings.Get(),
		Telemetry:  e.telemetry.Load(),
		ServerTime: e.clock.Now(),
	}
}

func (e *SurplusEngine) History() []domain.HistoryEntry {
	return e.history.Items()
}

func (e *SurplusEngine) TurnOn(ctx context.Context) error {
	e.logger.Info("engine@operator: manual turn on")
	return e.controller.TurnOn(ctx)
}

// TurnOff always forces the device off.
func (e *SurplusEngine) TurnOff(ctx context.Context) error {
	e.logger.Info("engine@operator: manual turn off")
	return e.controller.TurnOff(ctx, true)
}

func (e *SurplusEngine) Reinitialize(ctx context.Context) error {
	e.logger.Info("engine@operator: reinitialize wallbox")
	return e.controller.Initialize(ctx)
}

func (e *SurplusEngine) SetHeadroomPower(watts int) error {
	if err := e.settings.SetHeadroomPower(watts); err != nil {
		return err
	}
	e.logger.Info("engine@operator: headroom power updated", zap.Int("headroom_power", watts))
	return nil
}

func (e *SurplusEngine) SetProtectionPower(watts int) error {
	if err := e.settings.SetProtectionPower(watts); err != nil {
		return err
	}
	e.logger.Info("engine@operator: protection power updated", zap.Int("protection_power", watts))
	return nil
}
