package service

import (
	"context"
	"errors"
	"math"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	"github.com/berfenger/surplus2wallbox/internal/metrics"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"
	"go.uber.org/zap"
)

type DefaultSurplusControlLogic struct {
	Settings *ControlSettings
	Notifier port.Notifier
	Clock    clock.Clock
	Logger   *zap.Logger
}

var _ port.SurplusControlLogic = (*DefaultSurplusControlLogic)(nil)

func (l *DefaultSurplusControlLogic) Loop(ctx context.Context, snapshot domain.EnergySnapshot, wallbox port.WallboxControl) domain.SurplusControlTickResult {

	cfg := l.Settings.Get()
	state := wallbox.State()
	bounds := state.Bounds
	minPower := float64(bounds.Min)
	maxPower := float64(bounds.Max)
	commanded := float64(state.CommandedPower)

	grid := snapshot.GridTotal
	produced := snapshot.SolarTotal + float64(cfg.HeadroomPower)
	consumedLive, houseOnly := grid, grid
	if state.IsOn {
		// the grid meter already includes the wallbox draw
		consumedLive = math.Abs(grid-commanded) + commanded
		houseOnly = grid - commanded
	}
	exportable := produced - consumedLive

	r := domain.SurplusControlTickResult{
		Action:       domain.ACTION_NONE,
		Target:       state.CommandedPower,
		Produced:     produced,
		ConsumedLive: consumedLive,
		HouseOnly:    houseOnly,
		Exportable:   exportable,
	}

	if consumedLive == 0 || !finite(grid) || !finite(produced) {
		r.Action = domain.ACTION_NO_DATA
		return r
	}
	now := l.Clock.Now()
	if cfg.StaleAfter > 0 && now.Sub(snapshot.LastPhaseTime) > cfg.StaleAfter {
		l.Logger.Warn("surplus_control@stale: last phase reading too old, not regulating",
			zap.Time("last_phase_time", snapshot.LastPhaseTime))
		r.Action = domain.ACTION_STALE
		return r
	}
	metrics.ExportablePower.With().Set(exportable)

	if !state.IsOn {
		if exportable > minPower {
			l.Logger.Info("surplus_control@off: enough surplus, turning wallbox on", zap.Float64("exportable", exportable))
			r.Action = domain.ACTION_TURN_ON
			r.Target = bounds.Min
			r.Err = wallbox.TurnOn(ctx)
			var cooldown *CooldownError
			if errors.As(r.Err, &cooldown) {
				l.Logger.Info("surplus_control@off: turn on postponed", zap.Duration("remaining", cooldown.Remaining))
			} else if r.Err != nil {
				l.Logger.Error("surplus_control@off: turn on failed", zap.Error(r.Err))
			}
		}
		return r
	}

	if state.Grace.Active() {
		if !state.Grace.Expired(now) {
			if produced >= minPower {
				l.Logger.Info("surplus_control@grace: generation recovered", zap.Float64("produced", produced))
				wallbox.CancelGraceTimer()
				r.Action = domain.ACTION_GRACE_CANCELLED
			} else {
				r.Action = domain.ACTION_HOLD_MIN
				r.Target = bounds.Min
				if state.CommandedPower != bounds.Min {
					r.Err = wallbox.SetPower(ctx, minPower, true)
				}
				return r
			}
		} else {
			if produced < minPower {
				l.Logger.Warn("surplus_control@grace: grace period over, shutting down", zap.Float64("produced", produced))
				r.Action = domain.ACTION_TURN_OFF
				r.Target = 0
				if r.Err = wallbox.TurnOff(ctx, true); r.Err != nil {
					l.Logger.Error("surplus_control@grace: forced turn off failed", zap.Error(r.Err))
					return r
				}
				l.notify(domain.LowGenerationNotification(produced))
				l.notify(domain.PhaseAdviceNotification(state.PhaseMode))
				return r
			}
			wallbox.CancelGraceTimer()
			r.Action = domain.ACTION_RESUME_MIN
			r.Target = bounds.Min
			r.Err = wallbox.SetPower(ctx, minPower, false)
			return r
		}
	}

	available := produced - houseOnly
	// reduction is evaluated first
	if commanded > available || exportable < 0 {
		reduced := commanded - math.Abs(exportable)
		if reduced < minPower || produced < minPower {
			r.Action = domain.ACTION_GRACE_STARTED
			r.Target = bounds.Min
			if state.CommandedPower != bounds.Min {
				r.Err = wallbox.SetPower(ctx, minPower, true)
				if errors.Is(r.Err, ErrWallboxOff) {
					l.Logger.Info("surplus_control@on: wallbox switched off meanwhile, skipping grace timer")
					return r
				}
			}
			grace := wallbox.StartGraceTimer(cfg.GracePeriod)
			l.Logger.Info("surplus_control@on: not enough surplus, holding minimum power",
				zap.Float64("reduced", reduced),
				zap.Stringer("grace", grace))
			return r
		}
		r.Action = domain.ACTION_REDUCE
		r.Target = int(math.Round(reduced))
		r.Err = wallbox.SetPower(ctx, reduced, false)
		return r
	}

	target := math.Min(commanded+math.Abs(exportable), available)
	if target >= maxPower {
		r.Target = bounds.Max
		if state.CommandedPower == bounds.Max {
			return r
		}
		r.Action = domain.ACTION_MAX_POWER
		if r.Err = wallbox.SetPower(ctx, maxPower, true); r.Err != nil {
			l.Logger.Warn("surplus_control@on: maximum power not applied", zap.Error(r.Err))
			return r
		}
		l.Logger.Info("surplus_control@on: maximum power reached", zap.Int("max_power", bounds.Max))
		l.notify(domain.MaxPowerNotification(state.PhaseMode, bounds.Max))
		return r
	}
	if r.Action != domain.ACTION_GRACE_CANCELLED {
		r.Action = domain.ACTION_INCREASE
	}
	r.Target = int(math.Round(target))
	r.Err = wallbox.SetPower(ctx, target, false)
	return r
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (l *DefaultSurplusControlLogic) notify(n domain.Notification) {
	if l.Notifier == nil {
		return
	}
	l.Notifier.Notify(n)
}
