package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	"github.com/berfenger/surplus2wallbox/internal/metrics"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"
	"go.uber.org/zap"
)

var (
	ErrCooldownActive = errors.New("cooldown active")
	ErrWallboxOff     = errors.New("wallbox is off")
	ErrInvalidPower   = errors.New("power target is not a finite number")
)

// CooldownError is returned by TurnOn while the wallbox is still cooling down after a shutdown.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, %.0fs remaining", math.Ceil(e.Remaining.Seconds()))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// WallboxController owns the wallbox state. Every operation, device calls included, runs under one mutex.
type WallboxController struct {
	mu            sync.Mutex
	device        port.WallboxDevice
	settings      *ControlSettings
	clock         clock.Clock
	logger        *zap.Logger
	state         domain.WallboxState
	displaySeeded bool
}

var _ port.WallboxControl = (*WallboxController)(nil)

func NewWallboxController(device port.WallboxDevice, settings *ControlSettings, clk clock.Clock, logger *zap.Logger) *WallboxController {
	c := &WallboxController{
		device:   device,
		settings: settings,
		clock:    clk,
		logger:   logger.With(zap.String("component", "wallbox")),
	}
	c.state.PhaseMode = domain.SinglePhase
	c.state.CommandedPower = settings.Get().Bounds(domain.SinglePhase).Min
	c.state.DisplayPower = float64(c.state.CommandedPower)
	return c
}

func (c *WallboxController) State() domain.WallboxState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Bounds = c.settings.Get().Bounds(s.PhaseMode)
	return s
}

// Initialize detects the phase mode, forces the device off and sends the minimum power baseline.
// An unreachable device leaves the controller in single-phase mode.
func (c *WallboxController) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode, err := c.device.QueryPhaseMode(ctx)
	c.recordCommand("status", err)
	if err != nil {
		c.logger.Error("wallbox@init: could not query phase mode, assuming single phase", zap.Error(err))
		mode = domain.SinglePhase
	}
	c.state.PhaseMode = mode
	c.displaySeeded = false
	bounds := c.settings.Get().Bounds(mode)
	c.logger.Info("wallbox@init: phase mode detected",
		zap.Stringer("phase_mode", mode),
		zap.Int("min_power", bounds.Min),
		zap.Int("max_power", bounds.Max))

	offErr := c.turnOffLocked(ctx, true)
	baseErr := c.sendPowerLocked(ctx, bounds.Min)
	return errors.Join(offErr, baseErr)
}

func (c *WallboxController) TurnOn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsOn {
		return nil
	}
	cfg := c.settings.Get()
	now := c.clock.Now()
	if !c.state.TimeTurnedOff.IsZero() {
		if since := now.Sub(c.state.TimeTurnedOff); since < cfg.Cooldown {
			return &CooldownError{Remaining: cfg.Cooldown - since}
		}
	}

	// the device must be at a safe baseline before it is energized
	if err := c.sendPowerLocked(ctx, cfg.Bounds(c.state.PhaseMode).Min); err != nil {
		return fmt.Errorf("baseline before energize: %w", err)
	}
	err := c.device.Energize(ctx)
	c.recordCommand("energize", err)
	if err != nil {
		c.logger.Error("wallbox@off: energize failed", zap.Error(err))
		return err
	}
	c.state.IsOn = true
	c.state.LastCommandTime = c.clock.Now()
	c.state.Grace = domain.NoGraceTimer()
	metrics.WallboxOn.With().Set(1)
	c.logger.Info("wallbox@on: wallbox energized", zap.Int("power", c.state.CommandedPower))
	return nil
}

func (c *WallboxController) TurnOff(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnOffLocked(ctx, force)
}

func (c *WallboxController) turnOffLocked(ctx context.Context, force bool) error {
	cfg := c.settings.Get()
	if !force {
		if !c.state.IsOn {
			return nil
		}
		if c.withinCommandInterval(cfg) {
			return nil
		}
	}

	err := c.device.Deenergize(ctx)
	c.recordCommand("deenergize", err)
	if err != nil {
		c.logger.Error("wallbox@on: de-energize failed", zap.Error(err), zap.Bool("force", force))
		return err
	}
	now := c.clock.Now()
	c.state.IsOn = false
	c.state.TimeTurnedOff = now
	c.state.LastCommandTime = now
	c.state.Grace = domain.NoGraceTimer()
	metrics.WallboxOn.With().Set(0)
	c.logger.Info("wallbox@off: wallbox de-energized", zap.Bool("force", force))

	c.clock.Sleep(cfg.SettleDelay)
	if err := c.sendPowerLocked(ctx, cfg.Bounds(c.state.PhaseMode).Min); err != nil {
		c.logger.Error("wallbox@off: baseline after de-energize failed", zap.Error(err))
	}
	return nil
}

// SetPower requests a new charging power. With bypass the clamped value is sent at once;
// otherwise the protection band, slew limit, smoothing and command interval apply in that order.
// While off, a bypass request fails with ErrWallboxOff and a regular one is a no-op.
func (c *WallboxController) SetPower(ctx context.Context, targetWatt float64, bypass bool) error {
	if math.IsNaN(targetWatt) || math.IsInf(targetWatt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPower, targetWatt)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsOn {
		if bypass {
			return ErrWallboxOff
		}
		return nil
	}

	cfg := c.settings.Get()
	bounds := cfg.Bounds(c.state.PhaseMode)
	clamped := bounds.Clamp(int(math.Round(targetWatt)))

	if bypass {
		return c.sendPowerLocked(ctx, clamped)
	}
	commanded := c.state.CommandedPower
	if absInt(clamped-commanded) < cfg.ProtectionPower {
		return nil
	}

	now := c.clock.Now()
	lo, hi := math.Inf(-1), math.Inf(1)
	if !c.state.LastCommandTime.IsZero() && cfg.MaxSlewPerSecond > 0 {
		maxStep := math.Floor(cfg.MaxSlewPerSecond * now.Sub(c.state.LastCommandTime).Seconds())
		lo, hi = float64(commanded)-maxStep, float64(commanded)+maxStep
	}
	limited := math.Min(math.Max(float64(clamped), lo), hi)

	display := limited
	if c.displaySeeded {
		alpha := cfg.SmoothingFactor
		display = alpha*limited + (1-alpha)*c.state.DisplayPower
	}
	next := math.Min(math.Max(math.Round(display), lo), hi)
	nextWatt := bounds.Clamp(int(next))

	if nextWatt == commanded || c.withinCommandInterval(cfg) {
		c.state.DisplayPower = display
		c.displaySeeded = true
		return nil
	}

	err := c.device.SetPower(ctx, nextWatt)
	c.recordCommand("set_power", err)
	if err != nil {
		c.logger.Error("wallbox@on: set power failed", zap.Int("power", nextWatt), zap.Error(err))
		return err
	}
	c.state.DisplayPower = display
	c.displaySeeded = true
	c.state.CommandedPower = nextWatt
	c.state.LastCommandTime = c.clock.Now()
	metrics.WallboxCommandedPower.With().Set(float64(nextWatt))
	c.logger.Debug("wallbox@on: power set",
		zap.Int("power", nextWatt),
		zap.Int("target", clamped),
		zap.Float64("display", display))
	return nil
}

// StartGraceTimer starts the shutdown countdown. A running countdown is never extended
// and no countdown starts while the wallbox is off.
func (c *WallboxController) StartGraceTimer(d time.Duration) domain.GraceTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsOn {
		return c.state.Grace
	}
	if !c.state.Grace.Active() {
		c.state.Grace = domain.GraceUntil(c.clock.Now().Add(d))
		c.logger.Info("wallbox@on: grace timer started", zap.Stringer("grace", c.state.Grace))
	}
	return c.state.Grace
}

func (c *WallboxController) CancelGraceTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Grace.Active() {
		c.logger.Info("wallbox@on: grace timer cancelled")
	}
	c.state.Grace = domain.NoGraceTimer()
}

// sendPowerLocked sends an unconditional power command and records it on success.
func (c *WallboxController) sendPowerLocked(ctx context.Context, watts int) error {
	err := c.device.SetPower(ctx, watts)
	c.recordCommand("set_power", err)
	if err != nil {
		c.logger.Error("wallbox: power command failed", zap.Int("power", watts), zap.Error(err))
		return err
	}
	c.state.CommandedPower = watts
	c.state.DisplayPower = float64(watts)
	c.displaySeeded = true
	c.state.LastCommandTime = c.clock.Now()
	metrics.WallboxCommandedPower.With().Set(float64(watts))
	return nil
}

func (c *WallboxController) withinCommandInterval(cfg domain.ControlConfig) bool {
	last := c.state.LastCommandTime
	return !last.IsZero() && c.clock.Now().Sub(last) < cfg.CommandInterval
}

func (c *WallboxController) recordCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.WallboxCommands.With(command, result).Add(1)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
