package port

import (
	"context"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
)

// WallboxDevice is the physical device command API.
type WallboxDevice interface {
	Energize(ctx context.Context) error
	Deenergize(ctx context.Context) error
	SetPower(ctx context.Context, watts int) error
	QueryPhaseMode(ctx context.Context) (domain.PhaseMode, error)
}

// WallboxControl is the controller surface used by the control loop.
type WallboxControl interface {
	State() domain.WallboxState
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context, force bool) error
	SetPower(ctx context.Context, targetWatt float64, bypass bool) error
	StartGraceTimer(d time.Duration) domain.GraceTimer
	CancelGraceTimer()
}
