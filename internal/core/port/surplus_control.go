package port

import (
	"context"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
)

type SurplusControlLogic interface {
	Loop(ctx context.Context, snapshot domain.EnergySnapshot, wallbox WallboxControl) domain.SurplusControlTickResult
}

// Notifier accepts fire-and-forget notifications. Implementations must not block.
type Notifier interface {
	Notify(notification domain.Notification)
}

// SystemStateReader is the read-only accessor for observers.
type SystemStateReader interface {
	SystemState() domain.SystemState
	History() []domain.HistoryEntry
}

// Operator groups the manual actions and configuration mutators.
type Operator interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	Reinitialize(ctx context.Context) error
	SetHeadroomPower(watts int) error
	SetProtectionPower(watts int) error
}

// ReadingHandler consumes decoded telemetry in arrival order.
type ReadingHandler interface {
	HandleReading(ctx context.Context, reading domain.Reading) domain.SurplusControlTickResult
}
