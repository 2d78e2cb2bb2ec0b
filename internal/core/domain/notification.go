package domain

import (
	"fmt"
	"time"
)

type NotificationKind string

const (
	NOTIFICATION_STARTED        NotificationKind = "started"
	NOTIFICATION_LOW_GENERATION NotificationKind = "low_generation"
	NOTIFICATION_PHASE_ADVICE   NotificationKind = "phase_advice"
	NOTIFICATION_MAX_POWER      NotificationKind = "max_power"
	NOTIFICATION_TELEMETRY_DOWN NotificationKind = "telemetry_down"
)

type Notification struct {
	Id      string           `json:"id"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Time    time.Time        `json:"time"`
}

func StartedNotification() Notification {
	return Notification{
		Kind:    NOTIFICATION_STARTED,
		Message: "System started.",
	}
}

func LowGenerationNotification(producedWatt float64) Notification {
	return Notification{
		Kind:    NOTIFICATION_LOW_GENERATION,
		Message: fmt.Sprintf("⚠️ Insufficient generation (%.0fW). Turning the wallbox off.", producedWatt),
	}
}

// PhaseAdviceNotification suggests what the operator can do after a low generation shutdown.
func PhaseAdviceNotification(mode PhaseMode) Notification {
	msg := "⚠️ Advice: unplug the car."
	if mode == ThreePhase {
		msg = "⚠️ Advice: switch the installation to single-phase to use the available power better."
	}
	return Notification{
		Kind:    NOTIFICATION_PHASE_ADVICE,
		Message: msg,
	}
}

func MaxPowerNotification(mode PhaseMode, maxWatt int) Notification {
	msg := fmt.Sprintf("⚡ Maximum charging power reached (%dW).", maxWatt)
	if mode == SinglePhase {
		msg += " Consider switching the installation to three-phase."
	}
	return Notification{
		Kind:    NOTIFICATION_MAX_POWER,
		Message: msg,
	}
}

func TelemetryDownNotification(err error) Notification {
	return Notification{
		Kind:    NOTIFICATION_TELEMETRY_DOWN,
		Message: fmt.Sprintf("❌ Telemetry listener is down: %v", err),
	}
}
