package domain

import (
	"math"
	"time"
)

// ControlConfig holds the tunables read by the controller and the control loop on every decision.
type ControlConfig struct {
	// HeadroomPower [Watt] is added to the produced power; positive values allow importing from the grid.
	HeadroomPower int
	// ProtectionPower [Watt] is the smallest power change worth a device command.
	ProtectionPower int
	// Cooldown is the minimum off time before the wallbox may be energized again.
	Cooldown time.Duration
	// CommandInterval is the minimum time between two rate-limited commands.
	CommandInterval time.Duration
	// GracePeriod is how long power is held at minimum before a forced shutdown.
	GracePeriod time.Duration
	// SettleDelay is the pause between de-energize and the baseline power command.
	SettleDelay time.Duration
	// StaleAfter disables regulation when the last phase reading is older. 0 disables the check.
	StaleAfter time.Duration
	// SmoothingFactor is the EMA weight of the newest value, in (0, 1].
	SmoothingFactor float64
	// MaxSlewPerSecond [Watt/s] limits how fast the commanded power may move.
	MaxSlewPerSecond float64
	SinglePhase      PowerBounds
	ThreePhase       PowerBounds
}

func (c ControlConfig) Bounds(mode PhaseMode) PowerBounds {
	if mode == ThreePhase {
		return c.ThreePhase
	}
	return c.SinglePhase
}

// SystemState is what observers (dashboard, MQTT, websocket) are allowed to see.
type SystemState struct {
	Energy     EnergySnapshot
	Wallbox    WallboxState
	Config     ControlConfig
	Telemetry  bool
	ServerTime time.Time
}

type SurplusAction string

const (
	ACTION_NONE            SurplusAction = "none"
	ACTION_NO_DATA         SurplusAction = "no_data"
	ACTION_STALE           SurplusAction = "stale"
	ACTION_TURN_ON         SurplusAction = "turn_on"
	ACTION_TURN_OFF        SurplusAction = "turn_off"
	ACTION_REDUCE          SurplusAction = "reduce"
	ACTION_INCREASE        SurplusAction = "increase"
	ACTION_MAX_POWER       SurplusAction = "max_power"
	ACTION_HOLD_MIN        SurplusAction = "hold_min"
	ACTION_GRACE_STARTED   SurplusAction = "grace_started"
	ACTION_GRACE_CANCELLED SurplusAction = "grace_cancelled"
	ACTION_RESUME_MIN      SurplusAction = "resume_min"
)

// SurplusControlTickResult describes what one control loop evaluation decided.
type SurplusControlTickResult struct {
	Action       SurplusAction
	Target       int
	Produced     float64
	ConsumedLive float64
	HouseOnly    float64
	Exportable   float64
	Err          error
}

const (
	MAX_HEADROOM_POWER   = 22000
	MAX_PROTECTION_POWER = 5000
)

// Exportable is the surplus the control loop would compute for this state.
func (s SystemState) Exportable() float64 {
	grid := s.Energy.GridTotal
	produced := s.Energy.SolarTotal + float64(s.Config.HeadroomPower)
	if !s.Wallbox.IsOn {
		return produced - grid
	}
	commanded := float64(s.Wallbox.CommandedPower)
	return produced - (math.Abs(grid-commanded) + commanded)
}
