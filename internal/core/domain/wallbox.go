package domain

import (
	"fmt"
	"time"
)

type PhaseMode int

const (
	SinglePhase PhaseMode = iota
	ThreePhase
)

func (m PhaseMode) String() string {
	switch m {
	case ThreePhase:
		return "three_phase"
	default:
		return "single_phase"
	}
}

func (m PhaseMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PhaseMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "single_phase":
		*m = SinglePhase
	case "three_phase":
		*m = ThreePhase
	default:
		return fmt.Errorf("unknown phase mode %q", text)
	}
	return nil
}

// PowerBounds is the valid charging range [Min, Max] in watts.
type PowerBounds struct {
	Min int `json:"min" mapstructure:"min_power"`
	Max int `json:"max" mapstructure:"max_power"`
}

func (b PowerBounds) Clamp(watts int) int {
	if watts < b.Min {
		return b.Min
	}
	if watts > b.Max {
		return b.Max
	}
	return watts
}

func (b PowerBounds) Valid() error {
	if b.Min <= 0 || b.Max < b.Min {
		return fmt.Errorf("invalid power bounds [%d, %d]", b.Min, b.Max)
	}
	return nil
}

// GraceTimer is the optional shutdown deadline. The zero value is "no timer".
type GraceTimer struct {
	deadline time.Time
	active   bool
}

func NoGraceTimer() GraceTimer {
	return GraceTimer{}
}

func GraceUntil(deadline time.Time) GraceTimer {
	return GraceTimer{deadline: deadline, active: true}
}

func (g GraceTimer) Active() bool {
	return g.active
}

func (g GraceTimer) Deadline() (time.Time, bool) {
	return g.deadline, g.active
}

// Expired is true only for an active timer whose deadline has passed.
func (g GraceTimer) Expired(now time.Time) bool {
	return g.active && !now.Before(g.deadline)
}

func (g GraceTimer) Remaining(now time.Time) time.Duration {
	if !g.active || !now.Before(g.deadline) {
		return 0
	}
	return g.deadline.Sub(now)
}

func (g GraceTimer) String() string {
	if !g.active {
		return "none"
	}
	return "until " + g.deadline.Format(time.TimeOnly)
}

// WallboxState is a value copy of the controller record.
type WallboxState struct {
	IsOn            bool
	CommandedPower  int
	DisplayPower    float64
	PhaseMode       PhaseMode
	Bounds          PowerBounds
	LastCommandTime time.Time
	TimeTurnedOff   time.Time
	Grace           GraceTimer
}

// ChargingPower is the power drawn by the wallbox as seen by the meter, 0 when off.
func (s WallboxState) ChargingPower() int {
	if !s.IsOn {
		return 0
	}
	return s.CommandedPower
}
