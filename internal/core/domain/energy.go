package domain

import "time"

const CHANNEL_COUNT = 6

// Reading is the result of decoding one telemetry datagram.
type Reading interface {
	readingKind() string
}

// PhaseReading carries the six meter channels: 0-2 grid/house load, 3-5 solar inverter output.
type PhaseReading struct {
	Channels   [CHANNEL_COUNT]float64
	ReceivedAt time.Time
}

// SolarSample is the faster generation-only update.
type SolarSample struct {
	Generating float64
	ReceivedAt time.Time
}

// Unrecognized is returned for any datagram that does not decode as telemetry.
type Unrecognized struct {
	Reason error
}

func (PhaseReading) readingKind() string { return "phase" }
func (SolarSample) readingKind() string  { return "solar" }
func (Unrecognized) readingKind() string { return "unrecognized" }

// ReadingKind names the reading for logs and metric labels.
func ReadingKind(r Reading) string {
	if r == nil {
		return "unrecognized"
	}
	return r.readingKind()
}

func (r PhaseReading) GridTotal() float64 {
	return r.Channels[0] + r.Channels[1] + r.Channels[2]
}

func (r PhaseReading) SolarTotal() float64 {
	return r.Channels[3] + r.Channels[4] + r.Channels[5]
}

// EnergySnapshot is a value copy of the monitor state.
type EnergySnapshot struct {
	Channels      [CHANNEL_COUNT]float64
	GridTotal     float64
	SolarTotal    float64
	LastPhaseTime time.Time
	LastSolarTime time.Time
	PhaseReadings uint64
	SolarSamples  uint64
}

// HasPhaseReading reports whether at least one full channel reading was applied.
func (s EnergySnapshot) HasPhaseReading() bool {
	return !s.LastPhaseTime.IsZero()
}

type HistoryEntry struct {
	Grid    float64   `json:"grid"`
	Solar   float64   `json:"solar"`
	Wallbox float64   `json:"wb"`
	Time    time.Time `json:"time"`
}
