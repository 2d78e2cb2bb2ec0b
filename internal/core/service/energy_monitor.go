package service

import (
	"sync"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
)

// EnergyMonitor keeps the latest readings. The latest value always wins.
type EnergyMonitor struct {
	mu       sync.RWMutex
	snapshot domain.EnergySnapshot
}

func NewEnergyMonitor() *EnergyMonitor {
	return &EnergyMonitor{}
}

func (m *EnergyMonitor) ApplyPhaseReading(r domain.PhaseReading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Channels = r.Channels
	m.snapshot.GridTotal = r.GridTotal()
	m.snapshot.SolarTotal = r.SolarTotal()
	m.snapshot.LastPhaseTime = r.ReceivedAt
	m.snapshot.PhaseReadings++
}

// ApplySolarSample only replaces the solar total; grid load stays from the last phase reading.
func (m *EnergyMonitor) ApplySolarSample(s domain.SolarSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.SolarTotal = s.Generating
	m.snapshot.LastSolarTime = s.ReceivedAt
	m.snapshot.SolarSamples++
}

func (m *EnergyMonitor) Snapshot() domain.EnergySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
