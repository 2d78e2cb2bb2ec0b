package service

import (
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestApplyPhaseReadingOverwrites(t *testing.T) {
	assert := assert.New(t)
	m := NewEnergyMonitor()

	m.ApplyPhaseReading(domain.PhaseReading{Channels: [6]float64{100, 100, 100, 0, 0, 0}, ReceivedAt: testStart})
	assert.Equal(300.0, m.Snapshot().GridTotal)

	later := testStart.Add(6 * time.Second)
	m.ApplyPhaseReading(domain.PhaseReading{ReceivedAt: later})
	s := m.Snapshot()
	assert.Equal(0.0, s.GridTotal)
	assert.Equal(0.0, s.SolarTotal)
	assert.Equal(later, s.LastPhaseTime)
	assert.Equal(uint64(2), s.PhaseReadings)
}

func TestApplySolarSampleKeepsGrid(t *testing.T) {
	assert := assert.New(t)
	m := NewEnergyMonitor()

	m.ApplyPhaseReading(domain.PhaseReading{Channels: [6]float64{200, 300, 500, 100, 100, 100}, ReceivedAt: testStart})
	m.ApplySolarSample(domain.SolarSample{Generating: 2500, ReceivedAt: testStart.Add(time.Second)})

	s := m.Snapshot()
	assert.Equal(1000.0, s.GridTotal)
	assert.Equal(2500.0, s.SolarTotal)
	assert.Equal(testStart, s.LastPhaseTime)
	assert.Equal(testStart.Add(time.Second), s.LastSolarTime)
	assert.Equal([6]float64{200, 300, 500, 100, 100, 100}, s.Channels)

	// a new phase reading wins again
	m.ApplyPhaseReading(domain.PhaseReading{Channels: [6]float64{0, 0, 0, 400, 0, 0}, ReceivedAt: testStart.Add(2 * time.Second)})
	assert.Equal(400.0, m.Snapshot().SolarTotal)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewEnergyMonitor()
	m.ApplyPhaseReading(domain.PhaseReading{Channels: [6]float64{1, 2, 3, 4, 5, 6}, ReceivedAt: testStart})

	s := m.Snapshot()
	s.Channels[0] = 1000
	s.GridTotal = 1000
	assert.Equal(t, 6.0, m.Snapshot().GridTotal)
	assert.Equal(t, 1.0, m.Snapshot().Channels[0])
}
