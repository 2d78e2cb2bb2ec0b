package server

import (
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
)

type settingsDTO struct {
	HeadroomPower   int `json:"headroom_power"`
	ProtectionPower int `json:"protection_power"`
}

type settingsUpdateDTO struct {
	HeadroomPower   *int `json:"headroom_power"`
	ProtectionPower *int `json:"protection_power"`
}

type statusDTO struct {
	ServerTime    time.Time                     `json:"server_time"`
	WallboxOn     bool                          `json:"wb_on"`
	WallboxPower  int                           `json:"wb_power"`
	PhaseMode     domain.PhaseMode              `json:"phase_mode"`
	Bounds        domain.PowerBounds            `json:"bounds"`
	GraceActive   bool                          `json:"grace_active"`
	GraceDeadline *time.Time                    `json:"grace_deadline,omitempty"`
	LastPhase     *time.Time                    `json:"last_phase,omitempty"`
	LastSolar     *time.Time                    `json:"last_solar,omitempty"`
	Channels      [domain.CHANNEL_COUNT]float64 `json:"channels"`
	GridTotal     float64                       `json:"grid_total"`
	SolarTotal    float64                       `json:"solar_total"`
	Exportable    float64                       `json:"exportable"`
	Telemetry     bool                          `json:"telemetry"`
}

type dataDTO struct {
	Config  settingsDTO           `json:"config"`
	Status  statusDTO             `json:"status"`
	History []domain.HistoryEntry `json:"history"`
	Logs    []string              `json:"logs"`
}

type commandResultDTO struct {
	Success bool   `json:"success"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toStatusDTO(s domain.SystemState) statusDTO {
	dto := statusDTO{
		ServerTime:   s.ServerTime,
		WallboxOn:    s.Wallbox.IsOn,
		WallboxPower: s.Wallbox.ChargingPower(),
		PhaseMode:    s.Wallbox.PhaseMode,
		Bounds:       s.Wallbox.Bounds,
		GraceActive:  s.Wallbox.Grace.Active(),
		LastPhase:    optionalTime(s.Energy.LastPhaseTime),
		LastSolar:    optionalTime(s.Energy.LastSolarTime),
		Channels:     s.Energy.Channels,
		GridTotal:    s.Energy.GridTotal,
		SolarTotal:   s.Energy.SolarTotal,
		Telemetry:    s.Telemetry,
	}
	if deadline, ok := s.Wallbox.Grace.Deadline(); ok {
		dto.GraceDeadline = &deadline
	}
	if s.Energy.HasPhaseReading() {
		dto.Exportable = s.Exportable()
	}
	return dto
}

func toSettingsDTO(c domain.ControlConfig) settingsDTO {
	return settingsDTO{
		HeadroomPower:   c.HeadroomPower,
		ProtectionPower: c.ProtectionPower,
	}
}
