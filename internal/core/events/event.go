package events

import (
	. "github.com/berfenger/surplus2wallbox/internal/core/domain"
)

func EnergyToUpdateEvents(snapshot EnergySnapshot, exportable float64) []any {
	return []any{
		NewPowerSensorUpdate(SENSOR_ID_GRID_POWER, snapshot.GridTotal),
		NewPowerSensorUpdate(SENSOR_ID_SOLAR_POWER, snapshot.SolarTotal),
		NewPowerSensorUpdate(SENSOR_ID_EXPORTABLE_POWER, exportable),
	}
}

func WallboxToUpdateEvents(wb WallboxState) []any {
	return []any{
		NewPowerSensorUpdate(SENSOR_ID_WALLBOX_POWER, float64(wb.ChargingPower())),
		NewBinarySensorUpdate(SENSOR_ID_WALLBOX_ON, wb.IsOn),
		NewTextSensorUpdate(SENSOR_ID_WALLBOX_PHASE_MODE, wb.PhaseMode.String()),
		NewBinarySensorUpdate(SENSOR_ID_GRACE_TIMER, wb.Grace.Active()),
		// the switch follows the physical state so manual changes on the device are reflected
		WallboxChargeSwitchUpdateEvent(wb.IsOn),
	}
}

func WallboxChargeSwitchUpdateEvent(on bool) any {
	return NewSwitchUpdate(SWITCH_ID_WALLBOX_CHARGE, on)
}

func ControlSettingsUpdateEvents(cfg ControlConfig) []any {
	return []any{
		NewSettingUpdate(INPUT_NUMBER_ID_HEADROOM_POWER, cfg.HeadroomPower),
		NewSettingUpdate(INPUT_NUMBER_ID_PROTECTION_POWER, cfg.ProtectionPower),
	}
}

// SystemStateToUpdateEvents flattens a state snapshot into the sensor events published to MQTT.
func SystemStateToUpdateEvents(state SystemState) []any {
	var events []any
	if state.Energy.HasPhaseReading() {
		events = append(events, EnergyToUpdateEvents(state.Energy, state.Exportable())...)
	}
	events = append(events, WallboxToUpdateEvents(state.Wallbox)...)
	events = append(events, ControlSettingsUpdateEvents(state.Config)...)
	events = append(events, BridgeStateUpdateEvent{Value: true})
	return events
}
