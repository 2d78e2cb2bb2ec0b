package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE           = "bridge"
	SENSOR_ID_GRID_POWER             = "grid_power"
	SENSOR_ID_SOLAR_POWER            = "solar_power"
	SENSOR_ID_EXPORTABLE_POWER       = "exportable_power"
	SENSOR_ID_WALLBOX_POWER          = "wallbox_power"
	SENSOR_ID_WALLBOX_PHASE_MODE     = "wallbox_phase_mode"
	SENSOR_ID_WALLBOX_ON             = "wallbox_on"
	SENSOR_ID_GRACE_TIMER            = "grace_timer"
	SWITCH_ID_WALLBOX_CHARGE         = "wallbox_charge"
	INPUT_NUMBER_ID_HEADROOM_POWER   = "headroom_power"
	INPUT_NUMBER_ID_PROTECTION_POWER = "protection_power"
	BUTTON_ID_WALLBOX_REINITIALIZE   = "wallbox_reinitialize"
	STATE_CLASS_MEASUREMENT          = "measurement"
	DEVICE_CLASS_POWER               = "power"
	DEVICE_CLASS_RUNNING             = "running"
	DEVICE_CLASS_CONNECTIVITY        = "connectivity"
	DEVICE_CLASS_RESTART             = "restart"
	ENTITY_CLASS_DIAGNOSTIC          = "diagnostic"
	ENTITY_CLASS_CONFIG              = "config"
	SENSOR_TYPE_SENSOR               = "sensor"
	SENSOR_TYPE_BINARY               = "binary_sensor"
	INPUT_NUMBER_MODE_BOX            = "box"
	INPUT_NUMBER_MODE_SLIDER         = "slider"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("surplus_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Surplus2Wallbox",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Surplus2Wallbox %s", md5HashShort(baseTopic)),
	}
}

func WallboxDevice(host string) Device {
	return Device{
		Id:    fmt.Sprintf("surplus_wallbox_%s", md5HashShort(host)),
		Model: "Wallbox",
		Name:  fmt.Sprintf("Wallbox %s", host),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connectivity
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func WallboxSensors(wallboxDevice Device) []GenericSensor {

	var sensors []GenericSensor

	powerSensor := func(id, name, icon string) GenericSensor {
		return GenericSensor{
			Device:            wallboxDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_POWER,
			UnitOfMeasurement: "W",
			Icon:              icon,
			UniqueId:          uniqueId(wallboxDevice.Id, id),
		}
	}

	sensors = append(sensors, powerSensor(SENSOR_ID_GRID_POWER, "Grid power", "mdi:transmission-tower"))
	sensors = append(sensors, powerSensor(SENSOR_ID_SOLAR_POWER, "Solar power", "mdi:solar-power"))
	sensors = append(sensors, powerSensor(SENSOR_ID_EXPORTABLE_POWER, "Exportable power", "mdi:transmission-tower-export"))
	sensors = append(sensors, powerSensor(SENSOR_ID_WALLBOX_POWER, "Wallbox power", "mdi:ev-station"))

	// Phase mode
	sensors = append(sensors, GenericSensor{
		Device:         wallboxDevice,
		Id:             SENSOR_ID_WALLBOX_PHASE_MODE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Installation phase mode",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(wallboxDevice.Id, SENSOR_ID_WALLBOX_PHASE_MODE),
	})

	// Charging state
	sensors = append(sensors, GenericSensor{
		Device:      wallboxDevice,
		Id:          SENSOR_ID_WALLBOX_ON,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Wallbox charging",
		DeviceClass: DEVICE_CLASS_RUNNING,
		UniqueId:    uniqueId(wallboxDevice.Id, SENSOR_ID_WALLBOX_ON),
	})

	// Shutdown grace timer
	sensors = append(sensors, GenericSensor{
		Device:           wallboxDevice,
		Id:               SENSOR_ID_GRACE_TIMER,
		SensorType:       SENSOR_TYPE_BINARY,
		Name:             "Shutdown pending",
		Icon:             "mdi:timer-sand",
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(wallboxDevice.Id, SENSOR_ID_GRACE_TIMER),
	})

	return sensors
}

func WallboxSwitches(wallboxDevice Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   wallboxDevice,
			Id:       SWITCH_ID_WALLBOX_CHARGE,
			Name:     "Wallbox charge",
			UniqueId: uniqueId(wallboxDevice.Id, SWITCH_ID_WALLBOX_CHARGE),
			Icon:     "mdi:ev-plug-type2",
		},
	}
}

func WallboxInputNumbers(wallboxDevice Device, cfg ControlConfig) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	// Headroom
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            wallboxDevice,
		Id:                INPUT_NUMBER_ID_HEADROOM_POWER,
		Name:              "Importable headroom",
		UniqueId:          uniqueId(wallboxDevice.Id, INPUT_NUMBER_ID_HEADROOM_POWER),
		Icon:              "mdi:transmission-tower-import",
		UnitOfMeasurement: "W",
		Max:               MAX_HEADROOM_POWER,
		Min:               -MAX_HEADROOM_POWER,
		Step:              50,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      float64(cfg.HeadroomPower),
	})
	// Protection band
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            wallboxDevice,
		Id:                INPUT_NUMBER_ID_PROTECTION_POWER,
		Name:              "Protection band",
		UniqueId:          uniqueId(wallboxDevice.Id, INPUT_NUMBER_ID_PROTECTION_POWER),
		Icon:              "mdi:shield-half-full",
		UnitOfMeasurement: "W",
		Max:               MAX_PROTECTION_POWER,
		Min:               0,
		Step:              10,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      float64(cfg.ProtectionPower),
	})

	return inputNumbers
}

func WallboxButtons(wallboxDevice Device) []GenericButton {
	return []GenericButton{
		{
			Device:         wallboxDevice,
			Id:             BUTTON_ID_WALLBOX_REINITIALIZE,
			Name:           "Reinitialize wallbox",
			UniqueId:       uniqueId(wallboxDevice.Id, BUTTON_ID_WALLBOX_REINITIALIZE),
			Icon:           "mdi:restart",
			EntityCategory: ENTITY_CLASS_CONFIG,
		},
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
