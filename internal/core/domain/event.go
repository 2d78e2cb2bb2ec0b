package domain

import "strconv"

// MQTT state payloads, matching the Home Assistant defaults.
const (
	STATE_ON      = "on"
	STATE_OFF     = "off"
	STATE_ONLINE  = "online"
	STATE_OFFLINE = "offline"
)

// SensorUpdateEvent is a new value of one entity exposed over MQTT.
type SensorUpdateEvent interface {
	SensorId() string
	// Payload is the state message published for the value.
	Payload() string
}

type SensorUpdateEventMixIn struct {
	Id string
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

// PowerSensorUpdateEvent carries a measured or derived power in watts.
type PowerSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Watts    float64
	Decimals int
}

func NewPowerSensorUpdate(id string, watts float64) PowerSensorUpdateEvent {
	return PowerSensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}, Watts: watts}
}

func (e PowerSensorUpdateEvent) Payload() string {
	return strconv.FormatFloat(e.Watts, 'f', e.Decimals, 64)
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func NewBinarySensorUpdate(id string, value bool) BinarySensorUpdateEvent {
	return BinarySensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}, Value: value}
}

func (e BinarySensorUpdateEvent) Payload() string {
	return onOff(e.Value)
}

// SwitchSensorUpdateEvent reports the wallbox charge switch, following the device state.
type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func NewSwitchUpdate(id string, on bool) SwitchSensorUpdateEvent {
	return SwitchSensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}, Value: on}
}

func (e SwitchSensorUpdateEvent) Payload() string {
	return onOff(e.Value)
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

func NewTextSensorUpdate(id, value string) TextSensorUpdateEvent {
	return TextSensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}, Value: value}
}

func (e TextSensorUpdateEvent) Payload() string {
	return e.Value
}

// SettingUpdateEvent reports an operator adjustable control setting in whole watts.
type SettingUpdateEvent struct {
	SensorUpdateEventMixIn
	Watts int
}

func NewSettingUpdate(id string, watts int) SettingUpdateEvent {
	return SettingUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}, Watts: watts}
}

func (e SettingUpdateEvent) Payload() string {
	return strconv.Itoa(e.Watts)
}

// BridgeStateUpdateEvent is the availability of the controller itself. It has no sensor id.
type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func (e BridgeStateUpdateEvent) Payload() string {
	if e.Value {
		return STATE_ONLINE
	}
	return STATE_OFFLINE
}

func onOff(v bool) string {
	if v {
		return STATE_ON
	}
	return STATE_OFF
}
