package domain

const (
	ACTOR_ID_MASTER          = "master"
	ACTOR_ID_MQTT            = "mqtt"
	ACTOR_ID_NOTIFIER        = "notifier"
	ACTOR_ID_STATE_PUBLISHER = "statepublisher"
	ACTOR_ID_HA_DISCOVERY    = "hadiscovery"
)

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
	Buttons      []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type NotificationRequest struct {
	Notification Notification
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// PublishStateRequest asks the state publisher for an immediate refresh.
type PublishStateRequest struct {
}
