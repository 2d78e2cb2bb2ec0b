package domain

// OperatorRequest is a manual action coming from MQTT and routed by the master actor.
type OperatorRequest interface {
	ActorRequest
	operatorRequest()
}

type OperatorRequestMixIn struct {
	ActorRequestMixIn
}

func (r OperatorRequestMixIn) operatorRequest() {}

type OperatorResponse struct {
	ActorResponseMixIn
	Command string
}

// Operator commands

type WallboxSwitchRequest struct {
	OperatorRequestMixIn
	Enable bool
}

type WallboxReinitializeRequest struct {
	OperatorRequestMixIn
}

type SetHeadroomPowerRequest struct {
	OperatorRequestMixIn
	PowerWatt int
}

type SetProtectionPowerRequest struct {
	OperatorRequestMixIn
	PowerWatt int
}

// ensure interface compliance
var _ OperatorRequest = (*WallboxSwitchRequest)(nil)
var _ OperatorRequest = (*WallboxReinitializeRequest)(nil)
var _ OperatorRequest = (*SetHeadroomPowerRequest)(nil)
var _ OperatorRequest = (*SetProtectionPowerRequest)(nil)
