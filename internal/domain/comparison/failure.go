package comparison

// FailureKind classifies why a run or location lookup failed.
type FailureKind string

const (
	FailureMissingInput         FailureKind = "missing_input"
	FailureInvalidPickupAddress FailureKind = "invalid_pickup_address"
	FailureInvalidDropAddress   FailureKind = "invalid_drop_address"
	FailureTransportError       FailureKind = "transport_error"
	FailureRoutingError         FailureKind = "routing_error"
	FailureLocationUnavailable  FailureKind = "location_unavailable"
	FailureLocationLookup       FailureKind = "location_lookup_failed"
)

var failureMessages = map[FailureKind]string{
	FailureMissingInput:         "Please enter both pickup and drop addresses.",
	FailureInvalidPickupAddress: "Invalid pickup address. Try full address with city and pin.",
	FailureInvalidDropAddress:   "Invalid drop address. Try full address with city and pin.",
	FailureTransportError:       "Something went wrong while looking up the addresses. Please try again.",
	FailureRoutingError:         "Something went wrong while fetching route or distance.",
	FailureLocationUnavailable:  "Geolocation not supported by your browser.",
	FailureLocationLookup:       "Failed to fetch address from your location.",
}

// MessageLocationResolved is shown after the pickup is filled from the device location.
const MessageLocationResolved = "Pickup set to your current location."

// Message returns the user-facing text for the failure kind.
func (k FailureKind) Message() string {
	if msg, ok := failureMessages[k]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	return string(k)
}

// Failure is the user-facing outcome of a failed step.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// NewFailure builds a Failure carrying the standard message for kind.
func NewFailure(kind FailureKind) *Failure {
	return &Failure{Kind: kind, Message: kind.Message()}
}
