package domain

type (
	// Status represents the lifecycle status of a delivery.
	Status string
	// Transition represents a driver-initiated status change request.
	Transition string
)

// List of possible delivery statuses, in order of progression.
const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// List of driver-initiated transitions. The path segment of the
// transition request matches the string value.
const (
	TransitionAccept   Transition = "accept"
	TransitionPickup   Transition = "pickup"
	TransitionComplete Transition = "complete"
)

// AllStatuses lists every delivery status; tests range over it to keep
// the transition table exhaustive.
var AllStatuses = [...]Status{
	StatusPending, StatusAccepted, StatusPickedUp,
	StatusInTransit, StatusDelivered, StatusCancelled,
}

// Valid checks if the Status is a known delivery status.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further driver action is possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// NextTransition returns the single legal driver transition from the
// given status. The second return is false for terminal or unknown
// statuses.
func (s Status) NextTransition() (Transition, bool) {
	switch s {
	case StatusPending:
		return TransitionAccept, true
	case StatusAccepted:
		return TransitionPickup, true
	case StatusPickedUp, StatusInTransit:
		return TransitionComplete, true
	case StatusDelivered, StatusCancelled:
		return "", false
	default:
		return "", false
	}
}

// AllowedFrom reports whether the transition is legal from the status.
func (t Transition) AllowedFrom(s Status) bool {
	switch t {
	case TransitionAccept:
		return s == StatusPending
	case TransitionPickup:
		return s == StatusAccepted
	case TransitionComplete:
		return s == StatusPickedUp || s == StatusInTransit
	default:
		return false
	}
}

// Result returns the status a successful transition lands on.
func (t Transition) Result() (Status, bool) {
	switch t {
	case TransitionAccept:
		return StatusAccepted, true
	case TransitionPickup:
		return StatusPickedUp, true
	case TransitionComplete:
		return StatusDelivered, true
	default:
		return "", false
	}
}

// Label returns the action button text for a transition.
func (t Transition) Label() string {
	switch t {
	case TransitionAccept:
		return "Accept Job"
	case TransitionPickup:
		return "Mark Picked Up"
	case TransitionComplete:
		return "Complete Delivery"
	default:
		return ""
	}
}
