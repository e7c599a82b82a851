package models

// OrderStatus is the order's place in the delivery lifecycle.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusReady      OrderStatus = "ready"
	StatusAssigned   OrderStatus = "assigned"
	StatusPickedUp   OrderStatus = "picked_up"
	StatusInTransit  OrderStatus = "in_transit"
	StatusDelivered  OrderStatus = "delivered"
	StatusDone       OrderStatus = "done"
	StatusCancelled  OrderStatus = "cancelled"
)

// transitions is the single source of truth for the lifecycle.
// assigned -> ready is the decline edge, the only way back.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusReady, StatusCancelled},
	StatusReady:      {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusPickedUp, StatusReady, StatusCancelled},
	StatusPickedUp:   {StatusInTransit, StatusCancelled},
	StatusInTransit:  {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusDone},
	StatusDone:       {},
	StatusCancelled:  {},
}

// NextStates returns the set of statuses reachable from current.
func NextStates(current OrderStatus) []OrderStatus {
	next := transitions[current]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func IsTerminal(s OrderStatus) bool {
	return len(transitions[s]) == 0
}

// IsValidStatus reports whether s is a known lifecycle status.
func IsValidStatus(s OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

// Label returns the human-readable form used by the consoles.
func (s OrderStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing"
	case StatusReady:
		return "Ready for Pickup"
	case StatusAssigned:
		return "Rider Assigned"
	case StatusPickedUp:
		return "Picked Up"
	case StatusInTransit:
		return "Out for Delivery"
	case StatusDelivered:
		return "Delivered"
	case StatusDone:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}
