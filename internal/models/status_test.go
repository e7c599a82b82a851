package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"approve", StatusPending, StatusProcessing, true},
		{"mark ready", StatusProcessing, StatusReady, true},
		{"assign", StatusReady, StatusAssigned, true},
		{"rider accepts", StatusAssigned, StatusPickedUp, true},
		{"rider declines", StatusAssigned, StatusReady, true},
		{"start delivery", StatusPickedUp, StatusInTransit, true},
		{"deliver", StatusInTransit, StatusDelivered, true},
		{"close out", StatusDelivered, StatusDone, true},

		{"skip approval", StatusPending, StatusReady, false},
		{"skip assignment", StatusReady, StatusPickedUp, false},
		{"pending straight to pickup", StatusPending, StatusPickedUp, false},
		{"deliver without transit", StatusPickedUp, StatusDelivered, false},
		{"backwards from transit", StatusInTransit, StatusPickedUp, false},
		{"cancel after delivery", StatusDelivered, StatusCancelled, false},
		{"reopen done", StatusDone, StatusReady, false},
		{"reopen cancelled", StatusCancelled, StatusPending, false},
		{"unknown status", OrderStatus("shipped"), StatusDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// The decline edge (assigned -> ready) must be the only way backwards;
// everything else strictly advances or cancels.
func TestDeclineIsOnlyReEntrantEdge(t *testing.T) {
	order := []OrderStatus{
		StatusPending, StatusProcessing, StatusReady, StatusAssigned,
		StatusPickedUp, StatusInTransit, StatusDelivered, StatusDone,
	}
	rank := make(map[OrderStatus]int, len(order))
	for i, s := range order {
		rank[s] = i
	}

	for from, targets := range transitions {
		for _, to := range targets {
			if to == StatusCancelled {
				continue
			}
			if rank[to] <= rank[from] {
				if from == StatusAssigned && to == StatusReady {
					continue
				}
				t.Errorf("unexpected backwards edge %s -> %s", from, to)
			}
		}
	}
}

func TestCancellableFromEveryNonTerminalState(t *testing.T) {
	for status := range transitions {
		switch status {
		case StatusDelivered, StatusDone, StatusCancelled:
			if CanTransition(status, StatusCancelled) {
				t.Errorf("%s should not be cancellable", status)
			}
		default:
			if !CanTransition(status, StatusCancelled) {
				t.Errorf("%s should be cancellable", status)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for status := range transitions {
		want := status == StatusDone || status == StatusCancelled
		if got := IsTerminal(status); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestNextStatesIsACopy(t *testing.T) {
	next := NextStates(StatusPending)
	if len(next) == 0 {
		t.Fatal("expected pending to have successors")
	}
	next[0] = StatusDone
	if CanTransition(StatusPending, StatusDone) {
		t.Error("mutating NextStates result leaked into the transition table")
	}
}
