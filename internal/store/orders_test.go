package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.DB.Close() })
	return s
}

var orderSeq atomic.Int64

func seedOrder(t *testing.T, s *Store) *models.Order {
	t.Helper()
	n := orderSeq.Add(1)
	order := &models.Order{
		OrderRef:      fmt.Sprintf("A7X9TEST%d", n),
		CustomerName:  "Maria Santos",
		CustomerEmail: "maria@example.com",
		Address:       "12 Sampaguita St",
		City:          "Quezon City",
		Items: []models.OrderItem{
			{Name: "Chocolate Cake", Price: 850, Quantity: 1},
			{Name: "Rose Bouquet", Price: 650, Quantity: 1},
		},
		Subtotal:          1500,
		Discount:          200,
		SubtotalAfterDisc: 1300,
		Tax:               156,
		DeliveryFee:       100,
		Total:             1556,
		MagicToken:        fmt.Sprintf("tok-%d", n),
		MagicTokenExpiry:  time.Now().Add(time.Hour),
	}
	if err := s.CreateOrder(order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func seedRider(t *testing.T, s *Store, username string) *models.Rider {
	t.Helper()
	rider := &models.Rider{
		Name:     "Jun Dela Cruz",
		Username: username,
		Password: "hash",
		Phone:    "0917-000-0000",
		Vehicle:  "Motorcycle",
	}
	if err := s.CreateRider(rider); err != nil {
		t.Fatalf("CreateRider: %v", err)
	}
	return rider
}

func advanceTo(t *testing.T, s *Store, order *models.Order, statuses ...models.OrderStatus) {
	t.Helper()
	from := order.Status
	if from == "" {
		from = models.StatusPending
	}
	for _, to := range statuses {
		if err := s.TransitionStatus(order.ID, from, to, time.Now().UTC()); err != nil {
			t.Fatalf("TransitionStatus(%s -> %s): %v", from, to, err)
		}
		from = to
	}
	order.Status = from
}

func TestCreateAndGetOrder(t *testing.T) {
	s := newTestStore(t)
	order := seedOrder(t, s)

	got, err := s.GetOrderByID(order.ID)
	if err != nil {
		t.Fatalf("GetOrderByID: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("new order status = %s, want pending", got.Status)
	}
	if got.Total != 1556 {
		t.Errorf("total = %v, want 1556", got.Total)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(got.Items))
	}
	if got.Items[0].Name != "Chocolate Cake" {
		t.Errorf("first item = %q", got.Items[0].Name)
	}

	byToken, err := s.GetOrderByToken(order.MagicToken)
	if err != nil {
		t.Fatalf("GetOrderByToken: %v", err)
	}
	if byToken.ID != order.ID {
		t.Errorf("token lookup found order %d, want %d", byToken.ID, order.ID)
	}

	if _, err := s.GetOrderByID(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing order error = %v, want ErrNotFound", err)
	}
}

func TestNullTokenExpiryScans(t *testing.T) {
	s := newTestStore(t)
	order := seedOrder(t, s)

	if _, err := s.DB.Exec(`UPDATE orders SET magic_token_expiry = NULL WHERE id = ?`, order.ID); err != nil {
		t.Fatalf("null out expiry: %v", err)
	}

	got, err := s.GetOrderByID(order.ID)
	if err != nil {
		t.Fatalf("GetOrderByID with NULL expiry: %v", err)
	}
	if !got.MagicTokenExpiry.IsZero() {
		t.Errorf("expiry = %v, want zero time", got.MagicTokenExpiry)
	}

	all, err := s.GetAllOrders(10, 0)
	if err != nil {
		t.Fatalf("GetAllOrders with NULL expiry: %v", err)
	}
	if len(all) == 0 {
		t.Error("order missing from list")
	}
}

func TestTransitionStatus(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	t.Run("illegal step is rejected", func(t *testing.T) {
		order := seedOrder(t, s)
		err := s.TransitionStatus(order.ID, models.StatusPending, models.StatusPickedUp, now)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("stale writer loses", func(t *testing.T) {
		order := seedOrder(t, s)
		if err := s.TransitionStatus(order.ID, models.StatusPending, models.StatusProcessing, now); err != nil {
			t.Fatalf("first transition: %v", err)
		}
		// A second console still holding the pending snapshot.
		err := s.TransitionStatus(order.ID, models.StatusPending, models.StatusProcessing, now)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})

	t.Run("timestamps are stamped per step", func(t *testing.T) {
		order := seedOrder(t, s)
		advanceTo(t, s, order, models.StatusProcessing, models.StatusReady)
		got, err := s.GetOrderByID(order.ID)
		if err != nil {
			t.Fatalf("GetOrderByID: %v", err)
		}
		if got.ProcessedAt == nil || got.ReadyAt == nil {
			t.Errorf("processed_at/ready_at = %v/%v, want both set", got.ProcessedAt, got.ReadyAt)
		}
		if got.DeliveredAt != nil {
			t.Errorf("delivered_at set prematurely: %v", got.DeliveredAt)
		}
	})
}

func TestAssignAcceptFlow(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	order := seedOrder(t, s)
	rider := seedRider(t, s, "jun@example.com")
	advanceTo(t, s, order, models.StatusProcessing, models.StatusReady)

	if err := s.AssignRider(order.ID, rider, now); err != nil {
		t.Fatalf("AssignRider: %v", err)
	}
	got, _ := s.GetOrderByID(order.ID)
	if got.Status != models.StatusAssigned {
		t.Fatalf("status = %s, want assigned", got.Status)
	}
	if got.RiderID == nil || *got.RiderID != rider.ID {
		t.Fatalf("rider_id = %v, want %d", got.RiderID, rider.ID)
	}
	if got.RiderName != rider.Name {
		t.Errorf("rider_name = %q, want %q", got.RiderName, rider.Name)
	}

	// Only the assigned rider can accept.
	if err := s.AcceptOrder(order.ID, rider.ID+100, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("accept by wrong rider: err = %v, want ErrConflict", err)
	}

	if err := s.AcceptOrder(order.ID, rider.ID, now); err != nil {
		t.Fatalf("AcceptOrder: %v", err)
	}
	got, _ = s.GetOrderByID(order.ID)
	if got.Status != models.StatusPickedUp {
		t.Errorf("status = %s, want picked_up", got.Status)
	}
	if got.AcceptedAt == nil || got.PickedUpAt == nil {
		t.Errorf("accepted_at/picked_up_at = %v/%v, want both set", got.AcceptedAt, got.PickedUpAt)
	}

	// Accepting twice fails: the order is no longer assigned.
	if err := s.AcceptOrder(order.ID, rider.ID, now); !errors.Is(err, ErrConflict) {
		t.Errorf("second accept: err = %v, want ErrConflict", err)
	}
}

func TestDeclineReturnsOrderToPool(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	order := seedOrder(t, s)
	rider := seedRider(t, s, "jun@example.com")
	second := seedRider(t, s, "ana@example.com")
	advanceTo(t, s, order, models.StatusProcessing, models.StatusReady)
	if err := s.AssignRider(order.ID, rider, now); err != nil {
		t.Fatalf("AssignRider: %v", err)
	}

	if err := s.DeclineOrder(order.ID, rider.ID, "too far from my area", now); err != nil {
		t.Fatalf("DeclineOrder: %v", err)
	}
	got, _ := s.GetOrderByID(order.ID)
	if got.Status != models.StatusReady {
		t.Fatalf("status = %s, want ready", got.Status)
	}
	if got.RiderID != nil {
		t.Errorf("rider_id = %v, want cleared", got.RiderID)
	}
	if got.DeclinedBy == nil || *got.DeclinedBy != rider.ID {
		t.Errorf("declined_by = %v, want %d", got.DeclinedBy, rider.ID)
	}
	if got.DeclineReason != "too far from my area" {
		t.Errorf("decline_reason = %q", got.DeclineReason)
	}

	// Declined orders surface in the pseudo-status filter.
	declined, err := s.GetOrdersByStatus("declined", 10, 0)
	if err != nil {
		t.Fatalf("GetOrdersByStatus(declined): %v", err)
	}
	if len(declined) != 1 || declined[0].ID != order.ID {
		t.Errorf("declined filter returned %d orders", len(declined))
	}

	// Reassignment starts the new rider with a clean slate.
	if err := s.AssignRider(order.ID, second, now); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	got, _ = s.GetOrderByID(order.ID)
	if got.DeclinedBy != nil || got.DeclineReason != "" {
		t.Errorf("decline trail survived reassignment: %v %q", got.DeclinedBy, got.DeclineReason)
	}
	if got.RiderID == nil || *got.RiderID != second.ID {
		t.Errorf("rider_id = %v, want %d", got.RiderID, second.ID)
	}
}

func TestCancelOrder(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	t.Run("cancels and detaches rider", func(t *testing.T) {
		order := seedOrder(t, s)
		rider := seedRider(t, s, "jun1@example.com")
		advanceTo(t, s, order, models.StatusProcessing, models.StatusReady)
		if err := s.AssignRider(order.ID, rider, now); err != nil {
			t.Fatalf("AssignRider: %v", err)
		}

		if err := s.CancelOrder(order.ID, "customer unreachable", now); err != nil {
			t.Fatalf("CancelOrder: %v", err)
		}
		got, _ := s.GetOrderByID(order.ID)
		if got.Status != models.StatusCancelled {
			t.Errorf("status = %s, want cancelled", got.Status)
		}
		if got.RiderID != nil {
			t.Errorf("rider_id = %v, want cleared", got.RiderID)
		}
		if got.CancellationReason != "customer unreachable" {
			t.Errorf("reason = %q", got.CancellationReason)
		}
	})

	t.Run("delivered orders cannot be cancelled", func(t *testing.T) {
		order := seedOrder(t, s)
		rider := seedRider(t, s, "jun2@example.com")
		advanceTo(t, s, order, models.StatusProcessing, models.StatusReady)
		if err := s.AssignRider(order.ID, rider, now); err != nil {
			t.Fatalf("AssignRider: %v", err)
		}
		if err := s.AcceptOrder(order.ID, rider.ID, now); err != nil {
			t.Fatalf("AcceptOrder: %v", err)
		}
		order.Status = models.StatusPickedUp
		advanceTo(t, s, order, models.StatusInTransit, models.StatusDelivered)

		if err := s.CancelOrder(order.ID, "too late", now); !errors.Is(err, ErrConflict) {
			t.Fatalf("cancel delivered: err = %v, want ErrConflict", err)
		}
		got, _ := s.GetOrderByID(order.ID)
		if got.Status != models.StatusDelivered {
			t.Errorf("status = %s, want delivered", got.Status)
		}
	})

	t.Run("terminal orders stay put", func(t *testing.T) {
		order := seedOrder(t, s)
		if err := s.CancelOrder(order.ID, "first", now); err != nil {
			t.Fatalf("CancelOrder: %v", err)
		}
		if err := s.CancelOrder(order.ID, "again", now); !errors.Is(err, ErrConflict) {
			t.Errorf("second cancel: err = %v, want ErrConflict", err)
		}
	})
}

func TestNotificationClaims(t *testing.T) {
	s := newTestStore(t)
	order := seedOrder(t, s)

	won, err := s.ClaimUserNotified(order.ID)
	if err != nil {
		t.Fatalf("ClaimUserNotified: %v", err)
	}
	if !won {
		t.Fatal("first claim should win")
	}
	for i := 0; i < 3; i++ {
		won, err = s.ClaimUserNotified(order.ID)
		if err != nil {
			t.Fatalf("ClaimUserNotified: %v", err)
		}
		if won {
			t.Fatal("repeat claim should lose")
		}
	}

	// The admin flag is independent.
	if won, _ := s.ClaimAdminNotified(order.ID); !won {
		t.Error("admin claim should win on its first call")
	}
}

func TestSaveFeedbackOnce(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	order := seedOrder(t, s)

	first := &models.Feedback{OrderID: order.ID, Rating: 5, Comment: "lovely flowers"}
	if err := s.SaveFeedback(first, now); err != nil {
		t.Fatalf("SaveFeedback: %v", err)
	}
	if first.ID == 0 {
		t.Error("feedback ID not set after insert")
	}
	second := &models.Feedback{OrderID: order.ID, Rating: 1, Comment: "changed my mind"}
	if err := s.SaveFeedback(second, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("second feedback: err = %v, want ErrConflict", err)
	}

	got, _ := s.GetOrderByID(order.ID)
	if got.Rating != 5 || got.FeedbackComment != "lovely flowers" {
		t.Errorf("feedback = %d %q, first submission should stick", got.Rating, got.FeedbackComment)
	}

	// The rejected submission must not leave a row behind.
	var rows int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM feedback WHERE order_id = ?`, order.ID).Scan(&rows); err != nil {
		t.Fatalf("count feedback: %v", err)
	}
	if rows != 1 {
		t.Errorf("feedback rows = %d, want 1", rows)
	}
}

func TestGetOrdersByRiderIncludesDeclined(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	rider := seedRider(t, s, "jun@example.com")

	assigned := seedOrder(t, s)
	advanceTo(t, s, assigned, models.StatusProcessing, models.StatusReady)
	if err := s.AssignRider(assigned.ID, rider, now); err != nil {
		t.Fatalf("AssignRider: %v", err)
	}

	declined := seedOrder(t, s)
	advanceTo(t, s, declined, models.StatusProcessing, models.StatusReady)
	if err := s.AssignRider(declined.ID, rider, now); err != nil {
		t.Fatalf("AssignRider: %v", err)
	}
	if err := s.DeclineOrder(declined.ID, rider.ID, "bike trouble", now); err != nil {
		t.Fatalf("DeclineOrder: %v", err)
	}

	unrelated := seedOrder(t, s)
	_ = unrelated

	orders, err := s.GetOrdersByRider(rider.ID)
	if err != nil {
		t.Fatalf("GetOrdersByRider: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2 (current + declined history)", len(orders))
	}
}
