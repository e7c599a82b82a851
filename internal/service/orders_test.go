package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marilagman/petalsandcrumbs/internal/models"
	"github.com/marilagman/petalsandcrumbs/internal/realtime"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

// fakeHub records published events so tests can assert on them.
type fakeHub struct {
	mu     sync.Mutex
	events []realtime.OrderEvent
	topics [][]string
}

func (f *fakeHub) Publish(event realtime.OrderEvent, topics ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.topics = append(f.topics, topics)
}

func (f *fakeHub) countType(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (*OrderService, *store.Store, *fakeHub) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { st.DB.Close() })

	hub := &fakeHub{}
	svc := NewOrderService(st, hub)
	return svc, st, hub
}

var orderSeq int

func placeOrder(t *testing.T, svc *OrderService) *models.Order {
	t.Helper()
	orderSeq++
	order := &models.Order{
		OrderRef:         fmt.Sprintf("REF%04d", orderSeq),
		CustomerName:     "Maria Santos",
		CustomerEmail:    "maria@example.com",
		Address:          "12 Sampaguita St",
		Items:            []models.OrderItem{{Name: "Rose Bouquet", Price: 650, Quantity: 1}},
		Subtotal:         650,
		Tax:              78,
		DeliveryFee:      100,
		Total:            828,
		MagicToken:       fmt.Sprintf("tok%04d", orderSeq),
		MagicTokenExpiry: time.Now().Add(time.Hour),
	}
	if err := svc.Place(order); err != nil {
		t.Fatalf("Place: %v", err)
	}
	return order
}

func seedRider(t *testing.T, st *store.Store, username string) *models.Rider {
	t.Helper()
	rider := &models.Rider{Name: "Jun Dela Cruz", Username: username, Password: "hash"}
	if err := st.CreateRider(rider); err != nil {
		t.Fatalf("CreateRider: %v", err)
	}
	return rider
}

func deliverOrder(t *testing.T, svc *OrderService, st *store.Store, order *models.Order, rider *models.Rider) {
	t.Helper()
	if err := svc.Advance(order.ID, models.StatusProcessing); err != nil {
		t.Fatalf("Advance processing: %v", err)
	}
	if err := svc.Advance(order.ID, models.StatusReady); err != nil {
		t.Fatalf("Advance ready: %v", err)
	}
	if err := svc.Assign(order.ID, rider.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := svc.Accept(order.ID, rider.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := svc.Advance(order.ID, models.StatusInTransit); err != nil {
		t.Fatalf("Advance in_transit: %v", err)
	}
	if err := svc.Advance(order.ID, models.StatusDelivered); err != nil {
		t.Fatalf("Advance delivered: %v", err)
	}
}

func TestPlacePublishesToAdmin(t *testing.T) {
	svc, _, hub := newTestService(t)
	placeOrder(t, svc)

	if hub.countType(realtime.EventOrderCreated) != 1 {
		t.Fatalf("order_created events = %d, want 1", hub.countType(realtime.EventOrderCreated))
	}
	if got := hub.topics[0]; len(got) != 1 || got[0] != realtime.TopicAdmin {
		t.Errorf("topics = %v, want [admin]", got)
	}
}

func TestAdvanceRejectsIllegalStep(t *testing.T) {
	svc, _, _ := newTestService(t)
	order := placeOrder(t, svc)

	err := svc.Advance(order.ID, models.StatusDelivered)
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAdvanceRefusesCancellation(t *testing.T) {
	svc, st, hub := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")

	if err := svc.Advance(order.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := svc.Advance(order.ID, models.StatusReady); err != nil {
		t.Fatal(err)
	}
	if err := svc.Assign(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Accept(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}

	// Cancellation detaches the rider and notifies; a plain step would
	// skip all of that, so Advance must not take it.
	err := svc.Advance(order.ID, models.StatusCancelled)
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	got, _ := st.GetOrderByID(order.ID)
	if got.Status != models.StatusPickedUp {
		t.Errorf("status = %s, want picked_up untouched", got.Status)
	}
	if got.RiderID == nil {
		t.Error("rider should still be attached")
	}
	if n := hub.countType(realtime.EventOrderCancelled); n != 0 {
		t.Errorf("order_cancelled events = %d, want 0", n)
	}
}

func TestCancelAfterDeliveryFails(t *testing.T) {
	svc, st, _ := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")
	deliverOrder(t, svc, st, order, rider)

	if err := svc.Cancel(order.ID, "changed my mind"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("cancel delivered: err = %v, want ErrConflict", err)
	}
	got, _ := st.GetOrderByID(order.ID)
	if got.Status != models.StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
}

func TestDeleteRequiresTerminalState(t *testing.T) {
	svc, st, _ := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")
	deliverOrder(t, svc, st, order, rider)

	if err := svc.Delete(order.ID); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("delete delivered: err = %v, want ErrNotTerminal", err)
	}

	if err := svc.Complete(order.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := svc.Delete(order.ID); err != nil {
		t.Fatalf("delete done: %v", err)
	}
	if _, err := st.GetOrderByID(order.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("order lookup after delete: err = %v, want ErrNotFound", err)
	}
}

func TestDeliveredIsIdempotent(t *testing.T) {
	svc, st, hub := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")
	deliverOrder(t, svc, st, order, rider)

	// A second delivery report must be a quiet no-op.
	before := hub.countType(realtime.EventFeedbackPrompt)
	if err := svc.Advance(order.ID, models.StatusDelivered); err != nil {
		t.Fatalf("repeat delivered: %v", err)
	}
	if after := hub.countType(realtime.EventFeedbackPrompt); after != before {
		t.Errorf("feedback prompts went from %d to %d on a repeat", before, after)
	}

	got, _ := st.GetOrderByID(order.ID)
	if got.Status != models.StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
}

func TestDeliveredNotifiesExactlyOnce(t *testing.T) {
	svc, st, hub := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")
	deliverOrder(t, svc, st, order, rider)

	if n := hub.countType(realtime.EventFeedbackPrompt); n != 1 {
		t.Errorf("feedback prompts = %d, want exactly 1", n)
	}

	// Tracking stops when the run ends.
	gotRider, err := st.GetRiderByID(rider.ID)
	if err != nil {
		t.Fatalf("GetRiderByID: %v", err)
	}
	if gotRider.IsTracking {
		t.Error("rider should stop tracking after delivery")
	}
}

func TestAcceptStartsTracking(t *testing.T) {
	svc, st, _ := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")

	if err := svc.Advance(order.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := svc.Advance(order.ID, models.StatusReady); err != nil {
		t.Fatal(err)
	}
	if err := svc.Assign(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Accept(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}

	gotRider, _ := st.GetRiderByID(rider.ID)
	if !gotRider.IsTracking {
		t.Error("rider should be tracking after accept")
	}
	gotOrder, _ := st.GetOrderByID(order.ID)
	if gotOrder.Status != models.StatusPickedUp {
		t.Errorf("status = %s, want picked_up", gotOrder.Status)
	}
}

func TestDeclineRequiresReason(t *testing.T) {
	svc, st, hub := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")

	if err := svc.Advance(order.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := svc.Advance(order.ID, models.StatusReady); err != nil {
		t.Fatal(err)
	}
	if err := svc.Assign(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.Decline(order.ID, rider.ID, ""); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("empty reason: err = %v, want ErrReasonRequired", err)
	}

	if err := svc.Decline(order.ID, rider.ID, "bike trouble"); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if n := hub.countType(realtime.EventRiderDeclined); n != 1 {
		t.Errorf("rider_declined events = %d, want 1", n)
	}

	got, _ := st.GetOrderByID(order.ID)
	if got.Status != models.StatusReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
	if got.RiderID != nil {
		t.Errorf("rider_id = %v, want cleared", got.RiderID)
	}
}

func TestSubmitFeedback(t *testing.T) {
	svc, st, _ := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")

	if err := svc.SubmitFeedback(order.ID, 5, "great"); !errors.Is(err, ErrNotDelivered) {
		t.Fatalf("feedback before delivery: err = %v, want ErrNotDelivered", err)
	}

	deliverOrder(t, svc, st, order, rider)

	if err := svc.SubmitFeedback(order.ID, 6, "great"); !errors.Is(err, ErrRatingRange) {
		t.Fatalf("rating 6: err = %v, want ErrRatingRange", err)
	}
	if err := svc.SubmitFeedback(order.ID, 5, "lovely flowers"); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if err := svc.SubmitFeedback(order.ID, 1, "actually no"); !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("second feedback: err = %v, want ErrFeedbackExists", err)
	}

	all, err := st.GetAllFeedback()
	if err != nil {
		t.Fatalf("GetAllFeedback: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("feedback rows = %d, want 1", len(all))
	}
	if all[0].Rating != 5 || all[0].RiderID == nil || *all[0].RiderID != rider.ID {
		t.Errorf("feedback = %+v, want rating 5 attributed to rider %d", all[0], rider.ID)
	}
}

func TestCancelReleasesRider(t *testing.T) {
	svc, st, hub := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")

	if err := svc.Advance(order.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := svc.Advance(order.ID, models.StatusReady); err != nil {
		t.Fatal(err)
	}
	if err := svc.Assign(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Accept(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.Cancel(order.ID, "customer unreachable"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	gotRider, _ := st.GetRiderByID(rider.ID)
	if gotRider.IsTracking {
		t.Error("rider should stop tracking after cancellation")
	}
	if n := hub.countType(realtime.EventOrderCancelled); n != 1 {
		t.Errorf("order_cancelled events = %d, want 1", n)
	}
	// The rider's own topic must hear about it.
	last := hub.topics[len(hub.topics)-1]
	found := false
	for _, topic := range last {
		if topic == realtime.TopicRider(rider.ID) {
			found = true
		}
	}
	if !found {
		t.Errorf("cancel topics = %v, want rider topic included", last)
	}
}

func TestRecordLocationStreamsToInFlightOrders(t *testing.T) {
	svc, st, hub := newTestService(t)
	order := placeOrder(t, svc)
	rider := seedRider(t, st, "jun@example.com")

	if err := svc.Advance(order.ID, models.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := svc.Advance(order.ID, models.StatusReady); err != nil {
		t.Fatal(err)
	}
	if err := svc.Assign(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}

	// Assigned but not yet picked up: no location events.
	if err := svc.RecordLocation(rider.ID, 14.6, 121.0); err != nil {
		t.Fatalf("RecordLocation: %v", err)
	}
	if n := hub.countType(realtime.EventRiderLocation); n != 0 {
		t.Fatalf("location events before pickup = %d, want 0", n)
	}

	if err := svc.Accept(order.ID, rider.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordLocation(rider.ID, 14.61, 121.01); err != nil {
		t.Fatalf("RecordLocation: %v", err)
	}
	if n := hub.countType(realtime.EventRiderLocation); n != 1 {
		t.Fatalf("location events after pickup = %d, want 1", n)
	}

	gotRider, _ := st.GetRiderByID(rider.ID)
	if gotRider.Lat != 14.61 || gotRider.Lng != 121.01 {
		t.Errorf("rider position = %v,%v, want 14.61,121.01", gotRider.Lat, gotRider.Lng)
	}
}
