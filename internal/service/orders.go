// Package service owns the order delivery lifecycle. Every status
// mutation from any console goes through OrderService, which validates
// the transition, writes it conditionally, and publishes one realtime
// event. The three consoles only render what the service pushes.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marilagman/petalsandcrumbs/internal/models"
	"github.com/marilagman/petalsandcrumbs/internal/realtime"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

var (
	ErrReasonRequired = errors.New("service: a decline reason is required")
	ErrRatingRange    = errors.New("service: rating must be between 1 and 5")
	ErrNotDelivered   = errors.New("service: order has not been delivered yet")
	ErrFeedbackExists = errors.New("service: feedback already submitted for this order")
	ErrNotTerminal    = errors.New("service: only completed or cancelled orders can be deleted")
)

// EventPublisher is what OrderService needs from the realtime hub.
type EventPublisher interface {
	Publish(event realtime.OrderEvent, topics ...string)
}

type OrderService struct {
	store *store.Store
	hub   EventPublisher
	now   func() time.Time
}

func NewOrderService(st *store.Store, hub EventPublisher) *OrderService {
	return &OrderService{
		store: st,
		hub:   hub,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests use it to pin timestamps.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// Place records a freshly priced order and announces it to the admin
// console.
func (s *OrderService) Place(order *models.Order) error {
	if err := s.store.CreateOrder(order); err != nil {
		return err
	}
	s.hub.Publish(realtime.OrderEvent{
		Type:     realtime.EventOrderCreated,
		OrderRef: order.OrderRef,
		Status:   string(models.StatusPending),
		Message:  fmt.Sprintf("New order from %s", order.CustomerName),
	}, realtime.TopicAdmin)
	return nil
}

// Advance moves an order one legal lifecycle step forward. The admin
// console uses it for approve (pending -> processing) and ready; the
// rider app for picked_up -> in_transit -> delivered. Re-marking an
// already delivered order is a no-op, not an error. Cancellation is
// never a plain step: Cancel owns the rider release and the
// cancellation notifications, so Advance refuses it.
func (s *OrderService) Advance(orderID int, to models.OrderStatus) error {
	if to == models.StatusCancelled {
		return store.ErrInvalidTransition
	}
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	if to == models.StatusDelivered && order.Status == models.StatusDelivered {
		return nil
	}
	if err := s.store.TransitionStatus(orderID, order.Status, to, s.now()); err != nil {
		return err
	}

	event := realtime.OrderEvent{
		Type:     realtime.EventStatusChanged,
		OrderRef: order.OrderRef,
		Status:   string(to),
		Message:  fmt.Sprintf("Order %s is now %s", order.OrderRef, to.Label()),
	}
	topics := []string{realtime.TopicAdmin, realtime.TopicOrder(order.OrderRef)}
	if order.RiderID != nil {
		topics = append(topics, realtime.TopicRider(*order.RiderID))
	}
	s.hub.Publish(event, topics...)

	if to == models.StatusDelivered {
		s.afterDelivered(order)
	}
	return nil
}

// afterDelivered releases the rider's tracking flag and fires the
// one-shot notifications. Both *_notified flags are claimed atomically so
// a second delivery event (or a second open console) never produces a
// duplicate prompt.
func (s *OrderService) afterDelivered(order *models.Order) {
	if order.RiderID != nil {
		if err := s.store.SetRiderTracking(*order.RiderID, false, s.now()); err != nil {
			slog.Warn("could not clear rider tracking", "rider_id", *order.RiderID, "error", err)
		}
	}

	if won, err := s.store.ClaimUserNotified(order.ID); err != nil {
		slog.Error("claim user notification", "order", order.OrderRef, "error", err)
	} else if won {
		s.hub.Publish(realtime.OrderEvent{
			Type:     realtime.EventFeedbackPrompt,
			OrderRef: order.OrderRef,
			Status:   string(models.StatusDelivered),
			Message:  "Your order has been delivered! How was it?",
		}, realtime.TopicOrder(order.OrderRef))
	}

	if won, err := s.store.ClaimAdminNotified(order.ID); err != nil {
		slog.Error("claim admin notification", "order", order.OrderRef, "error", err)
	} else if won {
		s.hub.Publish(realtime.OrderEvent{
			Type:     realtime.EventStatusChanged,
			OrderRef: order.OrderRef,
			Status:   string(models.StatusDelivered),
			Message:  fmt.Sprintf("Order %s delivered by %s", order.OrderRef, order.RiderName),
		}, realtime.TopicAdmin)
	}
}

// Assign hands a ready order to a rider. The rider is looked up first so
// an assignment to a deleted rider fails before any write.
func (s *OrderService) Assign(orderID, riderID int) error {
	rider, err := s.store.GetRiderByID(riderID)
	if err != nil {
		return fmt.Errorf("rider lookup: %w", err)
	}
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.store.AssignRider(orderID, rider, now); err != nil {
		return err
	}
	if err := s.store.TouchRider(rider.ID, now); err != nil {
		slog.Warn("could not touch rider last_active", "rider_id", rider.ID, "error", err)
	}

	s.hub.Publish(realtime.OrderEvent{
		Type:      realtime.EventRiderAssigned,
		OrderRef:  order.OrderRef,
		Status:    string(models.StatusAssigned),
		RiderName: rider.Name,
		Message:   fmt.Sprintf("New delivery: order %s for %s", order.OrderRef, order.CustomerName),
	}, realtime.TopicAdmin, realtime.TopicRider(rider.ID), realtime.TopicOrder(order.OrderRef))
	return nil
}

// Accept completes the assignment handshake; the order jumps to
// picked_up and the rider starts live tracking.
func (s *OrderService) Accept(orderID, riderID int) error {
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.store.AcceptOrder(orderID, riderID, now); err != nil {
		return err
	}
	if err := s.store.SetRiderTracking(riderID, true, now); err != nil {
		slog.Warn("could not set rider tracking", "rider_id", riderID, "error", err)
	}

	s.hub.Publish(realtime.OrderEvent{
		Type:      realtime.EventStatusChanged,
		OrderRef:  order.OrderRef,
		Status:    string(models.StatusPickedUp),
		RiderName: order.RiderName,
		Message:   fmt.Sprintf("Order %s accepted and picked up", order.OrderRef),
	}, realtime.TopicAdmin, realtime.TopicRider(riderID), realtime.TopicOrder(order.OrderRef))
	return nil
}

// Decline returns an assigned order to the ready pool with the rider's
// reason, surfacing it on the admin console for reassignment.
func (s *OrderService) Decline(orderID, riderID int, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	if err := s.store.DeclineOrder(orderID, riderID, reason, s.now()); err != nil {
		return err
	}

	s.hub.Publish(realtime.OrderEvent{
		Type:      realtime.EventRiderDeclined,
		OrderRef:  order.OrderRef,
		Status:    string(models.StatusReady),
		RiderName: order.RiderName,
		Reason:    reason,
		Message:   fmt.Sprintf("Order %s declined: %s", order.OrderRef, reason),
	}, realtime.TopicAdmin, realtime.TopicOrder(order.OrderRef))
	return nil
}

// Complete closes out a delivered order.
func (s *OrderService) Complete(orderID int) error {
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	if err := s.store.TransitionStatus(orderID, order.Status, models.StatusDone, s.now()); err != nil {
		return err
	}
	if order.RiderID != nil {
		if err := s.store.SetRiderTracking(*order.RiderID, false, s.now()); err != nil {
			slog.Warn("could not clear rider tracking", "rider_id", *order.RiderID, "error", err)
		}
	}
	s.hub.Publish(realtime.OrderEvent{
		Type:     realtime.EventStatusChanged,
		OrderRef: order.OrderRef,
		Status:   string(models.StatusDone),
		Message:  fmt.Sprintf("Order %s completed", order.OrderRef),
	}, realtime.TopicAdmin, realtime.TopicOrder(order.OrderRef))
	return nil
}

// Cancel aborts any non-terminal order, releasing the rider if one was
// attached.
func (s *OrderService) Cancel(orderID int, reason string) error {
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "Admin cancelled"
	}
	if err := s.store.CancelOrder(orderID, reason, s.now()); err != nil {
		return err
	}
	if order.RiderID != nil {
		if err := s.store.SetRiderTracking(*order.RiderID, false, s.now()); err != nil {
			slog.Warn("could not clear rider tracking", "rider_id", *order.RiderID, "error", err)
		}
	}

	topics := []string{realtime.TopicAdmin, realtime.TopicOrder(order.OrderRef)}
	if order.RiderID != nil {
		topics = append(topics, realtime.TopicRider(*order.RiderID))
	}
	s.hub.Publish(realtime.OrderEvent{
		Type:     realtime.EventOrderCancelled,
		OrderRef: order.OrderRef,
		Status:   string(models.StatusCancelled),
		Reason:   reason,
		Message:  fmt.Sprintf("Order %s cancelled: %s", order.OrderRef, reason),
	}, topics...)
	return nil
}

// Delete hard-deletes a completed or cancelled order. Live orders must
// be cancelled first so their rider and customer get told.
func (s *OrderService) Delete(orderID int) error {
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	if !models.IsTerminal(order.Status) {
		return ErrNotTerminal
	}
	return s.store.DeleteOrder(orderID)
}

// SubmitFeedback accepts one rating per delivered order.
func (s *OrderService) SubmitFeedback(orderID, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrRatingRange
	}
	order, err := s.store.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusDelivered && order.Status != models.StatusDone {
		return ErrNotDelivered
	}
	fb := &models.Feedback{OrderID: orderID, RiderID: order.RiderID, Rating: rating, Comment: comment}
	if err := s.store.SaveFeedback(fb, s.now()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrFeedbackExists
		}
		return err
	}
	return nil
}

// RecordLocation stores a rider GPS fix and streams it to the tracking
// pages of that rider's in-flight orders.
func (s *OrderService) RecordLocation(riderID int, lat, lng float64) error {
	if err := s.store.UpdateRiderLocation(riderID, lat, lng, s.now()); err != nil {
		return err
	}
	orders, err := s.store.GetOrdersByRider(riderID)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if o.Status != models.StatusPickedUp && o.Status != models.StatusInTransit {
			continue
		}
		s.hub.Publish(realtime.OrderEvent{
			Type:     realtime.EventRiderLocation,
			OrderRef: o.OrderRef,
			Lat:      lat,
			Lng:      lng,
		}, realtime.TopicOrder(o.OrderRef), realtime.TopicAdmin)
	}
	return nil
}
