// Package realtime pushes order lifecycle events to the three consoles
// (admin back-office, rider app, customer tracking page) over WebSocket.
// Clients subscribe to topics; every lifecycle mutation publishes one
// event, so no console needs to poll or diff snapshots.
package realtime

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

// Topics a client can subscribe to.
const (
	TopicAdmin = "admin" // every order event, for the back-office
)

// TopicRider is the per-rider topic: assignment offers and order updates
// for orders held by that rider.
func TopicRider(riderID int) string {
	return "rider:" + strconv.Itoa(riderID)
}

// TopicOrder is the per-order topic used by the customer tracking page.
func TopicOrder(orderRef string) string {
	return "order:" + orderRef
}

// Event types.
const (
	EventOrderCreated   = "order_created"
	EventStatusChanged  = "status_changed"
	EventRiderAssigned  = "rider_assigned"
	EventRiderDeclined  = "rider_declined"
	EventOrderCancelled = "order_cancelled"
	EventRiderLocation  = "rider_location"
	EventFeedbackPrompt = "feedback_prompt"
)

// OrderEvent is the wire format all three consoles consume.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderRef  string    `json:"order_ref"`
	Status    string    `json:"status,omitempty"`
	RiderName string    `json:"rider_name,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Lat       float64   `json:"lat,omitempty"`
	Lng       float64   `json:"lng,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type publication struct {
	topics []string
	data   []byte
}

// Hub owns the client set. All map access happens on the Run goroutine;
// handlers talk to it through channels only.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	publish    chan publication
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan publication, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			slog.Debug("realtime client registered", "topics", client.topics)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				slog.Debug("realtime client unregistered", "topics", client.topics)
			}

		case pub := <-h.publish:
			for client := range h.clients {
				if !client.subscribedToAny(pub.topics) {
					continue
				}
				select {
				case client.send <- pub.data:
				default:
					// Slow client; drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Stop disconnects every client and ends the Run loop.
func (h *Hub) Stop() {
	close(h.done)
}

// Publish fans an event out to every client subscribed to any of the
// given topics.
func (h *Hub) Publish(event OrderEvent, topics ...string) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal realtime event", "error", err)
		return
	}
	select {
	case h.publish <- publication{topics: topics, data: data}:
	case <-h.done:
	}
}
