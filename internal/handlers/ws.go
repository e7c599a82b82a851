package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/marilagman/petalsandcrumbs/internal/realtime"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

// WSHandler upgrades subscribers onto the event hub. Admin sockets ride
// the session cookie, rider sockets a bearer token, and tracking
// sockets the order's magic token.
type WSHandler struct {
	Store *store.Store
	Hub   *realtime.Hub
	Admin *AdminHandler
	Rider *RiderHandler

	upgrader websocket.Upgrader
}

func NewWSHandler(st *store.Store, hub *realtime.Hub, admin *AdminHandler, rider *RiderHandler) *WSHandler {
	return &WSHandler{
		Store: st,
		Hub:   hub,
		Admin: admin,
		Rider: rider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == "" || r.Host == "" ||
					r.Header.Get("Origin") == "http://"+r.Host ||
					r.Header.Get("Origin") == "https://"+r.Host
			},
		},
	}
}

func (h *WSHandler) subscribe(w http.ResponseWriter, r *http.Request, topics ...string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	realtime.NewClient(h.Hub, conn, topics...)
}

// AdminSocket streams every order event to the back-office.
func (h *WSHandler) AdminSocket(w http.ResponseWriter, r *http.Request) {
	if !h.Admin.IsAuthenticated(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.subscribe(w, r, realtime.TopicAdmin)
}

// RiderSocket streams assignment and cancellation events to one rider.
func (h *WSHandler) RiderSocket(w http.ResponseWriter, r *http.Request) {
	riderID, err := h.Rider.riderFromToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.subscribe(w, r, realtime.TopicRider(riderID))
}

// TrackSocket streams status and rider-location updates for a single
// order to its customer. The magic token in the path is the credential.
func (h *WSHandler) TrackSocket(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	order, err := h.Store.GetOrderByToken(token)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	h.subscribe(w, r, realtime.TopicOrder(order.OrderRef))
}
