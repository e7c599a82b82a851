package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/marilagman/petalsandcrumbs/internal/mail"
	"github.com/marilagman/petalsandcrumbs/internal/models"
	"github.com/marilagman/petalsandcrumbs/internal/service"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

// RiderHandler is the JSON API behind the rider mobile web app. Riders
// authenticate with username/password plus an emailed OTP, then carry a
// bearer token.
type RiderHandler struct {
	Store     *store.Store
	Orders    *service.OrderService
	Templates *TemplateCache
	Mail      *mail.Sender
	JWTSecret []byte
}

type ctxKey string

const riderIDKey ctxKey = "rider_id"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// App serves the rider console page itself.
func (h *RiderHandler) App(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("rider.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	tmpl.Execute(w, nil)
}

func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

// Login verifies credentials, then emails a one-time code. Rider
// usernames are email addresses so the mail function can reach them.
func (h *RiderHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rider, err := h.Store.GetRiderByUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rider == nil || bcrypt.CompareHashAndPassword([]byte(rider.Password), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	otp := generateOTP()
	if err := h.Store.SaveOTP(rider.Username, otp); err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue login code")
		return
	}
	if err := h.Mail.SendOTP(r.Context(), rider.Username, otp); err != nil {
		slog.Error("Failed to send OTP", "rider", rider.Username, "error", err)
		writeError(w, http.StatusBadGateway, "could not send login code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "login code sent"})
}

// VerifyOTP trades a valid code for a bearer token.
func (h *RiderHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		OTP      string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := h.Store.ConsumeOTP(req.Username, req.OTP)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	rider, err := h.Store.GetRiderByUsername(req.Username)
	if err != nil || rider == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	claims := jwt.MapClaims{
		"rider_id": rider.ID,
		"name":     rider.Name,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not sign token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": signed, "rider": rider})
}

// riderFromToken validates the Authorization header and returns the
// rider id baked into the token.
func (h *RiderHandler) riderFromToken(r *http.Request) (int, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		// The WebSocket endpoint can't set headers; allow ?token=.
		auth = "Bearer " + r.URL.Query().Get("token")
	}
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		return 0, errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	id, ok := claims["rider_id"].(float64)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	return int(id), nil
}

// AuthMiddleware guards the rider API routes.
func (h *RiderHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riderID, err := h.riderFromToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), riderIDKey, riderID)))
	}
}

func riderID(r *http.Request) int {
	id, _ := r.Context().Value(riderIDKey).(int)
	return id
}

// ListOrders returns everything on the rider's plate plus tab counts.
func (h *RiderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := riderID(r)
	orders, err := h.Store.GetOrdersByRider(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not fetch orders")
		return
	}

	counts := map[string]int{}
	for _, o := range orders {
		switch o.Status {
		case models.StatusAssigned:
			counts["pending"]++
		case models.StatusPickedUp, models.StatusInTransit:
			counts["active"]++
		case models.StatusDelivered, models.StatusDone:
			counts["completed"]++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "counts": counts})
}

// Me returns the rider's own profile, including online/tracking state.
func (h *RiderHandler) Me(w http.ResponseWriter, r *http.Request) {
	rider, err := h.Store.GetRiderByID(riderID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, rider)
}

func (h *RiderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID int `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Orders.Accept(req.OrderID, riderID(r)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "order is no longer assigned to you")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not accept order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order accepted"})
}

func (h *RiderHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID int    `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.Orders.Decline(req.OrderID, riderID(r), strings.TrimSpace(req.Reason))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "order declined"})
	case errors.Is(err, service.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "a decline reason is required")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "order is no longer assigned to you")
	default:
		writeError(w, http.StatusInternalServerError, "could not decline order")
	}
}

// UpdateStatus advances an active delivery: picked_up -> in_transit ->
// delivered.
func (h *RiderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID int    `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	to := models.OrderStatus(req.Status)
	if to != models.StatusInTransit && to != models.StatusDelivered {
		writeError(w, http.StatusBadRequest, "riders can only move orders to in_transit or delivered")
		return
	}

	order, err := h.Store.GetOrderByID(req.OrderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.RiderID == nil || *order.RiderID != riderID(r) {
		writeError(w, http.StatusForbidden, "order is not assigned to you")
		return
	}

	if err := h.Orders.Advance(req.OrderID, to); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "order is not in the right state for that")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not update order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

func (h *RiderHandler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Store.SetRiderOnline(riderID(r), req.Online, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "could not update status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"online": req.Online})
}

// Location receives the browser geolocation watch pushes.
func (h *RiderHandler) Location(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if err := h.Orders.RecordLocation(riderID(r), req.Lat, req.Lng); err != nil {
		writeError(w, http.StatusInternalServerError, "could not record location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
