package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/marilagman/petalsandcrumbs/internal/models"
)

func (h *OrderHandler) RequestStatusLink(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("status_request.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "public-session")
	data := map[string]interface{}{
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *OrderHandler) SendStatusLink(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	email := r.FormValue("email")

	orders, err := h.Store.GetOrdersByEmail(email)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Internal Error processing your request."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	if len(orders) > 0 {
		token := generateToken()

		if err := h.Store.CreateLoginToken(email, token); err != nil {
			session.AddFlash(FlashMessage{Type: "error", Message: "Error generating access link. Please try again."})
			http.Redirect(w, r, "/status-request", http.StatusSeeOther)
			return
		}

		h.Mail.SendOrderLink(email, "Your Orders - Petals & Crumbs", h.BaseURL+"/my-orders?token="+token)
	}

	// Don't reveal whether the email exists
	session.AddFlash(FlashMessage{Type: "success", Message: "If you have active orders, a link has been sent to your email."})
	http.Redirect(w, r, "/status-request", http.StatusSeeOther)
}

func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	token := r.URL.Query().Get("token")
	if token == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Missing access token."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	email, err := h.Store.GetEmailByLoginToken(token)
	if err != nil || email == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid or Expired Link. Please request a new one."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	orders, err := h.Store.GetOrdersByEmail(email)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error fetching your orders."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	tmpl := h.Templates.Get("my_orders.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	tmpl.Execute(w, map[string]interface{}{
		"Orders":  orders,
		"Email":   email,
		"Flashes": GetFlash(session),
	})
}

// ViewOrderStatus is the customer tracking page: lifecycle timeline,
// payment section while pending, live rider map while out for delivery,
// and the feedback form once delivered.
func (h *OrderHandler) ViewOrderStatus(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	// Path is /order/status/{token}
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid order link."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}
	token := parts[3]

	order, err := h.Store.GetOrderByToken(token)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Order not found or link is invalid."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	if time.Now().After(order.MagicTokenExpiry) {
		session.AddFlash(FlashMessage{Type: "error", Message: "Link Expired. Please request a new one."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	var rider *models.Rider
	if order.RiderID != nil {
		rider, err = h.Store.GetRiderByID(*order.RiderID)
		if err != nil {
			rider = nil
		}
	}

	inFlight := order.Status == models.StatusPickedUp || order.Status == models.StatusInTransit

	tmpl := h.Templates.Get("order_status.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	tmpl.Execute(w, map[string]interface{}{
		"Order":       order,
		"Rider":       rider,
		"InFlight":    inFlight,
		"CanPay":      order.Status == models.StatusPending && order.ReceiptNumber == "",
		"CanFeedback": (order.Status == models.StatusDelivered || order.Status == models.StatusDone) && !order.HasFeedback,
		"Token":       token,
		"CsrfField":   csrf.TemplateField(r),
		"Flashes":     GetFlash(session),
	})
}
