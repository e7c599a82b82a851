package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
	"github.com/marilagman/petalsandcrumbs/internal/models"
)

// paymentStatus derives a payment-facing label from the order's
// lifecycle: delivered/done orders count as paid, cancelled as refunded,
// everything else is pending verification.
func paymentStatus(o *models.Order) string {
	switch {
	case o.Status == models.StatusDone || o.Status == models.StatusDelivered:
		return "paid"
	case o.Status == models.StatusCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

type paymentRow struct {
	Order         models.Order
	PaymentStatus string
}

func (h *AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.GetAllOrders(200, 0)
	if err != nil {
		http.Error(w, "Error fetching orders", http.StatusInternalServerError)
		return
	}

	rows := make([]paymentRow, 0, len(orders))
	for i := range orders {
		rows = append(rows, paymentRow{Order: orders[i], PaymentStatus: paymentStatus(&orders[i])})
	}

	tmpl := h.Templates.Get("admin_payments.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"Payments":  rows,
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

// VerifyPayment closes out a delivered order from the payments screen.
func (h *AdminHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := h.Orders.Complete(id); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Order must be delivered before it can be marked paid."})
		http.Redirect(w, r, "/admin/payments", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Payment verified, order completed."})
	http.Redirect(w, r, "/admin/payments", http.StatusSeeOther)
}
