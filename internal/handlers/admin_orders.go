package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
	"github.com/marilagman/petalsandcrumbs/internal/models"
	"github.com/marilagman/petalsandcrumbs/internal/service"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	pageStr := r.URL.Query().Get("page")
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}

	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 20 // Default limit
	}

	offset := (page - 1) * limit
	statusFilter := r.URL.Query().Get("status")

	var orders []models.Order
	if statusFilter == "" || statusFilter == "all" {
		orders, err = h.Store.GetAllOrders(limit, offset)
	} else {
		orders, err = h.Store.GetOrdersByStatus(statusFilter, limit, offset)
	}
	if err != nil {
		http.Error(w, "Error fetching orders", http.StatusInternalServerError)
		return
	}

	totalOrders, err := h.Store.GetTotalOrdersCount()
	if err != nil {
		http.Error(w, "Error fetching total order count", http.StatusInternalServerError)
		return
	}

	totalPages := (totalOrders + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	stats, err := h.Store.GetDashboardStats()
	if err != nil {
		http.Error(w, "Error fetching stats", http.StatusInternalServerError)
		return
	}

	riders, err := h.Store.GetAllRiders()
	if err != nil {
		http.Error(w, "Error fetching riders", http.StatusInternalServerError)
		return
	}

	tmpl := h.Templates.Get("admin_orders.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"Orders":      orders,
		"Riders":      riders,
		"Stats":       stats,
		"Filter":      statusFilter,
		"CsrfField":   csrf.TemplateField(r),
		"Flashes":     GetFlash(session),
		"CurrentPage": page,
		"TotalPages":  totalPages,
		"Limit":       limit,
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

// UpdateOrderStatus advances an order one lifecycle step: approve
// (pending -> processing) or mark ready. Those are the only two statuses
// this form sets; cancel, assign and done have their own endpoints with
// their own side effects.
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	status := models.OrderStatus(r.FormValue("status"))
	if status != models.StatusProcessing && status != models.StatusReady {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := h.Orders.Advance(id, status); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrConflict) {
			session.AddFlash(FlashMessage{Type: "error", Message: "The order changed underneath you. Refresh and try again."})
			http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
			return
		}
		http.Error(w, "Error updating status", http.StatusInternalServerError)
		return
	}

	session.AddFlash(FlashMessage{Type: "success", Message: "Order updated to " + status.Label() + "!"})
	http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
}

// AssignRider hands a ready order to the selected rider.
func (h *AdminHandler) AssignRider(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	orderID, err := strconv.Atoi(r.FormValue("order_id"))
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}
	riderID, err := strconv.Atoi(r.FormValue("rider_id"))
	if err != nil {
		session.AddFlash(FlashMessage{Type: "warning", Message: "Please select a rider."})
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
		return
	}

	if err := h.Orders.Assign(orderID, riderID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			session.AddFlash(FlashMessage{Type: "error", Message: "Rider not found."})
		case errors.Is(err, store.ErrConflict):
			session.AddFlash(FlashMessage{Type: "error", Message: "Order is no longer ready for assignment. Refresh and try again."})
		default:
			session.AddFlash(FlashMessage{Type: "error", Message: "Failed to assign rider."})
		}
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
		return
	}

	session.AddFlash(FlashMessage{Type: "success", Message: "Rider assigned! Waiting for acceptance..."})
	http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
}

func (h *AdminHandler) MarkOrderDone(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := h.Orders.Complete(id); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Could not complete the order."})
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Order completed!"})
	http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
}

func (h *AdminHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := h.Orders.Cancel(id, r.FormValue("reason")); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Could not cancel the order."})
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Order cancelled."})
	http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
}

func (h *AdminHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := h.Orders.Delete(id); err != nil {
		if errors.Is(err, service.ErrNotTerminal) {
			session.AddFlash(FlashMessage{Type: "error", Message: "Only completed or cancelled orders can be deleted."})
		} else {
			session.AddFlash(FlashMessage{Type: "error", Message: "Could not delete the order."})
		}
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Order deleted."})
	http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
}
