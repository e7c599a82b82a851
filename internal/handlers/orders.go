package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/marilagman/petalsandcrumbs/internal/mail"
	"github.com/marilagman/petalsandcrumbs/internal/models"
	"github.com/marilagman/petalsandcrumbs/internal/pricing"
	"github.com/marilagman/petalsandcrumbs/internal/service"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

type OrderHandler struct {
	Store        *store.Store
	Orders       *service.OrderService
	Templates    *TemplateCache
	SessionStore *sessions.CookieStore
	Mail         *mail.Sender
	BaseURL      string
}

func generateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-token-" + strconv.FormatInt(time.Now().Unix(), 10)
	}
	return hex.EncodeToString(b)
}

func generateOrderRef() string {
	// 8 chars alphanumeric (uppercase); removed I, O, 1, 0 to avoid confusion
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "ORD" + strconv.FormatInt(time.Now().Unix(), 10)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// Basic email validation regex
var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,4}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// Cart renders the cart page. The cart itself lives in the browser's
// localStorage; the page calls /quote to price it.
func (h *OrderHandler) Cart(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("cart.html")
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

// Quote prices a subtotal for the cart page. Keeping the math server-side
// means the cart, the checkout summary and the stored order can never
// disagree.
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	subtotal, err := strconv.ParseFloat(r.URL.Query().Get("subtotal"), 64)
	if err != nil || subtotal < 0 {
		http.Error(w, "invalid subtotal", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pricing.QuoteFor(subtotal))
}

func (h *OrderHandler) CheckoutForm(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("checkout.html")
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

type cartLine struct {
	ProductID int `json:"id"`
	Quantity  int `json:"quantity"`
}

// SubmitOrder turns the posted cart into a priced pending order.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	if err := r.ParseForm(); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid form data."})
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	name := r.FormValue("name")
	phone := r.FormValue("phone")
	email := r.FormValue("email")
	address := r.FormValue("address")
	city := r.FormValue("city")
	lat, _ := strconv.ParseFloat(r.FormValue("delivery_lat"), 64)
	lng, _ := strconv.ParseFloat(r.FormValue("delivery_lng"), 64)

	// Validation
	errs := make(map[string]string)
	if name == "" {
		errs["name"] = "Your name is required."
	}
	if email == "" {
		errs["email"] = "Email address is required."
	} else if !isValidEmail(email) {
		errs["email"] = "Please enter a valid email address."
	}
	if address == "" {
		errs["address"] = "Delivery address is required."
	}

	var lines []cartLine
	if err := json.Unmarshal([]byte(r.FormValue("cart")), &lines); err != nil || len(lines) == 0 {
		errs["cart"] = "Your cart is empty."
	}

	if len(errs) > 0 {
		for _, msg := range errs {
			session.AddFlash(FlashMessage{Type: "error", Message: msg})
		}
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	// Prices come from the catalogue, not the client.
	var items []models.OrderItem
	subtotal := 0.0
	for _, line := range lines {
		product, err := h.Store.GetProductByID(line.ProductID)
		if err != nil {
			session.AddFlash(FlashMessage{Type: "error", Message: "One of the cart items no longer exists."})
			http.Redirect(w, r, "/cart", http.StatusSeeOther)
			return
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, models.OrderItem{Name: product.Title, Price: product.Price, Quantity: qty})
		subtotal += product.Price * float64(qty)
	}
	quote := pricing.QuoteFor(subtotal)

	token := generateToken()
	order := &models.Order{
		OrderRef:          generateOrderRef(),
		CustomerName:      name,
		CustomerPhone:     phone,
		CustomerEmail:     email,
		Address:           address,
		City:              city,
		DeliveryLat:       lat,
		DeliveryLng:       lng,
		DeliveryLocation:  r.FormValue("delivery_location"),
		Items:             items,
		Subtotal:          quote.Subtotal,
		Discount:          quote.Discount,
		SubtotalAfterDisc: quote.SubtotalAfterDisc,
		Tax:               quote.Tax,
		DeliveryFee:       quote.DeliveryFee,
		Total:             quote.Total,
		MagicToken:        token,
		MagicTokenExpiry:  time.Now().Add(30 * 24 * time.Hour),
	}

	if err := h.Orders.Place(order); err != nil {
		slog.Error("Failed to place order", "error", err)
		session.AddFlash(FlashMessage{Type: "error", Message: "Failed to place order. Please try again."})
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}

	h.Mail.SendOrderLink(email, "Order Confirmation - Petals & Crumbs", h.BaseURL+"/order/status/"+token)

	session.AddFlash(FlashMessage{Type: "success", Message: "Order placed! Track it from the link in your email."})
	http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
}

// SubmitPayment attaches the customer's receipt to a pending order.
func (h *OrderHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "File too large. Max 10MB."})
		http.Redirect(w, r, r.Referer(), http.StatusSeeOther)
		return
	}

	token := r.FormValue("token")
	order, err := h.Store.GetOrderByToken(token)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Order not found."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	receiptNumber := r.FormValue("receipt_number")
	if receiptNumber == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Receipt number is required."})
		http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
		return
	}

	imageURL := ""
	if _, _, err := r.FormFile("receipt_image"); err == nil {
		imageURL, err = saveUploadedImage(r, "receipt_image")
		if err != nil {
			session.AddFlash(FlashMessage{Type: "error", Message: "Could not save receipt image. PNG or JPG only."})
			http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
			return
		}
	}

	if err := h.Store.SetPayment(order.ID, receiptNumber, imageURL, time.Now().UTC()); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Could not record payment."})
		http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
		return
	}

	session.AddFlash(FlashMessage{Type: "success", Message: "Payment submitted! We'll verify it shortly."})
	http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
}

// CancelOrder lets the customer abort an order that hasn't been approved.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	token := r.FormValue("token")
	order, err := h.Store.GetOrderByToken(token)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Order not found."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}
	if order.Status != models.StatusPending {
		session.AddFlash(FlashMessage{Type: "error", Message: "This order is already being prepared and can no longer be cancelled online."})
		http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
		return
	}

	if err := h.Orders.Cancel(order.ID, "Cancelled by customer"); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Could not cancel the order."})
		http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Order cancelled."})
	http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
}

// SubmitFeedback records the one-per-order delivery rating.
func (h *OrderHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "public-session")
	defer session.Save(r, w)

	token := r.FormValue("token")
	order, err := h.Store.GetOrderByToken(token)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Order not found."})
		http.Redirect(w, r, "/status-request", http.StatusSeeOther)
		return
	}

	rating, err := strconv.Atoi(r.FormValue("rating"))
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Please select a rating first."})
		http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
		return
	}

	err = h.Orders.SubmitFeedback(order.ID, rating, r.FormValue("comment"))
	switch err {
	case nil:
		session.AddFlash(FlashMessage{Type: "success", Message: "Thank you for your feedback!"})
	case service.ErrRatingRange:
		session.AddFlash(FlashMessage{Type: "error", Message: "Rating must be between 1 and 5 stars."})
	case service.ErrNotDelivered:
		session.AddFlash(FlashMessage{Type: "error", Message: "You can rate an order once it has been delivered."})
	case service.ErrFeedbackExists:
		session.AddFlash(FlashMessage{Type: "error", Message: "You already rated this order."})
	default:
		slog.Error("Failed to save feedback", "error", err)
		session.AddFlash(FlashMessage{Type: "error", Message: "Failed to submit feedback. Please try again."})
	}
	http.Redirect(w, r, "/order/status/"+token, http.StatusSeeOther)
}
