package models

import (
	"time"
)

type Product struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"` // "cakes" or "flowers"
	ImageURL    string    `json:"image_url"`
	Status      string    `json:"status"` // "available", "out_of_stock", "archived"
	CreatedAt   time.Time `json:"created_at"`
}

type OrderItem struct {
	ID       int     `json:"id"`
	OrderID  int     `json:"order_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Order struct {
	ID       int    `json:"id"`
	OrderRef string `json:"order_ref"` // Public "A7X9..." ID

	// Customer
	CustomerName     string  `json:"customer_name"`
	CustomerPhone    string  `json:"customer_phone"`
	CustomerEmail    string  `json:"customer_email"`
	Address          string  `json:"address"`
	City             string  `json:"city"`
	DeliveryLat      float64 `json:"delivery_lat"`
	DeliveryLng      float64 `json:"delivery_lng"`
	DeliveryLocation string  `json:"delivery_location"`

	// Pricing snapshot, computed once at checkout
	Items             []OrderItem `json:"items,omitempty"`
	Subtotal          float64     `json:"subtotal"`
	Discount          float64     `json:"discount"`
	SubtotalAfterDisc float64     `json:"subtotal_after_discount"`
	Tax               float64     `json:"tax"`
	DeliveryFee       float64     `json:"delivery_fee"`
	Total             float64     `json:"total"`

	// Lifecycle
	Status             OrderStatus `json:"status"`
	ProcessedAt        *time.Time  `json:"processed_at,omitempty"`
	ReadyAt            *time.Time  `json:"ready_at,omitempty"`
	AssignedAt         *time.Time  `json:"assigned_at,omitempty"`
	AcceptedAt         *time.Time  `json:"accepted_at,omitempty"`
	PickedUpAt         *time.Time  `json:"picked_up_at,omitempty"`
	DeliveredAt        *time.Time  `json:"delivered_at,omitempty"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`

	// Assignment
	RiderID    *int   `json:"rider_id,omitempty"`
	RiderName  string `json:"rider_name,omitempty"`
	RiderPhone string `json:"rider_phone,omitempty"`

	// Decline trail, cleared when the order is reassigned
	DeclinedBy    *int       `json:"declined_by,omitempty"`
	DeclineReason string     `json:"decline_reason,omitempty"`
	DeclinedAt    *time.Time `json:"declined_at,omitempty"`

	// Payment
	ReceiptNumber   string     `json:"receipt_number,omitempty"`
	ReceiptImageURL string     `json:"receipt_image_url,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`

	// Feedback denormalized onto the order for display convenience
	HasFeedback     bool   `json:"has_feedback"`
	Rating          int    `json:"rating,omitempty"`
	FeedbackComment string `json:"feedback_comment,omitempty"`
	AdminReply      string `json:"admin_reply,omitempty"`

	// One-shot notification guards
	UserNotified  bool `json:"user_notified"`
	AdminNotified bool `json:"admin_notified"`

	MagicToken       string    `json:"-"`
	MagicTokenExpiry time.Time `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Rider struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Vehicle           string     `json:"vehicle"`
	Username          string     `json:"username"`
	Password          string     `json:"-"` // bcrypt hash
	IsOnline          bool       `json:"is_online"`
	IsTracking        bool       `json:"is_tracking"`
	Lat               float64    `json:"lat,omitempty"`
	Lng               float64    `json:"lng,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
	LastActive        *time.Time `json:"last_active,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Feedback struct {
	ID           int       `json:"id"`
	OrderID      int       `json:"order_id"`
	OrderRef     string    `json:"order_ref"`
	RiderID      *int      `json:"rider_id,omitempty"`
	CustomerName string    `json:"customer_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	AdminReply   string    `json:"admin_reply"`
	CreatedAt    time.Time `json:"created_at"`
}

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // Store hashed password
}
