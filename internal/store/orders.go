package store

import (
	"database/sql"
	"time"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

const orderColumns = `
	o.id, o.order_ref, o.customer_name, COALESCE(o.customer_phone, ''), o.customer_email,
	o.address, COALESCE(o.city, ''), o.delivery_lat, o.delivery_lng, COALESCE(o.delivery_location, ''),
	o.subtotal, o.discount, o.subtotal_after_discount, o.tax, o.delivery_fee, o.total,
	o.status, o.processed_at, o.ready_at, o.assigned_at, o.accepted_at, o.picked_up_at,
	o.delivered_at, o.completed_at, o.cancelled_at, COALESCE(o.cancellation_reason, ''),
	o.rider_id, COALESCE(o.rider_name, ''), COALESCE(o.rider_phone, ''),
	o.declined_by, COALESCE(o.decline_reason, ''), o.declined_at,
	COALESCE(o.receipt_number, ''), COALESCE(o.receipt_image_url, ''), o.paid_at,
	o.has_feedback, COALESCE(o.rating, 0), COALESCE(o.feedback_comment, ''), COALESCE(o.admin_reply, ''),
	o.user_notified, o.admin_notified,
	COALESCE(o.magic_token, ''), o.magic_token_expiry, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var riderID, declinedBy sql.NullInt64
	var processedAt, readyAt, assignedAt, acceptedAt, pickedUpAt sql.NullTime
	var deliveredAt, completedAt, cancelledAt, declinedAt, paidAt, tokenExpiry sql.NullTime

	err := row.Scan(
		&o.ID, &o.OrderRef, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.Address, &o.City, &o.DeliveryLat, &o.DeliveryLng, &o.DeliveryLocation,
		&o.Subtotal, &o.Discount, &o.SubtotalAfterDisc, &o.Tax, &o.DeliveryFee, &o.Total,
		&o.Status, &processedAt, &readyAt, &assignedAt, &acceptedAt, &pickedUpAt,
		&deliveredAt, &completedAt, &cancelledAt, &o.CancellationReason,
		&riderID, &o.RiderName, &o.RiderPhone,
		&declinedBy, &o.DeclineReason, &declinedAt,
		&o.ReceiptNumber, &o.ReceiptImageURL, &paidAt,
		&o.HasFeedback, &o.Rating, &o.FeedbackComment, &o.AdminReply,
		&o.UserNotified, &o.AdminNotified,
		&o.MagicToken, &tokenExpiry, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if riderID.Valid {
		id := int(riderID.Int64)
		o.RiderID = &id
	}
	if declinedBy.Valid {
		id := int(declinedBy.Int64)
		o.DeclinedBy = &id
	}
	o.ProcessedAt = nullableTime(processedAt)
	o.ReadyAt = nullableTime(readyAt)
	o.AssignedAt = nullableTime(assignedAt)
	o.AcceptedAt = nullableTime(acceptedAt)
	o.PickedUpAt = nullableTime(pickedUpAt)
	o.DeliveredAt = nullableTime(deliveredAt)
	o.CompletedAt = nullableTime(completedAt)
	o.CancelledAt = nullableTime(cancelledAt)
	o.DeclinedAt = nullableTime(declinedAt)
	o.PaidAt = nullableTime(paidAt)
	if tokenExpiry.Valid {
		o.MagicTokenExpiry = tokenExpiry.Time
	}
	return &o, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *Store) CreateOrder(order *models.Order) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO orders (order_ref, customer_name, customer_phone, customer_email, address, city,
			delivery_lat, delivery_lng, delivery_location,
			subtotal, discount, subtotal_after_discount, tax, delivery_fee, total,
			status, magic_token, magic_token_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		order.OrderRef, order.CustomerName, order.CustomerPhone, order.CustomerEmail,
		order.Address, order.City, order.DeliveryLat, order.DeliveryLng, order.DeliveryLocation,
		order.Subtotal, order.Discount, order.SubtotalAfterDisc, order.Tax, order.DeliveryFee, order.Total,
		string(models.StatusPending), order.MagicToken, order.MagicTokenExpiry,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = int(id)
	order.Status = models.StatusPending

	for i := range order.Items {
		item := &order.Items[i]
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if _, err := tx.Exec(`INSERT INTO order_items (order_id, name, price, quantity) VALUES (?, ?, ?, ?)`,
			order.ID, item.Name, item.Price, item.Quantity); err != nil {
			return err
		}
		item.OrderID = order.ID
	}

	return tx.Commit()
}

func (s *Store) loadItems(order *models.Order) error {
	rows, err := s.DB.Query(`SELECT id, order_id, name, price, quantity FROM order_items WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return err
		}
		order.Items = append(order.Items, it)
	}
	return rows.Err()
}

func (s *Store) GetOrderByID(id int) (*models.Order, error) {
	row := s.DB.QueryRow(`SELECT `+orderColumns+` FROM orders o WHERE o.id = ?`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) GetOrderByRef(ref string) (*models.Order, error) {
	row := s.DB.QueryRow(`SELECT `+orderColumns+` FROM orders o WHERE o.order_ref = ?`, ref)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) GetOrderByToken(token string) (*models.Order, error) {
	row := s.DB.QueryRow(`SELECT `+orderColumns+` FROM orders o WHERE o.magic_token = ?`, token)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) GetAllOrders(limit, offset int) ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders o ORDER BY o.created_at DESC LIMIT ? OFFSET ?`, limit, offset)
}

// GetOrdersByStatus filters the console list. The pseudo-status
// "declined" selects ready orders carrying a decline trail, which the
// admin console surfaces for reassignment.
func (s *Store) GetOrdersByStatus(status string, limit, offset int) ([]models.Order, error) {
	if status == "declined" {
		return s.queryOrders(`SELECT `+orderColumns+` FROM orders o
			WHERE o.status = 'ready' AND o.declined_by IS NOT NULL
			ORDER BY o.created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	}
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders o WHERE o.status = ? ORDER BY o.created_at DESC LIMIT ? OFFSET ?`,
		status, limit, offset)
}

func (s *Store) GetOrdersByEmail(email string) ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders o
		WHERE LOWER(o.customer_email) = LOWER(?) ORDER BY o.created_at DESC`, email)
}

func (s *Store) GetOrdersByRider(riderID int) ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders o
		WHERE o.rider_id = ? OR (o.declined_by = ? AND o.status = 'ready')
		ORDER BY o.created_at DESC`, riderID, riderID)
}

func (s *Store) queryOrders(query string, args ...any) ([]models.Order, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := s.loadItems(&orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *Store) GetTotalOrdersCount() (int, error) {
	var count int
	err := s.DB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// timestampColumn maps a destination status to the column recording when
// the order entered it.
func timestampColumn(to models.OrderStatus) string {
	switch to {
	case models.StatusProcessing:
		return "processed_at"
	case models.StatusReady:
		return "ready_at"
	case models.StatusAssigned:
		return "assigned_at"
	case models.StatusPickedUp:
		return "picked_up_at"
	case models.StatusDelivered:
		return "delivered_at"
	case models.StatusDone:
		return "completed_at"
	case models.StatusCancelled:
		return "cancelled_at"
	}
	return ""
}

// TransitionStatus moves an order from -> to, validated against the
// lifecycle table and guarded by a conditional update on the current
// status. A concurrent writer that got there first makes this return
// ErrConflict instead of silently overwriting.
func (s *Store) TransitionStatus(id int, from, to models.OrderStatus, at time.Time) error {
	if !models.CanTransition(from, to) {
		return ErrInvalidTransition
	}

	query := `UPDATE orders SET status = ?, updated_at = ?`
	args := []any{string(to), at}
	if col := timestampColumn(to); col != "" {
		query += `, ` + col + ` = ?`
		args = append(args, at)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(from))

	res, err := s.DB.Exec(query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AssignRider puts a ready order into assigned with the rider's contact
// details snapshotted onto it. Any decline trail from a previous rider is
// cleared so the new assignment starts fresh.
func (s *Store) AssignRider(orderID int, rider *models.Rider, at time.Time) error {
	res, err := s.DB.Exec(`
		UPDATE orders SET status = ?, rider_id = ?, rider_name = ?, rider_phone = ?,
			assigned_at = ?, accepted_at = NULL,
			declined_by = NULL, decline_reason = NULL, declined_at = NULL,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(models.StatusAssigned), rider.ID, rider.Name, rider.Phone, at, at,
		orderID, string(models.StatusReady),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AcceptOrder is the rider's side of the assignment handshake: the
// assigned order jumps to picked_up in one step, stamping both
// accepted_at and picked_up_at. The rider condition keeps a reassigned
// order from being accepted by its previous rider.
func (s *Store) AcceptOrder(orderID, riderID int, at time.Time) error {
	res, err := s.DB.Exec(`
		UPDATE orders SET status = ?, accepted_at = ?, picked_up_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND rider_id = ?`,
		string(models.StatusPickedUp), at, at, at,
		orderID, string(models.StatusAssigned), riderID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeclineOrder returns an assigned order to the ready pool, recording who
// declined and why. rider_id is cleared; declined_by holds the history.
func (s *Store) DeclineOrder(orderID, riderID int, reason string, at time.Time) error {
	res, err := s.DB.Exec(`
		UPDATE orders SET status = ?, rider_id = NULL, rider_name = NULL, rider_phone = NULL,
			declined_by = ?, decline_reason = ?, declined_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND rider_id = ?`,
		string(models.StatusReady), riderID, reason, at, at,
		orderID, string(models.StatusAssigned), riderID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CancelOrder cancels an order that has not yet been delivered and
// detaches its rider. Once the goods are with the customer, cancellation
// is off the table.
func (s *Store) CancelOrder(orderID int, reason string, at time.Time) error {
	res, err := s.DB.Exec(`
		UPDATE orders SET status = ?, cancelled_at = ?, cancellation_reason = ?,
			rider_id = NULL, rider_name = NULL, rider_phone = NULL, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)`,
		string(models.StatusCancelled), at, reason, at,
		orderID, string(models.StatusDelivered), string(models.StatusDone), string(models.StatusCancelled),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteOrder(orderID int) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// SetPayment records the customer's uploaded receipt.
func (s *Store) SetPayment(orderID int, receiptNumber, imageURL string, at time.Time) error {
	res, err := s.DB.Exec(`
		UPDATE orders SET receipt_number = ?, receipt_image_url = ?, paid_at = ?, updated_at = ?
		WHERE id = ?`, receiptNumber, imageURL, at, at, orderID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetOrderAdminReply(orderID int, reply string, at time.Time) error {
	res, err := s.DB.Exec(`UPDATE orders SET admin_reply = ?, updated_at = ? WHERE id = ?`, reply, at, orderID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClaimUserNotified flips the delivered-notification guard and reports
// whether this caller won it. Exactly one caller per order sees true, so
// the customer's feedback prompt fires once no matter how many tracking
// views are open.
func (s *Store) ClaimUserNotified(orderID int) (bool, error) {
	res, err := s.DB.Exec(`UPDATE orders SET user_notified = 1 WHERE id = ? AND user_notified = 0`, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClaimAdminNotified is the admin-console counterpart of ClaimUserNotified.
func (s *Store) ClaimAdminNotified(orderID int) (bool, error) {
	res, err := s.DB.Exec(`UPDATE orders SET admin_notified = 1 WHERE id = ? AND admin_notified = 0`, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateOrderToken(id int, token string, expiry time.Time) error {
	_, err := s.DB.Exec(`UPDATE orders SET magic_token = ?, magic_token_expiry = ? WHERE id = ?`, token, expiry, id)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
