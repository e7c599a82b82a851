package store

import (
	"database/sql"
	"time"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

// SaveFeedback inserts the feedback row and denormalizes it onto the
// order in one transaction, so the order never claims feedback that has
// no row behind it. The has_feedback guard makes a second submission for
// the same order lose with ErrConflict.
func (s *Store) SaveFeedback(fb *models.Feedback, at time.Time) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE orders SET has_feedback = 1, rating = ?, feedback_comment = ?, updated_at = ?
		WHERE id = ? AND has_feedback = 0`, fb.Rating, fb.Comment, at, fb.OrderID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	var riderID any
	if fb.RiderID != nil {
		riderID = *fb.RiderID
	}
	res, err = tx.Exec(`
		INSERT INTO feedback (order_id, rider_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		fb.OrderID, riderID, fb.Rating, fb.Comment, at)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fb.ID = int(id)
	return tx.Commit()
}

func (s *Store) GetAllFeedback() ([]models.Feedback, error) {
	rows, err := s.DB.Query(`
		SELECT f.id, f.order_id, o.order_ref, o.customer_name, f.rider_id, f.rating,
			COALESCE(f.comment, ''), COALESCE(f.admin_reply, ''), f.created_at
		FROM feedback f
		JOIN orders o ON o.id = f.order_id
		ORDER BY f.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		var riderID sql.NullInt64
		if err := rows.Scan(&fb.ID, &fb.OrderID, &fb.OrderRef, &fb.CustomerName, &riderID,
			&fb.Rating, &fb.Comment, &fb.AdminReply, &fb.CreatedAt); err != nil {
			return nil, err
		}
		if riderID.Valid {
			id := int(riderID.Int64)
			fb.RiderID = &id
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// ReplyToFeedback stores the shop's reply, mirrored onto the order so the
// customer's tracking page shows it.
func (s *Store) ReplyToFeedback(feedbackID int, reply string) error {
	var orderID int
	err := s.DB.QueryRow(`SELECT order_id FROM feedback WHERE id = ?`, feedbackID).Scan(&orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if _, err := s.DB.Exec(`UPDATE feedback SET admin_reply = ? WHERE id = ?`, reply, feedbackID); err != nil {
		return err
	}
	_, err = s.DB.Exec(`UPDATE orders SET admin_reply = ? WHERE id = ?`, reply, orderID)
	return err
}
