package store

import (
	"database/sql"
	"time"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

const riderColumns = `
	id, name, COALESCE(phone, ''), COALESCE(vehicle, ''), username, password,
	is_online, is_tracking, lat, lng, location_updated_at, last_active, created_at`

func scanRider(row rowScanner) (*models.Rider, error) {
	var r models.Rider
	var locUpdated, lastActive sql.NullTime
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &r.Vehicle, &r.Username, &r.Password,
		&r.IsOnline, &r.IsTracking, &r.Lat, &r.Lng, &locUpdated, &lastActive, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.LocationUpdatedAt = nullableTime(locUpdated)
	r.LastActive = nullableTime(lastActive)
	return &r, nil
}

func (s *Store) CreateRider(rider *models.Rider) error {
	res, err := s.DB.Exec(`
		INSERT INTO riders (name, phone, vehicle, username, password, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		rider.Name, rider.Phone, rider.Vehicle, rider.Username, rider.Password)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rider.ID = int(id)
	return nil
}

func (s *Store) GetRiderByID(id int) (*models.Rider, error) {
	row := s.DB.QueryRow(`SELECT `+riderColumns+` FROM riders WHERE id = ?`, id)
	return scanRider(row)
}

func (s *Store) GetRiderByUsername(username string) (*models.Rider, error) {
	row := s.DB.QueryRow(`SELECT `+riderColumns+` FROM riders WHERE username = ?`, username)
	rider, err := scanRider(row)
	if err == ErrNotFound {
		return nil, nil
	}
	return rider, err
}

func (s *Store) GetAllRiders() ([]models.Rider, error) {
	rows, err := s.DB.Query(`SELECT ` + riderColumns + ` FROM riders ORDER BY is_online DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var riders []models.Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		riders = append(riders, *r)
	}
	return riders, rows.Err()
}

func (s *Store) UpdateRider(rider *models.Rider) error {
	res, err := s.DB.Exec(`UPDATE riders SET name = ?, phone = ?, vehicle = ? WHERE id = ?`,
		rider.Name, rider.Phone, rider.Vehicle, rider.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteRider(id int) error {
	res, err := s.DB.Exec(`DELETE FROM riders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetRiderOnline flips the single authoritative availability flag.
func (s *Store) SetRiderOnline(id int, online bool, at time.Time) error {
	res, err := s.DB.Exec(`UPDATE riders SET is_online = ?, last_active = ? WHERE id = ?`, online, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// TouchRider bumps last_active without changing anything else.
func (s *Store) TouchRider(id int, at time.Time) error {
	res, err := s.DB.Exec(`UPDATE riders SET last_active = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetRiderTracking(id int, tracking bool, at time.Time) error {
	res, err := s.DB.Exec(`UPDATE riders SET is_tracking = ?, last_active = ? WHERE id = ?`, tracking, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateRiderLocation records the rider's last known GPS fix.
func (s *Store) UpdateRiderLocation(id int, lat, lng float64, at time.Time) error {
	res, err := s.DB.Exec(`
		UPDATE riders SET lat = ?, lng = ?, location_updated_at = ?, last_active = ? WHERE id = ?`,
		lat, lng, at, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
