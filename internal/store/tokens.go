package store

import "database/sql"

// Login tokens back the "my orders" magic links sent by email.

func (s *Store) CreateLoginToken(email, token string) error {
	// Expires in 1 hour
	query := `INSERT INTO login_tokens (token, email, expires_at) VALUES (?, ?, datetime('now', '+1 hour'))`
	_, err := s.DB.Exec(query, token, email)
	return err
}

func (s *Store) GetEmailByLoginToken(token string) (string, error) {
	var email string
	// Check if token exists and is not expired
	query := `SELECT email FROM login_tokens WHERE token = ? AND expires_at > datetime('now')`
	err := s.DB.QueryRow(query, token).Scan(&email)
	if err != nil {
		return "", err
	}
	return email, nil
}

// OTP codes cover the rider login second step. One live code per
// username; issuing a new one replaces the old.

func (s *Store) SaveOTP(username, otp string) error {
	query := `INSERT INTO otp_codes (username, otp, expires_at) VALUES (?, ?, datetime('now', '+10 minutes'))
		ON CONFLICT(username) DO UPDATE SET otp = excluded.otp, expires_at = excluded.expires_at`
	_, err := s.DB.Exec(query, username, otp)
	return err
}

// ConsumeOTP verifies and burns an OTP in one step so a code cannot be
// replayed.
func (s *Store) ConsumeOTP(username, otp string) (bool, error) {
	var stored string
	err := s.DB.QueryRow(`SELECT otp FROM otp_codes WHERE username = ? AND expires_at > datetime('now')`, username).Scan(&stored)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	if stored != otp {
		return false, nil
	}
	_, err = s.DB.Exec(`DELETE FROM otp_codes WHERE username = ?`, username)
	if err != nil {
		return false, err
	}
	return true, nil
}
