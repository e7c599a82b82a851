package store

import (
	"database/sql"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

// GetUserByUsername looks up a back-office account. Unknown usernames
// return ErrNotFound; the login handler treats that the same as a wrong
// password.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	row := s.DB.QueryRow(`SELECT id, username, password FROM users WHERE username = ?`, username)

	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Password); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser seeds a back-office account; the password must already be
// bcrypt-hashed.
func (s *Store) CreateUser(username, hashedPassword string) error {
	_, err := s.DB.Exec(`INSERT INTO users (username, password) VALUES (?, ?)`, username, hashedPassword)
	return err
}
