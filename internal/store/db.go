package store

import (
	"database/sql"
	"errors"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a conditional update lost to a
	// concurrent writer (the row's status no longer matches).
	ErrConflict = errors.New("store: conflicting concurrent update")
	// ErrInvalidTransition is returned for a lifecycle step the
	// transition table does not allow.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

type Store struct {
	DB *sql.DB
}

func NewStore(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// SQLite allows one writer; serialize access instead of surfacing
	// SQLITE_BUSY to handlers.
	db.SetMaxOpenConns(1)

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		price REAL NOT NULL,
		category TEXT DEFAULT 'flowers',
		image_url TEXT,
		status TEXT DEFAULT 'available',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_ref TEXT NOT NULL UNIQUE,
		customer_name TEXT NOT NULL,
		customer_phone TEXT,
		customer_email TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT,
		delivery_lat REAL DEFAULT 0,
		delivery_lng REAL DEFAULT 0,
		delivery_location TEXT,
		subtotal REAL NOT NULL,
		discount REAL NOT NULL,
		subtotal_after_discount REAL NOT NULL,
		tax REAL NOT NULL,
		delivery_fee REAL NOT NULL,
		total REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		processed_at DATETIME,
		ready_at DATETIME,
		assigned_at DATETIME,
		accepted_at DATETIME,
		picked_up_at DATETIME,
		delivered_at DATETIME,
		completed_at DATETIME,
		cancelled_at DATETIME,
		cancellation_reason TEXT,
		rider_id INTEGER,
		rider_name TEXT,
		rider_phone TEXT,
		declined_by INTEGER,
		decline_reason TEXT,
		declined_at DATETIME,
		receipt_number TEXT,
		receipt_image_url TEXT,
		paid_at DATETIME,
		has_feedback INTEGER NOT NULL DEFAULT 0,
		rating INTEGER,
		feedback_comment TEXT,
		admin_reply TEXT,
		user_notified INTEGER NOT NULL DEFAULT 0,
		admin_notified INTEGER NOT NULL DEFAULT 0,
		magic_token TEXT,
		magic_token_expiry DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS riders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT,
		vehicle TEXT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		is_online INTEGER NOT NULL DEFAULT 0,
		is_tracking INTEGER NOT NULL DEFAULT 0,
		lat REAL DEFAULT 0,
		lng REAL DEFAULT 0,
		location_updated_at DATETIME,
		last_active DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id),
		rider_id INTEGER,
		rating INTEGER NOT NULL,
		comment TEXT,
		admin_reply TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS login_tokens (
		token TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS otp_codes (
		username TEXT PRIMARY KEY,
		otp TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_rider ON orders(rider_id);
	CREATE INDEX IF NOT EXISTS idx_orders_email ON orders(customer_email);
	`
	_, err := s.DB.Exec(query)
	if err != nil {
		slog.Error("Error creating schema", "error", err)
		return err
	}
	return nil
}
