package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	gocache "github.com/patrickmn/go-cache"

	"github.com/maestroprog/wschatserver/internal/store"
)

const (
	lookupTTL       = time.Minute
	cleanupInterval = 10 * time.Minute
)

// SQLiteStore implements store.UserStore for SQLite. Lookups by id go
// through a short-lived in-process cache; auth packets for the same user
// hit the database at most once a minute.
type SQLiteStore struct {
	db      *sql.DB
	lookups *gocache.Cache
}

// New creates a new SQLite store and ensures the schema exists.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		lookups: gocache.New(lookupTTL, cleanupInterval),
	}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function
// before the default schema is applied. Useful for tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		lookups: gocache.New(lookupTTL, cleanupInterval),
	}, nil
}

func ensureSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		login      TEXT NOT NULL UNIQUE,
		admin      BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(query)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetUserByID retrieves a user by ID, returning (nil, nil) when no such
// user exists.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	key := strconv.FormatInt(id, 10)
	if cached, ok := s.lookups.Get(key); ok {
		if user, ok := cached.(*store.User); ok {
			return user, nil
		}
	}

	query := `
		SELECT id, login, admin, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Login, &user.Admin, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}

	s.lookups.Set(key, &user, gocache.DefaultExpiration)
	return &user, nil
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, login string, admin bool) (*store.User, error) {
	query := `
		INSERT INTO users (login, admin)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, login, admin)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}
