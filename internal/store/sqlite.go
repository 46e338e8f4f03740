package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/intake/internal/intake"
)

// SQLiteStore is the local single-file ticket sink.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
	}
	// One writer keeps id assignment and busy errors simple.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			phone      TEXT NOT NULL,
			address    TEXT NOT NULL,
			issue      TEXT NOT NULL,
			price      REAL NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateTicket(ctx context.Context, t *intake.Ticket) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (name, email, phone, address, issue, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Email, t.Phone, t.Address, t.Issue, t.Price, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("ticket store: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ticket store: last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	return id, nil
}

func (s *SQLiteStore) UpdateField(ctx context.Context, id int64, field, value string) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	// field is one of two fixed column names.
	res, err := s.db.ExecContext(ctx, "UPDATE tickets SET "+field+" = ? WHERE id = ?", value, id)
	if err != nil {
		return false, fmt.Errorf("ticket store: update %s: %w", field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ticket store: rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetTicket(ctx context.Context, id int64) (*intake.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, issue, price, created_at
		FROM tickets WHERE id = ?`, id)
	t, err := scanSQLiteTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTickets(ctx context.Context) ([]*intake.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, address, issue, price, created_at
		FROM tickets ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var out []*intake.Ticket
	for rows.Next() {
		t, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(sc scanner) (*intake.Ticket, error) {
	var t intake.Ticket
	var createdAt string
	if err := sc.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Address, &t.Issue, &t.Price, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	t.CreatedAt = ts
	return &t, nil
}
