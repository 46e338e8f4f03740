package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/intake/internal/intake"
)

const connectTimeout = 30 * time.Second

// PostgresStore is the shared ticket sink used when DATABASE_URL is set.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, retrying with exponential backoff while the
// database comes up, then migrates.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectTimeout
	ping := func() error {
		return pool.Ping(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("database not ready, retrying", "error", err, "retry_in", next)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(bo, ctx), notify); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tickets (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			phone      TEXT NOT NULL,
			address    TEXT NOT NULL,
			issue      TEXT NOT NULL,
			price      DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("migrate tickets: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTicket(ctx context.Context, t *intake.Ticket) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tickets (name, email, phone, address, issue, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.Name, t.Email, t.Phone, t.Address, t.Issue, t.Price,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	return t.ID, nil
}

func (s *PostgresStore) UpdateField(ctx context.Context, id int64, field, value string) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, "UPDATE tickets SET "+field+" = $1 WHERE id = $2", value, id)
	if err != nil {
		return false, fmt.Errorf("update ticket %s: %w", field, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, id int64) (*intake.Ticket, error) {
	var t intake.Ticket
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, address, issue, price, created_at
		FROM tickets WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Address, &t.Issue, &t.Price, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTickets(ctx context.Context) ([]*intake.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, address, issue, price, created_at
		FROM tickets ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*intake.Ticket
	for rows.Next() {
		var t intake.Ticket
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Address, &t.Issue, &t.Price, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
