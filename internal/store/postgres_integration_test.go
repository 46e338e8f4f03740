//go:build integration

package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	s, err := NewPostgresStore(context.Background(), dbURL, slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestIntegration_CreateUpdateGet(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	tk := sampleTicket()
	id, err := s.CreateTicket(ctx, tk)
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if id == 0 || tk.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at, got %d / %v", id, tk.CreatedAt)
	}

	ok, err := s.UpdateField(ctx, id, FieldName, "Janet Doe")
	if err != nil || !ok {
		t.Fatalf("UpdateField failed: ok=%v err=%v", ok, err)
	}

	got, err := s.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if got.Name != "Janet Doe" {
		t.Errorf("expected name Janet Doe, got %q", got.Name)
	}

	next, err := s.CreateTicket(ctx, sampleTicket())
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if next <= id {
		t.Errorf("expected id > %d, got %d", id, next)
	}

	list, err := s.ListTickets(ctx)
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(list) < 2 || list[0].ID != next {
		t.Errorf("expected newest ticket %d first", next)
	}
}

func TestIntegration_NotFound(t *testing.T) {
	s := setupPostgresStore(t)
	if _, err := s.GetTicket(context.Background(), -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	ok, err := s.UpdateField(context.Background(), -1, FieldEmail, "x@y.com")
	if err != nil || ok {
		t.Errorf("expected false/nil for unknown id, got %v/%v", ok, err)
	}
}
