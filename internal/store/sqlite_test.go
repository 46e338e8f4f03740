package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/intake/internal/intake"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickets.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func sampleTicket() *intake.Ticket {
	return &intake.Ticket{
		Name:    "Jane Doe",
		Email:   "jane@x.com",
		Phone:   "555-123-4567",
		Address: "12 Main St",
		Issue:   "Wi-Fi not working",
		Price:   20,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tk := sampleTicket()
	id, err := s.CreateTicket(ctx, tk)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 1 {
		t.Errorf("expected first id 1, got %d", id)
	}
	if tk.ID != id {
		t.Errorf("expected ticket id to be written back, got %d", tk.ID)
	}
	if tk.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	got, err := s.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Jane Doe" || got.Email != "jane@x.com" || got.Price != 20 {
		t.Errorf("unexpected ticket %+v", got)
	}
	if !got.CreatedAt.Equal(tk.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", tk.CreatedAt, got.CreatedAt)
	}
}

func TestCreate_MonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.CreateTicket(ctx, sampleTicket())
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if id <= last {
			t.Errorf("expected id > %d, got %d", last, id)
		}
		last = id
	}
}

func TestCreate_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan int64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.CreateTicket(ctx, sampleTicket())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected 10 distinct ids, got %d", len(seen))
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTicket(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTicket(ctx, sampleTicket())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := s.UpdateField(ctx, id, FieldEmail, "jane@new.com")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatal("expected update to find the ticket")
	}

	got, _ := s.GetTicket(ctx, id)
	if got.Email != "jane@new.com" {
		t.Errorf("expected updated email, got %q", got.Email)
	}
	if got.Name != "Jane Doe" {
		t.Errorf("expected name untouched, got %q", got.Name)
	}
}

func TestUpdateField_UnknownID(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.UpdateField(context.Background(), 99, FieldName, "Bob")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Error("expected false for unknown id")
	}
}

func TestUpdateField_RejectsOtherColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateTicket(ctx, sampleTicket())

	if _, err := s.UpdateField(ctx, id, "price", "0"); err == nil {
		t.Error("expected error for non-updatable field")
	}
}

func TestListTickets_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"First", "Second", "Third"} {
		tk := sampleTicket()
		tk.Name = name
		if _, err := s.CreateTicket(ctx, tk); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.ListTickets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 tickets, got %d", len(got))
	}
	if got[0].Name != "Third" || got[2].Name != "First" {
		t.Errorf("expected newest first, got %s..%s", got[0].Name, got[2].Name)
	}
}

func TestReopenKeepsTickets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, _ := s.CreateTicket(context.Background(), sampleTicket())
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetTicket(context.Background(), id); err != nil {
		t.Errorf("expected ticket to survive reopen, got %v", err)
	}
	next, _ := s2.CreateTicket(context.Background(), sampleTicket())
	if next <= id {
		t.Errorf("expected id after reopen > %d, got %d", id, next)
	}
}
