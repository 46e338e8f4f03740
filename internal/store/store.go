package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/intake/internal/intake"
)

// ErrNotFound is returned by GetTicket when no ticket has the given id.
var ErrNotFound = errors.New("ticket not found")

// Fields that may be changed after a ticket is created.
const (
	FieldName  = "name"
	FieldEmail = "email"
)

// TicketStore is the ticket sink. CreateTicket assigns a monotonically
// increasing id and a creation timestamp, writing both back into t.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *intake.Ticket) (int64, error)
	// UpdateField reports false when no ticket has the id.
	UpdateField(ctx context.Context, id int64, field, value string) (bool, error)
	GetTicket(ctx context.Context, id int64) (*intake.Ticket, error)
	// ListTickets returns tickets newest first.
	ListTickets(ctx context.Context) ([]*intake.Ticket, error)
	Close()
}

func checkField(field string) error {
	switch field {
	case FieldName, FieldEmail:
		return nil
	}
	return fmt.Errorf("field %q cannot be updated", field)
}
