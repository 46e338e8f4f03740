package intake

import (
	"time"

	"github.com/MikeSquared-Agency/intake/internal/extractor"
)

// Ticket is a persisted support request. ID and CreatedAt are assigned by
// the store.
type Ticket struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Issue     string    `json:"issue"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is the field set the dialogue driver proposes for a new ticket.
type Candidate struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Issue   string  `json:"issue"`
	Price   float64 `json:"price"`
}

// Ticket builds an unsaved ticket from the candidate.
func (c Candidate) Ticket() *Ticket {
	return &Ticket{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		Issue:   c.Issue,
		Price:   c.Price,
	}
}

// CandidateFromState fills a candidate from whatever the conversation has
// collected. Absent fields are left zero.
func CandidateFromState(state *extractor.State) Candidate {
	c := state.Collected
	var out Candidate
	if c.Name != nil {
		out.Name = *c.Name
	}
	if c.Email != nil {
		out.Email = *c.Email
	}
	if c.Phone != nil {
		out.Phone = *c.Phone
	}
	if c.Address != nil {
		out.Address = *c.Address
	}
	if c.Issue != nil {
		out.Issue = *c.Issue
	}
	if c.Price != nil {
		out.Price = *c.Price
	}
	return out
}

// Ref snapshots a saved ticket for the conversation state.
func (t *Ticket) Ref() extractor.TicketRef {
	return extractor.TicketRef{
		ID:        t.ID,
		Name:      t.Name,
		Email:     t.Email,
		Phone:     t.Phone,
		Address:   t.Address,
		Issue:     t.Issue,
		Price:     t.Price,
		CreatedAt: t.CreatedAt,
	}
}
