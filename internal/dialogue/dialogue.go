// Package dialogue decides what the assistant says back after each turn.
package dialogue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MikeSquared-Agency/intake/internal/extractor"
)

// Turn is everything a responder may look at. State has already been
// updated with the utterance.
type Turn struct {
	Utterance string
	Previous  extractor.Stage
	State     *extractor.State
	Missing   []string
}

type Responder interface {
	Reply(ctx context.Context, turn Turn) (string, error)
}

// Scripted walks the help-desk call script: contact details, then the issue,
// then a price quote and read-back.
type Scripted struct{}

func (Scripted) Reply(_ context.Context, turn Turn) (string, error) {
	s := turn.State
	c := s.Collected
	name := deref(c.Name)

	if s.Stage == extractor.StageCompleted && s.CurrentTicket != nil {
		tk := s.CurrentTicket
		return fmt.Sprintf("Ticket created. Your confirmation number is %d. You'll get a confirmation at %s. Thank you!", tk.ID, tk.Email), nil
	}

	switch {
	case c.Name == nil && c.Email == nil:
		return "Welcome to IT Help Desk. May I have your full name and email address?", nil
	case c.Name == nil:
		return "Thanks. And may I have your full name?", nil
	case c.Email == nil:
		return fmt.Sprintf("Thanks, %s. What's your email address?", name), nil
	case c.Phone == nil && c.Address == nil:
		return fmt.Sprintf("Thanks, %s. What's your phone number and complete address?", name), nil
	case c.Phone == nil:
		return "Got it. And what's the best phone number to reach you?", nil
	case c.Address == nil:
		return "Got it. What's your complete address? You can say \"I live at\" followed by the address.", nil
	case c.Issue == nil || c.Price == nil:
		if turn.Previous == extractor.StageUnderstandingIssue {
			return "Sorry, we only handle Wi-Fi, email login, slow laptop and printer issues. Which of those are you experiencing?", nil
		}
		return "Got it. What IT issue are you experiencing today?", nil
	case turn.Previous != extractor.StageConfirming:
		return fmt.Sprintf("That's one of our supported issues. The service fee is $%s. Should I create a ticket?", price(*c.Price)), nil
	default:
		return fmt.Sprintf("Let me confirm: Name %s, Email %s, Phone %s, Address %s, Issue %s, Price $%s. Is this correct?",
			name, deref(c.Email), deref(c.Phone), deref(c.Address), deref(c.Issue), price(*c.Price)), nil
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
