package extractor

import "time"

// Stage is an advisory tag for where the conversation is. Nothing gates on it.
type Stage string

const (
	StageGreeting           Stage = "greeting"
	StageCollectingDetails  Stage = "collecting_details"
	StageUnderstandingIssue Stage = "understanding_issue"
	StageConfirming         Stage = "confirming"
	StageCompleted          Stage = "completed"
)

// Collected holds the six ticket fields gathered so far. A nil field has not
// been heard yet.
type Collected struct {
	Name    *string  `json:"name,omitempty"`
	Email   *string  `json:"email,omitempty"`
	Phone   *string  `json:"phone,omitempty"`
	Address *string  `json:"address,omitempty"`
	Issue   *string  `json:"issue,omitempty"`
	Price   *float64 `json:"price,omitempty"`
}

// TicketRef is a snapshot of the last ticket created in a session.
type TicketRef struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Issue     string    `json:"issue"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Speaker roles in State.History.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxHistory bounds how many recent lines a session keeps.
const maxHistory = 12

// Line is one spoken line of the conversation.
type Line struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// State is the conversation state of one session.
type State struct {
	Stage         Stage      `json:"stage"`
	Collected     Collected  `json:"collected"`
	CurrentTicket *TicketRef `json:"current_ticket,omitempty"`
	History       []Line     `json:"history,omitempty"`
}

// NewState returns an empty state at the greeting stage.
func NewState() *State {
	return &State{Stage: StageGreeting}
}

// Remember appends a line to the history, dropping the oldest past
// maxHistory.
func (s *State) Remember(role, text string) {
	s.History = append(s.History, Line{Role: role, Text: text})
	if n := len(s.History); n > maxHistory {
		s.History = append([]Line(nil), s.History[n-maxHistory:]...)
	}
}

// MarkCompleted records a created ticket and closes the conversation.
func (s *State) MarkCompleted(ref TicketRef) {
	s.CurrentTicket = &ref
	s.Stage = StageCompleted
}

// Advance moves the advisory stage forward based on what has been collected.
// A completed conversation stays completed.
func (s *State) Advance() {
	if s.Stage == StageCompleted {
		return
	}
	c := s.Collected
	switch {
	case !set(c.Name) || !set(c.Email) || !set(c.Phone) || !set(c.Address):
		s.Stage = StageCollectingDetails
	case !set(c.Issue) || c.Price == nil || *c.Price <= 0:
		s.Stage = StageUnderstandingIssue
	default:
		s.Stage = StageConfirming
	}
}

func set(p *string) bool {
	return p != nil && *p != ""
}
