package hermes

import "time"

// Inbound subjects: the transcript source and session lifecycle.
const (
	SubjectSessionStarted = "intake.session.started"
	SubjectSessionEnded   = "intake.session.ended"
	SubjectTranscriptTurn = "intake.transcript.turn"
)

// Request/reply subjects an external dialogue driver calls as tools.
const (
	SubjectToolMissingFields = "intake.tool.missing_fields"
	SubjectToolCreateTicket  = "intake.tool.create_ticket"
	SubjectToolUpdateName    = "intake.tool.update_name"
	SubjectToolUpdateEmail   = "intake.tool.update_email"
)

// Outbound events.
const (
	SubjectAssistantReply = "intake.assistant.reply"
	SubjectTicketCreated  = "intake.ticket.created"
	SubjectTicketUpdated  = "intake.ticket.updated"
)

// SessionEvent marks the start or end of a call.
type SessionEvent struct {
	SessionID string `json:"session_id"`
}

// TurnEvent is one final user transcript from the speech pipeline.
type TurnEvent struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ReplyEvent is what the assistant should say after a turn, for the speech
// pipeline to synthesise.
type ReplyEvent struct {
	SessionID string   `json:"session_id"`
	Text      string   `json:"text"`
	Stage     string   `json:"stage"`
	Missing   []string `json:"missing"`
}

// ToolRequest is the payload for every intake.tool.* subject. Fields unused
// by a tool are ignored.
type ToolRequest struct {
	SessionID string  `json:"session_id"`
	TicketID  int64   `json:"ticket_id,omitempty"`
	Value     string  `json:"value,omitempty"`
	Name      string  `json:"name,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Address   string  `json:"address,omitempty"`
	Issue     string  `json:"issue,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// ToolResponse carries the human-readable tool result back to the driver.
type ToolResponse struct {
	Result  string   `json:"result"`
	Missing []string `json:"missing,omitempty"`
}

// TicketEvent is published when a ticket is created or one of its fields
// changes.
type TicketEvent struct {
	SessionID string    `json:"session_id"`
	TicketID  int64     `json:"ticket_id"`
	Field     string    `json:"field,omitempty"`
	Value     string    `json:"value,omitempty"`
	Issue     string    `json:"issue,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
