package replay

import "time"

// Utterance is one line of a recorded call.
type Utterance struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Call is every utterance of one session in spoken order.
type Call struct {
	SessionID  string
	Utterances []Utterance
}

// Outcome is how far one replayed call got.
type Outcome struct {
	SessionID string   `json:"session_id"`
	Turns     int      `json:"turns"`
	Stage     string   `json:"stage"`
	Missing   []string `json:"missing"`
	Replies   []string `json:"replies,omitempty"`
	Ticket    string   `json:"ticket,omitempty"`
}
