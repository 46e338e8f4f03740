package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/intake/internal/anthropic"
	"github.com/MikeSquared-Agency/intake/internal/catalog"
	"github.com/MikeSquared-Agency/intake/internal/extractor"
)

const maxReplyTokens = 150

// Completer is the part of the anthropic client the LLM responder needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

// LLM phrases replies with a language model and falls back to the script
// when the model call fails.
type LLM struct {
	client   Completer
	fallback Responder
	logger   *slog.Logger
}

func NewLLM(client Completer, logger *slog.Logger) *LLM {
	return &LLM{client: client, fallback: Scripted{}, logger: logger}
}

func (l *LLM) Reply(ctx context.Context, turn Turn) (string, error) {
	reply, err := l.client.Complete(ctx, systemPrompt(turn), conversation(turn), maxReplyTokens)
	if err == nil {
		reply = strings.TrimSpace(reply)
	}
	if err != nil || reply == "" {
		l.logger.Warn("llm reply failed, using script", "error", err)
		return l.fallback.Reply(ctx, turn)
	}
	return reply, nil
}

// conversation turns the session history into alternating messages that
// start with the caller and end with the current utterance.
func conversation(turn Turn) []anthropic.Message {
	var msgs []anthropic.Message
	for _, line := range turn.State.History {
		role := "user"
		if line.Role == extractor.RoleAssistant {
			role = "assistant"
		}
		if len(msgs) == 0 && role == "assistant" {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n" + line.Text
			continue
		}
		msgs = append(msgs, anthropic.Message{Role: role, Content: line.Text})
	}
	if n := len(msgs); n == 0 || msgs[n-1].Role != "user" {
		msgs = append(msgs, anthropic.Message{Role: "user", Content: turn.Utterance})
	}
	return msgs
}

func systemPrompt(turn Turn) string {
	var sb strings.Builder

	sb.WriteString("You are a professional IT Help Desk assistant on a phone call. Collect customer information and create support tickets.\n\n")
	sb.WriteString("SUPPORTED ISSUES:\n")
	for i, e := range catalog.Entries() {
		fmt.Fprintf(&sb, "%d. %q - $%s\n", i+1, e.Description, price(e.Price))
	}
	sb.WriteString(`
CONVERSATION FLOW:
1. Greet and ask for full name and email address.
2. Ask for phone number and complete address.
3. Ask what IT issue they are experiencing.
4. Quote the service fee and ask whether to create a ticket.
5. Read back every detail and ask for confirmation.
6. Give the confirmation number and thank them.

GUIDELINES:
- Keep replies to 20-30 words; they are spoken aloud.
- Be natural and conversational.
- If the issue is not one of the supported issues, explain that only these are handled.
`)

	collected, _ := json.Marshal(turn.State.Collected)
	fmt.Fprintf(&sb, "\nCURRENT STAGE: %s\nCOLLECTED: %s\n", turn.State.Stage, collected)
	if len(turn.Missing) > 0 {
		fmt.Fprintf(&sb, "STILL MISSING: %s\n", strings.Join(turn.Missing, ", "))
	}
	if tk := turn.State.CurrentTicket; tk != nil {
		fmt.Fprintf(&sb, "TICKET CREATED: confirmation number %d\n", tk.ID)
	}
	return sb.String()
}
