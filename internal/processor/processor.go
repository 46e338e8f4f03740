package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/intake/internal/dialogue"
	"github.com/MikeSquared-Agency/intake/internal/extractor"
	"github.com/MikeSquared-Agency/intake/internal/hermes"
	"github.com/MikeSquared-Agency/intake/internal/intake"
	"github.com/MikeSquared-Agency/intake/internal/session"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

const (
	msgSinkFailure   = "Sorry, I encountered an error creating the ticket. Please try again."
	msgUpdateFailure = "Sorry, I encountered an error updating the ticket. Please try again."

	notifyTimeout = 30 * time.Second
)

// Publisher emits ticket events. Satisfied by *hermes.Client.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier tells humans about new and corrected tickets. Satisfied by
// *slack.Poster.
type Notifier interface {
	PostTicket(ctx context.Context, t *intake.Ticket) (string, error)
	PostUpdate(ctx context.Context, ticketID int64, field, value string) error
}

// Deps wires a Processor. Sessions and Store are required; a nil Responder,
// Publisher or Notifier disables that feature.
type Deps struct {
	Sessions    *session.Manager
	Store       store.TicketStore
	Validator   intake.Validator
	Responder   dialogue.Responder
	Publisher   Publisher
	Notifier    Notifier
	SinkTimeout time.Duration
}

// TurnResult is the outcome of one user utterance.
type TurnResult struct {
	SessionID string          `json:"session_id"`
	Stage     extractor.Stage `json:"stage"`
	Missing   []string        `json:"missing"`
	Reply     string          `json:"reply,omitempty"`
}

// Processor runs the intake operations a dialogue driver calls: turns,
// completeness checks, ticket creation and corrections.
type Processor struct {
	sessions    *session.Manager
	store       store.TicketStore
	validator   intake.Validator
	responder   dialogue.Responder
	publisher   Publisher
	notifier    Notifier
	sinkTimeout time.Duration
	logger      *slog.Logger

	wg sync.WaitGroup
}

func New(d Deps, logger *slog.Logger) *Processor {
	if d.SinkTimeout <= 0 {
		d.SinkTimeout = 5 * time.Second
	}
	return &Processor{
		sessions:    d.Sessions,
		store:       d.Store,
		validator:   d.Validator,
		responder:   d.Responder,
		publisher:   d.Publisher,
		notifier:    d.Notifier,
		sinkTimeout: d.SinkTimeout,
		logger:      logger,
	}
}

// StartSession resets the conversation for id.
func (p *Processor) StartSession(id string) error {
	if _, err := p.sessions.Start(id); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	p.logger.Info("session started", "session_id", id)
	return nil
}

func (p *Processor) EndSession(id string) error {
	if err := p.sessions.End(id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	p.logger.Info("session ended", "session_id", id)
	return nil
}

// ActiveSessions reports how many conversations are in memory.
func (p *Processor) ActiveSessions() int {
	return p.sessions.Len()
}

// Session returns a snapshot of the conversation state.
func (p *Processor) Session(id string) (*extractor.State, error) {
	return p.sessions.Get(id)
}

// HandleTurn folds one utterance into the session, advances the stage and
// asks the responder for a reply. A turn for an unknown session starts it.
func (p *Processor) HandleTurn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	var prev extractor.Stage
	state, err := p.sessions.Update(sessionID, func(s *extractor.State) error {
		prev = s.Stage
		s.Remember(extractor.RoleUser, text)
		extractor.Extract(text, s)
		s.Advance()
		return nil
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("update session: %w", err)
	}

	res := TurnResult{
		SessionID: sessionID,
		Stage:     state.Stage,
		Missing:   intake.MissingFields(state),
	}
	if prev != state.Stage {
		p.logger.Debug("stage advanced", "session_id", sessionID, "from", prev, "to", state.Stage)
	}

	if p.responder != nil {
		reply, err := p.responder.Reply(ctx, dialogue.Turn{
			Utterance: text,
			Previous:  prev,
			State:     state,
			Missing:   res.Missing,
		})
		if err != nil {
			p.logger.Error("reply failed", "session_id", sessionID, "error", err)
		} else {
			res.Reply = reply
			p.rememberReply(sessionID, reply)
		}
	}
	return res, nil
}

func (p *Processor) rememberReply(sessionID, reply string) {
	_, err := p.sessions.UpdateExisting(sessionID, func(s *extractor.State) error {
		s.Remember(extractor.RoleAssistant, reply)
		return nil
	})
	if err != nil && !errors.Is(err, session.ErrUnknownSession) {
		p.logger.Warn("failed to record reply", "session_id", sessionID, "error", err)
	}
}

// Respond runs HandleTurn and publishes the reply on intake.assistant.reply.
func (p *Processor) Respond(ctx context.Context, sessionID, text string) (TurnResult, error) {
	res, err := p.HandleTurn(ctx, sessionID, text)
	if err != nil {
		return TurnResult{}, err
	}
	p.publish(hermes.SubjectAssistantReply, hermes.ReplyEvent{
		SessionID: res.SessionID,
		Text:      res.Reply,
		Stage:     string(res.Stage),
		Missing:   res.Missing,
	})
	return res, nil
}

// MissingFields reports what the session still lacks. An unknown session
// lacks everything.
func (p *Processor) MissingFields(sessionID string) ([]string, error) {
	state, err := p.sessions.Get(sessionID)
	if errors.Is(err, session.ErrUnknownSession) {
		state = extractor.NewState()
	} else if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return intake.MissingFields(state), nil
}

// CreateTicketIfValid validates the candidate and persists it. It always
// returns a message suitable for the dialogue driver to relay.
func (p *Processor) CreateTicketIfValid(ctx context.Context, sessionID string, c intake.Candidate) string {
	if err := p.validator.Validate(c); err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			p.logger.Info("ticket rejected", "session_id", sessionID, "reasons", verr.Reasons)
			return fmt.Sprintf("Cannot create ticket. Missing required information: %s. Please collect all customer details first.",
				strings.Join(verr.Reasons, ", "))
		}
		p.logger.Error("validation failed", "session_id", sessionID, "error", err)
		return msgSinkFailure
	}

	t := c.Ticket()
	sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	id, err := p.store.CreateTicket(sinkCtx, t)
	cancel()
	if err != nil {
		p.logger.Error("ticket sink failed", "session_id", sessionID, "error", err)
		return msgSinkFailure
	}

	// Tickets can be filed for calls that have already ended; only live
	// sessions record them.
	_, err = p.sessions.UpdateExisting(sessionID, func(s *extractor.State) error {
		s.MarkCompleted(t.Ref())
		return nil
	})
	if err != nil && !errors.Is(err, session.ErrUnknownSession) {
		p.logger.Warn("failed to record ticket on session", "session_id", sessionID, "ticket_id", id, "error", err)
	}

	p.logger.Info("ticket created", "session_id", sessionID, "ticket_id", id, "issue", t.Issue, "price", t.Price)

	p.publish(hermes.SubjectTicketCreated, hermes.TicketEvent{
		SessionID: sessionID,
		TicketID:  id,
		Issue:     t.Issue,
		Price:     t.Price,
		Timestamp: t.CreatedAt,
	})
	p.notify(func(ctx context.Context) error {
		_, err := p.notifier.PostTicket(ctx, t)
		return err
	})

	return fmt.Sprintf("Ticket created successfully with ID: %d. Confirmation number is %d.", id, id)
}

// UpdateName corrects the name on an existing ticket.
func (p *Processor) UpdateName(ctx context.Context, sessionID string, ticketID int64, name string) string {
	if !intake.ValidName(name) {
		return "Cannot update ticket. " + intake.ReasonName + "."
	}
	return p.updateField(ctx, sessionID, ticketID, store.FieldName, name)
}

// UpdateEmail corrects the email on an existing ticket.
func (p *Processor) UpdateEmail(ctx context.Context, sessionID string, ticketID int64, email string) string {
	if !intake.ValidEmail(email) {
		return "Cannot update ticket. " + intake.ReasonEmail + "."
	}
	return p.updateField(ctx, sessionID, ticketID, store.FieldEmail, email)
}

func (p *Processor) updateField(ctx context.Context, sessionID string, ticketID int64, field, value string) string {
	sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	ok, err := p.store.UpdateField(sinkCtx, ticketID, field, value)
	cancel()
	if err != nil {
		p.logger.Error("ticket update failed", "ticket_id", ticketID, "field", field, "error", err)
		return msgUpdateFailure
	}
	if !ok {
		return fmt.Sprintf("Sorry, I couldn't find ticket %d.", ticketID)
	}

	if sessionID != "" {
		p.refreshSnapshot(sessionID, ticketID, field, value)
	}

	p.logger.Info("ticket updated", "session_id", sessionID, "ticket_id", ticketID, "field", field)

	p.publish(hermes.SubjectTicketUpdated, hermes.TicketEvent{
		SessionID: sessionID,
		TicketID:  ticketID,
		Field:     field,
		Value:     value,
		Timestamp: time.Now().UTC(),
	})
	p.notify(func(ctx context.Context) error {
		return p.notifier.PostUpdate(ctx, ticketID, field, value)
	})

	return fmt.Sprintf("Ticket %d %s updated to: %s", ticketID, field, value)
}

// refreshSnapshot keeps the session's copy of its ticket in step with the
// store. Sessions that never created ticketID are left alone.
func (p *Processor) refreshSnapshot(sessionID string, ticketID int64, field, value string) {
	_, err := p.sessions.UpdateExisting(sessionID, func(s *extractor.State) error {
		tk := s.CurrentTicket
		if tk == nil || tk.ID != ticketID {
			return nil
		}
		switch field {
		case store.FieldName:
			tk.Name = value
		case store.FieldEmail:
			tk.Email = value
		}
		return nil
	})
	if err != nil && !errors.Is(err, session.ErrUnknownSession) {
		p.logger.Warn("failed to refresh ticket snapshot", "session_id", sessionID, "ticket_id", ticketID, "error", err)
	}
}

func (p *Processor) publish(subject string, data any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, data); err != nil {
		p.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}

// notify runs fn in the background under its own timeout.
func (p *Processor) notify(fn func(ctx context.Context) error) {
	if p.notifier == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.logger.Error("notification failed", "error", err)
		}
	}()
}

// Wait blocks until background notifications have finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}
