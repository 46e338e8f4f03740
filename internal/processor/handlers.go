package processor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MikeSquared-Agency/intake/internal/hermes"
	"github.com/MikeSquared-Agency/intake/internal/intake"
)

// HandleSessionStarted is the NATS handler for intake.session.started.
func (p *Processor) HandleSessionStarted(subject string, data []byte) {
	var evt hermes.SessionEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.SessionID == "" {
		p.logger.Error("invalid session event", "subject", subject, "error", err)
		return
	}
	if err := p.StartSession(evt.SessionID); err != nil {
		p.logger.Error("failed to start session", "session_id", evt.SessionID, "error", err)
	}
}

// HandleSessionEnded is the NATS handler for intake.session.ended.
func (p *Processor) HandleSessionEnded(subject string, data []byte) {
	var evt hermes.SessionEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.SessionID == "" {
		p.logger.Error("invalid session event", "subject", subject, "error", err)
		return
	}
	if err := p.EndSession(evt.SessionID); err != nil {
		p.logger.Error("failed to end session", "session_id", evt.SessionID, "error", err)
	}
}

// HandleTranscriptTurn is the NATS handler for intake.transcript.turn. The
// reply is published on intake.assistant.reply.
func (p *Processor) HandleTranscriptTurn(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.TurnEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.SessionID == "" {
		p.logger.Error("invalid turn event", "subject", subject, "error", err)
		return
	}

	if _, err := p.Respond(ctx, evt.SessionID, evt.Text); err != nil {
		p.logger.Error("turn failed", "session_id", evt.SessionID, "error", err)
	}
}

// HandleToolMissingFields serves intake.tool.missing_fields.
func (p *Processor) HandleToolMissingFields(subject string, data []byte) any {
	req, ok := p.decodeTool(subject, data)
	if !ok {
		return hermes.ToolResponse{Result: "Invalid request."}
	}
	missing, err := p.MissingFields(req.SessionID)
	if err != nil {
		p.logger.Error("missing fields failed", "session_id", req.SessionID, "error", err)
		return hermes.ToolResponse{Result: "Sorry, I couldn't check the conversation."}
	}
	if len(missing) == 0 {
		return hermes.ToolResponse{Result: "All required information has been collected.", Missing: missing}
	}
	return hermes.ToolResponse{Result: "Still missing: " + strings.Join(missing, ", ") + ".", Missing: missing}
}

// HandleToolCreateTicket serves intake.tool.create_ticket.
func (p *Processor) HandleToolCreateTicket(subject string, data []byte) any {
	req, ok := p.decodeTool(subject, data)
	if !ok {
		return hermes.ToolResponse{Result: "Invalid request."}
	}
	c := intake.Candidate{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Issue:   req.Issue,
		Price:   req.Price,
	}
	return hermes.ToolResponse{Result: p.CreateTicketIfValid(context.Background(), req.SessionID, c)}
}

// HandleToolUpdateName serves intake.tool.update_name.
func (p *Processor) HandleToolUpdateName(subject string, data []byte) any {
	req, ok := p.decodeTool(subject, data)
	if !ok {
		return hermes.ToolResponse{Result: "Invalid request."}
	}
	return hermes.ToolResponse{Result: p.UpdateName(context.Background(), req.SessionID, req.TicketID, req.Value)}
}

// HandleToolUpdateEmail serves intake.tool.update_email.
func (p *Processor) HandleToolUpdateEmail(subject string, data []byte) any {
	req, ok := p.decodeTool(subject, data)
	if !ok {
		return hermes.ToolResponse{Result: "Invalid request."}
	}
	return hermes.ToolResponse{Result: p.UpdateEmail(context.Background(), req.SessionID, req.TicketID, req.Value)}
}

func (p *Processor) decodeTool(subject string, data []byte) (hermes.ToolRequest, bool) {
	var req hermes.ToolRequest
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("invalid tool request", "subject", subject, "error", err)
		return req, false
	}
	return req, true
}
