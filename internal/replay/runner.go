package replay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/intake/internal/intake"
	"github.com/MikeSquared-Agency/intake/internal/processor"
)

// Config holds the replay command configuration.
type Config struct {
	Files     []string
	StatePath string
	// CreateTickets submits a ticket for every call that ends complete.
	CreateTickets bool
}

// Runner feeds recorded calls through the processor as if they were live.
// Replies are published the same way live turns publish them.
type Runner struct {
	cfg    Config
	proc   *processor.Processor
	logger *slog.Logger
}

func NewRunner(cfg Config, proc *processor.Processor, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, proc: proc, logger: logger}
}

// Run replays every file not already recorded in the state file and returns
// one outcome per call.
func (r *Runner) Run(ctx context.Context) ([]Outcome, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var outcomes []Outcome
	for _, path := range r.cfg.Files {
		if ctx.Err() != nil {
			break
		}
		if state.IsProcessed(path) {
			r.logger.Debug("skipping processed file", "path", path)
			continue
		}

		calls, err := ParseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse call log", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			continue
		}

		for _, call := range calls {
			out, err := r.replayCall(ctx, call)
			if err != nil {
				r.logger.Warn("replay failed", "session_id", call.SessionID, "error", err)
				state.AddError(fmt.Sprintf("replay %s: %v", call.SessionID, err))
				continue
			}
			state.CallsReplayed++
			if strings.HasPrefix(out.Ticket, "Ticket created") {
				state.TicketsCreated++
			}
			outcomes = append(outcomes, out)
		}

		state.MarkProcessed(path)
		if err := state.Save(); err != nil {
			return outcomes, fmt.Errorf("save state: %w", err)
		}
		r.logger.Info("file replayed", "path", path, "calls", len(calls))
	}

	return outcomes, nil
}

func (r *Runner) replayCall(ctx context.Context, call Call) (Outcome, error) {
	if err := r.proc.StartSession(call.SessionID); err != nil {
		return Outcome{}, err
	}
	defer r.proc.EndSession(call.SessionID)

	out := Outcome{SessionID: call.SessionID}
	for _, text := range call.UserTurns() {
		res, err := r.proc.Respond(ctx, call.SessionID, text)
		if err != nil {
			return Outcome{}, err
		}
		out.Turns++
		if res.Reply != "" {
			out.Replies = append(out.Replies, res.Reply)
		}
		out.Stage = string(res.Stage)
		out.Missing = res.Missing
	}
	if out.Turns == 0 {
		missing, err := r.proc.MissingFields(call.SessionID)
		if err != nil {
			return Outcome{}, err
		}
		out.Missing = missing
	}

	if r.cfg.CreateTickets && len(out.Missing) == 0 {
		state, err := r.proc.Session(call.SessionID)
		if err != nil {
			return Outcome{}, err
		}
		out.Ticket = r.proc.CreateTicketIfValid(ctx, call.SessionID, intake.CandidateFromState(state))
		if after, err := r.proc.Session(call.SessionID); err == nil {
			out.Stage = string(after.Stage)
		}
	}
	return out, nil
}
