package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/MikeSquared-Agency/intake/internal/intake"
)

const (
	defaultPostMessageURL = "https://slack.com/api/chat.postMessage"
	maxRetryTime          = 15 * time.Second
)

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
	maxWait time.Duration
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
		maxWait: maxRetryTime,
	}
}

// PostTicket announces a new ticket to the help-desk channel and returns the
// message timestamp.
func (p *Poster) PostTicket(ctx context.Context, t *intake.Ticket) (string, error) {
	text := formatTicketMessage(t)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("Created %s", t.CreatedAt.Format(time.RFC1123)),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted ticket to slack", "ts", ts, "ticket_id", t.ID)
	return ts, nil
}

// PostUpdate announces a field correction on an existing ticket.
func (p *Poster) PostUpdate(ctx context.Context, ticketID int64, field, value string) error {
	_, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    fmt.Sprintf("Ticket *#%d* %s updated to: %s", ticketID, field, value),
	})
	return err
}

// post sends a chat.postMessage call. Transport errors and 5xx responses are
// retried; a Slack ok=false is final.
func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	var ts string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+p.token)

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("slack server error %d", resp.StatusCode)
		}

		var slackResp struct {
			OK    bool   `json:"ok"`
			TS    string `json:"ts"`
			Error string `json:"error,omitempty"`
		}
		if err := json.Unmarshal(respBody, &slackResp); err != nil {
			return backoff.Permanent(fmt.Errorf("parse slack response: %w", err))
		}
		if !slackResp.OK {
			return backoff.Permanent(fmt.Errorf("slack error: %s", slackResp.Error))
		}
		ts = slackResp.TS
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = p.maxWait
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return ts, nil
}

func formatTicketMessage(t *intake.Ticket) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*New ticket #%d*\n", t.ID)
	fmt.Fprintf(&sb, "*Issue:* %s ($%.2f)\n\n", t.Issue, t.Price)
	fmt.Fprintf(&sb, "*Customer:* %s\n", t.Name)
	fmt.Fprintf(&sb, "*Email:* %s\n", t.Email)
	fmt.Fprintf(&sb, "*Phone:* %s\n", t.Phone)
	fmt.Fprintf(&sb, "*Address:* %s", t.Address)

	return sb.String()
}
