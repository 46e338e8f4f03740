package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/intake/internal/dialogue"
	"github.com/MikeSquared-Agency/intake/internal/extractor"
	"github.com/MikeSquared-Agency/intake/internal/hermes"
	"github.com/MikeSquared-Agency/intake/internal/intake"
	"github.com/MikeSquared-Agency/intake/internal/session"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func (f *fakePublisher) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		out = append(out, m.subject)
	}
	return out
}

type fakeNotifier struct {
	mu      sync.Mutex
	tickets []int64
	updates []string
}

func (f *fakeNotifier) PostTicket(_ context.Context, t *intake.Ticket) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, t.ID)
	return "1.0", nil
}

func (f *fakeNotifier) PostUpdate(_ context.Context, id int64, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, field+"="+value)
	return nil
}

// failingStore fails every call, standing in for an unreachable database.
type failingStore struct{}

func (failingStore) CreateTicket(context.Context, *intake.Ticket) (int64, error) {
	return 0, errors.New("database is locked")
}
func (failingStore) UpdateField(context.Context, int64, string, string) (bool, error) {
	return false, errors.New("database is locked")
}
func (failingStore) GetTicket(context.Context, int64) (*intake.Ticket, error) {
	return nil, errors.New("database is locked")
}
func (failingStore) ListTickets(context.Context) ([]*intake.Ticket, error) {
	return nil, errors.New("database is locked")
}
func (failingStore) Close() {}

type harness struct {
	proc     *Processor
	store    *store.SQLiteStore
	pub      *fakePublisher
	notifier *fakeNotifier
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "tickets.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(st.Close)

	h := &harness{store: st, pub: &fakePublisher{}, notifier: &fakeNotifier{}}
	h.proc = New(Deps{
		Sessions:  newSessions(t),
		Store:     st,
		Responder: dialogue.Scripted{},
		Publisher: h.pub,
		Notifier:  h.notifier,
	}, discardLogger())
	return h
}

func validCandidate() intake.Candidate {
	return intake.Candidate{
		Name:    "Jane Doe",
		Email:   "jane@x.com",
		Phone:   "555-123-4567",
		Address: "12 Main St",
		Issue:   "Wi-Fi not working",
		Price:   20,
	}
}

func TestHandleTurn_FullConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	turns := []struct {
		text      string
		wantStage extractor.Stage
		missing   int
	}{
		{"hello there", extractor.StageCollectingDetails, 6},
		{"my name is jane doe and my email is jane@x.com", extractor.StageCollectingDetails, 4},
		{"my phone number is 555-123-4567 and I live at 12 Main Street", extractor.StageUnderstandingIssue, 2},
		{"my wifi keeps dropping", extractor.StageConfirming, 0},
	}
	for _, tc := range turns {
		res, err := h.proc.HandleTurn(ctx, "call-1", tc.text)
		if err != nil {
			t.Fatalf("turn %q: %v", tc.text, err)
		}
		if res.Stage != tc.wantStage {
			t.Errorf("turn %q: expected stage %s, got %s", tc.text, tc.wantStage, res.Stage)
		}
		if len(res.Missing) != tc.missing {
			t.Errorf("turn %q: expected %d missing, got %v", tc.text, tc.missing, res.Missing)
		}
		if res.Reply == "" {
			t.Errorf("turn %q: expected a reply", tc.text)
		}
	}

	state, err := h.proc.Session("call-1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	c := intake.CandidateFromState(state)
	if c != (intake.Candidate{Name: "Jane Doe", Email: "jane@x.com", Phone: "555-123-4567", Address: "12 Main Street", Issue: "Wi-Fi not working", Price: 20}) {
		t.Errorf("unexpected collected fields %+v", c)
	}
}

func TestHandleTurn_SessionsIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.proc.HandleTurn(ctx, "a", "my name is jane doe")
	h.proc.HandleTurn(ctx, "b", "my printer is broken")

	a, _ := h.proc.MissingFields("a")
	b, _ := h.proc.MissingFields("b")
	if len(a) != 5 || a[0] != intake.FieldEmail {
		t.Errorf("expected session a to lack only email onwards, got %v", a)
	}
	if len(b) != 4 || b[0] != intake.FieldName {
		t.Errorf("expected session b to lack contact details, got %v", b)
	}
}

func TestHandleTurn_RecordsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.proc.HandleTurn(ctx, "call-1", "hello")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}

	state, _ := h.proc.Session("call-1")
	if len(state.History) != 2 {
		t.Fatalf("expected caller and assistant lines, got %+v", state.History)
	}
	if state.History[0] != (extractor.Line{Role: extractor.RoleUser, Text: "hello"}) {
		t.Errorf("unexpected first line %+v", state.History[0])
	}
	if state.History[1].Role != extractor.RoleAssistant || state.History[1].Text != res.Reply {
		t.Errorf("expected reply recorded, got %+v", state.History[1])
	}
}

func TestMissingFields_UnknownSession(t *testing.T) {
	h := newHarness(t)
	got, err := h.proc.MissingFields("never-seen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 6 {
		t.Errorf("expected all six fields missing, got %v", got)
	}
}

func TestCreateTicketIfValid_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.proc.StartSession("call-1")

	msg := h.proc.CreateTicketIfValid(ctx, "call-1", validCandidate())
	h.proc.Wait()

	if msg != "Ticket created successfully with ID: 1. Confirmation number is 1." {
		t.Errorf("unexpected message %q", msg)
	}

	tk, err := h.store.GetTicket(ctx, 1)
	if err != nil {
		t.Fatalf("expected ticket to be stored: %v", err)
	}
	if tk.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}

	state, _ := h.proc.Session("call-1")
	if state.Stage != extractor.StageCompleted {
		t.Errorf("expected completed stage, got %s", state.Stage)
	}
	if state.CurrentTicket == nil || state.CurrentTicket.ID != 1 {
		t.Errorf("expected current ticket 1, got %+v", state.CurrentTicket)
	}

	if subj := h.pub.subjects(); len(subj) != 1 || subj[0] != hermes.SubjectTicketCreated {
		t.Errorf("expected one ticket.created event, got %v", subj)
	}
	if len(h.notifier.tickets) != 1 || h.notifier.tickets[0] != 1 {
		t.Errorf("expected slack notice for ticket 1, got %v", h.notifier.tickets)
	}
}

func TestCreateTicketIfValid_IDsIncrease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.proc.CreateTicketIfValid(ctx, "a", validCandidate())
	second := h.proc.CreateTicketIfValid(ctx, "b", validCandidate())
	h.proc.Wait()

	if !strings.Contains(first, "ID: 1.") || !strings.Contains(second, "ID: 2.") {
		t.Errorf("expected ids 1 then 2, got %q / %q", first, second)
	}
}

func TestCreateTicketIfValid_UnknownSessionNotRecreated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.proc.StartSession("call-1")
	h.proc.EndSession("call-1")

	msg := h.proc.CreateTicketIfValid(ctx, "call-1", validCandidate())
	h.proc.Wait()

	if !strings.HasPrefix(msg, "Ticket created successfully with ID: 1.") {
		t.Fatalf("expected ticket created, got %q", msg)
	}
	if _, err := h.proc.Session("call-1"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected ended session to stay ended, got %v", err)
	}
	if n := h.proc.ActiveSessions(); n != 0 {
		t.Errorf("expected no active sessions, got %d", n)
	}

	if msg := h.proc.UpdateName(ctx, "ghost", 1, "Janet Doe"); msg != "Ticket 1 name updated to: Janet Doe" {
		t.Errorf("unexpected update message %q", msg)
	}
	if _, err := h.proc.Session("ghost"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected update not to start a session, got %v", err)
	}
}

func TestCreateTicketIfValid_Rejection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.proc.HandleTurn(ctx, "call-1", "my name is jane doe")

	c := intake.Candidate{Name: "unknown", Email: "a@b.com", Phone: "555-1234567", Address: "X", Issue: "Y", Price: 20}
	msg := h.proc.CreateTicketIfValid(ctx, "call-1", c)

	want := "Cannot create ticket. Missing required information: Customer name is required. Please collect all customer details first."
	if msg != want {
		t.Errorf("expected %q, got %q", want, msg)
	}

	list, _ := h.store.ListTickets(ctx)
	if len(list) != 0 {
		t.Errorf("expected nothing persisted, got %d tickets", len(list))
	}
	state, _ := h.proc.Session("call-1")
	if state.Stage == extractor.StageCompleted || state.CurrentTicket != nil {
		t.Errorf("expected session unchanged, got %+v", state)
	}
	if len(h.pub.subjects()) != 0 {
		t.Errorf("expected no events, got %v", h.pub.subjects())
	}
}

func TestCreateTicketIfValid_ListsEveryReason(t *testing.T) {
	h := newHarness(t)
	c := validCandidate()
	c.Email = "n/a"
	c.Price = 0

	msg := h.proc.CreateTicketIfValid(context.Background(), "call-1", c)
	if !strings.Contains(msg, "Valid email address is required, Valid service price is required.") {
		t.Errorf("expected both reasons, got %q", msg)
	}
}

func TestCreateTicketIfValid_SinkFailure(t *testing.T) {
	p := New(Deps{Sessions: newSessions(t), Store: failingStore{}}, discardLogger())

	msg := p.CreateTicketIfValid(context.Background(), "call-1", validCandidate())
	if msg != "Sorry, I encountered an error creating the ticket. Please try again." {
		t.Errorf("unexpected message %q", msg)
	}
	if strings.Contains(msg, "locked") {
		t.Error("expected internal error to stay out of the message")
	}
}

func TestUpdateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.proc.StartSession("call-1")
	h.proc.CreateTicketIfValid(ctx, "call-1", validCandidate())

	msg := h.proc.UpdateEmail(ctx, "call-1", 1, "jane@new.com")
	h.proc.Wait()

	if msg != "Ticket 1 email updated to: jane@new.com" {
		t.Errorf("unexpected message %q", msg)
	}
	tk, _ := h.store.GetTicket(ctx, 1)
	if tk.Email != "jane@new.com" {
		t.Errorf("expected stored email updated, got %q", tk.Email)
	}
	state, _ := h.proc.Session("call-1")
	if state.CurrentTicket.Email != "jane@new.com" {
		t.Errorf("expected session snapshot refreshed, got %q", state.CurrentTicket.Email)
	}
	subj := h.pub.subjects()
	if subj[len(subj)-1] != hermes.SubjectTicketUpdated {
		t.Errorf("expected ticket.updated event, got %v", subj)
	}
	if len(h.notifier.updates) != 1 || h.notifier.updates[0] != "email=jane@new.com" {
		t.Errorf("expected slack update notice, got %v", h.notifier.updates)
	}
}

func TestUpdateName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.proc.CreateTicketIfValid(ctx, "call-1", validCandidate())

	msg := h.proc.UpdateName(ctx, "call-1", 1, "Janet Doe")
	if msg != "Ticket 1 name updated to: Janet Doe" {
		t.Errorf("unexpected message %q", msg)
	}
	tk, _ := h.store.GetTicket(ctx, 1)
	if tk.Name != "Janet Doe" || tk.Email != "jane@x.com" {
		t.Errorf("expected only name changed, got %+v", tk)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	h := newHarness(t)
	msg := h.proc.UpdateName(context.Background(), "", 999, "Bob")
	if msg != "Sorry, I couldn't find ticket 999." {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestUpdate_RevalidatesField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.proc.CreateTicketIfValid(ctx, "call-1", validCandidate())

	if msg := h.proc.UpdateEmail(ctx, "call-1", 1, "not-an-email"); !strings.Contains(msg, intake.ReasonEmail) {
		t.Errorf("expected email rejection, got %q", msg)
	}
	if msg := h.proc.UpdateName(ctx, "call-1", 1, "Unknown"); !strings.Contains(msg, intake.ReasonName) {
		t.Errorf("expected name rejection, got %q", msg)
	}
	tk, _ := h.store.GetTicket(ctx, 1)
	if tk.Email != "jane@x.com" || tk.Name != "Jane Doe" {
		t.Errorf("expected ticket untouched, got %+v", tk)
	}
}

func TestHandleTranscriptTurn_PublishesReply(t *testing.T) {
	h := newHarness(t)

	data, _ := json.Marshal(hermes.TurnEvent{SessionID: "call-9", Text: "hi, this is Jane Doe"})
	h.proc.HandleTranscriptTurn(hermes.SubjectTranscriptTurn, data)

	h.pub.mu.Lock()
	defer h.pub.mu.Unlock()
	if len(h.pub.msgs) != 1 || h.pub.msgs[0].subject != hermes.SubjectAssistantReply {
		t.Fatalf("expected one assistant reply, got %+v", h.pub.msgs)
	}
	ev := h.pub.msgs[0].data.(hermes.ReplyEvent)
	if ev.SessionID != "call-9" || ev.Text == "" {
		t.Errorf("unexpected reply event %+v", ev)
	}
	if ev.Missing[0] != intake.FieldEmail {
		t.Errorf("expected name collected, got missing %v", ev.Missing)
	}
}

func TestHandleSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	data, _ := json.Marshal(hermes.SessionEvent{SessionID: "call-3"})
	h.proc.HandleSessionStarted(hermes.SubjectSessionStarted, data)
	if _, err := h.proc.Session("call-3"); err != nil {
		t.Fatalf("expected session to exist: %v", err)
	}

	h.proc.HandleSessionEnded(hermes.SubjectSessionEnded, data)
	if _, err := h.proc.Session("call-3"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("expected session gone, got %v", err)
	}

	// Malformed payloads are logged and dropped.
	h.proc.HandleSessionStarted(hermes.SubjectSessionStarted, []byte("{"))
}

func TestToolHandlers(t *testing.T) {
	h := newHarness(t)

	req := hermes.ToolRequest{
		SessionID: "call-4",
		Name:      "Jane Doe",
		Email:     "jane@x.com",
		Phone:     "555-123-4567",
		Address:   "12 Main St",
		Issue:     "Printer problems - power plug change",
		Price:     10,
	}
	data, _ := json.Marshal(req)
	resp := h.proc.HandleToolCreateTicket(hermes.SubjectToolCreateTicket, data).(hermes.ToolResponse)
	if !strings.HasPrefix(resp.Result, "Ticket created successfully with ID: 1.") {
		t.Errorf("unexpected create result %q", resp.Result)
	}

	data, _ = json.Marshal(hermes.ToolRequest{SessionID: "call-4", TicketID: 1, Value: "Janet Doe"})
	resp = h.proc.HandleToolUpdateName(hermes.SubjectToolUpdateName, data).(hermes.ToolResponse)
	if resp.Result != "Ticket 1 name updated to: Janet Doe" {
		t.Errorf("unexpected update result %q", resp.Result)
	}

	data, _ = json.Marshal(hermes.ToolRequest{SessionID: "call-4", TicketID: 2, Value: "x@y.com"})
	resp = h.proc.HandleToolUpdateEmail(hermes.SubjectToolUpdateEmail, data).(hermes.ToolResponse)
	if resp.Result != "Sorry, I couldn't find ticket 2." {
		t.Errorf("unexpected update result %q", resp.Result)
	}

	data, _ = json.Marshal(hermes.ToolRequest{SessionID: "call-5"})
	resp = h.proc.HandleToolMissingFields(hermes.SubjectToolMissingFields, data).(hermes.ToolResponse)
	if len(resp.Missing) != 6 || !strings.HasPrefix(resp.Result, "Still missing: customer name") {
		t.Errorf("unexpected missing result %+v", resp)
	}

	resp = h.proc.HandleToolCreateTicket(hermes.SubjectToolCreateTicket, []byte("not json")).(hermes.ToolResponse)
	if resp.Result != "Invalid request." {
		t.Errorf("expected invalid request, got %q", resp.Result)
	}
	h.proc.Wait()
}
