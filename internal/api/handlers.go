package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/intake/internal/intake"
	"github.com/MikeSquared-Agency/intake/internal/report"
	"github.com/MikeSquared-Agency/intake/internal/session"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

type startSessionRequest struct {
	SessionID string `json:"session_id"`
}

type turnRequest struct {
	Text string `json:"text"`
}

type updateRequest struct {
	Value string `json:"value"`
}

type resultResponse struct {
	Result string `json:"result"`
}

// startSession handles POST /api/v1/sessions. The body is optional; without
// a session_id a new one is generated.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if err := s.proc.StartSession(req.SessionID); err != nil {
		s.logger.Error("start session failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": req.SessionID})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	state, err := s.proc.Session(id)
	if errors.Is(err, session.ErrUnknownSession) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("get session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.proc.EndSession(id); err != nil {
		s.logger.Error("end session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postTurn handles POST /api/v1/sessions/{sessionID}/turns.
func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.proc.HandleTurn(r.Context(), id, req.Text)
	if err != nil {
		s.logger.Error("turn failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process turn")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) missingFields(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	missing, err := s.proc.MissingFields(id)
	if err != nil {
		s.logger.Error("missing fields failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"missing":  missing,
		"complete": len(missing) == 0,
	})
}

// createTicket handles POST /api/v1/sessions/{sessionID}/tickets. Rejections
// are returned as a 200 result message.
func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var c intake.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: s.proc.CreateTicketIfValid(r.Context(), id, c)})
}

func (s *Server) updateName(w http.ResponseWriter, r *http.Request) {
	sessionID, ticketID, value, ok := s.decodeUpdate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: s.proc.UpdateName(r.Context(), sessionID, ticketID, value)})
}

func (s *Server) updateEmail(w http.ResponseWriter, r *http.Request) {
	sessionID, ticketID, value, ok := s.decodeUpdate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: s.proc.UpdateEmail(r.Context(), sessionID, ticketID, value)})
}

func (s *Server) decodeUpdate(w http.ResponseWriter, r *http.Request) (string, int64, string, bool) {
	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return "", 0, "", false
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return "", 0, "", false
	}
	return chi.URLParam(r, "sessionID"), ticketID, req.Value, true
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.store.ListTickets(r.Context())
	if err != nil {
		s.logger.Error("list tickets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []*intake.Ticket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	t, err := s.store.GetTicket(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		s.logger.Error("get ticket failed", "ticket_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) exportTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.store.ListTickets(r.Context())
	if err != nil {
		s.logger.Error("export tickets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	var buf bytes.Buffer
	if err := report.WriteTickets(&buf, tickets); err != nil {
		s.logger.Error("write export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="tickets.xlsx"`)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
