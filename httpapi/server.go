// Package httpapi exposes the confirmation ledger and workflow agent over
// a JSON HTTP surface. Every side-effecting workflow route only records a
// pending proposal; execution happens on approval.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quailyquaily/landreach/dispatch"
	"github.com/quailyquaily/landreach/integrations"
	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/workflow"
)

type Server struct {
	Ledger     ledger.Store
	Sessions   *workflow.Manager
	Dispatcher *dispatch.Dispatcher
	Location   string
	Logger     *slog.Logger
}

func NewServer(store ledger.Store, sessions *workflow.Manager, dispatcher *dispatch.Dispatcher, location string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Ledger:     store,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Location:   location,
		Logger:     logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /confirmations/pending", s.handlePending)
	mux.HandleFunc("POST /confirmations/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /confirmations/{id}/reject", s.handleReject)

	mux.HandleFunc("POST /execute-workflow/send-emails", s.handleProposeSendEmails)
	mux.HandleFunc("POST /execute-workflow/schedule-meetings", s.handleProposeScheduleMeetings)
	mux.HandleFunc("POST /execute-workflow/full-outreach", s.handleProposeFullOutreach)
	mux.HandleFunc("POST /execute-workflow/ai-driven", s.handleAIDriven)

	mux.HandleFunc("POST /workflow/add-contact", s.handleAddContact)
	mux.HandleFunc("GET /workflow/contacts", s.handleContacts)
	mux.HandleFunc("GET /workflow/history", s.handleHistory)

	mux.HandleFunc("POST /threads", s.handleCreateThread)
	mux.HandleFunc("GET /threads", s.handleListThreads)
	mux.HandleFunc("DELETE /threads/{id}", s.handleDeleteThread)

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.Logger.Debug("http request", "method", r.Method, "path", r.URL.Path)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

// writeError maps the typed error taxonomy onto HTTP statuses. Unrecognized
// errors are a 500 with the message passed through.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var malformed *dispatch.MalformedParametersError
	switch {
	case ledger.IsNotFound(err), errors.Is(err, workflow.ErrSessionNotFound):
		status = http.StatusNotFound
	case ledger.IsInvalidState(err), errors.Is(err, workflow.ErrNoContacts):
		status = http.StatusBadRequest
	case errors.As(err, &malformed):
		status = http.StatusUnprocessableEntity
		body.Raw = malformed.Raw
	case dispatch.IsUnknownTool(err), dispatch.IsMissingParameter(err):
		status = http.StatusUnprocessableEntity
	case dispatch.IsLLMUnavailable(err):
		status = http.StatusBadGateway
	default:
		if _, ok := integrations.IsNotConfigured(err); ok {
			status = http.StatusServiceUnavailable
		}
	}

	if status >= 500 {
		s.Logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
