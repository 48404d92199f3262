package httpapi

import (
	"net/http"

	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/workflow"
)

type proposeRequest struct {
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
}

type proposeResponse struct {
	Status   string         `json:"status"`
	ActionID string         `json:"action_id"`
	Details  ledger.Details `json:"details"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Ledger.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := s.Ledger.Approve(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, execErr := s.execute(r.Context(), req)
	if _, markErr := s.Ledger.MarkExecuted(r.Context(), id, execErr == nil); markErr != nil {
		s.Logger.Error("mark executed failed", "action_id", id, "err", markErr)
	}
	if execErr != nil {
		s.writeError(w, execErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "approved",
		"action_id": id,
		"result":    result,
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reason := r.URL.Query().Get("reason")
	req, err := s.Ledger.Reject(r.Context(), id, reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "rejected",
		"action_id": req.ID,
		"reason":    req.Reason,
	})
}

func (s *Server) propose(w http.ResponseWriter, r *http.Request, sessionID, description string, details ledger.Details) {
	req, err := s.Ledger.Create(r.Context(), details.DetailKind(), description, sessionID, details)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposeResponse{
		Status:   "pending_approval",
		ActionID: req.ID,
		Details:  req.Details,
	})
}

func (s *Server) sessionRecipients(sessionID string) (*workflow.Session, []string) {
	session := s.Sessions.GetOrCreate(sessionID, s.Location)
	var recipients []string
	_ = session.WithAgent(func(a *workflow.Agent) error {
		for _, c := range a.Contacts() {
			recipients = append(recipients, c.Email)
		}
		return nil
	})
	return session, recipients
}

func (s *Server) handleProposeSendEmails(w http.ResponseWriter, r *http.Request) {
	var body proposeRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.Subject == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "subject is required"})
		return
	}
	session, recipients := s.sessionRecipients(body.SessionID)
	details := ledger.SendEmailDetails{Recipients: recipients, Subject: body.Subject, Count: len(recipients)}
	s.propose(w, r, session.ID, "Send personalized emails to all contacts", details)
}

func (s *Server) handleProposeScheduleMeetings(w http.ResponseWriter, r *http.Request) {
	var body proposeRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.EventType == "" {
		body.EventType = "Consultation Meeting"
	}
	session, recipients := s.sessionRecipients(body.SessionID)
	details := ledger.ScheduleMeetingDetails{EventType: body.EventType, Recipients: recipients, Count: len(recipients)}
	s.propose(w, r, session.ID, "Create scheduling links for all contacts", details)
}

func (s *Server) handleProposeFullOutreach(w http.ResponseWriter, r *http.Request) {
	var body proposeRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.Subject == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "subject is required"})
		return
	}
	if body.EventType == "" {
		body.EventType = "Consultation Meeting"
	}
	session, recipients := s.sessionRecipients(body.SessionID)
	details := ledger.FullOutreachDetails{
		Subject:    body.Subject,
		EventType:  body.EventType,
		Recipients: recipients,
		Count:      len(recipients),
	}
	s.propose(w, r, session.ID, "Run full outreach: schedule, email, notify", details)
}

func (s *Server) handleAIDriven(w http.ResponseWriter, r *http.Request) {
	var body proposeRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "message is required"})
		return
	}
	session, recipients := s.sessionRecipients(body.SessionID)
	res, err := s.Dispatcher.Dispatch(r.Context(), session.ID, body.Message, recipients)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type addContactRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Context   string `json:"context"`
}

// Adding a contact has no external side effect, so it runs immediately
// instead of going through the ledger.
func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var body addContactRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.Name == "" || body.Email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "name and email are required"})
		return
	}
	session := s.Sessions.GetOrCreate(body.SessionID, s.Location)
	var contact workflow.Contact
	_ = session.WithAgent(func(a *workflow.Agent) error {
		contact = a.AddContact(body.Name, body.Email, body.Role, body.Context)
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"contact":    contact,
	})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Get(r.URL.Query().Get("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var contacts []workflow.Contact
	_ = session.WithAgent(func(a *workflow.Agent) error {
		contacts = a.Contacts()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"contacts":   contacts,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Get(r.URL.Query().Get("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var history []workflow.HistoryEntry
	_ = session.WithAgent(func(a *workflow.Agent) error {
		history = a.History()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"history":    history,
	})
}

type createThreadRequest struct {
	Location string `json:"location"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var body createThreadRequest
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if body.Location == "" {
		body.Location = s.Location
	}
	session := s.Sessions.Create(body.Location)
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"threads": s.Sessions.List()})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Sessions.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "session_id": id})
}
