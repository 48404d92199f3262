package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quailyquaily/landreach/dispatch"
	"github.com/quailyquaily/landreach/integrations"
	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/llm"
	"github.com/quailyquaily/landreach/workflow"
)

type fakeMailer struct{ sent int }

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) (integrations.SendReceipt, error) {
	f.sent++
	return integrations.SendReceipt{ID: fmt.Sprintf("msg_%d", f.sent), Status: "sent"}, nil
}

type fakeScheduler struct{}

func (fakeScheduler) CreateLink(ctx context.Context, name, email string) (integrations.Link, error) {
	return integrations.Link{URL: "https://cal.example/" + email}, nil
}

type fakeNotifier struct{ posted int }

func (f *fakeNotifier) Post(ctx context.Context, message, channel string) error {
	f.posted++
	return nil
}

type scriptedLLM struct {
	text string
	err  error
}

func (s *scriptedLLM) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.text}, nil
}

type fixture struct {
	server *httptest.Server
	store  *ledger.MemoryStore
	mailer *fakeMailer
}

func newFixture(t *testing.T, model llm.Client) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := ledger.NewMemoryStore()
	mailer := &fakeMailer{}
	deps := workflow.Deps{
		Mailer:    mailer,
		Scheduler: fakeScheduler{},
		Notifier:  &fakeNotifier{},
		Logger:    logger,
	}
	sessions := workflow.NewManager(deps)
	d := dispatch.New(model, "gpt-4o-mini", store, logger)
	srv := NewServer(store, sessions, d, "Squamish, BC", logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, store: store, mailer: mailer}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return res, decodeMap(t, res)
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return res, decodeMap(t, res)
}

func decodeMap(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func (f *fixture) addContact(t *testing.T, sessionID, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"session_id":%q,"name":"Jane","email":%q,"role":"CFO","context":"for investment strategy"}`, sessionID, email)
	res, m := f.post(t, "/workflow/add-contact", body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add contact: status %d, body %v", res.StatusCode, m)
	}
	return m["session_id"].(string)
}

func TestProposeAndApproveSendEmails(t *testing.T) {
	f := newFixture(t, nil)
	sid := f.addContact(t, "", "jane@x.com")

	res, m := f.post(t, "/execute-workflow/send-emails", fmt.Sprintf(`{"session_id":%q,"subject":"Hello"}`, sid))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("propose: status %d, body %v", res.StatusCode, m)
	}
	if m["status"] != "pending_approval" {
		t.Fatalf("status = %v", m["status"])
	}
	actionID := m["action_id"].(string)
	if f.mailer.sent != 0 {
		t.Fatal("proposal must not send email")
	}

	res, m = f.get(t, "/confirmations/pending")
	if res.StatusCode != http.StatusOK || m["pending_count"].(float64) != 1 {
		t.Fatalf("pending view: status %d, body %v", res.StatusCode, m)
	}

	res, m = f.post(t, "/confirmations/"+actionID+"/approve", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d, body %v", res.StatusCode, m)
	}
	if m["status"] != "approved" {
		t.Fatalf("status = %v", m["status"])
	}
	result := m["result"].(map[string]any)
	if result["sent_count"].(float64) != 1 {
		t.Fatalf("result = %v", result)
	}
	if f.mailer.sent != 1 {
		t.Fatalf("mailer sent %d", f.mailer.sent)
	}

	req, err := f.store.Get(context.Background(), actionID)
	if err != nil || req.Status != ledger.StatusExecuted {
		t.Fatalf("final status = %v, err %v", req.Status, err)
	}
}

func TestApproveTwiceIsInvalidState(t *testing.T) {
	f := newFixture(t, nil)
	sid := f.addContact(t, "", "jane@x.com")
	_, m := f.post(t, "/execute-workflow/send-emails", fmt.Sprintf(`{"session_id":%q,"subject":"x"}`, sid))
	actionID := m["action_id"].(string)

	if res, _ := f.post(t, "/confirmations/"+actionID+"/approve", ""); res.StatusCode != http.StatusOK {
		t.Fatalf("first approve: %d", res.StatusCode)
	}
	res, m := f.post(t, "/confirmations/"+actionID+"/approve", "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("second approve: status %d, body %v", res.StatusCode, m)
	}
	if !strings.Contains(m["error"].(string), "not pending") {
		t.Fatalf("error body = %v", m["error"])
	}
}

func TestRejectThenApprove(t *testing.T) {
	f := newFixture(t, nil)
	sid := f.addContact(t, "", "jane@x.com")
	_, m := f.post(t, "/execute-workflow/send-emails", fmt.Sprintf(`{"session_id":%q,"subject":"x"}`, sid))
	actionID := m["action_id"].(string)

	res, m := f.post(t, "/confirmations/"+actionID+"/reject?reason=too+broad", "")
	if res.StatusCode != http.StatusOK || m["status"] != "rejected" || m["reason"] != "too broad" {
		t.Fatalf("reject: status %d, body %v", res.StatusCode, m)
	}

	res, _ = f.post(t, "/confirmations/"+actionID+"/approve", "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("approve after reject: %d", res.StatusCode)
	}
	if f.mailer.sent != 0 {
		t.Fatal("rejected action was executed")
	}
}

func TestApproveUnknownID(t *testing.T) {
	f := newFixture(t, nil)
	res, _ := f.post(t, "/confirmations/send_email_deadbeef/approve", "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestApproveFullOutreachWithoutScheduler(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	store := ledger.NewMemoryStore()
	mailer := &fakeMailer{}
	sessions := workflow.NewManager(workflow.Deps{Mailer: mailer, Notifier: &fakeNotifier{}, Logger: logger})
	srv := NewServer(store, sessions, dispatch.New(nil, "", store, logger), "Squamish, BC", logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	f := &fixture{server: ts, store: store, mailer: mailer}

	sid := f.addContact(t, "", "jane@x.com")
	_, m := f.post(t, "/execute-workflow/full-outreach", fmt.Sprintf(`{"session_id":%q,"subject":"x"}`, sid))
	actionID := m["action_id"].(string)

	res, m := f.post(t, "/confirmations/"+actionID+"/approve", "")
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body %v", res.StatusCode, m)
	}
	if !strings.Contains(m["error"].(string), "scheduling") {
		t.Fatalf("error does not name integration: %v", m["error"])
	}
	if mailer.sent != 0 {
		t.Fatal("emails sent despite missing scheduler")
	}

	req, err := f.store.Get(context.Background(), actionID)
	if err != nil || req.Status != ledger.StatusFailed {
		t.Fatalf("final status = %v, err %v", req.Status, err)
	}
}

func TestAIDrivenDispatch(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: SendEmails\nREASONING: user asked\nPARAMETERS: {\"subject\":\"Hello\"}"}
	f := newFixture(t, model)
	sid := f.addContact(t, "", "jane@x.com")

	res, m := f.post(t, "/execute-workflow/ai-driven", fmt.Sprintf(`{"session_id":%q,"message":"email everyone"}`, sid))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d, body %v", res.StatusCode, m)
	}
	if m["status"] != "pending_approval" || m["tool"] != "SendEmails" {
		t.Fatalf("body = %v", m)
	}
	if f.mailer.sent != 0 {
		t.Fatal("ai-driven dispatch must not execute")
	}
}

func TestAIDrivenMalformedOutput(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: SendEmails\nREASONING: no parameters line"}
	f := newFixture(t, model)
	sid := f.addContact(t, "", "jane@x.com")

	res, m := f.post(t, "/execute-workflow/ai-driven", fmt.Sprintf(`{"session_id":%q,"message":"email everyone"}`, sid))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, body %v", res.StatusCode, m)
	}
	pending, err := f.store.ListPending(context.Background())
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending = %v, err %v", pending, err)
	}
}

func TestAIDrivenLLMDown(t *testing.T) {
	model := &scriptedLLM{err: fmt.Errorf("connection refused")}
	f := newFixture(t, model)
	sid := f.addContact(t, "", "jane@x.com")

	res, _ := f.post(t, "/execute-workflow/ai-driven", fmt.Sprintf(`{"session_id":%q,"message":"email everyone"}`, sid))
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestContactsAndHistoryViews(t *testing.T) {
	f := newFixture(t, nil)
	sid := f.addContact(t, "", "jane@x.com")

	res, m := f.get(t, "/workflow/contacts?session_id="+sid)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("contacts: status %d", res.StatusCode)
	}
	contacts := m["contacts"].([]any)
	if len(contacts) != 1 {
		t.Fatalf("contacts = %v", contacts)
	}

	res, m = f.get(t, "/workflow/history?session_id="+sid)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", res.StatusCode)
	}
	history := m["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("history = %v", history)
	}

	res, _ = f.get(t, "/workflow/contacts?session_id=thread-missing")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session: status %d", res.StatusCode)
	}
}

func TestThreadLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	res, m := f.post(t, "/threads", `{"location":"Banff"}`)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", res.StatusCode)
	}
	id := m["session_id"].(string)

	res, m = f.get(t, "/threads")
	if res.StatusCode != http.StatusOK || len(m["threads"].([]any)) != 1 {
		t.Fatalf("list: status %d, body %v", res.StatusCode, m)
	}

	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/threads/"+id, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	dres, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if dres.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", dres.StatusCode)
	}
	dres.Body.Close()

	dres, err = http.DefaultClient.Do(req.Clone(req.Context()))
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if dres.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status %d", dres.StatusCode)
	}
	dres.Body.Close()
}
