package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/llm"
)

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

func newTestDispatcher(model llm.Client) (*Dispatcher, *ledger.MemoryStore) {
	store := ledger.NewMemoryStore()
	d := New(model, "gpt-4o-mini", store, slog.New(slog.DiscardHandler))
	return d, store
}

func pendingCount(t *testing.T, store *ledger.MemoryStore) int {
	t.Helper()
	pending, err := store.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	return len(pending)
}

func TestDispatch_SendEmails(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: SendEmails\nREASONING: x\nPARAMETERS: {\"subject\":\"Hello\"}"}
	d, store := newTestDispatcher(model)

	res, err := d.Dispatch(context.Background(), "thread-1", "email everyone", []string{"a@x.com", "b@x.com"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != "pending_approval" || res.Tool != "SendEmails" {
		t.Fatalf("result = %+v", res)
	}

	req, err := store.Get(context.Background(), res.ActionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != ledger.StatusPending || req.Kind != ledger.KindSendEmail {
		t.Fatalf("request = %+v", req)
	}
	details, ok := req.Details.(ledger.SendEmailDetails)
	if !ok {
		t.Fatalf("details type %T", req.Details)
	}
	if details.Subject != "Hello" || details.Count != 2 {
		t.Fatalf("details = %+v", details)
	}
}

func TestDispatch_MissingParametersLine(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: SendEmails\nREASONING: x"}
	d, store := newTestDispatcher(model)

	_, err := d.Dispatch(context.Background(), "thread-1", "email everyone", nil)
	if !IsMalformedParameters(err) {
		t.Fatalf("expected MalformedParametersError, got %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("pending count = %d, want 0", n)
	}
}

func TestDispatch_ParametersNotObject(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: SendEmails\nREASONING: x\nPARAMETERS: [1,2]"}
	d, store := newTestDispatcher(model)

	_, err := d.Dispatch(context.Background(), "thread-1", "email everyone", nil)
	var malformed *MalformedParametersError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedParametersError, got %v", err)
	}
	if !strings.Contains(malformed.Raw, "[1,2]") {
		t.Fatalf("raw text not surfaced: %q", malformed.Raw)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("pending count = %d, want 0", n)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: DeleteEverything\nREASONING: x\nPARAMETERS: {}"}
	d, store := newTestDispatcher(model)

	_, err := d.Dispatch(context.Background(), "thread-1", "wipe it", nil)
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if unknown.Name != "DeleteEverything" {
		t.Fatalf("tool name = %q", unknown.Name)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("pending count = %d, want 0", n)
	}
}

func TestDispatch_MissingRequiredParameter(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: FullOutreach\nREASONING: x\nPARAMETERS: {\"event_type\":\"Consultation\"}"}
	d, store := newTestDispatcher(model)

	_, err := d.Dispatch(context.Background(), "thread-1", "do everything", []string{"a@x.com"})
	var missing *MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
	if missing.Parameter != "subject" {
		t.Fatalf("parameter = %q", missing.Parameter)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("pending count = %d, want 0", n)
	}
}

func TestDispatch_LLMFailure(t *testing.T) {
	model := &scriptedLLM{err: errors.New("connection refused")}
	d, store := newTestDispatcher(model)

	_, err := d.Dispatch(context.Background(), "thread-1", "email everyone", nil)
	if !IsLLMUnavailable(err) {
		t.Fatalf("expected LLMUnavailableError, got %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("pending count = %d, want 0", n)
	}
}

func TestDispatch_NilModel(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	_, err := d.Dispatch(context.Background(), "thread-1", "email everyone", nil)
	if !IsLLMUnavailable(err) {
		t.Fatalf("expected LLMUnavailableError, got %v", err)
	}
}

func TestDispatch_ScheduleMeetingsDefaultsEventType(t *testing.T) {
	model := &scriptedLLM{text: "TOOL: ScheduleMeetings\nREASONING: x\nPARAMETERS: {}"}
	d, store := newTestDispatcher(model)

	res, err := d.Dispatch(context.Background(), "thread-1", "set up meetings", []string{"a@x.com"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	req, err := store.Get(context.Background(), res.ActionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	details := req.Details.(ledger.ScheduleMeetingDetails)
	if details.EventType != "Consultation Meeting" {
		t.Fatalf("event type = %q", details.EventType)
	}
}

func TestParseToolCall_MultilineParameters(t *testing.T) {
	text := "TOOL: AddContact\nREASONING: adds the CFO\nPARAMETERS: {\n  \"name\": \"Jane\",\n  \"email\": \"jane@x.com\",\n  \"role\": \"CFO\"\n}"
	call, err := ParseToolCall(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if call.Tool != "AddContact" || call.Params["email"] != "jane@x.com" {
		t.Fatalf("call = %+v", call)
	}
}
