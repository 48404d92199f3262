package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGmailMailer_NotConfigured(t *testing.T) {
	m := NewGmailMailer("", "sender@example.com")
	_, err := m.Send(context.Background(), "a@b.com", "s", "b")
	name, ok := IsNotConfigured(err)
	if !ok {
		t.Fatalf("expected NotConfiguredError, got %v", err)
	}
	if name != "mail" {
		t.Fatalf("integration name mismatch: got %q", name)
	}
}

func TestGmailMailer_SendsRawMessage(t *testing.T) {
	var gotAuth string
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Raw string `json:"raw"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		gotRaw = body.Raw
		w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	m := NewGmailMailer("tok", "sender@example.com")
	m.Endpoint = srv.URL
	receipt, err := m.Send(context.Background(), "chief@tribe.ca", "Consultation Request", "Hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ID != "msg_123" || receipt.Status != "sent" {
		t.Fatalf("receipt mismatch: %+v", receipt)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth header mismatch: %q", gotAuth)
	}
	if gotRaw == "" {
		t.Fatal("raw message not posted")
	}
}

func TestGmailMailer_HeaderInjectionStripped(t *testing.T) {
	got := buildRFC822("a@b.com", "c@d.com", "hi\r\nBcc: evil@e.com", "body")
	if strings.Contains(got, "Bcc:") {
		t.Fatalf("CRLF not stripped from subject: %q", got)
	}
}

func TestCalendlyScheduler_NotConfigured(t *testing.T) {
	s := NewCalendlyScheduler("", "")
	_, err := s.CreateLink(context.Background(), "Jane", "jane@x.com")
	name, ok := IsNotConfigured(err)
	if !ok || name != "scheduling" {
		t.Fatalf("expected scheduling NotConfiguredError, got %v", err)
	}
}

func TestCalendlyScheduler_CreateLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scheduling_links" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"resource":{"booking_url":"https://calendly.com/d/abc"}}`))
	}))
	defer srv.Close()

	s := NewCalendlyScheduler("key", "https://api.calendly.com/event_types/xyz")
	s.Endpoint = srv.URL
	link, err := s.CreateLink(context.Background(), "Jane", "jane@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.URL != "https://calendly.com/d/abc" {
		t.Fatalf("link mismatch: %q", link.URL)
	}
}

func TestSlackNotifier_NotConfigured(t *testing.T) {
	n := NewSlackNotifier("")
	err := n.Post(context.Background(), "hi", "")
	name, ok := IsNotConfigured(err)
	if !ok || name != "notification" {
		t.Fatalf("expected notification NotConfiguredError, got %v", err)
	}
}

func TestSlackNotifier_PostsPayload(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &payload)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	if err := n.Post(context.Background(), "3 emails sent", "#consultations"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["text"] != "3 emails sent" {
		t.Fatalf("text mismatch: %q", payload["text"])
	}
	if payload["channel"] != "#consultations" {
		t.Fatalf("channel mismatch: %q", payload["channel"])
	}
	if payload["username"] == "" {
		t.Fatal("username missing from payload")
	}
}

func TestIsNotConfigured_WrappedError(t *testing.T) {
	base := &NotConfiguredError{Integration: "mail"}
	wrapped := errors.Join(errors.New("outer"), base)
	name, ok := IsNotConfigured(wrapped)
	if !ok || name != "mail" {
		t.Fatalf("expected wrapped error to match, got %v %v", name, ok)
	}
}
