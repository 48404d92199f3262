package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const calendlyBaseURL = "https://api.calendly.com"

// CalendlyScheduler creates single-use scheduling links against the
// Calendly REST API.
type CalendlyScheduler struct {
	APIKey       string
	EventTypeURI string
	Endpoint     string // overridable for tests

	HTTP *http.Client
}

func NewCalendlyScheduler(apiKey, eventTypeURI string) *CalendlyScheduler {
	return &CalendlyScheduler{
		APIKey:       strings.TrimSpace(apiKey),
		EventTypeURI: strings.TrimSpace(eventTypeURI),
		Endpoint:     calendlyBaseURL,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *CalendlyScheduler) CreateLink(ctx context.Context, name, email string) (Link, error) {
	if s == nil || s.APIKey == "" {
		return Link{}, &NotConfiguredError{Integration: "scheduling"}
	}

	payload, err := json.Marshal(map[string]any{
		"max_event_count": 1,
		"owner":           s.EventTypeURI,
		"owner_type":      "EventType",
	})
	if err != nil {
		return Link{}, err
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = calendlyBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/scheduling_links", bytes.NewReader(payload))
	if err != nil {
		return Link{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Link{}, fmt.Errorf("calendly create link for %s <%s>: %w", name, email, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Link{}, fmt.Errorf("calendly status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Resource struct {
			BookingURL string `json:"booking_url"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Link{}, fmt.Errorf("calendly response: %w", err)
	}
	if out.Resource.BookingURL == "" {
		return Link{}, fmt.Errorf("calendly response has no booking_url")
	}
	return Link{URL: out.Resource.BookingURL}, nil
}
