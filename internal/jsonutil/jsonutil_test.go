package jsonutil

import (
	"errors"
	"testing"
)

func TestDecodeWithFallback(t *testing.T) {
	type email struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	cases := []struct {
		name string
		in   string
		want email
	}{
		{
			name: "bare object",
			in:   `{"subject":"Hello","body":"Hi there"}`,
			want: email{Subject: "Hello", Body: "Hi there"},
		},
		{
			name: "fenced block",
			in:   "Here you go:\n```json\n{\"subject\":\"Hello\",\"body\":\"Hi there\"}\n```\nLet me know!",
			want: email{Subject: "Hello", Body: "Hi there"},
		},
		{
			name: "prose around object",
			in:   "Sure. {\"subject\":\"Hello\",\"body\":\"Hi there\"} Hope that helps.",
			want: email{Subject: "Hello", Body: "Hi there"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got email
			if err := DecodeWithFallback(tc.in, &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFindJSONPayload_EmptyInput(t *testing.T) {
	if _, err := FindJSONPayload("   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestFindJSONPayload_NoJSON(t *testing.T) {
	if _, err := FindJSONPayload("no structured data here"); err == nil {
		t.Fatal("expected error for prose-only input")
	}
}
