package jsonutil

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/quailyquaily/uniai"
)

var (
	ErrEmptyInput       = errors.New("empty json input")
	ErrNoJSONCandidates = errors.New("no json candidates")
)

// FindJSONPayload attempts to locate a valid JSON payload in model output.
// Models wrap JSON in prose or code fences more often than not; uniai
// helpers collect and repair candidates, and the first one that parses wins.
func FindJSONPayload(text string) ([]byte, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrEmptyInput
	}

	var lastErr error
	for _, cand := range collectCandidates(raw) {
		for _, variant := range candidateVariants(cand) {
			if strings.TrimSpace(variant) == "" {
				continue
			}
			if isValidJSON(variant, &lastErr) {
				return []byte(variant), nil
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoJSONCandidates
}

// DecodeWithFallback finds a JSON payload and unmarshals it into dst.
func DecodeWithFallback(text string, dst any) error {
	data, err := FindJSONPayload(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func collectCandidates(raw string) []string {
	out := make([]string, 0, 8)
	seen := make(map[string]bool, 8)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(raw)

	if cands, err := uniai.CollectJSONCandidates(raw); err == nil {
		for _, c := range cands {
			add(c)
		}
	}
	for _, c := range uniai.FindJSONSnippets(raw) {
		add(c)
	}

	return out
}

func candidateVariants(candidate string) []string {
	out := make([]string, 0, 4)
	seen := make(map[string]bool, 4)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(candidate)

	stripped := strings.TrimSpace(uniai.StripNonJSONLines(candidate))
	add(stripped)

	repaired := strings.TrimSpace(uniai.AttemptJSONRepair(candidate))
	add(repaired)

	if stripped != "" && stripped != candidate {
		add(strings.TrimSpace(uniai.AttemptJSONRepair(stripped)))
	}

	return out
}

func isValidJSON(s string, lastErr *error) bool {
	var tmp any
	if err := json.Unmarshal([]byte(s), &tmp); err != nil {
		if lastErr != nil {
			*lastErr = err
		}
		return false
	}
	return true
}
