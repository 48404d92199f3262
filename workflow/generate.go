package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quailyquaily/landreach/internal/jsonutil"
	"github.com/quailyquaily/landreach/llm"
)

// composeEmail resolves the subject/body for one contact. When a model is
// configured it drafts the email; any model failure falls back to the pure
// role template so a flaky provider never blocks an approved batch.
func (a *Agent) composeEmail(ctx context.Context, c Contact, subject string) (string, string) {
	tplSubject, tplBody := a.deps.Composer.Compose(c.Role, c.Context, a.location)
	if strings.TrimSpace(subject) != "" {
		tplSubject = subject
	}
	if a.deps.LLM == nil {
		return tplSubject, tplBody
	}

	generated, err := a.generateEmail(ctx, c, tplSubject)
	if err != nil {
		a.deps.Logger.Warn("llm email generation failed, using template", "recipient", c.Email, "err", err)
		return tplSubject, tplBody
	}
	return generated.Subject, generated.Body
}

type generatedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (a *Agent) generateEmail(ctx context.Context, c Contact, subject string) (generatedEmail, error) {
	payload, _ := json.Marshal(map[string]string{
		"recipient_role":    c.Role,
		"recipient_context": c.Context,
		"location":          a.location,
		"subject_hint":      subject,
	})
	sys := "You write respectful, professional consultation-request emails that emphasize " +
		"community partnership and land stewardship. Return ONLY JSON with keys: subject (string), body (string). " +
		"Keep the body to 3-4 short paragraphs and never include the recipient's email address in the text."

	res, err := a.deps.LLM.Chat(ctx, llm.Request{
		Model:     a.deps.LLMModel,
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: string(payload)},
		},
		Parameters: map[string]any{
			"max_tokens":  500,
			"temperature": 0.4,
		},
	})
	if err != nil {
		return generatedEmail{}, err
	}

	var out generatedEmail
	if err := jsonutil.DecodeWithFallback(res.Text, &out); err != nil {
		return generatedEmail{}, err
	}
	out.Subject = strings.TrimSpace(out.Subject)
	out.Body = strings.TrimSpace(out.Body)
	if out.Subject == "" || out.Body == "" {
		return generatedEmail{}, fmt.Errorf("model returned empty subject or body")
	}
	return out, nil
}
