// Package dispatch maps free-text user intent onto the fixed workflow tool
// table. Classification is delegated to an LLM; the result is never
// executed here, only recorded as a pending ledger entry for a human to
// approve.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/llm"
)

// Dispatcher turns one free-text request into one pending ActionRequest.
type Dispatcher struct {
	LLM    llm.Client
	Model  string
	Ledger ledger.Store
	Logger *slog.Logger
}

func New(client llm.Client, model string, store ledger.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{LLM: client, Model: model, Ledger: store, Logger: logger}
}

// Result is returned to the caller on successful dispatch. Execution has
// not happened yet; the action sits in the ledger as PENDING.
type Result struct {
	Status    string         `json:"status"`
	ActionID  string         `json:"action_id"`
	Tool      string         `json:"tool"`
	Reasoning string         `json:"reasoning,omitempty"`
	Details   ledger.Details `json:"details"`
}

// Dispatch classifies message, validates the chosen tool's parameters, and
// records a pending ledger entry. recipients is the session's current
// contact list, captured into the proposal so the approver sees exactly who
// would be affected. On any failure no ledger entry is created.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, message string, recipients []string) (Result, error) {
	if d.LLM == nil {
		return Result{}, &LLMUnavailableError{Err: fmt.Errorf("no model configured")}
	}

	res, err := d.LLM.Chat(ctx, llm.Request{
		Model: d.Model,
		Messages: []llm.Message{
			{Role: "system", Content: classificationPrompt()},
			{Role: "user", Content: message},
		},
		Parameters: map[string]any{
			"max_tokens":  300,
			"temperature": 0.0,
		},
	})
	if err != nil {
		return Result{}, &LLMUnavailableError{Err: err}
	}

	call, err := ParseToolCall(res.Text)
	if err != nil {
		return Result{}, err
	}
	tool, ok := lookupTool(call.Tool)
	if !ok {
		return Result{}, &UnknownToolError{Name: call.Tool}
	}

	details, description, err := tool.Build(call.Params, recipients)
	if err != nil {
		return Result{}, err
	}

	req, err := d.Ledger.Create(ctx, tool.Kind, description, sessionID, details)
	if err != nil {
		return Result{}, fmt.Errorf("record pending action: %w", err)
	}
	d.Logger.Info("action proposed",
		"action_id", req.ID, "tool", tool.Name, "session", sessionID, "reasoning", call.Reasoning)

	return Result{
		Status:    "pending_approval",
		ActionID:  req.ID,
		Tool:      tool.Name,
		Reasoning: call.Reasoning,
		Details:   req.Details,
	}, nil
}

// classificationPrompt enumerates the tool table for the model. Output
// format is pinned to the three-line block the parser accepts.
func classificationPrompt() string {
	var b strings.Builder
	b.WriteString("You route stakeholder-outreach requests to exactly one tool.\n\nAvailable tools:\n")
	for _, t := range Tools() {
		fmt.Fprintf(&b, "- %s: %s\n  Parameters: %s\n", t.Name, t.Description, t.ParamHint)
	}
	b.WriteString("\nRespond with exactly three lines and nothing else:\n")
	b.WriteString("TOOL: <ToolName>\n")
	b.WriteString("REASONING: <one sentence>\n")
	b.WriteString("PARAMETERS: <JSON object>\n")
	return b.String()
}
