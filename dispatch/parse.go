package dispatch

import (
	"encoding/json"
	"strings"
)

// ToolCall is the parsed form of the model's three-line output block.
type ToolCall struct {
	Tool      string
	Reasoning string
	Params    map[string]any
}

// ParseToolCall parses the constrained TOOL/REASONING/PARAMETERS block. The
// parser is deliberately strict: a missing TOOL line means the tool is
// unknown, a missing or non-object PARAMETERS line is malformed, and no
// recovery or default-guessing is attempted. The PARAMETERS payload runs
// from its marker to the end of the text so a pretty-printed JSON object
// still parses.
func ParseToolCall(text string) (ToolCall, error) {
	var call ToolCall
	var rawParams string
	haveParams := false

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "TOOL:"):
			call.Tool = strings.TrimSpace(strings.TrimPrefix(trimmed, "TOOL:"))
		case strings.HasPrefix(trimmed, "REASONING:"):
			call.Reasoning = strings.TrimSpace(strings.TrimPrefix(trimmed, "REASONING:"))
		case strings.HasPrefix(trimmed, "PARAMETERS:"):
			rest := strings.TrimPrefix(trimmed, "PARAMETERS:")
			if i+1 < len(lines) {
				rest += "\n" + strings.Join(lines[i+1:], "\n")
			}
			rawParams = strings.TrimSpace(rest)
			haveParams = true
		}
		if haveParams {
			break
		}
	}

	if call.Tool == "" {
		return ToolCall{}, &UnknownToolError{Name: ""}
	}
	if !haveParams {
		return ToolCall{}, &MalformedParametersError{Raw: text}
	}
	if !strings.HasPrefix(rawParams, "{") {
		return ToolCall{}, &MalformedParametersError{Raw: rawParams}
	}
	if err := json.Unmarshal([]byte(rawParams), &call.Params); err != nil {
		return ToolCall{}, &MalformedParametersError{Raw: rawParams}
	}
	return call, nil
}
