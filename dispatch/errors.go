package dispatch

import (
	"errors"
	"fmt"
)

// UnknownToolError reports a model-chosen tool name outside the fixed table.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// MalformedParametersError reports model output whose PARAMETERS line is
// absent or does not parse as a JSON object. Raw carries the offending text
// so callers can show it for diagnosis instead of guessing defaults.
type MalformedParametersError struct {
	Raw string
}

func (e *MalformedParametersError) Error() string {
	return fmt.Sprintf("parameters are not a JSON object: %q", e.Raw)
}

// MissingParameterError names the required parameter absent from the parsed
// PARAMETERS object.
type MissingParameterError struct {
	Tool      string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("tool %s: missing required parameter %q", e.Tool, e.Parameter)
}

// LLMUnavailableError wraps a failed or timed-out classification call.
type LLMUnavailableError struct {
	Err error
}

func (e *LLMUnavailableError) Error() string {
	return fmt.Sprintf("llm classification unavailable: %v", e.Err)
}

func (e *LLMUnavailableError) Unwrap() error { return e.Err }

func IsUnknownTool(err error) bool {
	var e *UnknownToolError
	return errors.As(err, &e)
}

func IsMalformedParameters(err error) bool {
	var e *MalformedParametersError
	return errors.As(err, &e)
}

func IsMissingParameter(err error) bool {
	var e *MissingParameterError
	return errors.As(err, &e)
}

func IsLLMUnavailable(err error) bool {
	var e *LLMUnavailableError
	return errors.As(err, &e)
}
