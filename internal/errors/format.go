package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// asIndexError finds the first IndexError in err's chain.
func asIndexError(err error) (*IndexError, bool) {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// FormatForUser returns a user-friendly error message.
// If debug is true, includes details and the underlying cause.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	ie, ok := asIndexError(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(ie.Message)
	sb.WriteString("\n")

	if ie.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(ie.Suggestion)
		sb.WriteString("\n")
	}

	if debug {
		keys := make([]string, 0, len(ie.Details))
		for k := range ie.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, ie.Details[k]))
		}
		if ie.Cause != nil {
			sb.WriteString(fmt.Sprintf("  cause: %v\n", ie.Cause))
		}
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", ie.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := asIndexError(err)
	if !ok {
		ie = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", ie.Message))

	if ie.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ie.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", ie.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption (`idxstore ... --format json`).
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ie, ok := asIndexError(err)
	if !ok {
		ie = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ie.Code,
		Message:    ie.Message,
		Category:   string(ie.Category),
		Severity:   string(ie.Severity),
		Details:    ie.Details,
		Suggestion: ie.Suggestion,
		Retryable:  ie.Retryable,
	}

	if ie.Cause != nil {
		je.Cause = ie.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ie, ok := asIndexError(err)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ie.Code,
		"message":    ie.Message,
		"category":   string(ie.Category),
		"severity":   string(ie.Severity),
		"retryable":  ie.Retryable,
	}

	if ie.Cause != nil {
		result["cause"] = ie.Cause.Error()
	}

	if ie.Suggestion != "" {
		result["suggestion"] = ie.Suggestion
	}

	for k, v := range ie.Details {
		result["detail_"+k] = v
	}

	return result
}

// LogAttrs returns FormatForLog as slog attributes sorted by key, ready to
// pass to slog.Warn and friends.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	fields := FormatForLog(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}
