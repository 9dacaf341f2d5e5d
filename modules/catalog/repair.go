package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

var (
	// opening fence with an optional language tag, at the very start of the text
	leadingFence = regexp.MustCompile("\\A\\s*```[\\w+-]*[ \\t]*\\r?\\n?")
	// closing fence at the very end of the text
	trailingFence = regexp.MustCompile("\\s*```\\s*\\z")
	// generic fence left over after the first pass
	genericFence = regexp.MustCompile("\\A```\\s*")
)

// ResponseParseError - model output was not valid JSON after fence stripping
type ResponseParseError struct {
	Text string
	Err  error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("model response is not valid JSON: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// CleanResponse - strips one leading and one trailing markdown code fence.
// Text without fences is returned unchanged.
func CleanResponse(text string) string {
	cleaned := text
	if loc := leadingFence.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[loc[1]:]
	}
	if loc := trailingFence.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[:loc[0]]
	}
	if loc := genericFence.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[loc[1]:]
	}
	return cleaned
}

// ParseResponse - cleans text and decodes it into v.
// Syntax errors give *ResponseParseError; a value of the wrong JSON type gives *SchemaValidationError.
func ParseResponse(logger *slog.Logger, task, text string, v any) error {
	cleaned := CleanResponse(text)

	err := json.Unmarshal([]byte(cleaned), v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &SchemaValidationError{
			Task:   task,
			Fields: []string{typeErr.Field},
			Err:    err,
		}
	}

	if logger != nil {
		logger.Error("❌ [Catalog] Failed to parse model response",
			"task", task,
			"error", err,
			"cleaned_text", cleaned)
	}
	return &ResponseParseError{Text: cleaned, Err: err}
}
