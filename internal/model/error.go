package model

import (
	"fmt"
	"strings"
)

// AppError is the only error payload returned by the HTTP layer.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	URL     string `json:"url,omitempty"`
	Line    int    `json:"line,omitempty"`    // 1-based; 0 means "not set"
	Snippet string `json:"snippet,omitempty"` // <= 200 chars
	Hint    string `json:"hint,omitempty"`

	// Fields maps a dotted field path to a message; only set for validation errors.
	Fields map[string]string `json:"fields,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}

// Violation is one invalid field of a validated document.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Nest prefixes every violation field with prefix.
func Nest(prefix string, vs []Violation) []Violation {
	if len(vs) == 0 {
		return nil
	}
	out := make([]Violation, 0, len(vs))
	for _, v := range vs {
		field := prefix
		if v.Field != "" {
			field = prefix + "." + v.Field
		}
		out = append(out, Violation{Field: field, Message: v.Message})
	}
	return out
}

// ValidationError reports every violation found in one pass.
type ValidationError struct {
	AppError   AppError
	Violations []Violation
}

func NewValidationError(stage, source string, vs []Violation) *ValidationError {
	return &ValidationError{
		AppError: AppError{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("%d 项配置不合法", len(vs)),
			Stage:   stage,
			URL:     source,
		},
		Violations: vs,
	}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.AppError.Code, e.AppError.Stage, strings.Join(parts, "; "))
}

// Fields returns dotted path -> message. When several violations share a path the
// messages are joined.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Violations))
	for _, v := range e.Violations {
		if prev, ok := out[v.Field]; ok {
			out[v.Field] = prev + "; " + v.Message
			continue
		}
		out[v.Field] = v.Message
	}
	return out
}

// Payload returns the AppError with the field map attached.
func (e *ValidationError) Payload() AppError {
	app := e.AppError
	app.Fields = e.Fields()
	return app
}
