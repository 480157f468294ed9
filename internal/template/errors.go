package template

import (
	"fmt"

	"github.com/Well2333/clashprofile/internal/model"
)

// TemplateError reports a template that could not be located or read.
type TemplateError struct {
	Name     string
	AppError model.AppError
	Cause    error
}

func newTemplateError(code, name, path, message, hint string, cause error) *TemplateError {
	return &TemplateError{
		Name: name,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "load_template",
			URL:     path,
			Hint:    hint,
		},
		Cause: cause,
	}
}

func (e *TemplateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("template %q: %s: %s", e.Name, e.AppError.Code, e.AppError.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TemplateError) Unwrap() error { return e.Cause }
