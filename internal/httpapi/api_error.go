package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"

	"github.com/Well2333/clashprofile/internal/fetch"
	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/profile"
	"github.com/Well2333/clashprofile/internal/render"
	"github.com/Well2333/clashprofile/internal/sub/clash"
	"github.com/Well2333/clashprofile/internal/sub/jms"
	"github.com/Well2333/clashprofile/internal/template"
	"github.com/Well2333/clashprofile/internal/updater"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func notFound(code, message, stage string) error {
	return apiError(http.StatusNotFound, model.AppError{Code: code, Message: message, Stage: stage}, nil)
}

// appErrorOf maps err to its status and payload. Content errors are 422.
func appErrorOf(err error) (int, model.AppError) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, ae.AppError
	}
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.Status, fe.AppError
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, ve.Payload()
	}
	var je *jms.ParseError
	if errors.As(err, &je) {
		return http.StatusUnprocessableEntity, je.AppError
	}
	var ce *clash.ParseError
	if errors.As(err, &ce) {
		return http.StatusUnprocessableEntity, ce.AppError
	}
	var pe *profile.ParseError
	if errors.As(err, &pe) {
		return http.StatusUnprocessableEntity, pe.AppError
	}
	var re *render.RenderError
	if errors.As(err, &re) {
		return http.StatusUnprocessableEntity, re.AppError
	}
	var te *template.TemplateError
	if errors.As(err, &te) {
		return http.StatusUnprocessableEntity, te.AppError
	}
	return http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	}
}

func writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status, app := appErrorOf(err)
	WriteError(w, status, app)
}

// updateFailure folds the per-profile errors of a cycle into one payload. Field
// keys are "<profile>" or "<profile>.<field path>" for validation errors.
func updateFailure(err error) model.AppError {
	errs := multierr.Errors(err)
	fields := make(map[string]string)
	for _, e := range errs {
		name := "(unknown)"
		var pe *updater.ProfileError
		if errors.As(e, &pe) {
			name = pe.Profile
		}
		var ve *model.ValidationError
		if errors.As(e, &ve) {
			for f, msg := range ve.Fields() {
				fields[name+"."+f] = msg
			}
			continue
		}
		_, app := appErrorOf(e)
		msg := app.Message
		if app.Code == "INTERNAL_ERROR" {
			msg = e.Error()
		}
		fields[name] = msg
	}
	return model.AppError{
		Code:    "UPDATE_FAILED",
		Message: fmt.Sprintf("%d 个配置更新失败", len(errs)),
		Stage:   "update",
		Fields:  fields,
	}
}
