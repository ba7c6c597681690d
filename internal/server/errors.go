package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/store"
)

// codeConflict marks transition conflicts, which have no pipeline code.
const codeConflict = "conflict"

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}

	var ce *pipeline.ClassifiedError
	if errors.As(err, &ce) {
		switch ce.Code {
		case pipeline.CodeValidation:
			return http.StatusBadRequest
		case pipeline.CodeNotFound:
			return http.StatusNotFound
		case pipeline.CodeExternalService, pipeline.CodeInvalidResponse:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// errorBody is the stable error envelope every non-2xx response carries.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

// errorBodyFor maps an error value onto the envelope, surfacing the
// pipeline classification when the error carries one.
func errorBodyFor(err error) errorBody {
	if errors.Is(err, store.ErrNotFound) {
		return errorBody{Error: err.Error(), Code: pipeline.CodeNotFound}
	}
	if errors.Is(err, store.ErrConflict) {
		return errorBody{Error: err.Error(), Code: codeConflict}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return errorBody{Error: validationMessage(err), Code: pipeline.CodeValidation}
	}

	var ce *pipeline.ClassifiedError
	if errors.As(err, &ce) {
		body := errorBody{Error: ce.Message, Code: ce.Code, Retryable: ce.Retryable}
		if ce.Attempts > 0 {
			body.Details = map[string]int{"attempts": ce.Attempts}
		}
		return body
	}

	return errorBody{Error: err.Error(), Code: pipeline.CodeInternal}
}

// validationMessage renders a validator error as a single client-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid field " + fe.Field() + ": failed on " + fe.Tag()
	}
	return "invalid request"
}
