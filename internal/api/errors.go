package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/zeebo/errs"

	"alcyxob/analysis-portal/internal/service"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string               `json:"error"`
	Details []service.FieldError `json:"details,omitempty"`
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string, details ...service.FieldError) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message, Details: details})
}

var errorClasses = []struct {
	class  *errs.Class
	status int
}{
	{&service.ErrUnauthenticated, http.StatusUnauthorized},
	{&service.ErrForbidden, http.StatusForbidden},
	{&service.ErrInvalidArgument, http.StatusBadRequest},
	{&service.ErrNotFound, http.StatusNotFound},
	{&service.ErrConflict, http.StatusConflict},
	{&service.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) (int, *errs.Class) {
	for _, ec := range errorClasses {
		if ec.class.Has(err) {
			return ec.status, ec.class
		}
	}
	return http.StatusInternalServerError, nil
}

// respondError writes err as an ErrorResponse. Unclassified errors are
// reported as a generic failure; their text stays in the request log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, class := statusFor(err)

	if fields := service.FieldErrors(err); len(fields) > 0 {
		abortWithError(c, status, "Invalid request", fields...)
		return
	}
	if class == nil {
		abortWithError(c, status, "An unexpected error occurred")
		return
	}
	msg := strings.TrimPrefix(err.Error(), string(*class)+": ")
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	abortWithError(c, status, msg)
}

// bindError reports a request body or query that could not be bound.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]service.FieldError, len(verrs))
		for i, fe := range verrs {
			fields[i] = service.FieldError{Field: lowerFirst(fe.Field()), Message: tagMessage(fe)}
		}
		abortWithError(c, http.StatusBadRequest, "Invalid request", fields...)
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		abortWithError(c, http.StatusBadRequest, "Invalid request",
			service.FieldError{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()})
	case errors.As(err, &syntaxErr):
		abortWithError(c, http.StatusBadRequest, "Malformed JSON body")
	default:
		abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
	}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be an absolute URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
