package service

import (
	"errors"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
)

// Error classes shared by every service. The API layer maps each class to
// one HTTP status.
var (
	ErrUnauthenticated     = errs.Class("unauthenticated")
	ErrForbidden           = errs.Class("forbidden")
	ErrInvalidArgument     = errs.Class("invalid argument")
	ErrNotFound            = errs.Class("not found")
	ErrConflict            = errs.Class("conflict")
	ErrUpstreamUnavailable = errs.Class("upstream unavailable")
)

// FieldError describes why one input field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// err returns nil when no field was rejected.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return ErrInvalidArgument.Wrap(e)
}

// FieldErrors extracts field details from err, if it carries any.
func FieldErrors(err error) []FieldError {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Fields
	}
	return nil
}

// upstream logs the cause of a database or store failure and hides it
// behind ErrUpstreamUnavailable.
func upstream(log *zap.Logger, op string, err error) error {
	log.Error(op+" failed", zap.Error(err))
	return ErrUpstreamUnavailable.New("%s failed", op)
}

// repoErr translates a repository error. Not found becomes ErrNotFound with
// what as the message, everything else is an upstream failure.
func repoErr(log *zap.Logger, op, what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound.New("%s not found", what)
	}
	return upstream(log, op, err)
}

func requireCaller(caller domain.Caller) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated.New("authentication required")
	}
	return nil
}

func requireReviewer(caller domain.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.IsReviewer() {
		return ErrForbidden.New("reviewer role required")
	}
	return nil
}
