package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAccessDenied    = errors.New("access denied")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("persistence failure")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")

	// Remote analysis failures. Each shape is reported separately.
	ErrRemoteCall          = errors.New("remote call failed")
	ErrRemoteEmptyResponse = errors.New("remote call returned no data")
	ErrRemoteApplication   = errors.New("remote function reported an error")

	// Workflow validation.
	ErrNoDocuments          = errors.New("no documents selected")
	ErrNoQuestionsGenerated = errors.New("no questions generated")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrSessionBusy          = errors.New("session has an action in progress")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
