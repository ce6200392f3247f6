package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/aimiten/readiness-assistant/internal/infrastructure/resilience"
)

var classifyNATSError = resilience.Classifier(func(err error) (resilience.ErrorClassification, bool) {
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}, true
	}
	return resilience.ErrorClassification{}, false
})

func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}
