package edgefn

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aimiten/readiness-assistant/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Function   string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "edge function status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("edge function %s status: %s", e.Function, e.Status)
	}
	return fmt.Sprintf("edge function %s status: %s: %s", e.Function, e.Status, strings.TrimSpace(e.Body))
}

// 4xx answers are the caller's fault and do not trip the breaker.
var classifyError = resilience.Classifier(func(err error) (resilience.ErrorClassification, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		retryable := isRetryableHTTPStatus(statusErr.StatusCode)
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: retryable || statusErr.StatusCode >= 500,
		}, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}, true
	}
	return resilience.ErrorClassification{}, false
})

func wrapTemporaryIfNeeded(function string, err error) error {
	return resilience.WrapTemporary("edge function "+function, err, classifyError)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
