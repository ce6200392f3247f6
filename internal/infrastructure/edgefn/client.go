package edgefn

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aimiten/readiness-assistant/internal/infrastructure/resilience"
)

const functionsPath = "/functions/v1/"

// Client invokes the hosted analysis functions over HTTP. Calls are not
// retried: a repeated call would run a second analysis.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	APIKey             string
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		// Analyses may run for minutes; the caller's context bounds the call.
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     options.APIKey,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

// Invoke posts payload as JSON to the named function and returns the raw body.
func (c *Client) Invoke(ctx context.Context, function string, payload any) (json.RawMessage, error) {
	var body json.RawMessage
	call := func(callCtx context.Context) error {
		raw, err := c.postJSON(callCtx, functionsPath+function, payload, function)
		if err != nil {
			return err
		}
		body = raw
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "edgefn."+function, call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(function, err)
	}
	return body, nil
}
