// Package gemini talks to the Gemini generateContent API through the chat
// proxy, which injects the API key server side.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultEndpoint = "http://localhost:8788/api/chat"

	replyPath = "candidates.0.content.parts.0.text"
	errorPath = "error"
)

type Client struct {
	endpoint   string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout bounds a whole Generate call, reading the reply included.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends the request and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, request llms.Request) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.url", c.endpoint),
		attribute.Int("request.turns", len(request.Turns)),
	)

	reply, err := c.generate(ctx, span, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("response.length", len(reply)))
	return reply, nil
}

func (c *Client) generate(ctx context.Context, span trace.Span, request llms.Request) (string, error) {
	body, err := toRequestBody(request)
	if err != nil {
		return "", fmt.Errorf("%w: error building request body: %w", llms.ErrTransport, err)
	}

	requestBodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: error marshalling JSON: %w", llms.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: error creating HTTP request: %w", llms.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	span.AddEvent("request started")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: error sending request: %w", llms.ErrTransport, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: error reading response body: %w", llms.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetAttributes(attribute.String("response.error", string(responseBody)))
		return "", fmt.Errorf("%w: non-OK HTTP status: %s", llms.ErrTransport, resp.Status)
	}

	if !gjson.ValidBytes(responseBody) {
		logger.Warn("reply is not valid JSON", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: response is not valid JSON", llms.ErrEmptyReply)
	}

	if apiErr := gjson.GetBytes(responseBody, errorPath); apiErr.Exists() && apiErr.Type != gjson.Null {
		return "", fmt.Errorf("%w: %s", llms.ErrTransport, errorMessage(apiErr))
	}

	reply := gjson.GetBytes(responseBody, replyPath).String()
	if strings.TrimSpace(reply) == "" {
		return "", llms.ErrEmptyReply
	}
	return reply, nil
}

func errorMessage(apiErr gjson.Result) string {
	if message := apiErr.Get("message").String(); message != "" {
		return message
	}
	if apiErr.Type == gjson.String {
		return apiErr.String()
	}
	return apiErr.Raw
}
