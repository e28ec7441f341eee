// Package groq generates replies with an OpenAI compatible chat completions
// endpoint, Groq by default.
package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/koscakluka/ema-persona/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "llama-3.3-70b-versatile"

	apiKeyEnv = "GROQ_API_KEY"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

var ErrMissingAPIKey = errors.New("groq api key not found")

type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

var _ llms.ModelClient = (*Client)(nil)

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithURL points the client at another OpenAI compatible endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.url = url
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

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient reads the API key from GROQ_API_KEY unless WithAPIKey is given.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		apiKey: os.Getenv(apiKeyEnv),
		model:  DefaultModel,
		url:    DefaultURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return c, nil
}

// Generate streams a completion and returns the concatenated content.
func (c *Client) Generate(ctx context.Context, request llms.Request) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
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
	requestBodyBytes, err := json.Marshal(toRequestBody(c.model, request))
	if err != nil {
		return "", fmt.Errorf("%w: error marshalling JSON: %w", llms.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: error creating HTTP request: %w", llms.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	requestedAt := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: error sending request: %w", llms.ErrTransport, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		span.SetAttributes(attribute.String("response.error", string(body)))
		return "", fmt.Errorf("%w: non-OK HTTP status: %s", llms.ErrTransport, resp.Status)
	}

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
		if len(chunk) == 0 {
			continue
		}
		if chunk == endMessage {
			break
		}

		var responseBody streamingResponseBody
		if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
			logger.Warn("failed to unmarshal completion chunk", "error", err)
			continue
		}
		if responseBody.Error != nil {
			return "", fmt.Errorf("%w: %s", llms.ErrTransport, responseBody.Error.Message)
		}
		if len(responseBody.Choices) == 0 {
			continue
		}
		if reply.Len() == 0 && responseBody.Choices[0].Delta.Content != "" {
			span.SetAttributes(attribute.Float64("response.time_to_first_token", time.Since(requestedAt).Seconds()))
		}
		reply.WriteString(responseBody.Choices[0].Delta.Content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: error reading streamed response: %w", llms.ErrTransport, err)
	}

	if strings.TrimSpace(reply.String()) == "" {
		return "", llms.ErrEmptyReply
	}
	return reply.String(), nil
}
