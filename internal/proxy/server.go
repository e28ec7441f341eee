// Package proxy serves /api/chat, which relays generateContent requests to
// Gemini with an API key held server side.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-persona/core/llms/gemini"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultUpstreamURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel       = "gemini-2.5-flash"

	maxBodyBytes = 1 << 20

	missingKeyMessage = "GEMINI_API_KEY が未設定です。環境変数か設定ファイルの proxy.api_key に追加してください。"
)

type Server struct {
	upstreamURL string
	model       string
	apiKey      string
	httpClient  *http.Client

	registry *prometheus.Registry
	metrics  *metrics
}

type ServerOption func(*Server)

func WithUpstreamURL(upstreamURL string) ServerOption {
	return func(s *Server) {
		if upstreamURL != "" {
			s.upstreamURL = strings.TrimRight(upstreamURL, "/")
		}
	}
}

func WithModel(model string) ServerOption {
	return func(s *Server) {
		if model != "" {
			s.model = model
		}
	}
}

// WithAPIKey sets the Gemini API key. Without one /api/chat answers 503.
func WithAPIKey(apiKey string) ServerOption {
	return func(s *Server) {
		s.apiKey = apiKey
	}
}

func WithTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.httpClient.Timeout = timeout
		}
	}
}

func WithHTTPClient(httpClient *http.Client) ServerOption {
	return func(s *Server) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		upstreamURL: DefaultUpstreamURL,
		model:       DefaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registry)
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(allowAnyOrigin)
		r.Post("/", s.chat)
		r.Options("/", preflight)
		r.Get("/schema", s.schema)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return otelhttp.NewHandler(r, "proxy")
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		writeError(w, http.StatusServiceUnavailable, missingKeyMessage)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	upstreamRequest, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.generateURL(), bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	upstreamRequest.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(upstreamRequest)
	if err != nil {
		logger.Warn("upstream request failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("upstream request failed: %v", redact(err, s.apiKey)))
		return
	}
	defer resp.Body.Close()
	s.metrics.upstreamLatency.Observe(time.Since(start).Seconds())

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upstream response: %v", err))
		return
	}
	if !json.Valid(responseBody) {
		writeError(w, http.StatusInternalServerError, "upstream response is not valid JSON")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(responseBody); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) generateURL() string {
	query := url.Values{"key": {s.apiKey}}
	return fmt.Sprintf("%s/%s:generateContent?%s", s.upstreamURL, url.PathEscape(s.model), query.Encode())
}

// schema describes the body /api/chat expects.
func (s *Server) schema(w http.ResponseWriter, r *http.Request) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	writeJSON(w, http.StatusOK, reflector.Reflect(&gemini.GenerateContentRequest{}))
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logger.Debug("failed to encode response", "error", err)
	}
}

// redact keeps the API key, which is part of the upstream URL, out of error
// messages returned to clients.
func redact(err error, secret string) string {
	return strings.ReplaceAll(err.Error(), secret, "REDACTED")
}
