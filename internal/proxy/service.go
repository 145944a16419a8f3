// Package proxy forwards dashboard requests to the remote users backend and
// shapes its responses into JSON the browser and the TUI can always decode.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const maxBackendBody = 8 << 20

// Request is an inbound proxy call with the captured route segments.
type Request struct {
	Method   string
	Segments []string
	RawQuery string
	Body     []byte
}

// Result is the JSON document and status relayed back to the caller.
type Result struct {
	Status int
	Body   []byte
}

// Recorder receives upstream and search instrumentation.
type Recorder interface {
	ObserveUpstream(target string, code int)
	ObserveSearch(strategy, outcome string)
}

// Config wires the Service.
type Config struct {
	BackendURL   string
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Metrics      Recorder
	SearchBudget time.Duration
	Strategies   []Strategy
}

// Service forwards requests to a fixed backend origin.
type Service struct {
	baseURL      string
	client       *http.Client
	logger       *slog.Logger
	metrics      Recorder
	searchBudget time.Duration
	strategies   []Strategy
}

// NewService constructs a Service. Backend calls carry no timeout of their
// own; the inbound request context bounds them, and search runs under
// SearchBudget.
func NewService(cfg Config) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics Recorder = noopRecorder{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	budget := cfg.SearchBudget
	if budget <= 0 {
		budget = 10 * time.Second
	}
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Service{
		baseURL:      strings.TrimRight(cfg.BackendURL, "/"),
		client:       client,
		logger:       logger,
		metrics:      metrics,
		searchBudget: budget,
		strategies:   strategies,
	}
}

// Forward relays req to the backend. It never returns an error: failures are
// folded into a JSON error payload with an appropriate status.
func (s *Service) Forward(ctx context.Context, req Request) Result {
	segments := cleanSegments(req.Segments)
	if len(segments) >= 2 && segments[0] == "users" && segments[1] == "search" {
		query, _ := url.ParseQuery(req.RawQuery)
		return s.Search(ctx, query.Get("q"))
	}

	target := "backend"
	unexpected := "Unexpected response from backend"
	if len(segments) >= 1 && len(segments) <= 2 && segments[0] == "ig" {
		target = "ig"
		unexpected = "Unexpected response from IG backend"
	}

	path := "/" + joinSegments(segments)
	if req.RawQuery != "" {
		path += "?" + req.RawQuery
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	logger := s.logger.With(slog.String("method", method), slog.String("path", path))
	resp, err := s.do(ctx, method, path, forwardBody(method, req.Body))
	if err != nil {
		s.metrics.ObserveUpstream(target, 0)
		logger.Error("proxy backend call", slog.Any("error", err))
		return errorResult(http.StatusInternalServerError, "Failed to connect to backend: "+err.Error())
	}
	s.metrics.ObserveUpstream(target, resp.status)

	if resp.isJSON() {
		if !json.Valid(resp.body) {
			logger.Error("proxy backend returned malformed json", slog.Int("status", resp.status))
			return errorResult(http.StatusInternalServerError, "Failed to connect to backend: malformed JSON response")
		}
		if resp.status >= http.StatusBadRequest {
			logger.Warn("backend returned error", slog.Int("status", resp.status), slog.String("body", truncate(resp.body, 256)))
		}
		return Result{Status: resp.status, Body: resp.body}
	}

	logger.Warn("non-json response from backend",
		slog.Int("status", resp.status),
		slog.String("detected", mimetype.Detect(resp.body).String()),
		slog.String("body", truncate(resp.body, 256)),
	)
	if target == "backend" && resp.status == http.StatusNotFound {
		return errorResult(http.StatusNotFound, "Resource not found")
	}
	return errorResult(resp.status, unexpected)
}

type backendResponse struct {
	status      int
	contentType string
	body        []byte
}

func (r backendResponse) isJSON() bool {
	return strings.Contains(r.contentType, "application/json")
}

func (r backendResponse) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (s *Service) do(ctx context.Context, method, pathAndQuery string, body []byte) (backendResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, s.baseURL+pathAndQuery, reader)
	if err != nil {
		return backendResponse{}, fmt.Errorf("build backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return backendResponse{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return backendResponse{}, fmt.Errorf("read backend response: %w", err)
	}
	return backendResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        payload,
	}, nil
}

// forwardBody returns the JSON body to send upstream. Bodies that are not
// valid JSON are dropped rather than rejected.
func forwardBody(method string, body []byte) []byte {
	if method == http.MethodGet || method == http.MethodHead {
		return nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return nil
	}
	return compact.Bytes()
}

func cleanSegments(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func joinSegments(segments []string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return strings.Join(escaped, "/")
}

func errorResult(status int, message string) Result {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	body, _ := json.Marshal(map[string]string{"error": message})
	return Result{Status: status, Body: body}
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

// ErrorMessage extracts the "error" field of a proxy payload, if any.
func ErrorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

type noopRecorder struct{}

func (noopRecorder) ObserveUpstream(string, int) {}
func (noopRecorder) ObserveSearch(string, string) {}
