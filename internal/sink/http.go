package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// HTTPSink POSTs entries as JSON to the indexing service.
type HTTPSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
	logger  *slog.Logger
}

type HTTPOption func(*HTTPSink)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRate caps outgoing requests per second; 0 disables the limit.
func WithRate(perSec float64) HTTPOption {
	return func(s *HTTPSink) {
		if perSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		} else {
			s.limiter = nil
		}
	}
}

func WithHeader(k, v string) HTTPOption {
	return func(s *HTTPSink) { s.headers[k] = v }
}

func NewHTTPSink(url string, logger *slog.Logger, opts ...HTTPOption) *HTTPSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPSink{
		url:     url,
		client:  &http.Client{Timeout: 45 * time.Second},
		headers: map[string]string{},
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *HTTPSink) Index(ctx context.Context, e Entry) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	raw, _, err := sendJSON(ctx, s.client, s.url, e, s.headers, s.logger)
	if err != nil {
		return err
	}
	return checkReply(raw)
}

// sendJSON posts body to url and returns the raw response body.
func sendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("sink.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("sink.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("sink.http.request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("sink.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("sink.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	logger.Info("sink.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
