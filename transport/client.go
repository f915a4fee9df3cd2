package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/scan-portal/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	headerRefreshToken  = "refreshToken"
	headerRequestID     = "X-Request-ID"
	mimeJSON            = "application/json"
	mimeForm            = "application/x-www-form-urlencoded"

	maxErrorBody = 64 << 10
)

// Client is the credential transport: a thin REST client for the backend's /auth endpoints.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	loginFallback bool
	logger        zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is still wrapped
// for bearer attachment and tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLoginFallback enables a single retry of a failed login against the
// OAuth2 password grant endpoint.
func WithLoginFallback(enabled bool) Option {
	return func(c *Client) {
		c.loginFallback = enabled
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		loginFallback: true,
		logger:        log.Logger,
	}

	for _, opt := range options {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.httpClient
	wrapped.Transport = otelhttp.NewTransport(&bearerTransport{base: base})
	if c.timeout > 0 {
		wrapped.Timeout = c.timeout
	}
	c.httpClient = &wrapped
	return c
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// doJSON sends body as JSON (when non-nil) and decodes a 2xx response into out (when non-nil).
// Non-2xx responses become a *errors.TransportError carrying the backend's message.
func (c *Client) doJSON(ctx context.Context, op, method, path string, header http.Header, body, out any, fallbackMsg string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &errors.TransportError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}
	return c.do(ctx, op, method, path, header, mimeJSON, reader, out, fallbackMsg)
}

// doForm posts form as application/x-www-form-urlencoded and decodes the response like doJSON
func (c *Client) doForm(ctx context.Context, op, path string, form url.Values, out any, fallbackMsg string) error {
	return c.do(ctx, op, http.MethodPost, path, nil, mimeForm, strings.NewReader(form.Encode()), out, fallbackMsg)
}

func (c *Client) do(ctx context.Context, op, method, path string, header http.Header, contentType string, body io.Reader, out any, fallbackMsg string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return &errors.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set(headerContentType, contentType)
	req.Header.Set(headerAccept, mimeJSON)
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(headerRequestID, requestID)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	logger := c.logger.With().Str("op", op).Str("request_id", RequestIDFromContext(ctx)).Logger()
	logger.Debug().Str("method", method).Str("path", path).Msg("backend call")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("backend unreachable")
		return &errors.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := ExtractDetail(raw, fallbackMsg)
		logger.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("backend call failed")
		return &errors.TransportError{Op: op, StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Warn().Err(err).Msg("backend response not decodable")
		return &errors.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// shouldFallback reports whether a failed call may be retried against a
// secondary endpoint. Credential rejections are final.
func shouldFallback(err error) bool {
	var tErr *errors.TransportError
	if !errors.As(err, &tErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case tErr.StatusCode == 0 && tErr.Detail == "":
		return true
	case tErr.StatusCode == http.StatusNotFound,
		tErr.StatusCode == http.StatusMethodNotAllowed,
		tErr.StatusCode == http.StatusUnsupportedMediaType,
		tErr.StatusCode >= 500:
		return true
	}
	return false
}

type requestIDKey struct{}

// ContextWithRequestID tags outgoing backend calls with the portal's request id
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
