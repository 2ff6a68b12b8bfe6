package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
)

const maxErrorBody = 64 << 10

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	UploadTimeout   time.Duration
	HealthTimeout   time.Duration
	HealthCheck     bool
	ReadRetryCount  int
	ReadRetryDelay  time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client обертка над REST backend. У каждого клиента своя cookie jar,
// поэтому один клиент соответствует одной пользовательской сессии.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
	logger  zerolog.Logger
	healthy atomic.Bool
}

type Option func(*Client)

// WithTransport позволяет нескольким клиентам делить пул соединений.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

func NewTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 60 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 3 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		http: &http.Client{
			Jar:       jar,
			Transport: NewTransport(cfg),
		},
		logger: logger.With().Str("component", "apiclient").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	accept      string
	timeout     time.Duration
}

// Call выполняет JSON запрос. body сериализуется в JSON, ответ декодируется в out.
// Если out имеет тип *[]byte, тело ответа возвращается как есть.
func (c *Client) Call(ctx context.Context, method, path string, body, out interface{}) error {
	req := request{
		method:  method,
		path:    path,
		accept:  "application/json",
		timeout: c.cfg.Timeout,
	}

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.body = data
		req.contentType = "application/json"
	}

	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	if err := c.ensureHealthy(ctx); err != nil {
		return err
	}

	attempts := 1
	if req.method == http.MethodGet {
		attempts += c.cfg.ReadRetryCount
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			c.logger.Warn().
				Int("attempt", i).
				Str("method", req.method).
				Str("path", req.path).
				Err(lastErr).
				Msg("Retrying backend read")

			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(c.cfg.ReadRetryDelay * time.Duration(i)):
			}
		}

		lastErr = c.roundTrip(ctx, req, out)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if KindOf(lastErr) == KindNetwork {
			// следующий запрос снова проверит /health
			c.healthy.Store(false)
		}
	}

	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, req request, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.accept != "" {
		httpReq.Header.Set("Accept", req.accept)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &APIError{
			Kind:    KindNetwork,
			Method:  req.method,
			Path:    req.path,
			Message: "unable to reach server, check your connection and try again",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(req, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindNetwork, Method: req.method, Path: req.path, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Kind: KindDecode, Method: req.method, Path: req.path, Status: resp.StatusCode, Message: "malformed response from server", Err: err}
	}

	return nil
}

func (c *Client) statusError(req request, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		Method:  req.method,
		Path:    req.path,
		Status:  resp.StatusCode,
		Message: backendMessage(data),
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.Kind = KindSessionExpired
		if apiErr.Message == "" {
			apiErr.Message = "session expired, please log in again"
		}
	case resp.StatusCode >= 500:
		apiErr.Kind = KindServer
		if apiErr.Message == "" {
			apiErr.Message = "server error, please try again later"
		}
	default:
		apiErr.Kind = KindClient
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}

	return apiErr
}

// backendMessage достает текст ошибки из {"error": ...} или {"message": ...}.
func backendMessage(data []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}

	if len(envelope.Error) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}

	return envelope.Message
}

// ensureHealthy проверяет /health перед первым настоящим запросом.
func (c *Client) ensureHealthy(ctx context.Context) error {
	if !c.cfg.HealthCheck || c.healthy.Load() {
		return nil
	}

	if _, err := c.Health(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Server health check failed")
		return err
	}

	c.healthy.Store(true)
	return nil
}

// Health проверка доступности backend, без повторов и без предварительной проверки.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	err := c.roundTrip(ctx, request{
		method:  http.MethodGet,
		path:    "/health",
		accept:  "application/json",
		timeout: c.cfg.HealthTimeout,
	}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == KindNetwork {
			apiErr.Message = "unable to connect to server, please make sure the server is running"
		}
		return nil, err
	}
	return &out, nil
}

// CheckReady используется readiness проверкой портала.
func (c *Client) CheckReady(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}
