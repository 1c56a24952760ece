package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelnotes/internal/services"
)

const (
	defaultBaseURL       = "https://generativelanguage.googleapis.com"
	defaultQualityModel  = "gemini-2.5-flash"
	defaultEnhanceModel  = "gemini-2.5-pro"
	defaultQualityWait   = 30 * time.Second
	defaultEnhanceWait   = 2 * time.Minute
	defaultUploadWait    = 5 * time.Minute
	defaultRetryAttempts = 5
	defaultRetryBase     = 1 * time.Second
	defaultRetryMax      = 10 * time.Second
	defaultPollInterval  = 2 * time.Second
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey       string
	BaseURL      string
	QualityModel string
	EnhanceModel string

	QualityTimeoutSeconds int
	EnhanceTimeoutSeconds int
	UploadTimeoutSeconds  int
}

// Client issues generateContent and file upload requests against the
// Generative Language API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	pollInterval     time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithPollInterval overrides the file state poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithSleeper overrides how retry and poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:                strings.TrimSpace(cfg.APIKey),
			BaseURL:               strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			QualityModel:          strings.TrimSpace(cfg.QualityModel),
			EnhanceModel:          strings.TrimSpace(cfg.EnhanceModel),
			QualityTimeoutSeconds: cfg.QualityTimeoutSeconds,
			EnhanceTimeoutSeconds: cfg.EnhanceTimeoutSeconds,
			UploadTimeoutSeconds:  cfg.UploadTimeoutSeconds,
		},
		httpClient:       &http.Client{},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBase,
		retryMaxDelay:    defaultRetryMax,
		pollInterval:     defaultPollInterval,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.QualityModel == "" {
		client.cfg.QualityModel = defaultQualityModel
	}
	if client.cfg.EnhanceModel == "" {
		client.cfg.EnhanceModel = defaultEnhanceModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	return client
}

// Configured reports whether the client has an API key to work with.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

func (c *Client) qualityTimeout() time.Duration {
	return secondsOr(c.cfg.QualityTimeoutSeconds, defaultQualityWait)
}

func (c *Client) enhanceTimeout() time.Duration {
	return secondsOr(c.cfg.EnhanceTimeoutSeconds, defaultEnhanceWait)
}

func (c *Client) uploadTimeout() time.Duration {
	return secondsOr(c.cfg.UploadTimeoutSeconds, defaultUploadWait)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MIMEType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// generateJSON runs a JSON-only generateContent call against the named model
// and returns the raw text payload produced by the model.
func (c *Client) generateJSON(ctx context.Context, model, systemPrompt string, parts []part, op string) (string, error) {
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "enhance", op, "gemini api key required", nil)
	}
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			ResponseMIMEType: "application/json",
		},
	}
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := c.sendGenerateOnce(ctx, model, payload, op)
		if err == nil {
			return text, nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", c.classify(op, err)
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", c.classify(op, sleepErr)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", c.classify(op, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr))
}

func (c *Client) sendGenerateOnce(ctx context.Context, model string, payload generateRequest, op string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, model)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	body, err := c.doJSON(ctx, http.MethodPost, endpoint, encoded, nil)
	if err != nil {
		return "", err
	}
	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("%s: api error %s: %s", op, decoded.Error.Status, strings.TrimSpace(decoded.Error.Message))
	}
	text := extractCandidateText(decoded)
	if text == "" {
		return "", &emptyCandidateError{Op: op, FinishReason: firstFinishReason(decoded), Snippet: summarizePayloadSnippet(string(body))}
	}
	return text, nil
}

type emptyCandidateError struct {
	Op           string
	FinishReason string
	Snippet      string
}

func (e *emptyCandidateError) Error() string {
	return fmt.Sprintf("%s: empty candidates (finish_reason=%q, response_snippet=%s)", e.Op, e.FinishReason, e.Snippet)
}

func extractCandidateText(resp generateResponse) string {
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstFinishReason(resp generateResponse) string {
	for _, candidate := range resp.Candidates {
		if reason := strings.TrimSpace(candidate.FinishReason); reason != "" {
			return reason
		}
	}
	return ""
}

// doJSON performs one HTTP round trip, returning the body on 2xx and an
// httpStatusError otherwise. Extra headers override the defaults.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini request: new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: http error: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
			RetryAfter: retryAfter,
		}
	}
	return respBody, nil
}

// classify maps a terminal request failure onto the service error taxonomy.
func (c *Client) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "enhance", op, "request deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "enhance", op, "api key rejected", err)
		case statusErr.StatusCode == http.StatusBadRequest, statusErr.StatusCode == http.StatusNotFound:
			return services.Wrap(services.ErrValidation, "enhance", op, "request rejected", err)
		default:
			return services.Wrap(services.ErrTransient, "enhance", op, "api unavailable", err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "enhance", op, "network timeout", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrTransient, "enhance", op, "network failure", err)
	}
	return err
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	if _, ok := err.(*emptyCandidateError); ok {
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := defaultRetryBase
	maxDelay := defaultRetryMax
	if c != nil {
		if c.retryBaseDelay >= 0 {
			base = c.retryBaseDelay
		}
		if c.retryMaxDelay > 0 {
			maxDelay = c.retryMaxDelay
		}
	}
	if base <= 0 {
		return 0
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMax
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("gemini retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c != nil && c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
