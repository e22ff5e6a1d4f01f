package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"siksha/internal/services"
)

const (
	defaultBaseURL     = "http://127.0.0.1:11434/v1/chat/completions"
	defaultHTTPTimeout = 120 * time.Second
	defaultTemperature = 0.7
)

// Config captures the runtime settings for an OpenAI-compatible endpoint.
// APIKey may be empty for local servers such as Ollama.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Referer           string
	Title             string
	TimeoutSeconds    int
	RequestsPerMinute int
}

// Client sends chat completion requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retryPolicy
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

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.maxAttempts = attempts }
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.baseDelay = baseDelay
		c.retry.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// NewClient constructs a client. A RequestsPerMinute above zero installs a
// token-bucket limiter shared by every call on this client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultRetryPolicy(),
	}
	if cfg.RequestsPerMinute > 0 {
		every := time.Minute / time.Duration(cfg.RequestsPerMinute)
		client.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model reports the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends a single-turn chat request and returns the assistant text.
// systemPrompt may be empty.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "user prompt required", nil)
	}
	if c.cfg.Model == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "model not configured", nil)
	}
	messages := make([]chatMessage, 0, 2)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		messages = append(messages, chatMessage{Role: "system", Content: s})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})
	payload := chatRequest{Model: c.cfg.Model, Messages: messages, Temperature: defaultTemperature}
	return c.completeWithRetry(ctx, payload, "llm complete")
}

// HealthCheck sends a minimal request to confirm the endpoint and model answer.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.Complete(ctx, "", "Reply with the single word OK.")
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return services.Wrap(services.ErrMalformedOutput, "llm", "health", "empty reply", nil)
	}
	return nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Some servers answer with the streaming shape even when stream=false.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r chatResponse) content() (string, string) {
	var finish string
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		for _, candidate := range []string{choice.Message.Content, choice.Delta.Content, choice.Text} {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return trimmed, finish
			}
		}
	}
	return "", finish
}

func (r chatResponse) refusal() string {
	for _, choice := range r.Choices {
		if s := strings.TrimSpace(choice.Message.Refusal); s != "" {
			return s
		}
	}
	return ""
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarize(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

func (c *Client) sendOnce(ctx context.Context, payload chatRequest) (chatResponse, []byte, error) {
	var completion chatResponse
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return completion, nil, err
		}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, services.Wrap(services.ErrConfiguration, "llm", "request", "invalid base url", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrExternalTool, "llm", "request",
			fmt.Sprintf("endpoint unreachable (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, services.Wrap(services.ErrMalformedOutput, "llm", "decode", summarize(string(body)), err)
	}
	if completion.Error != nil {
		return completion, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}

func (c *Client) completeWithRetry(ctx context.Context, payload chatRequest, op string) (string, error) {
	attempts := c.retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		completion, body, err := c.sendOnce(ctx, payload)
		if err == nil {
			content, finish := completion.content()
			if content != "" {
				return content, nil
			}
			err = &emptyContentError{
				Op:           op,
				FinishReason: finish,
				Refusal:      completion.refusal(),
				Snippet:      summarize(string(body)),
			}
		}
		lastErr = err
		delay, retry := c.retry.delay(ctx, err, attempt)
		if !retry {
			break
		}
		if err := c.retry.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", classify(op, attempts, lastErr)
}

// classify attaches a services marker so stage chains can report why the
// endpoint failed without parsing messages.
func classify(op string, attempts int, err error) error {
	if err == nil {
		err = errors.New("unknown retry failure")
	}
	var statusErr *httpStatusError
	var emptyErr *emptyContentError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &emptyErr):
		return services.Wrap(services.ErrMalformedOutput, "llm", op, "no content returned", err)
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusInsufficientStorage:
			return services.Wrap(services.ErrResourceExhausted, "llm", op, "server out of resources", err)
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "llm", op, "api key rejected", err)
		default:
			return services.Wrap(services.ErrExternalTool, "llm", op, fmt.Sprintf("failed after %d attempts", attempts), err)
		}
	case strings.Contains(strings.ToLower(err.Error()), "out of memory"):
		return services.Wrap(services.ErrResourceExhausted, "llm", op, "server out of memory", err)
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
}

func summarize(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
