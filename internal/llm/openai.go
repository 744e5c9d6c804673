package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"resty.dev/v3"

	"github.com/vk/tfconvert/internal/ctxlog"
)

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint, e.g. a
// self-hosted inference gateway. Authentication uses the MODEL_API_KEY
// environment variable when present.
type HTTPClient struct {
	rc   *resty.Client
	opts Options
}

// NewHTTPClient builds a client for the endpoint carried in opts.Endpoint.
func NewHTTPClient(opts Options) *HTTPClient {
	opts = opts.withDefaults()

	rc := resty.New().
		SetBaseURL(opts.Endpoint).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	if key := os.Getenv("MODEL_API_KEY"); key != "" {
		rc.SetAuthToken(key)
	}

	return &HTTPClient{rc: rc, opts: opts}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke sends the prompt as a single user message and returns the first
// choice's content. Transient faults are retried internally.
func (c *HTTPClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return invokeWithRetry(ctx, c.opts.MaxRetries, func(ctx context.Context) (string, error) {
		return c.completeOnce(ctx, prompt)
	})
}

func (c *HTTPClient) completeOnce(ctx context.Context, prompt string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	var result chatResponse
	resp, err := c.rc.R().
		SetContext(context.WithoutCancel(ctx)).
		SetBody(chatRequest{
			Model:       c.opts.ModelID,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: bedrockTemperature,
			TopP:        bedrockTopP,
			MaxTokens:   bedrockMaxTokens,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/chat/completions")
	if err != nil {
		return "", &InvocationError{Transient: true, Cause: err}
	}

	if resp.IsError() {
		cause := fmt.Errorf("endpoint returned %s", resp.Status())
		if result.Error != nil {
			cause = fmt.Errorf("endpoint returned %s: %s", resp.Status(), result.Error.Message)
		}
		return "", &InvocationError{Transient: isTransientStatus(resp.StatusCode()), Cause: cause}
	}

	if len(result.Choices) == 0 {
		return "", &InvocationError{Transient: true, Cause: errors.New("endpoint returned no choices")}
	}

	logger.Debug("Model call completed.", "status", resp.Status(), "output_bytes", len(result.Choices[0].Message.Content))
	return result.Choices[0].Message.Content, nil
}

// isTransientStatus follows the usual HTTP convention: throttling and server
// errors are retryable, every other client error is not.
func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
