// Retry support for chat completions with exponential backoff.
//
// Basic usage with the default configuration (3 retries, 1s base delay,
// 2x backoff):
//
//	retryClient := llm.RetryChatCompletion(client)
//	resp, err := retryClient.ChatCompletion(ctx, request)
//
// Conservative retry for rate-limited APIs:
//
//	retryClient := llm.RetryChatCompletion(client, llm.RetryConfig{
//		MaxRetries:    5,
//		BaseDelay:     2 * time.Second,
//		MaxDelay:      5 * time.Minute,
//		BackoffFactor: 2.5,
//		Jitter:        true,
//	})
//
// Retry only on specific status codes:
//
//	retryClient := llm.RetryChatCompletion(client, llm.RetryConfig{
//		RetryOnStatusCodes: []int{429},
//	})
package llm

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// secureRandomFloat64 generates a cryptographically secure random float64
// between 0 and 1
func secureRandomFloat64() (float64, error) {
	var bytes [8]byte
	if _, err := rand.Read(bytes[:]); err != nil {
		return 0, err
	}
	return float64(binary.BigEndian.Uint64(bytes[:])) / float64(^uint64(0)), nil
}

// ChatCompleter is the minimal surface needed to retry a chat call. All
// built-in clients and the middleware-wrapped client implement it.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// RetryConfig defines configuration options for the retry mechanism
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	// Total requests = MaxRetries + 1.
	MaxRetries int

	// BaseDelay is the initial delay between retries (default: 1s)
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries (default: 60s)
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each retry (default: 2.0)
	BackoffFactor float64

	// Jitter randomizes delays by a factor in [0.5, 1.5) to prevent
	// thundering herds (default: true)
	Jitter bool

	// RetryableErrors lists additional error codes that trigger retries
	// under the default policy
	RetryableErrors []string

	// RetryOnStatusCodes, when set, replaces the default policy: only these
	// HTTP status codes trigger retries
	RetryOnStatusCodes []int

	// RetryOnErrorTypes, when set, replaces the default policy: only these
	// error types trigger retries. May be combined with RetryOnStatusCodes.
	RetryOnErrorTypes []string
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        60 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          true,
		RetryableErrors: []string{"rate_limit_exceeded"},
	}
}

// RetryableChatCompleter wraps a ChatCompleter with retry behavior
type RetryableChatCompleter struct {
	client ChatCompleter
	config RetryConfig
}

// RetryChatCompletion wraps any ChatCompleter so that throttling (HTTP 429),
// rate-limit error types and temporary server errors (5xx) are retried with
// exponential backoff and optional jitter.
func RetryChatCompletion(client ChatCompleter, config ...RetryConfig) ChatCompleter {
	cfg := DefaultRetryConfig()
	if len(config) > 0 {
		cfg = config[0]
		if cfg.MaxRetries <= 0 {
			cfg.MaxRetries = 3
		}
		if cfg.BaseDelay <= 0 {
			cfg.BaseDelay = 1 * time.Second
		}
		if cfg.MaxDelay <= 0 {
			cfg.MaxDelay = 60 * time.Second
		}
		if cfg.BackoffFactor <= 0 {
			cfg.BackoffFactor = 2.0
		}
		if cfg.RetryableErrors == nil {
			cfg.RetryableErrors = []string{"rate_limit_exceeded"}
		}
	}

	return &RetryableChatCompleter{
		client: client,
		config: cfg,
	}
}

// ChatCompletion executes the chat completion with retries
func (r *RetryableChatCompleter) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		resp, err := r.client.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if attempt == r.config.MaxRetries {
			break
		}
		if !r.isRetryable(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.delayFor(attempt)):
		}
	}

	return nil, lastErr
}

// isRetryable determines if an error should trigger a retry
func (r *RetryableChatCompleter) isRetryable(err error) bool {
	llmErr, ok := AsError(err)
	if !ok {
		return false
	}

	// Explicit lists replace the default policy when set
	if len(r.config.RetryOnStatusCodes) > 0 || len(r.config.RetryOnErrorTypes) > 0 {
		for _, code := range r.config.RetryOnStatusCodes {
			if llmErr.StatusCode == code {
				return true
			}
		}
		for _, errType := range r.config.RetryOnErrorTypes {
			if llmErr.Type == errType {
				return true
			}
		}
		return false
	}

	// Default policy: rate limits, listed codes, 429 and 5xx
	if llmErr.Type == ErrTypeRateLimit {
		return true
	}
	for _, code := range r.config.RetryableErrors {
		if llmErr.Code == code {
			return true
		}
	}
	if llmErr.StatusCode == 429 {
		return true
	}
	if llmErr.StatusCode >= 500 && llmErr.StatusCode < 600 {
		return true
	}

	return false
}

// delayFor computes the backoff delay for a retry attempt
func (r *RetryableChatCompleter) delayFor(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.Jitter {
		randomValue, err := secureRandomFloat64()
		if err != nil {
			randomValue = 1.0
		}
		delay *= 0.5 + randomValue
	}

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	return time.Duration(delay)
}

var _ ChatCompleter = (*RetryableChatCompleter)(nil)
