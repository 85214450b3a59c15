package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"scout/internal/retry"

	"github.com/rs/zerolog/log"
)

// Scorer is the opaque scoring-function boundary: prompt text and an
// instruction template in, extracted text out. The extracted text is
// expected to parse as stage-specific JSON, but that is the caller's
// concern.
type Scorer interface {
	Score(ctx context.Context, promptText, instructionTemplate string) (string, error)
}

// APIError carries the upstream status code so callers can tell transient
// failures from permanent ones
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring API error: status %d: %s", e.StatusCode, e.Detail)
}

// IsRetryable reports whether err is a rate-limit or server-side failure
// worth another attempt
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// Network-level failures are transient by assumption
	return true
}

// Client calls the scoring gateway with token-bucket rate limiting
type Client struct {
	httpClient    *http.Client
	apiKey        string
	baseURL       string
	maxRetries    int
	requestTicker *time.Ticker
	requestChan   chan struct{}
}

// New creates a scoring client with rate limiting
func New(apiKey, baseURL string, requestsPerMinute, maxRetries int) *Client {
	if requestsPerMinute < 2 {
		requestsPerMinute = 2
	}
	interval := time.Minute / time.Duration(requestsPerMinute-1)

	log.Info().
		Int("requests_per_minute", requestsPerMinute).
		Dur("request_interval", interval).
		Str("base_url", baseURL).
		Msg("Initializing scoring client")

	ticker := time.NewTicker(interval)

	// Buffer of 1 allows one immediate request
	requestChan := make(chan struct{}, 1)
	requestChan <- struct{}{}

	go func() {
		for range ticker.C {
			select {
			case requestChan <- struct{}{}:
				log.Trace().Msg("Added token to request channel")
			default:
				log.Trace().Msg("Request channel buffer full, skipping token")
			}
		}
	}()

	return &Client{
		httpClient:    &http.Client{Timeout: time.Second * 120},
		apiKey:        apiKey,
		baseURL:       baseURL,
		maxRetries:    maxRetries,
		requestTicker: ticker,
		requestChan:   requestChan,
	}
}

type scoreRequest struct {
	Prompt       string `json:"prompt"`
	Instructions string `json:"instructions"`
}

type scoreResponse struct {
	Error         bool   `json:"error"`
	ExtractedText string `json:"extracted_text"`
	Detail        string `json:"detail,omitempty"`
}

// Score sends one prompt through the gateway, retrying rate-limit and 5xx
// responses with 1/2/3-minute backoff before giving up.
func (c *Client) Score(ctx context.Context, promptText, instructionTemplate string) (string, error) {
	cfg := retry.Config{
		MaxRetries:   c.maxRetries,
		InitialDelay: time.Minute,
		MaxDelay:     3 * time.Minute,
		Factor:       2,
		RetryIf:      IsRetryable,
	}

	var extracted string
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		text, err := c.score(ctx, promptText, instructionTemplate)
		if err != nil {
			return err
		}
		extracted = text
		return nil
	})
	if err != nil {
		return "", err
	}

	return extracted, nil
}

func (c *Client) score(ctx context.Context, promptText, instructionTemplate string) (string, error) {
	startTime := time.Now()

	// Wait for permission to make a request
	select {
	case <-c.requestChan:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	payload, err := json.Marshal(scoreRequest{
		Prompt:       promptText,
		Instructions: instructionTemplate,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling score request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/score", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Str("url", url).
			Dur("total_duration", time.Since(startTime)).
			Msg("Error executing scoring request")
		return "", fmt.Errorf("error making scoring request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading scoring response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: string(respBody)}
		log.Error().
			Err(apiErr).
			Int("status_code", resp.StatusCode).
			Dur("total_duration", time.Since(startTime)).
			Msg("Scoring API returned error response")
		return "", apiErr
	}

	var result scoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing scoring response: %w", err)
	}
	if result.Error {
		return "", &APIError{StatusCode: http.StatusInternalServerError, Detail: result.Detail}
	}

	log.Debug().
		Int("response_size", len(result.ExtractedText)).
		Dur("total_duration", time.Since(startTime)).
		Msg("Scoring request completed successfully")

	return result.ExtractedText, nil
}

// Close stops the rate-limit ticker when the client is no longer needed
func (c *Client) Close() {
	if c.requestTicker != nil {
		log.Info().Msg("Shutting down scoring client")
		c.requestTicker.Stop()
	}
}
