package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scout/internal/model"
	"scout/internal/retry"

	"github.com/rs/zerolog/log"
)

// ResultFetcher retrieves the scraped items behind a "result ready" event
type ResultFetcher interface {
	FetchResults(ctx context.Context, sourceID string) (*ScrapeResult, error)
}

// ScrapeResult is the collaborator's payload for one finished scrape
type ScrapeResult struct {
	SourceID string          `json:"source_id"`
	OwnerID  string          `json:"owner_id"`
	SearchID string          `json:"search_id,omitempty"`
	Items    []model.RawItem `json:"items"`
}

// Client talks to the scrape-source collaborator
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func New(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Second * 30},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// FetchResults downloads the result set for a sourceID, retrying transient
// failures with the standard backoff schedule.
func (c *Client) FetchResults(ctx context.Context, sourceID string) (*ScrapeResult, error) {
	cfg := retry.Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2,
	}

	var result *ScrapeResult
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		fetched, err := c.fetch(ctx, sourceID)
		if err != nil {
			return err
		}
		result = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) fetch(ctx context.Context, sourceID string) (*ScrapeResult, error) {
	url := fmt.Sprintf("%s/results/%s", c.baseURL, sourceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Error executing source request")
		return nil, fmt.Errorf("error fetching scrape results: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading source response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("sourceID", sourceID).
			Msg("Source API returned error response")
		return nil, fmt.Errorf("source API error: status code %d", resp.StatusCode)
	}

	var result ScrapeResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("error parsing source response: %w", err)
	}

	log.Debug().
		Str("sourceID", sourceID).
		Str("ownerID", result.OwnerID).
		Int("items", len(result.Items)).
		Msg("Fetched scrape results")

	return &result, nil
}
