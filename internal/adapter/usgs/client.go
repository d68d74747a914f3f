// Package usgs fetches earthquake summary feeds from the USGS GeoJSON API.
package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// DefaultFeedURL is the all-magnitudes, past-week summary feed.
const DefaultFeedURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"

// maxBodyBytes bounds the feed body read into memory. The weekly feed is a
// few megabytes.
const maxBodyBytes = 64 << 20

// Client implements store.FeedFetcher over HTTP.
type Client struct {
	httpClient *http.Client
	feedURL    string
	logger     *slog.Logger
}

// NewClient creates a feed client for feedURL.
func NewClient(feedURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		feedURL: feedURL,
		logger:  logger,
	}
}

// FetchFeed downloads and shape-checks one feed document. Transport errors,
// non-2xx responses, and documents without a features array are errors.
func (c *Client) FetchFeed(ctx context.Context) (domain.FeedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return domain.FeedDocument{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeedDocument{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FeedDocument{}, fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.FeedDocument{}, fmt.Errorf("read feed body: %w", err)
	}

	doc, err := domain.ParseFeed(body)
	if err != nil {
		return domain.FeedDocument{}, err
	}

	c.logger.Debug("feed fetched", "features", len(doc.Features), "bytes", len(body))
	return doc, nil
}
