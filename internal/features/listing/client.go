package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-marketplace/internal/config"
)

// Client is the narrow interface the sync engine consumes. Implementations
// talk to the external business-listing provider.
type Client interface {
	FetchLocationDetails(ctx context.Context, locationRef string) (*Snapshot, error)
	FetchReviews(ctx context.Context, businessID string) (*ReviewPage, error)
	FetchPosts(ctx context.Context, businessID string) (*PostPage, error)
	FetchInsights(ctx context.Context, businessID string, dateRange DateRange) (*Insights, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(cfg *config.Config) Client {
	return &HTTPClient{
		baseURL: cfg.ListingAPIBase,
		token:   cfg.ListingAPIToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *HTTPClient) FetchLocationDetails(ctx context.Context, locationRef string) (*Snapshot, error) {
	// locationRef is a provider resource path like "locations/<id>".
	var snapshot Snapshot
	path := "/" + strings.TrimPrefix(locationRef, "/")
	if err := c.getJSON(ctx, path, nil, &snapshot); err != nil {
		return nil, fmt.Errorf("fetch location details: %w", err)
	}
	return &snapshot, nil
}

func (c *HTTPClient) FetchReviews(ctx context.Context, businessID string) (*ReviewPage, error) {
	var page ReviewPage
	path := fmt.Sprintf("/locations/%s/reviews", url.PathEscape(businessID))
	if err := c.getJSON(ctx, path, nil, &page); err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}
	return &page, nil
}

func (c *HTTPClient) FetchPosts(ctx context.Context, businessID string) (*PostPage, error) {
	var page PostPage
	path := fmt.Sprintf("/locations/%s/localPosts", url.PathEscape(businessID))
	if err := c.getJSON(ctx, path, nil, &page); err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	return &page, nil
}

func (c *HTTPClient) FetchInsights(ctx context.Context, businessID string, dateRange DateRange) (*Insights, error) {
	query := url.Values{}
	if !dateRange.Start.IsZero() {
		query.Set("start", dateRange.Start.Format(time.RFC3339))
	}
	if !dateRange.End.IsZero() {
		query.Set("end", dateRange.End.Format(time.RFC3339))
	}

	var insights Insights
	path := fmt.Sprintf("/locations/%s/insights", url.PathEscape(businessID))
	if err := c.getJSON(ctx, path, query, &insights); err != nil {
		return nil, fmt.Errorf("fetch insights: %w", err)
	}
	return &insights, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("listing API returned status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
