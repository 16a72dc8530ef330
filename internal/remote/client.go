// Package remote implements channel.Directory against the directory API
// over HTTP with bearer authentication. Every call is bounded by a
// per-request timeout and reports authorization expiry as
// channel.ErrAuthExpired so callers can invalidate the credential.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/auth"
	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/metrics"
)

// ErrNoCredential is returned when no valid bearer credential is available.
var ErrNoCredential = errors.New("no valid credential")

// Config controls the client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

// Client talks to the remote directory API.
type Client struct {
	cfg    Config
	http   *http.Client
	creds  auth.Source
	logger *zap.Logger
}

// New builds a Client. httpClient may be nil, in which case a default
// client is used (timeouts are enforced per call via context).
func New(cfg Config, httpClient *http.Client, creds auth.Source, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 50 {
		cfg.PageSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, creds: creds, logger: logger}
}

type subscriptionsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			ResourceID struct {
				ChannelID string `json:"channelId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
		Snippet struct {
			Title     string `json:"title"`
			CustomURL string `json:"customUrl"`
		} `json:"snippet"`
	} `json:"items"`
}

// ListSubscriptions implements channel.Directory.
func (c *Client) ListSubscriptions(ctx context.Context, pageToken string) (channel.SubscriptionPage, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("mine", "true")
	q.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var resp subscriptionsResponse
	if err := c.get(ctx, "subscriptions", q, &resp); err != nil {
		metrics.ObserveRemoteCall("subscriptions.list", "error")
		return channel.SubscriptionPage{}, err
	}
	metrics.ObserveRemoteCall("subscriptions.list", "ok")

	page := channel.SubscriptionPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		page.ChannelIDs = append(page.ChannelIDs, item.Snippet.ResourceID.ChannelID)
	}
	return page, nil
}

// IsSubscribed implements channel.Directory.
func (c *Client) IsSubscribed(ctx context.Context, channelID string) (bool, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("mine", "true")
	q.Set("forChannelId", channelID)
	q.Set("maxResults", "1")

	var resp subscriptionsResponse
	if err := c.get(ctx, "subscriptions", q, &resp); err != nil {
		metrics.ObserveRemoteCall("subscriptions.check", "error")
		return false, err
	}
	metrics.ObserveRemoteCall("subscriptions.check", "ok")
	return len(resp.Items) > 0, nil
}

// Search implements channel.Directory.
func (c *Client) Search(ctx context.Context, query string) ([]channel.SearchResult, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "channel")
	q.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
	q.Set("q", query)

	var resp searchResponse
	if err := c.get(ctx, "search", q, &resp); err != nil {
		return nil, err
	}

	results := make([]channel.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, channel.SearchResult{
			ChannelID: item.ID.ChannelID,
			Title:     item.Snippet.Title,
			CustomURL: item.Snippet.CustomURL,
		})
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	cred, ok := c.creds.Token()
	if !ok {
		return ErrNoCredential
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqURL := c.cfg.BaseURL + "/" + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", endpoint, channel.ErrAuthExpired)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
