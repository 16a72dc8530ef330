// Package fetch implements channel.Fetcher using the Colly collector, with
// bounded timeouts and per-host rate limiting.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	HostRPS   float64
	HostBurst int
}

// Fetcher fetches single documents. Each Fetch clones the base collector so
// per-request hooks never leak between requests.
type Fetcher struct {
	cfg     Config
	base    *colly.Collector
	limiter *hostLimiter
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Fetcher{
		cfg:     cfg,
		base:    c,
		limiter: newHostLimiter(cfg.HostRPS, cfg.HostBurst),
	}
}

// Fetch executes a single HTTP GET. Non-success statuses, network errors,
// and timeouts all surface as errors; callers treat them as soft per-
// candidate failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (channel.Document, error) {
	if err := f.limiter.wait(ctx, rawURL); err != nil {
		return channel.Document{}, err
	}

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result   channel.Document
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		result = channel.Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		f.observe(rawURL, result.StatusCode)
		return channel.Document{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		f.observe(rawURL, result.StatusCode)
		if err != nil {
			return channel.Document{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return channel.Document{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		return result, nil
	}
}

func (f *Fetcher) observe(rawURL string, status int) {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	metrics.ObserveScrapeFetch(host, class)
}
