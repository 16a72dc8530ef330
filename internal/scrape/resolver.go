// Package scrape resolves channel references to canonical identifiers by
// fetching candidate page URLs and extracting the identifier from embedded
// structured data or markup.
package scrape

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/channel"
)

// Resolver tries candidate URLs strictly in order, stopping at the first
// document that yields an identifier. Fetch failures are swallowed per
// candidate; only exhausting all candidates fails the resolution.
type Resolver struct {
	fetcher channel.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a Resolver. timeout bounds each candidate fetch.
func New(fetcher channel.Fetcher, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, timeout: timeout, logger: logger}
}

// Resolve fetches candidates in order and returns the first extracted
// identifier.
func (r *Resolver) Resolve(ctx context.Context, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		id, ok := r.resolveOne(ctx, candidate)
		if ok {
			return id, true
		}
	}
	return "", false
}

func (r *Resolver) resolveOne(ctx context.Context, candidate string) (string, bool) {
	doc, err := r.fetch(ctx, candidate)
	if err != nil {
		r.logger.Debug("candidate fetch failed", zap.String("url", candidate), zap.Error(err))
		return "", false
	}
	if id, ok := ExtractID(doc.Body); ok {
		return id, true
	}
	// A consent interstitial hides the real page behind a continuation
	// link; follow it once and rerun extraction.
	if next, ok := consentContinueURL(doc); ok {
		followed, err := r.fetch(ctx, next)
		if err != nil {
			r.logger.Debug("consent follow failed", zap.String("url", next), zap.Error(err))
			return "", false
		}
		return ExtractID(followed.Body)
	}
	return "", false
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (channel.Document, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.fetcher.Fetch(fetchCtx, rawURL)
}

// consentContinueURL extracts the continuation target from a consent
// interstitial, either a link carrying a continue= parameter or a form with
// a hidden continue input.
func consentContinueURL(doc channel.Document) (string, bool) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return "", false
	}

	var target string
	parsed.Find(`a[href*="continue="]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if u, err := url.Parse(href); err == nil {
			if cont := u.Query().Get("continue"); cont != "" {
				target = cont
				return false
			}
		}
		return true
	})
	if target == "" {
		if v, ok := parsed.Find(`form input[name="continue"]`).Attr("value"); ok {
			target = v
		}
	}
	if target == "" {
		return "", false
	}
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	return u.String(), true
}
