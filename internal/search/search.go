// Package search resolves references via the remote search endpoint when
// document scraping fails. This path spends remote quota, so it runs last.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/metrics"
)

// Scores assigned to result matches, strongest first. Anything below zero
// never wins.
const (
	scoreExactCustomURL = 100
	scoreExactTitle     = 90
	scoreSubstringURL   = 50
	scoreSubstringTitle = 40
	scoreNoMatch        = -1
)

// Resolver queries the remote search endpoint and scores the results.
type Resolver struct {
	dir    channel.Directory
	logger *zap.Logger
}

// New builds a Resolver.
func New(dir channel.Directory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{dir: dir, logger: logger}
}

// Resolve searches for the normalized reference's name, trying up to two
// query variants (with and without the handle sigil), and returns the
// best-scoring format-valid identifier. Ties keep the first-seen candidate.
func (r *Resolver) Resolve(ctx context.Context, nref channel.NormalizedRef) (string, bool) {
	name := strings.ToLower(strings.TrimPrefix(nref.CanonicalValue, "@"))
	if name == "" {
		return "", false
	}

	queries := []string{name}
	if nref.Kind == channel.KindHandle {
		queries = []string{"@" + name, name}
	}

	bestID := ""
	bestScore := scoreNoMatch
	for _, q := range queries {
		items, err := r.dir.Search(ctx, q)
		if err != nil {
			r.logger.Debug("search query failed", zap.String("query", q), zap.Error(err))
			metrics.ObserveRemoteCall("search", "error")
			continue
		}
		metrics.ObserveRemoteCall("search", "ok")
		for _, item := range items {
			if !channel.ValidID(item.ChannelID) {
				continue
			}
			if s := score(item, name); s > bestScore {
				bestScore = s
				bestID = item.ChannelID
			}
		}
	}
	if bestScore < 0 {
		return "", false
	}
	return bestID, true
}

func score(item channel.SearchResult, name string) int {
	customURL := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(item.CustomURL, "/"), "@"))
	title := strings.ToLower(item.Title)
	switch {
	case customURL != "" && customURL == name:
		return scoreExactCustomURL
	case title == name:
		return scoreExactTitle
	case customURL != "" && strings.Contains(customURL, name):
		return scoreSubstringURL
	case strings.Contains(title, name):
		return scoreSubstringTitle
	}
	return scoreNoMatch
}
