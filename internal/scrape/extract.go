package scrape

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/chanwatch/chanwatch/internal/channel"
)

// Markers for the JSON blocks channel pages embed in script tags.
const (
	initialDataMarker = "ytInitialData"
	pageConfigMarker  = "ytcfg.set("
)

// deepSearchMaxDepth bounds the last-resort tree walk; the interesting keys
// sit well above this depth on real pages.
const deepSearchMaxDepth = 24

// ExtractID runs the extraction priority chain over a fetched document and
// returns the first format-valid channel identifier. Stages are ordered
// strict to loose; every stage validates its candidate so look-alike values
// from unrelated fields are rejected. A failed stage falls through, it never
// aborts the chain.
func ExtractID(body []byte) (string, bool) {
	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(body))

	initialData := ""
	if docErr == nil {
		initialData = scriptJSON(doc, initialDataMarker)
	}
	if initialData == "" {
		initialData = rawJSONBlock(body, initialDataMarker)
	}

	// 1. The structured metadata block's explicit identifier field.
	if initialData != "" {
		if id := gjson.Get(initialData, "metadata.channelMetadataRenderer.externalId").String(); channel.ValidID(id) {
			return id, true
		}
		// 2. Canonical-URL fields inside the same block.
		for _, path := range []string{
			"metadata.channelMetadataRenderer.channelUrl",
			"metadata.channelMetadataRenderer.vanityChannelUrl",
			"microformat.microformatDataRenderer.urlCanonical",
		} {
			if id, ok := channel.IDFromPath(gjson.Get(initialData, path).String()); ok {
				return id, true
			}
		}
	}

	// 3. Canonical link / og:url tags.
	if docErr == nil {
		if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
			if id, ok := channel.IDFromPath(href); ok {
				return id, true
			}
		}
		if content, ok := doc.Find(`meta[property="og:url"]`).Attr("content"); ok {
			if id, ok := channel.IDFromPath(content); ok {
				return id, true
			}
		}
	}

	// 4. An identifier-shaped path anywhere in the raw document.
	if id, ok := channel.IDFromPath(string(body)); ok {
		return id, true
	}

	// 5. The secondary page-config block's identifier field.
	if cfg := rawJSONBlock(body, pageConfigMarker); cfg != "" {
		if id := gjson.Get(cfg, "CHANNEL_ID").String(); channel.ValidID(id) {
			return id, true
		}
	}

	// 6. Last resort: bounded-depth deep search of the parsed initial-data
	// tree for any channelId key.
	if initialData != "" {
		if id, ok := deepFindChannelID(gjson.Parse(initialData), deepSearchMaxDepth); ok {
			return id, true
		}
	}

	return "", false
}

// scriptJSON scans script tags for marker and returns the balanced JSON
// object that follows it.
func scriptJSON(doc *goquery.Document, marker string) string {
	var out string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, marker) {
			return true
		}
		if block := rawJSONBlock([]byte(text), marker); block != "" {
			out = block
			return false
		}
		return true
	})
	return out
}

// rawJSONBlock finds marker in body and returns the first balanced JSON
// object after it, or "" when none parses.
func rawJSONBlock(body []byte, marker string) string {
	idx := bytes.Index(body, []byte(marker))
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(marker):]
	start := bytes.IndexByte(rest, '{')
	if start < 0 {
		return ""
	}
	block, ok := balancedJSON(rest[start:])
	if !ok || !gjson.ValidBytes(block) {
		return ""
	}
	return string(block)
}

// balancedJSON returns the prefix of b that forms one balanced JSON object,
// tracking strings and escapes so braces inside values do not miscount.
func balancedJSON(b []byte) ([]byte, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, c := range b {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return b[:i+1], true
			}
		}
	}
	return nil, false
}

// deepFindChannelID walks the parsed JSON tree looking for a channelId key
// whose value is a format-valid identifier. Depth is bounded; parsed JSON is
// acyclic so no visited set is needed.
func deepFindChannelID(v gjson.Result, depth int) (string, bool) {
	if depth <= 0 {
		return "", false
	}
	var found string
	v.ForEach(func(key, val gjson.Result) bool {
		if key.String() == "channelId" && val.Type == gjson.String && channel.ValidID(val.String()) {
			found = val.String()
			return false
		}
		if val.IsObject() || val.IsArray() {
			if id, ok := deepFindChannelID(val, depth-1); ok {
				found = id
				return false
			}
		}
		return true
	})
	return found, found != ""
}
