package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testID  = "UCdddddddddddddddddddd12"
	otherID = "UCeeeeeeeeeeeeeeeeeeee12"
)

func page(body string) []byte {
	return []byte("<html><head></head><body>" + body + "</body></html>")
}

func TestExtractID_ExternalIDField(t *testing.T) {
	t.Parallel()

	body := page(`<script>var ytInitialData = {"metadata":{"channelMetadataRenderer":{"externalId":"` + testID + `","title":"X"}}};</script>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_CanonicalURLInsideBlock(t *testing.T) {
	t.Parallel()

	body := page(`<script>var ytInitialData = {"metadata":{"channelMetadataRenderer":{"channelUrl":"https://www.youtube.com/channel/` + testID + `"}}};</script>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_CanonicalLinkTag(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><link rel="canonical" href="https://www.youtube.com/channel/` + testID + `"></head><body></body></html>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_OGURLTag(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><meta property="og:url" content="https://m.youtube.com/channel/` + testID + `"></head><body></body></html>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_BareIdentifierPath(t *testing.T) {
	t.Parallel()

	body := page(`<a href="/channel/` + testID + `/videos">videos</a>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_PageConfigBlock(t *testing.T) {
	t.Parallel()

	body := page(`<script>ytcfg.set({"CHANNEL_ID":"` + testID + `","OTHER":"x"});</script>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_DeepSearchFallback(t *testing.T) {
	t.Parallel()

	// No canonical fields at all; the id only appears deep in a renderer
	// subtree under a channelId key.
	body := page(`<script>var ytInitialData = {"contents":{"rows":[{"renderer":{"nested":{"channelId":"` + testID + `"}}}]}};</script>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_PriorityOrder(t *testing.T) {
	t.Parallel()

	// externalId must win over a different id found via deep search.
	body := page(`<script>var ytInitialData = {"metadata":{"channelMetadataRenderer":{"externalId":"` + testID + `"}},"related":{"channelId":"` + otherID + `"}};</script>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestExtractID_RejectsLookAlikes(t *testing.T) {
	t.Parallel()

	cases := [][]byte{
		page(`<script>var ytInitialData = {"metadata":{"channelMetadataRenderer":{"externalId":"UCshort"}}};</script>`),
		page(`<script>var ytInitialData = {"playlist":{"playlistId":"PLaaaaaaaaaaaaaaaaaaaa12"}};</script>`),
		page(`no identifiers here at all`),
		[]byte(``),
	}
	for _, body := range cases {
		if id, ok := ExtractID(body); ok {
			t.Errorf("ExtractID(%q) unexpectedly found %q", truncate(body), id)
		}
	}
}

func TestExtractID_MalformedBlockFallsThrough(t *testing.T) {
	t.Parallel()

	// The initial-data block is broken JSON, but the canonical link still
	// resolves: one bad stage must not abort the chain.
	body := []byte(`<html><head>
		<script>var ytInitialData = {"metadata":{broken</script>
		<link rel="canonical" href="https://www.youtube.com/channel/` + testID + `">
	</head><body></body></html>`)
	id, ok := ExtractID(body)
	require.True(t, ok)
	assert.Equal(t, testID, id)
}

func TestBalancedJSON_StringsWithBraces(t *testing.T) {
	t.Parallel()

	in := []byte(`{"a":"}{\"","b":{"c":1}} trailing`)
	got, ok := balancedJSON(in)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}{\"","b":{"c":1}}`, string(got))

	_, ok = balancedJSON([]byte(`{"never":"closed"`))
	assert.False(t, ok)
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return strings.TrimSpace(s)
}
