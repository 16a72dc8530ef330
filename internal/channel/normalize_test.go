package channel

import (
	"strings"
	"testing"
)

const testID = "UCabcdefghijklmnopqrst12"

func TestNormalize_CanonicalID(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(Hosts{})
	got := n.Normalize("  " + testID + " ")
	if got.Kind != KindID {
		t.Fatalf("kind = %s, want %s", got.Kind, KindID)
	}
	if got.CanonicalValue != testID {
		t.Fatalf("canonical = %q, want %q (IDs must not be lower-cased)", got.CanonicalValue, testID)
	}
	if len(got.CandidateURLs) != 0 {
		t.Fatalf("ID refs need no candidates, got %v", got.CandidateURLs)
	}
}

func TestNormalize_Handle(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(Hosts{})
	got := n.Normalize("@SomeCreator")
	if got.Kind != KindHandle {
		t.Fatalf("kind = %s, want %s", got.Kind, KindHandle)
	}
	if got.CanonicalValue != "somecreator" {
		t.Fatalf("canonical = %q, want lower-cased handle", got.CanonicalValue)
	}
	want := []string{
		"https://www.youtube.com/@somecreator",
		"https://www.youtube.com/@somecreator/about",
		"https://www.youtube.com/@somecreator/featured",
		"https://m.youtube.com/@somecreator",
	}
	if len(got.CandidateURLs) != 5 {
		t.Fatalf("expected 5 candidates, got %d: %v", len(got.CandidateURLs), got.CandidateURLs)
	}
	for i, w := range want {
		if got.CandidateURLs[i] != w {
			t.Errorf("candidate[%d] = %q, want %q", i, got.CandidateURLs[i], w)
		}
	}
	if !strings.HasPrefix(got.CandidateURLs[4], "https://consent.youtube.com/m?continue=") {
		t.Errorf("last candidate should be the consent wrapper, got %q", got.CandidateURLs[4])
	}
}

func TestNormalize_Paths(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(Hosts{})
	cases := []struct {
		in        string
		kind      RefKind
		canonical string
	}{
		{"/channel/" + testID, KindID, testID},
		{"/c/LegacyName", KindVanityC, "legacyname"},
		{"/user/OldSchool", KindVanityUser, "oldschool"},
		{"/@Handle", KindHandle, "handle"},
		{"https://www.youtube.com/@Handle", KindHandle, "handle"},
		{"https://youtube.com/c/LegacyName", KindVanityC, "legacyname"},
		{"https://m.youtube.com/channel/" + testID, KindID, testID},
	}
	for _, tc := range cases {
		got := n.Normalize(tc.in)
		if got.Kind != tc.kind || got.CanonicalValue != tc.canonical {
			t.Errorf("Normalize(%q) = %s/%q, want %s/%q", tc.in, got.Kind, got.CanonicalValue, tc.kind, tc.canonical)
		}
	}
}

func TestNormalize_ForeignURLAndGarbage(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(Hosts{})

	got := n.Normalize("https://Example.com/some/page")
	if got.Kind != KindURL {
		t.Fatalf("kind = %s, want %s", got.Kind, KindURL)
	}
	if len(got.CandidateURLs) != 1 || got.CandidateURLs[0] != "https://example.com/some/page" {
		t.Fatalf("URL refs are their own sole candidate, got %v", got.CandidateURLs)
	}

	for _, in := range []string{"", "   ", "not a url", "://nope", "/watch"} {
		if got := n.Normalize(in); got.Kind != KindUnknown {
			t.Errorf("Normalize(%q).Kind = %s, want unknown", in, got.Kind)
		}
		if got := n.Normalize(in); len(got.CandidateURLs) != 0 {
			t.Errorf("Normalize(%q) produced candidates %v", in, got.CandidateURLs)
		}
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(Hosts{})
	if key := n.Normalize("@Name").CacheKey(); key != "handle:name" {
		t.Fatalf("cache key = %q", key)
	}
	if key := n.Normalize("???").CacheKey(); key != "" {
		t.Fatalf("unknown refs must have no cache key, got %q", key)
	}
}

func TestValidID(t *testing.T) {
	t.Parallel()

	good := []string{testID, "UC_-abcdefghijklmnopqr12"}
	bad := []string{"", "UCshort", "uc" + testID[2:], testID + "x", "ABabcdefghijklmnopqrst12"}
	for _, s := range good {
		if !ValidID(s) {
			t.Errorf("ValidID(%q) = false, want true", s)
		}
	}
	for _, s := range bad {
		if ValidID(s) {
			t.Errorf("ValidID(%q) = true, want false", s)
		}
	}
}

func TestIDFromPath(t *testing.T) {
	t.Parallel()

	id, ok := IDFromPath("https://www.youtube.com/channel/" + testID + "?view=videos")
	if !ok || id != testID {
		t.Fatalf("IDFromPath = %q/%v", id, ok)
	}
	if _, ok := IDFromPath("/channel/UCnotlongenough"); ok {
		t.Fatal("short token must not match")
	}
}
