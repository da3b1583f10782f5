package service

import (
	"regexp"
	"strings"
	"testing"
)

var slugShape = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func TestGenerateSlugFoldsAccentsAndPunctuation(t *testing.T) {
	cases := []struct {
		title string
		base  string
	}{
		{"Marketing Maturity", "marketing-maturity"},
		{"Qual é o seu nível?", "qual-e-o-seu-nivel"},
		{"  Promoção!! 2024  ", "promocao-2024"},
		{"A/B Test: ready?", "a-b-test-ready"},
	}

	for _, tc := range cases {
		slug := GenerateSlug(tc.title)
		if !slugShape.MatchString(slug) {
			t.Errorf("GenerateSlug(%q) = %q, not a valid slug", tc.title, slug)
		}
		if !strings.HasPrefix(slug, tc.base+"-") {
			t.Errorf("GenerateSlug(%q) = %q, want prefix %q", tc.title, slug, tc.base+"-")
		}
		// Base plus dash plus the 5-char random suffix.
		if len(slug) != len(tc.base)+6 {
			t.Errorf("GenerateSlug(%q) = %q, want 5-char suffix", tc.title, slug)
		}
	}
}

func TestGenerateSlugSuffixOnlyForEmptyBase(t *testing.T) {
	slug := GenerateSlug("!!!")
	if len(slug) != 5 || !slugShape.MatchString(slug) {
		t.Fatalf("GenerateSlug(%q) = %q, want bare 5-char suffix", "!!!", slug)
	}
}

func TestGenerateSlugUniqueAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		slug := GenerateSlug("Same Title")
		if seen[slug] {
			t.Fatalf("duplicate slug %q", slug)
		}
		seen[slug] = true
	}
}
