package queue_test

import (
	"testing"

	"reelnotes/internal/queue"
)

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "https://instagram.com/reel/ABC123", "https://instagram.com/reel/ABC123"},
		{"strips www", "https://www.instagram.com/reel/ABC123", "https://instagram.com/reel/ABC123"},
		{"strips trailing slash", "https://instagram.com/reel/ABC123/", "https://instagram.com/reel/ABC123"},
		{"strips query", "https://instagram.com/reel/ABC123?igsh=token&utm_source=share", "https://instagram.com/reel/ABC123"},
		{"strips fragment", "https://instagram.com/p/DEF456#comments", "https://instagram.com/p/DEF456"},
		{"lowercases host", "https://Instagram.com/p/DEF456", "https://instagram.com/p/DEF456"},
		{"preserves shortcode case", "https://instagram.com/reel/AbC-12_3", "https://instagram.com/reel/AbC-12_3"},
		{"whitespace trimmed", "  https://instagram.com/reel/ABC123  ", "https://instagram.com/reel/ABC123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := queue.CanonicalURL(tc.in)
			if err != nil {
				t.Fatalf("CanonicalURL(%q) returned error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalURLRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not a url", "/reel/ABC"} {
		if _, err := queue.CanonicalURL(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestShortcode(t *testing.T) {
	cases := map[string]string{
		"https://instagram.com/reel/ABC123":  "ABC123",
		"https://instagram.com/p/DEF-45_6":   "DEF-45_6",
		"https://instagram.com/reels/GHI789": "GHI789",
		"https://instagram.com/user/profile": "",
		"https://instagram.com/":             "",
	}
	for in, want := range cases {
		if got := queue.Shortcode(in); got != want {
			t.Fatalf("Shortcode(%q) = %q, want %q", in, got, want)
		}
	}
}
