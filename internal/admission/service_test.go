package admission

import (
	"bytes"
	"testing"

	payloadschema "horse.fit/gazette/schema"
)

func TestRequestFromPayloadMapsFields(t *testing.T) {
	t.Parallel()

	body := "Full article body."
	author := "J. Reyes"
	publishedAt := "2026-03-01T09:30:00Z"
	score := 75

	payload := &payloadschema.ArticlePayload{
		PayloadVersion:         "v1",
		TopicSlug:              "springfield",
		URL:                    "https://example.com/news/budget",
		Title:                  "Council Approves Budget",
		Body:                   &body,
		Author:                 &author,
		PublishedAt:            &publishedAt,
		RegionalRelevanceScore: &score,
		KeywordMatches:         []string{"council", "budget"},
	}

	req, err := RequestFromPayload(payload)
	if err != nil {
		t.Fatalf("RequestFromPayload returned error: %v", err)
	}
	if req.TopicSlug != "springfield" || req.Title != "Council Approves Budget" {
		t.Fatalf("basic fields not mapped: %+v", req)
	}
	if req.Body != body || req.Author != author {
		t.Fatalf("optional fields not mapped: %+v", req)
	}
	if req.PublishedAt == nil || req.PublishedAt.UTC().Format("2006-01-02") != "2026-03-01" {
		t.Fatalf("published_at not parsed: %v", req.PublishedAt)
	}
	if req.RegionalRelevanceScore == nil || *req.RegionalRelevanceScore != 75 {
		t.Fatalf("relevance score not mapped: %v", req.RegionalRelevanceScore)
	}
}

func TestRequestFromPayloadRejectsBadTimestamp(t *testing.T) {
	t.Parallel()

	bad := "yesterday"
	payload := &payloadschema.ArticlePayload{
		TopicSlug:   "springfield",
		URL:         "https://example.com/a",
		Title:       "T",
		PublishedAt: &bad,
	}
	if _, err := RequestFromPayload(payload); err == nil {
		t.Fatalf("expected error for non-RFC3339 published_at")
	}
}

func TestRequestFromPayloadNil(t *testing.T) {
	t.Parallel()

	if _, err := RequestFromPayload(nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestContentChecksumStable(t *testing.T) {
	t.Parallel()

	a := ContentChecksum("Council Approves Budget", "The council voted 5-2.", "J. Reyes")
	b := ContentChecksum("Council Approves Budget", "The council voted 5-2.", "J. Reyes")
	if !bytes.Equal(a, b) {
		t.Fatalf("checksum not stable across identical inputs")
	}
	if len(a) != 32 {
		t.Fatalf("checksum length = %d, want 32", len(a))
	}
}

func TestContentChecksumTrimsWhitespace(t *testing.T) {
	t.Parallel()

	a := ContentChecksum("  Council Approves Budget  ", "Body.", "J. Reyes")
	b := ContentChecksum("Council Approves Budget", "Body.", "J. Reyes")
	if !bytes.Equal(a, b) {
		t.Fatalf("checksum should ignore surrounding whitespace")
	}
}

func TestContentChecksumFieldBoundaries(t *testing.T) {
	t.Parallel()

	// Field content must not bleed across the separator: moving text
	// between title and body has to change the hash.
	a := ContentChecksum("Council Approves", "Budget body", "")
	b := ContentChecksum("Council Approves Budget", "body", "")
	if bytes.Equal(a, b) {
		t.Fatalf("checksum collided across field boundaries")
	}
}

func TestContentChecksumDiffers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		title1, body1, author1 string
		title2, body2, author2 string
	}{
		{"title", "A", "body", "x", "B", "body", "x"},
		{"body", "A", "body one", "x", "A", "body two", "x"},
		{"author", "A", "body", "x", "A", "body", "y"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := ContentChecksum(tt.title1, tt.body1, tt.author1)
			b := ContentChecksum(tt.title2, tt.body2, tt.author2)
			if bytes.Equal(a, b) {
				t.Fatalf("checksums equal despite differing %s", tt.name)
			}
		})
	}
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "example.com", "example.com"},
		{"with path", "example.com/news/2026/story", "example.com"},
		{"with query", "example.com?page=2", "example.com"},
		{"subdomain", "news.example.com/a", "news.example.com"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DomainOf(tt.in); got != tt.want {
				t.Fatalf("DomainOf(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
