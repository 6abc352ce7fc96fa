package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateArticlePayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"topic_slug":"riverton-local",
		"url":"https://example.com/news/council-vote",
		"title":"Council approves new housing plan",
		"body":"The council voted 7-2 on Tuesday...",
		"author":"Jane Reporter",
		"published_at":"2026-08-30T09:00:00Z",
		"language":"en",
		"source_feed_url":"https://example.com/rss.xml",
		"regional_relevance_score":35,
		"keyword_matches":["council","housing"]
	}`)

	item, err := ValidateArticlePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if item.TopicSlug != "riverton-local" {
		t.Fatalf("expected topic_slug=riverton-local, got %q", item.TopicSlug)
	}
	if item.RegionalRelevanceScore == nil || *item.RegionalRelevanceScore != 35 {
		t.Fatalf("unexpected relevance score: %v", item.RegionalRelevanceScore)
	}
}

func TestValidateArticlePayload_MissingURL(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"topic_slug":"riverton-local",
		"title":"Missing url"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for missing url")
	}
}

func TestValidateArticlePayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"topic_slug":"riverton-local",
		"url":"https://example.com/a",
		"title":"   "
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateArticlePayload_BadPublishedAt(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"topic_slug":"riverton-local",
		"url":"https://example.com/a",
		"title":"Title",
		"published_at":"yesterday"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for non-RFC3339 published_at")
	}
}

func TestValidateArticlePayload_WrongVersion(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v2",
		"topic_slug":"riverton-local",
		"url":"https://example.com/a",
		"title":"Title"
	}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for unsupported payload_version")
	}
}

func TestValidateArticlePayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","topic_slug":"t","url":"https://x.com/a","title":"T"} {}`)

	if _, err := ValidateArticlePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for trailing JSON content")
	}
}
