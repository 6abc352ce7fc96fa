package admission

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/config"
	"horse.fit/gazette/internal/db"
	"horse.fit/gazette/internal/relevance"
)

// Integration tests run against a real database and skip when
// GAZETTE_TEST_DATABASE_URL is unset. Rows are namespaced by a per-test
// slug so repeated runs against the same database do not collide.
const testDatabaseEnv = "GAZETTE_TEST_DATABASE_URL"

func newTestPool(t *testing.T) *db.Pool {
	t.Helper()

	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := db.NewPool(ctx, &config.Config{
		Environment: "test",
		LogLevel:    "warn",
		DatabaseURL: dsn,
		DBMinConns:  1,
		DBMaxConns:  4,
	})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func uniqueSlug(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func createTestTopic(t *testing.T, pool *db.Pool, slug string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(), `
INSERT INTO pipeline.topics (topic_slug, topic_name, topic_type)
VALUES ($1, $1, 'regional')
RETURNING topic_id
`, slug).Scan(&id)
	if err != nil {
		t.Fatalf("create topic %s: %v", slug, err)
	}
	return id
}

func createTestSource(t *testing.T, pool *db.Pool, feedURL, domain, sourceType string, credibility int) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(), `
INSERT INTO pipeline.content_sources (source_name, feed_url, canonical_domain, source_type, credibility_score)
VALUES ($1, $2, $1, $3, $4)
RETURNING source_id
`, domain, feedURL, sourceType, credibility).Scan(&id)
	if err != nil {
		t.Fatalf("create source %s: %v", domain, err)
	}
	return id
}

func topicArticleStatus(t *testing.T, pool *db.Pool, topicArticleID int64) string {
	t.Helper()

	var status string
	err := pool.QueryRow(context.Background(), `
SELECT processing_status FROM pipeline.topic_articles WHERE topic_article_id = $1
`, topicArticleID).Scan(&status)
	if err != nil {
		t.Fatalf("load topic article %d status: %v", topicArticleID, err)
	}
	return status
}

func TestSubmitExactDuplicateSameTopic(t *testing.T) {
	pool := newTestPool(t)
	svc := NewService(pool, zerolog.Nop())
	ctx := context.Background()

	slug := uniqueSlug("dup")
	topicID := createTestTopic(t, pool, slug)
	req := Request{
		TopicSlug: slug,
		Title:     "River crest expected downtown " + slug,
		URL:       fmt.Sprintf("https://%s.example.com/news/river-crest", slug),
	}

	first, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Outcome != OutcomeAccepted {
		t.Fatalf("first outcome: got %s want %s", first.Outcome, OutcomeAccepted)
	}

	second, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Outcome != OutcomeDuplicate {
		t.Fatalf("second outcome: got %s want %s", second.Outcome, OutcomeDuplicate)
	}
	if second.DuplicateOfID == nil || *second.DuplicateOfID != first.TopicArticleID {
		t.Fatalf("duplicate should point at the first row %d, got %v", first.TopicArticleID, second.DuplicateOfID)
	}

	var rows int64
	err = pool.QueryRow(ctx, `
SELECT COUNT(*) FROM pipeline.topic_articles WHERE topic_id = $1
`, topicID).Scan(&rows)
	if err != nil {
		t.Fatalf("count topic articles: %v", err)
	}
	if rows != 1 {
		t.Fatalf("resubmission must not create a second row, got %d", rows)
	}
}

func TestSubmitSharesContentAcrossTopics(t *testing.T) {
	pool := newTestPool(t)
	svc := NewService(pool, zerolog.Nop())
	ctx := context.Background()

	slugA := uniqueSlug("iso-a")
	slugB := uniqueSlug("iso-b")
	createTestTopic(t, pool, slugA)
	createTestTopic(t, pool, slugB)

	url := fmt.Sprintf("https://%s.example.com/news/shared-story", slugA)
	title := "Harbor bridge reopens after repairs " + slugA

	resA, err := svc.Submit(ctx, Request{TopicSlug: slugA, Title: title, URL: url})
	if err != nil {
		t.Fatalf("submit to first topic: %v", err)
	}
	resB, err := svc.Submit(ctx, Request{TopicSlug: slugB, Title: title, URL: url})
	if err != nil {
		t.Fatalf("submit to second topic: %v", err)
	}

	if resA.Outcome != OutcomeAccepted || resB.Outcome != OutcomeAccepted {
		t.Fatalf("both topics should admit independently, got %s and %s", resA.Outcome, resB.Outcome)
	}
	if resA.TopicArticleID == resB.TopicArticleID {
		t.Fatalf("topics must get distinct topic article rows, both got %d", resA.TopicArticleID)
	}
	if resA.SharedContentID != resB.SharedContentID {
		t.Fatalf("content should be shared across topics, got %d and %d", resA.SharedContentID, resB.SharedContentID)
	}

	var contentRows int64
	err = pool.QueryRow(ctx, `
SELECT COUNT(*) FROM pipeline.shared_article_content WHERE content_id = $1
`, resA.SharedContentID).Scan(&contentRows)
	if err != nil {
		t.Fatalf("count shared content: %v", err)
	}
	if contentRows != 1 {
		t.Fatalf("expected one shared content row, got %d", contentRows)
	}
}

func TestSubmitFlagsNearDuplicateForReview(t *testing.T) {
	pool := newTestPool(t)
	svc := NewService(pool, zerolog.Nop())
	ctx := context.Background()

	slug := uniqueSlug("review")
	createTestTopic(t, pool, slug)

	base := fmt.Sprintf("https://%s.example.com/news/", slug)
	first, err := svc.Submit(ctx, Request{
		TopicSlug: slug,
		Title:     "City council approves the new riverside flood barrier plan",
		URL:       base + "barrier-plan",
	})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Outcome != OutcomeAccepted {
		t.Fatalf("first outcome: got %s want %s", first.Outcome, OutcomeAccepted)
	}

	second, err := svc.Submit(ctx, Request{
		TopicSlug: slug,
		Title:     "City council approves the new riverside flood barrier plans",
		URL:       base + "barrier-plan-update",
	})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Outcome != OutcomePendingReview {
		t.Fatalf("near-duplicate title outcome: got %s want %s", second.Outcome, OutcomePendingReview)
	}
	if len(second.DuplicateMatches) == 0 {
		t.Fatalf("expected at least one duplicate match")
	}
	if got := topicArticleStatus(t, pool, second.TopicArticleID); got != db.StatusDuplicatePending {
		t.Fatalf("flagged article status: got %s want %s", got, db.StatusDuplicatePending)
	}

	var pending int64
	err = pool.QueryRow(ctx, `
SELECT COUNT(*) FROM pipeline.article_duplicates
WHERE duplicate_topic_article_id = $1 AND status = 'pending'
`, second.TopicArticleID).Scan(&pending)
	if err != nil {
		t.Fatalf("count pending pairs: %v", err)
	}
	if pending == 0 {
		t.Fatalf("expected a pending review pair for article %d", second.TopicArticleID)
	}
}

func TestSubmitRejectsBelowRelevanceThreshold(t *testing.T) {
	pool := newTestPool(t)
	svc := NewService(pool, zerolog.Nop())
	ctx := context.Background()

	slug := uniqueSlug("reject")
	createTestTopic(t, pool, slug)
	feedURL := fmt.Sprintf("https://%s.example.com/rss", slug)
	createTestSource(t, pool, feedURL, slug+".example.com", "national", 10)

	score := 5
	res, err := svc.Submit(ctx, Request{
		TopicSlug:              slug,
		Title:                  "Minor roadside event far away " + slug,
		URL:                    fmt.Sprintf("https://%s.example.com/news/minor-event", slug),
		SourceFeedURL:          feedURL,
		RegionalRelevanceScore: &score,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome: got %s want %s", res.Outcome, OutcomeRejected)
	}
	if res.Relevance == nil || res.Relevance.ReasonCode != relevance.ReasonBelowThreshold {
		t.Fatalf("expected rejection reason %s, got %+v", relevance.ReasonBelowThreshold, res.Relevance)
	}
	if got := topicArticleStatus(t, pool, res.TopicArticleID); got != db.StatusDiscarded {
		t.Fatalf("rejected article status: got %s want %s", got, db.StatusDiscarded)
	}
}

func TestResetTopicArticleOnlyFromTerminalStatuses(t *testing.T) {
	pool := newTestPool(t)
	svc := NewService(pool, zerolog.Nop())
	ctx := context.Background()

	slug := uniqueSlug("reset")
	createTestTopic(t, pool, slug)
	feedURL := fmt.Sprintf("https://%s.example.com/rss", slug)
	createTestSource(t, pool, feedURL, slug+".example.com", "national", 10)

	score := 5
	res, err := svc.Submit(ctx, Request{
		TopicSlug:              slug,
		Title:                  "Council agenda roundup " + slug,
		URL:                    fmt.Sprintf("https://%s.example.com/news/agenda", slug),
		SourceFeedURL:          feedURL,
		RegionalRelevanceScore: &score,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome: got %s want %s", res.Outcome, OutcomeRejected)
	}

	if err := svc.ResetTopicArticle(ctx, res.TopicArticleID, "editor requested re-run"); err != nil {
		t.Fatalf("reset discarded article: %v", err)
	}
	if got := topicArticleStatus(t, pool, res.TopicArticleID); got != db.StatusNew {
		t.Fatalf("reset article status: got %s want %s", got, db.StatusNew)
	}

	err = svc.ResetTopicArticle(ctx, res.TopicArticleID, "second reset")
	if err == nil {
		t.Fatalf("resetting a new article should fail")
	}
	if !strings.Contains(err.Error(), "not in a resettable status") {
		t.Fatalf("unexpected reset error: %v", err)
	}
}
