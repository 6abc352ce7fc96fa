package stories

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/admission"
	"horse.fit/gazette/internal/config"
	"horse.fit/gazette/internal/db"
)

// Integration tests run against a real database and skip when
// GAZETTE_TEST_DATABASE_URL is unset.
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

// publishTestStory walks one article through the whole lifecycle and
// returns the story id.
func publishTestStory(t *testing.T, pool *db.Pool, slug, title, url, headline string, slides []SlideInput) int64 {
	t.Helper()
	ctx := context.Background()

	res, err := admission.NewService(pool, zerolog.Nop()).Submit(ctx, admission.Request{
		TopicSlug: slug,
		Title:     title,
		URL:       url,
	})
	if err != nil {
		t.Fatalf("submit article: %v", err)
	}
	if res.Outcome != admission.OutcomeAccepted {
		t.Fatalf("submit outcome: got %s want %s", res.Outcome, admission.OutcomeAccepted)
	}

	svc := NewService(pool, zerolog.Nop())
	claimed, err := svc.ClaimTopicArticle(ctx, res.TopicArticleID)
	if err != nil {
		t.Fatalf("claim topic article: %v", err)
	}
	if !claimed {
		t.Fatalf("topic article %d should be claimable", res.TopicArticleID)
	}

	storyID, err := svc.CreateStory(ctx, CreateRequest{
		TopicArticleID: res.TopicArticleID,
		Headline:       headline,
		Slides:         slides,
	})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	if err := svc.MarkStoryReady(ctx, storyID); err != nil {
		t.Fatalf("mark story ready: %v", err)
	}
	if _, err := svc.PublishStory(ctx, storyID); err != nil {
		t.Fatalf("publish story: %v", err)
	}
	return storyID
}

func TestFeedExcludesUnpublishedStories(t *testing.T) {
	pool := newTestPool(t)
	svc := NewService(pool, zerolog.Nop())
	ctx := context.Background()

	slug := uniqueSlug("feed-gate")
	var topicID int64
	err := pool.QueryRow(ctx, `
INSERT INTO pipeline.topics (topic_slug, topic_name, topic_type)
VALUES ($1, $1, 'regional')
RETURNING topic_id
`, slug).Scan(&topicID)
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}

	res, err := admission.NewService(pool, zerolog.Nop()).Submit(ctx, admission.Request{
		TopicSlug: slug,
		Title:     "Ferry timetable changes announced " + slug,
		URL:       fmt.Sprintf("https://%s.example.com/news/ferry", slug),
	})
	if err != nil {
		t.Fatalf("submit article: %v", err)
	}
	if _, err := svc.ClaimTopicArticle(ctx, res.TopicArticleID); err != nil {
		t.Fatalf("claim topic article: %v", err)
	}
	storyID, err := svc.CreateStory(ctx, CreateRequest{
		TopicArticleID: res.TopicArticleID,
		Headline:       "Ferry timetable changes",
		Slides:         []SlideInput{{Content: "New timetable starts Monday."}},
	})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	if err := svc.MarkStoryReady(ctx, storyID); err != nil {
		t.Fatalf("mark story ready: %v", err)
	}

	feed, err := pool.GetTopicStories(ctx, slug, db.FeedFilter{})
	if err != nil {
		t.Fatalf("feed before publish: %v", err)
	}
	if len(feed) != 0 {
		t.Fatalf("ready but unpublished story must stay out of the feed, got %d entries", len(feed))
	}

	if _, err := svc.PublishStory(ctx, storyID); err != nil {
		t.Fatalf("publish story: %v", err)
	}

	feed, err = pool.GetTopicStories(ctx, slug, db.FeedFilter{})
	if err != nil {
		t.Fatalf("feed after publish: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("published story missing from feed, got %d entries", len(feed))
	}
	if len(feed[0].Slides) != 1 || feed[0].Slides[0].SlideNumber != 1 {
		t.Fatalf("feed should carry the story slides, got %+v", feed[0].Slides)
	}
}

func TestFeedKeywordFilterMatchesArticleText(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	slug := uniqueSlug("feed-kw")
	_, err := pool.Exec(ctx, `
INSERT INTO pipeline.topics (topic_slug, topic_name, topic_type)
VALUES ($1, $1, 'regional')
`, slug)
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}

	publishTestStory(t, pool, slug,
		"Harbor bridge reopens after storm repairs "+slug,
		fmt.Sprintf("https://%s.example.com/news/harbor-bridge", slug),
		"Harbor bridge reopens",
		[]SlideInput{{Content: "Crews finished the deck inspection overnight."}},
	)

	// Keyword appears only in the article title, not in keyword_matches.
	feed, err := pool.GetTopicStories(ctx, slug, db.FeedFilter{Keywords: []string{"harbor"}})
	if err != nil {
		t.Fatalf("feed with title keyword: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("keyword in article title should match, got %d entries", len(feed))
	}

	// Keyword appears only in slide content.
	feed, err = pool.GetTopicStories(ctx, slug, db.FeedFilter{Keywords: []string{"inspection"}})
	if err != nil {
		t.Fatalf("feed with slide keyword: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("keyword in slide content should match, got %d entries", len(feed))
	}

	feed, err = pool.GetTopicStories(ctx, slug, db.FeedFilter{Keywords: []string{"zeppelin"}})
	if err != nil {
		t.Fatalf("feed with absent keyword: %v", err)
	}
	if len(feed) != 0 {
		t.Fatalf("absent keyword should match nothing, got %d entries", len(feed))
	}
}

func TestFeedSourceDomainFilterIsSubstring(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	slug := uniqueSlug("feed-src")
	_, err := pool.Exec(ctx, `
INSERT INTO pipeline.topics (topic_slug, topic_name, topic_type)
VALUES ($1, $1, 'regional')
`, slug)
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}

	domain := fmt.Sprintf("news.%s.example.com", slug)
	feedURL := fmt.Sprintf("https://%s/rss", domain)
	_, err = pool.Exec(ctx, `
INSERT INTO pipeline.content_sources (source_name, feed_url, canonical_domain, source_type, credibility_score)
VALUES ($1, $2, $1, 'regional', 80)
`, domain, feedURL)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	publishTestStory(t, pool, slug,
		"Market square repaving starts next week "+slug,
		fmt.Sprintf("https://%s/news/repaving", domain),
		"Market square repaving",
		[]SlideInput{{Content: "Expect detours around the square."}},
	)

	// A fragment of the canonical domain must match.
	feed, err := pool.GetTopicStories(ctx, slug, db.FeedFilter{SourceDomains: []string{slug}})
	if err != nil {
		t.Fatalf("feed with domain fragment: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("domain fragment should match %s, got %d entries", domain, len(feed))
	}

	feed, err = pool.GetTopicStories(ctx, slug, db.FeedFilter{SourceDomains: []string{"unrelated-domain"}})
	if err != nil {
		t.Fatalf("feed with unrelated domain: %v", err)
	}
	if len(feed) != 0 {
		t.Fatalf("unrelated domain should match nothing, got %d entries", len(feed))
	}
}
