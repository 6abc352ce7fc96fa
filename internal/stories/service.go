// Package stories manages the editorial artifacts built from processed
// articles: one story per topic article, carrying an ordered set of
// carousel slides and a draft/ready/published lifecycle.
package stories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/db"
	"horse.fit/gazette/internal/globaltime"
)

// SlideInput is one carousel segment supplied at creation time, in order.
type SlideInput struct {
	Content  string
	ImageURL string
}

// CreateRequest creates a story for one topic article.
type CreateRequest struct {
	TopicArticleID int64
	Headline       string
	Slides         []SlideInput
}

type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
	}
}

// CreateStory writes the story and its slides in one transaction and moves
// the backing topic article from processing to processed. The article must
// be in processing; claiming it first is the caller's job.
func (s *Service) CreateStory(ctx context.Context, req CreateRequest) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("stories service is not initialized")
	}

	headline := strings.TrimSpace(req.Headline)
	if headline == "" {
		return 0, fmt.Errorf("headline is required")
	}
	if len(req.Slides) == 0 {
		return 0, fmt.Errorf("at least one slide is required")
	}
	for i, slide := range req.Slides {
		if strings.TrimSpace(slide.Content) == "" {
			return 0, fmt.Errorf("slide %d has no content", i+1)
		}
	}

	now := globaltime.UTC()

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin story tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const claimStmt = `
UPDATE pipeline.topic_articles
SET processing_status = 'processed', updated_at = $2
WHERE topic_article_id = $1
  AND processing_status = 'processing'
RETURNING topic_id
`

	var topicID int64
	err = tx.QueryRow(ctx, claimStmt, req.TopicArticleID, now).Scan(&topicID)
	if db.IsNoRows(err) {
		return 0, fmt.Errorf("topic article %d is not in processing", req.TopicArticleID)
	}
	if err != nil {
		return 0, fmt.Errorf("finish topic article %d: %w", req.TopicArticleID, err)
	}

	const storyStmt = `
INSERT INTO pipeline.stories (topic_article_id, topic_id, headline, status, created_at, updated_at)
VALUES ($1, $2, $3, 'draft', $4, $4)
RETURNING story_id
`

	var storyID int64
	if err := tx.QueryRow(ctx, storyStmt, req.TopicArticleID, topicID, headline, now).Scan(&storyID); err != nil {
		return 0, fmt.Errorf("insert story for topic article %d: %w", req.TopicArticleID, err)
	}

	const slideStmt = `
INSERT INTO pipeline.slides (story_id, slide_number, content, image_url, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5)
`

	for i, slide := range req.Slides {
		if _, err := tx.Exec(ctx, slideStmt, storyID, i+1, strings.TrimSpace(slide.Content), strings.TrimSpace(slide.ImageURL), now); err != nil {
			return 0, fmt.Errorf("insert slide %d for story %d: %w", i+1, storyID, err)
		}
	}

	if err := db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:      "story_created",
		TopicID:        &topicID,
		TopicArticleID: &req.TopicArticleID,
		Detail: map[string]any{
			"story_id":    storyID,
			"slide_count": len(req.Slides),
		},
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit story tx: %w", err)
	}

	s.logger.Info().
		Int64("story_id", storyID).
		Int64("topic_article_id", req.TopicArticleID).
		Int("slides", len(req.Slides)).
		Msg("story created")

	return storyID, nil
}

// ClaimTopicArticle moves a new topic article into processing so one worker
// owns it. Returns false when the row is not claimable.
func (s *Service) ClaimTopicArticle(ctx context.Context, topicArticleID int64) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("stories service is not initialized")
	}

	const stmt = `
UPDATE pipeline.topic_articles
SET processing_status = 'processing', updated_at = $2
WHERE topic_article_id = $1
  AND processing_status = 'new'
`

	tag, err := s.pool.Exec(ctx, stmt, topicArticleID, globaltime.UTC())
	if err != nil {
		return false, fmt.Errorf("claim topic article %d: %w", topicArticleID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkStoryReady promotes a draft to ready for publication.
func (s *Service) MarkStoryReady(ctx context.Context, storyID int64) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("stories service is not initialized")
	}

	const stmt = `
UPDATE pipeline.stories
SET status = 'ready', updated_at = $2
WHERE story_id = $1
  AND status = 'draft'
`

	tag, err := s.pool.Exec(ctx, stmt, storyID, globaltime.UTC())
	if err != nil {
		return fmt.Errorf("mark story %d ready: %w", storyID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("story %d is not a draft", storyID)
	}
	return nil
}

// PublishStory publishes a ready story, stamping the flag and timestamp the
// feed read path filters on.
func (s *Service) PublishStory(ctx context.Context, storyID int64) (time.Time, error) {
	if s == nil || s.pool == nil {
		return time.Time{}, fmt.Errorf("stories service is not initialized")
	}

	now := globaltime.UTC()

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return time.Time{}, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const stmt = `
UPDATE pipeline.stories
SET status = 'published', is_published = TRUE, published_at = $2, updated_at = $2
WHERE story_id = $1
  AND status = 'ready'
RETURNING topic_id, topic_article_id
`

	var (
		topicID        int64
		topicArticleID int64
	)
	err = tx.QueryRow(ctx, stmt, storyID, now).Scan(&topicID, &topicArticleID)
	if db.IsNoRows(err) {
		return time.Time{}, fmt.Errorf("story %d is not ready for publication", storyID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("publish story %d: %w", storyID, err)
	}

	if err := db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:      "story_published",
		TopicID:        &topicID,
		TopicArticleID: &topicArticleID,
		Detail:         map[string]any{"story_id": storyID},
	}); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("commit publish tx: %w", err)
	}

	s.logger.Info().
		Int64("story_id", storyID).
		Int64("topic_id", topicID).
		Msg("story published")

	return now, nil
}
