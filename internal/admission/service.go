// Package admission is the ingestion entry point: it normalizes a
// submitted article, runs the duplicate gate and the relevance gate, and
// records every decision. Expected outcomes (duplicate, pending review,
// relevance rejection) are returned as typed results, never as errors.
package admission

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/db"
	"horse.fit/gazette/internal/dedup"
	"horse.fit/gazette/internal/globaltime"
	"horse.fit/gazette/internal/langdetect"
	"horse.fit/gazette/internal/metrics"
	"horse.fit/gazette/internal/relevance"
	"horse.fit/gazette/internal/settings"
	"horse.fit/gazette/internal/urlnorm"
	payloadschema "horse.fit/gazette/schema"
)

// Submission outcomes.
const (
	OutcomeAccepted      = "accepted"
	OutcomeDuplicate     = "duplicate"
	OutcomePendingReview = "pending_review"
	OutcomeRejected      = "rejected"
)

// Audit event types emitted by the admission path.
const (
	eventDuplicatePrevented = "duplicate_prevented"
	eventDuplicateFlagged   = "duplicate_flagged"
	eventRelevanceRejected  = "relevance_rejected"
	eventArticleAccepted    = "article_accepted"
	eventArticleResubmitted = "article_resubmitted"
	eventArticleReset       = "article_reset"
)

// Request is one article submission for one topic.
type Request struct {
	TopicSlug              string
	URL                    string
	Title                  string
	Body                   string
	Author                 string
	PublishedAt            *time.Time
	ImageURL               string
	Language               string
	SourceFeedURL          string
	RegionalRelevanceScore *int
	ContentQualityScore    *int
	KeywordMatches         []string
}

// Result is the typed admission decision.
type Result struct {
	Outcome          string              `json:"outcome"`
	TopicArticleID   int64               `json:"topic_article_id,omitempty"`
	SharedContentID  int64               `json:"shared_content_id,omitempty"`
	DuplicateOfID    *int64              `json:"duplicate_of_id,omitempty"`
	DuplicateMatches []dedup.Match       `json:"duplicate_matches,omitempty"`
	Relevance        *relevance.Decision `json:"relevance,omitempty"`
	SettingsVersion  int64               `json:"settings_version"`
}

type Service struct {
	pool      *db.Pool
	logger    zerolog.Logger
	detector  *dedup.Detector
	validator *relevance.Validator
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:      pool,
		logger:    logger,
		detector:  dedup.NewDetector(pool, logger),
		validator: relevance.NewValidator(pool, logger),
	}
}

// Submit runs the full admission flow for one article in one transaction.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("admission service is not initialized")
	}

	topicSlug := strings.TrimSpace(req.TopicSlug)
	if topicSlug == "" {
		return Result{}, fmt.Errorf("topic_slug is required")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Result{}, fmt.Errorf("title is required")
	}
	normalizedURL := urlnorm.Normalize(req.URL)
	if normalizedURL == "" {
		return Result{}, fmt.Errorf("url is required")
	}

	topicID, err := s.resolveTopic(ctx, topicSlug)
	if err != nil {
		return Result{}, err
	}

	sourceID, err := s.resolveSource(ctx, req.SourceFeedURL, normalizedURL)
	if err != nil {
		return Result{}, err
	}

	cfg, err := settings.Load(ctx, s.pool)
	if err != nil {
		return Result{}, fmt.Errorf("load pipeline settings: %w", err)
	}

	score := 0
	if req.RegionalRelevanceScore != nil {
		score = *req.RegionalRelevanceScore
	}

	// Relevance scoring stays outside the transaction; the source
	// credibility data is stable and the write path must not block on it.
	// The decision only takes effect when the article survives the
	// duplicate gates.
	decision, err := s.validator.Validate(ctx, sourceID, score, cfg)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin admission tx: %w", err)
	}

	result, err := s.submitTx(ctx, tx, req, submitContext{
		topicID:       topicID,
		sourceID:      sourceID,
		decision:      decision,
		normalizedURL: normalizedURL,
		title:         title,
		cfg:           cfg,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return Result{}, fmt.Errorf("commit admission tx: %w", err)
	}

	metrics.AdmissionDecisions.WithLabelValues(result.Outcome).Inc()
	switch result.Outcome {
	case OutcomePendingReview:
		metrics.DuplicatesFlagged.Inc()
	case OutcomeRejected:
		metrics.RelevanceRejections.Inc()
	}

	s.logger.Info().
		Str("outcome", result.Outcome).
		Int64("topic_id", topicID).
		Int64("topic_article_id", result.TopicArticleID).
		Str("normalized_url", normalizedURL).
		Int64("settings_version", cfg.Version).
		Msg("article submission decided")

	return result, nil
}

type submitContext struct {
	topicID       int64
	sourceID      *int64
	decision      relevance.Decision
	normalizedURL string
	title         string
	cfg           settings.Settings
}

func (s *Service) submitTx(ctx context.Context, tx db.Tx, req Request, sc submitContext) (Result, error) {
	now := globaltime.UTC()

	// Duplicate gate: an existing non-terminal row for this topic and
	// normalized URL means the content is already known. Touch it, mark
	// it, and report a soft success instead of inserting.
	existingID, found, err := findActiveTopicArticleTx(ctx, tx, sc.topicID, sc.normalizedURL)
	if err != nil {
		return Result{}, err
	}
	if found {
		if err := s.preventDuplicateTx(ctx, tx, existingID, sc, now); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:         OutcomeDuplicate,
			DuplicateOfID:   &existingID,
			SettingsVersion: sc.cfg.Version,
		}, nil
	}

	contentID, err := upsertSharedContentTx(ctx, tx, req, sc, now)
	if err != nil {
		return Result{}, err
	}

	topicArticleID, revived, err := s.insertTopicArticleTx(ctx, tx, req, sc, contentID, now)
	if err != nil {
		return Result{}, err
	}
	if topicArticleID == 0 {
		// Lost a race to a concurrent submit for the same content; the
		// unique index on (shared_content_id, topic_id) is the backstop.
		winnerID, winnerFound, err := findActiveTopicArticleTx(ctx, tx, sc.topicID, sc.normalizedURL)
		if err != nil {
			return Result{}, err
		}
		if !winnerFound {
			return Result{}, fmt.Errorf("topic article insert conflicted but no active row found for topic %d", sc.topicID)
		}
		if err := s.preventDuplicateTx(ctx, tx, winnerID, sc, now); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:         OutcomeDuplicate,
			DuplicateOfID:   &winnerID,
			SettingsVersion: sc.cfg.Version,
		}, nil
	}

	if revived {
		if err := db.InsertAudit(ctx, tx, db.AuditEntry{
			EventType:       eventArticleResubmitted,
			TopicID:         &sc.topicID,
			TopicArticleID:  &topicArticleID,
			SharedContentID: &contentID,
			SettingsVersion: &sc.cfg.Version,
			Detail:          map[string]any{"normalized_url": sc.normalizedURL},
		}); err != nil {
			return Result{}, err
		}
	}

	matches, err := s.detector.DetectWith(ctx, tx, topicArticleID, dedup.Options{
		TopicID:        &sc.topicID,
		TitleThreshold: sc.cfg.Policy.TitleSimilarityThreshold,
	})
	if err != nil {
		return Result{}, err
	}

	if len(matches) > 0 {
		if err := s.flagPendingReviewTx(ctx, tx, topicArticleID, contentID, sc, matches, now); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:          OutcomePendingReview,
			TopicArticleID:   topicArticleID,
			SharedContentID:  contentID,
			DuplicateMatches: matches,
			SettingsVersion:  sc.cfg.Version,
		}, nil
	}

	decision := sc.decision
	if !decision.Accepted {
		if err := s.discardByRelevanceTx(ctx, tx, topicArticleID, contentID, sc, decision, now); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:         OutcomeRejected,
			TopicArticleID:  topicArticleID,
			SharedContentID: contentID,
			Relevance:       &decision,
			SettingsVersion: sc.cfg.Version,
		}, nil
	}

	// Accepted: the full scoring context is logged on this path too; the
	// dual write of state plus audit trail is what makes over-filtering
	// incidents diagnosable.
	if err := db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:       eventArticleAccepted,
		TopicID:         &sc.topicID,
		TopicArticleID:  &topicArticleID,
		SharedContentID: &contentID,
		SettingsVersion: &sc.cfg.Version,
		Detail:          decision,
	}); err != nil {
		return Result{}, err
	}

	return Result{
		Outcome:         OutcomeAccepted,
		TopicArticleID:  topicArticleID,
		SharedContentID: contentID,
		Relevance:       &decision,
		SettingsVersion: sc.cfg.Version,
	}, nil
}

func (s *Service) preventDuplicateTx(ctx context.Context, tx db.Tx, existingID int64, sc submitContext, now time.Time) error {
	marker := map[string]any{
		"duplicate_prevented": map[string]any{
			"at":             now.Format(time.RFC3339),
			"normalized_url": sc.normalizedURL,
		},
	}
	markerJSON, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("encode duplicate marker: %w", err)
	}

	const stmt = `
UPDATE pipeline.topic_articles
SET
	import_metadata = COALESCE(import_metadata, '{}'::jsonb) || $2::jsonb,
	updated_at = $3
WHERE topic_article_id = $1
`

	if _, err := tx.Exec(ctx, stmt, existingID, string(markerJSON), now); err != nil {
		return fmt.Errorf("mark duplicate prevention on topic article %d: %w", existingID, err)
	}

	return db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:       eventDuplicatePrevented,
		TopicID:         &sc.topicID,
		TopicArticleID:  &existingID,
		SettingsVersion: &sc.cfg.Version,
		Detail: map[string]any{
			"normalized_url": sc.normalizedURL,
			"title":          sc.title,
		},
	})
}

func (s *Service) flagPendingReviewTx(
	ctx context.Context,
	tx db.Tx,
	topicArticleID int64,
	contentID int64,
	sc submitContext,
	matches []dedup.Match,
	now time.Time,
) error {
	const pairStmt = `
INSERT INTO pipeline.article_duplicates (
	original_topic_article_id,
	duplicate_topic_article_id,
	similarity_score,
	detection_method
)
VALUES ($1, $2, $3, $4)
ON CONFLICT (original_topic_article_id, duplicate_topic_article_id) DO NOTHING
`

	for _, match := range matches {
		if _, err := tx.Exec(ctx, pairStmt,
			match.TopicArticleID,
			topicArticleID,
			match.SimilarityScore,
			match.DetectionMethod,
		); err != nil {
			return fmt.Errorf("insert duplicate review pair (%d, %d): %w", match.TopicArticleID, topicArticleID, err)
		}
	}

	check := map[string]any{
		"duplicate_check": map[string]any{
			"match_count": len(matches),
			"checked_at":  now.Format(time.RFC3339),
		},
	}
	checkJSON, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("encode duplicate check metadata: %w", err)
	}

	const stmt = `
UPDATE pipeline.topic_articles
SET
	processing_status = 'duplicate_pending',
	import_metadata = COALESCE(import_metadata, '{}'::jsonb) || $2::jsonb,
	updated_at = $3
WHERE topic_article_id = $1
`

	if _, err := tx.Exec(ctx, stmt, topicArticleID, string(checkJSON), now); err != nil {
		return fmt.Errorf("flag topic article %d as duplicate_pending: %w", topicArticleID, err)
	}

	return db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:       eventDuplicateFlagged,
		TopicID:         &sc.topicID,
		TopicArticleID:  &topicArticleID,
		SharedContentID: &contentID,
		SettingsVersion: &sc.cfg.Version,
		Detail:          map[string]any{"matches": matches},
	})
}

func (s *Service) discardByRelevanceTx(
	ctx context.Context,
	tx db.Tx,
	topicArticleID int64,
	contentID int64,
	sc submitContext,
	decision relevance.Decision,
	now time.Time,
) error {
	reason := map[string]any{
		"rejection": map[string]any{
			"reason_code":       decision.ReasonCode,
			"score":             decision.Score,
			"threshold":         decision.Threshold,
			"source_type":       decision.SourceType,
			"credibility_score": decision.CredibilityScore,
			"settings_version":  decision.SettingsVersion,
			"rejected_at":       now.Format(time.RFC3339),
		},
	}
	reasonJSON, err := json.Marshal(reason)
	if err != nil {
		return fmt.Errorf("encode rejection reason: %w", err)
	}

	const stmt = `
UPDATE pipeline.topic_articles
SET
	processing_status = 'discarded',
	import_metadata = COALESCE(import_metadata, '{}'::jsonb) || $2::jsonb,
	updated_at = $3
WHERE topic_article_id = $1
  AND processing_status = 'new'
`

	if _, err := tx.Exec(ctx, stmt, topicArticleID, string(reasonJSON), now); err != nil {
		return fmt.Errorf("discard topic article %d: %w", topicArticleID, err)
	}

	return db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:       eventRelevanceRejected,
		TopicID:         &sc.topicID,
		TopicArticleID:  &topicArticleID,
		SharedContentID: &contentID,
		SettingsVersion: &sc.cfg.Version,
		Detail:          decision,
	})
}

func findActiveTopicArticleTx(ctx context.Context, tx db.Tx, topicID int64, normalizedURL string) (int64, bool, error) {
	const q = `
SELECT ta.topic_article_id
FROM pipeline.topic_articles ta
JOIN pipeline.shared_article_content c
	ON c.content_id = ta.shared_content_id
WHERE ta.topic_id = $1
  AND c.normalized_url = $2
  AND ta.processing_status NOT IN ('discarded', 'merged')
FOR UPDATE OF ta
`

	var id int64
	err := tx.QueryRow(ctx, q, topicID, normalizedURL).Scan(&id)
	if db.IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find active topic article: %w", err)
	}
	return id, true, nil
}

func upsertSharedContentTx(ctx context.Context, tx db.Tx, req Request, sc submitContext, now time.Time) (int64, error) {
	language := langdetect.NormalizeCode(req.Language)
	if language == "" {
		language = langdetect.Detect(req.Title + " " + req.Body)
	}

	checksum := ContentChecksum(req.Title, req.Body, req.Author)

	const stmt = `
INSERT INTO pipeline.shared_article_content (
	url,
	normalized_url,
	title,
	body,
	author,
	published_at,
	image_url,
	language,
	source_id,
	content_checksum,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $11)
ON CONFLICT (normalized_url) DO UPDATE SET updated_at = EXCLUDED.updated_at
RETURNING content_id
`

	var contentID int64
	err := tx.QueryRow(ctx, stmt,
		strings.TrimSpace(req.URL),
		sc.normalizedURL,
		sc.title,
		strings.TrimSpace(req.Body),
		strings.TrimSpace(req.Author),
		req.PublishedAt,
		strings.TrimSpace(req.ImageURL),
		language,
		sc.sourceID,
		checksum,
		now,
	).Scan(&contentID)
	if err != nil {
		return 0, fmt.Errorf("upsert shared content for %q: %w", sc.normalizedURL, err)
	}
	return contentID, nil
}

// insertTopicArticleTx creates the per-topic junction row. A conflict with
// a terminal row (discarded or merged) revives it back to new instead of
// inserting; a conflict with an active row returns id 0 so the caller can
// reconcile as a prevented duplicate.
func (s *Service) insertTopicArticleTx(
	ctx context.Context,
	tx db.Tx,
	req Request,
	sc submitContext,
	contentID int64,
	now time.Time,
) (int64, bool, error) {
	keywordsJSON, err := json.Marshal(req.KeywordMatches)
	if err != nil {
		return 0, false, fmt.Errorf("encode keyword matches: %w", err)
	}

	const insertStmt = `
INSERT INTO pipeline.topic_articles (
	shared_content_id,
	topic_id,
	processing_status,
	regional_relevance_score,
	content_quality_score,
	keyword_matches,
	import_metadata,
	created_at,
	updated_at
)
VALUES ($1, $2, 'new', $3, $4, $5::jsonb, '{}'::jsonb, $6, $6)
ON CONFLICT (shared_content_id, topic_id) DO NOTHING
RETURNING topic_article_id
`

	var topicArticleID int64
	err = tx.QueryRow(ctx, insertStmt,
		contentID,
		sc.topicID,
		req.RegionalRelevanceScore,
		req.ContentQualityScore,
		string(keywordsJSON),
		now,
	).Scan(&topicArticleID)
	if err == nil {
		return topicArticleID, false, nil
	}
	if !db.IsNoRows(err) {
		return 0, false, fmt.Errorf("insert topic article: %w", err)
	}

	const reviveStmt = `
UPDATE pipeline.topic_articles
SET
	processing_status = 'new',
	regional_relevance_score = $3,
	content_quality_score = $4,
	keyword_matches = $5::jsonb,
	updated_at = $6
WHERE shared_content_id = $1
  AND topic_id = $2
  AND processing_status IN ('discarded', 'merged')
RETURNING topic_article_id
`

	err = tx.QueryRow(ctx, reviveStmt,
		contentID,
		sc.topicID,
		req.RegionalRelevanceScore,
		req.ContentQualityScore,
		string(keywordsJSON),
		now,
	).Scan(&topicArticleID)
	if err == nil {
		return topicArticleID, true, nil
	}
	if db.IsNoRows(err) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("revive topic article: %w", err)
}

func (s *Service) resolveTopic(ctx context.Context, topicSlug string) (int64, error) {
	const q = `
SELECT topic_id
FROM pipeline.topics
WHERE topic_slug = $1
  AND is_active
`

	var topicID int64
	err := s.pool.QueryRow(ctx, q, topicSlug).Scan(&topicID)
	if db.IsNoRows(err) {
		return 0, fmt.Errorf("topic %q not found or inactive", topicSlug)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve topic %q: %w", topicSlug, err)
	}
	return topicID, nil
}

// resolveSource finds the owning content source by feed URL first, then by
// canonical domain of the article URL. Missing sources are allowed; the
// relevance gate fails open for them.
func (s *Service) resolveSource(ctx context.Context, sourceFeedURL, normalizedURL string) (*int64, error) {
	feedURL := strings.TrimSpace(sourceFeedURL)
	if feedURL != "" {
		const q = `
SELECT source_id
FROM pipeline.content_sources
WHERE feed_url = $1
`
		var sourceID int64
		err := s.pool.QueryRow(ctx, q, feedURL).Scan(&sourceID)
		if err == nil {
			return &sourceID, nil
		}
		if !db.IsNoRows(err) {
			return nil, fmt.Errorf("resolve source by feed url: %w", err)
		}
	}

	domain := DomainOf(normalizedURL)
	if domain == "" {
		return nil, nil
	}

	const q = `
SELECT source_id
FROM pipeline.content_sources
WHERE canonical_domain = $1
ORDER BY articles_scraped DESC, source_id
LIMIT 1
`

	var sourceID int64
	err := s.pool.QueryRow(ctx, q, domain).Scan(&sourceID)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve source by domain %q: %w", domain, err)
	}
	return &sourceID, nil
}

// ResetTopicArticle is the only sanctioned status regression: an explicit,
// audit-logged recovery of a discarded or processed row back to new.
func (s *Service) ResetTopicArticle(ctx context.Context, topicArticleID int64, reason string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("admission service is not initialized")
	}

	now := globaltime.UTC()

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
UPDATE pipeline.topic_articles
SET processing_status = 'new', updated_at = $2
WHERE topic_article_id = $1
  AND processing_status IN ('discarded', 'processed')
RETURNING topic_id
`

	var topicID int64
	err = tx.QueryRow(ctx, q, topicArticleID, now).Scan(&topicID)
	if db.IsNoRows(err) {
		return fmt.Errorf("topic article %d is not in a resettable status", topicArticleID)
	}
	if err != nil {
		return fmt.Errorf("reset topic article %d: %w", topicArticleID, err)
	}

	if err := db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:      eventArticleReset,
		TopicID:        &topicID,
		TopicArticleID: &topicArticleID,
		Detail:         map[string]any{"reason": strings.TrimSpace(reason)},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}

	s.logger.Info().
		Int64("topic_article_id", topicArticleID).
		Str("reason", strings.TrimSpace(reason)).
		Msg("topic article reset to new")

	return nil
}

// RequestFromPayload maps a validated wire payload onto a submission
// request.
func RequestFromPayload(payload *payloadschema.ArticlePayload) (Request, error) {
	if payload == nil {
		return Request{}, fmt.Errorf("payload is nil")
	}

	req := Request{
		TopicSlug:              payload.TopicSlug,
		URL:                    payload.URL,
		Title:                  payload.Title,
		RegionalRelevanceScore: payload.RegionalRelevanceScore,
		ContentQualityScore:    payload.ContentQualityScore,
		KeywordMatches:         payload.KeywordMatches,
	}
	if payload.Body != nil {
		req.Body = *payload.Body
	}
	if payload.Author != nil {
		req.Author = *payload.Author
	}
	if payload.ImageURL != nil {
		req.ImageURL = *payload.ImageURL
	}
	if payload.Language != nil {
		req.Language = *payload.Language
	}
	if payload.SourceFeedURL != nil {
		req.SourceFeedURL = *payload.SourceFeedURL
	}
	if payload.PublishedAt != nil {
		parsed, err := time.Parse(time.RFC3339, *payload.PublishedAt)
		if err != nil {
			return Request{}, fmt.Errorf("published_at must be RFC3339")
		}
		utc := parsed.UTC()
		req.PublishedAt = &utc
	}
	return req, nil
}

// ContentChecksum hashes title, body, and author into the shared-content
// checksum used by the duplicate detector.
func ContentChecksum(title, body, author string) []byte {
	sum := sha256.Sum256([]byte(strings.TrimSpace(title) + "\n" + strings.TrimSpace(body) + "\n" + strings.TrimSpace(author)))
	return sum[:]
}

// DomainOf extracts the host part of a normalized URL key.
func DomainOf(normalizedURL string) string {
	trimmed := strings.TrimSpace(normalizedURL)
	if trimmed == "" {
		return ""
	}
	if idx := strings.IndexAny(trimmed, "/?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}
