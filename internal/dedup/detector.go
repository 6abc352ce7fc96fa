// Package dedup finds duplicate articles within a topic by exact URL,
// content checksum, and fuzzy title similarity.
package dedup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/db"
)

// Detection methods in priority order.
const (
	MethodExactURL        = "exact_url"
	MethodContentChecksum = "content_checksum"
	MethodTitleSimilarity = "title_similarity"
)

const defaultTitleThreshold = 0.85

// Match is one detected duplicate of the candidate article.
type Match struct {
	TopicArticleID  int64   `json:"topic_article_id"`
	SimilarityScore float64 `json:"similarity_score"`
	DetectionMethod string  `json:"detection_method"`
}

// Options controls one detection run. A nil TopicID degrades to global
// detection, which only the cleanup path uses.
type Options struct {
	TopicID        *int64
	TitleThreshold float64
}

type Detector struct {
	pool   *db.Pool
	logger zerolog.Logger
}

type candidateRow struct {
	TopicArticleID  int64
	TopicID         int64
	SharedContentID int64
	NormalizedURL   string
	ContentChecksum []byte
	Title           string
}

type scopedArticleRow struct {
	TopicArticleID int64
	Title          string
}

func NewDetector(pool *db.Pool, logger zerolog.Logger) *Detector {
	return &Detector{
		pool:   pool,
		logger: logger,
	}
}

// Detect runs the three detection passes for one topic article. Results
// are de-duplicated across passes, keeping the highest-priority method.
func (d *Detector) Detect(ctx context.Context, topicArticleID int64, opts Options) ([]Match, error) {
	if d == nil || d.pool == nil {
		return nil, fmt.Errorf("detector is not initialized")
	}
	return d.DetectWith(ctx, d.pool, topicArticleID, opts)
}

// DetectWith runs detection through the supplied querier, so the admission
// path can detect inside its own transaction.
func (d *Detector) DetectWith(ctx context.Context, q db.Querier, topicArticleID int64, opts Options) ([]Match, error) {
	if d == nil {
		return nil, fmt.Errorf("detector is not initialized")
	}
	if q == nil {
		return nil, fmt.Errorf("querier is nil")
	}

	candidate, err := d.loadCandidate(ctx, q, topicArticleID)
	if err != nil {
		return nil, err
	}

	threshold := opts.TitleThreshold
	if threshold <= 0 {
		threshold = defaultTitleThreshold
	}

	seen := make(map[int64]struct{})
	matches := make([]Match, 0, 4)

	urlMatches, err := d.findExactURLMatches(ctx, q, candidate, opts.TopicID)
	if err != nil {
		return nil, err
	}
	for _, id := range urlMatches {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		matches = append(matches, Match{TopicArticleID: id, SimilarityScore: 1.0, DetectionMethod: MethodExactURL})
	}

	if len(candidate.ContentChecksum) > 0 {
		checksumMatches, err := d.findChecksumMatches(ctx, q, candidate, opts.TopicID)
		if err != nil {
			return nil, err
		}
		for _, id := range checksumMatches {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			matches = append(matches, Match{TopicArticleID: id, SimilarityScore: 1.0, DetectionMethod: MethodContentChecksum})
		}
	}

	titleMatches, err := d.findTitleMatches(ctx, q, candidate, opts.TopicID, threshold)
	if err != nil {
		return nil, err
	}
	for _, match := range titleMatches {
		if _, dup := seen[match.TopicArticleID]; dup {
			continue
		}
		seen[match.TopicArticleID] = struct{}{}
		matches = append(matches, match)
	}

	d.logger.Debug().
		Int64("topic_article_id", topicArticleID).
		Int("matches", len(matches)).
		Float64("title_threshold", threshold).
		Msg("duplicate detection completed")

	return matches, nil
}

func (d *Detector) loadCandidate(ctx context.Context, q db.Querier, topicArticleID int64) (candidateRow, error) {
	const candidateQuery = `
SELECT
	ta.topic_article_id,
	ta.topic_id,
	ta.shared_content_id,
	c.normalized_url,
	c.content_checksum,
	c.title
FROM pipeline.topic_articles ta
JOIN pipeline.shared_article_content c
	ON c.content_id = ta.shared_content_id
WHERE ta.topic_article_id = $1
`

	var row candidateRow
	err := q.QueryRow(ctx, candidateQuery, topicArticleID).Scan(
		&row.TopicArticleID,
		&row.TopicID,
		&row.SharedContentID,
		&row.NormalizedURL,
		&row.ContentChecksum,
		&row.Title,
	)
	if db.IsNoRows(err) {
		return candidateRow{}, fmt.Errorf("topic article %d not found", topicArticleID)
	}
	if err != nil {
		return candidateRow{}, fmt.Errorf("load detection candidate %d: %w", topicArticleID, err)
	}
	return row, nil
}

func (d *Detector) findExactURLMatches(ctx context.Context, q db.Querier, candidate candidateRow, topicID *int64) ([]int64, error) {
	const matchQuery = `
SELECT ta.topic_article_id
FROM pipeline.topic_articles ta
JOIN pipeline.shared_article_content c
	ON c.content_id = ta.shared_content_id
WHERE c.normalized_url = $1
  AND ta.topic_article_id <> $2
  AND ta.processing_status NOT IN ('processed', 'merged', 'discarded')
  AND ($3::bigint IS NULL OR ta.topic_id = $3)
ORDER BY ta.topic_article_id
`

	return d.collectIDs(ctx, q, matchQuery, "exact url matches", candidate.NormalizedURL, candidate.TopicArticleID, topicID)
}

func (d *Detector) findChecksumMatches(ctx context.Context, q db.Querier, candidate candidateRow, topicID *int64) ([]int64, error) {
	const matchQuery = `
SELECT ta.topic_article_id
FROM pipeline.topic_articles ta
JOIN pipeline.shared_article_content c
	ON c.content_id = ta.shared_content_id
WHERE c.content_checksum = $1
  AND ta.topic_article_id <> $2
  AND ta.processing_status NOT IN ('processed', 'merged', 'discarded')
  AND ($3::bigint IS NULL OR ta.topic_id = $3)
ORDER BY ta.topic_article_id
`

	return d.collectIDs(ctx, q, matchQuery, "checksum matches", candidate.ContentChecksum, candidate.TopicArticleID, topicID)
}

// findTitleMatches fetches non-terminal titles in scope and scores them in
// application code with trigram Jaccard similarity.
func (d *Detector) findTitleMatches(ctx context.Context, q db.Querier, candidate candidateRow, topicID *int64, threshold float64) ([]Match, error) {
	const titleQuery = `
SELECT ta.topic_article_id, c.title
FROM pipeline.topic_articles ta
JOIN pipeline.shared_article_content c
	ON c.content_id = ta.shared_content_id
WHERE ta.topic_article_id <> $1
  AND ta.processing_status NOT IN ('processed', 'merged', 'discarded')
  AND ($2::bigint IS NULL OR ta.topic_id = $2)
ORDER BY ta.topic_article_id
`

	rows, err := q.Query(ctx, titleQuery, candidate.TopicArticleID, topicID)
	if err != nil {
		return nil, fmt.Errorf("query title candidates: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, 4)
	for rows.Next() {
		var row scopedArticleRow
		if err := rows.Scan(&row.TopicArticleID, &row.Title); err != nil {
			return nil, fmt.Errorf("scan title candidate: %w", err)
		}
		score := titleTrigramSimilarity(candidate.Title, row.Title)
		if score >= threshold {
			matches = append(matches, Match{
				TopicArticleID:  row.TopicArticleID,
				SimilarityScore: score,
				DetectionMethod: MethodTitleSimilarity,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate title candidates: %w", err)
	}

	return matches, nil
}

func (d *Detector) collectIDs(ctx context.Context, q db.Querier, query, label string, args ...any) ([]int64, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 4)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", label, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", label, err)
	}
	return ids, nil
}
