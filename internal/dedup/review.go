package dedup

import (
	"context"
	"fmt"
	"time"

	"horse.fit/gazette/internal/db"
)

// ReviewEntry is one pending duplicate pair as the review endpoint shows
// it, with enough article context to decide without another lookup.
type ReviewEntry struct {
	DuplicateID             int64      `json:"duplicate_id"`
	OriginalTopicArticleID  int64      `json:"original_topic_article_id"`
	DuplicateTopicArticleID int64      `json:"duplicate_topic_article_id"`
	SimilarityScore         float64    `json:"similarity_score"`
	DetectionMethod         string     `json:"detection_method"`
	Status                  string     `json:"status"`
	OriginalTitle           string     `json:"original_title"`
	DuplicateTitle          string     `json:"duplicate_title"`
	CreatedAt               time.Time  `json:"created_at"`
	ResolvedAt              *time.Time `json:"resolved_at,omitempty"`
}

// ListReviewEntries returns every duplicate pair involving the given topic
// article, newest first.
func (d *Detector) ListReviewEntries(ctx context.Context, topicArticleID int64) ([]ReviewEntry, error) {
	if d == nil || d.pool == nil {
		return nil, fmt.Errorf("duplicate detector is not initialized")
	}

	const query = `
SELECT
	ad.duplicate_id,
	ad.original_topic_article_id,
	ad.duplicate_topic_article_id,
	ad.similarity_score,
	ad.detection_method,
	ad.status,
	oc.title,
	dc.title,
	ad.created_at,
	ad.resolved_at
FROM pipeline.article_duplicates ad
JOIN pipeline.topic_articles ota ON ota.topic_article_id = ad.original_topic_article_id
JOIN pipeline.shared_article_content oc ON oc.content_id = ota.shared_content_id
JOIN pipeline.topic_articles dta ON dta.topic_article_id = ad.duplicate_topic_article_id
JOIN pipeline.shared_article_content dc ON dc.content_id = dta.shared_content_id
WHERE ad.original_topic_article_id = $1
   OR ad.duplicate_topic_article_id = $1
ORDER BY ad.created_at DESC, ad.duplicate_id DESC
`

	rows, err := d.pool.Query(ctx, query, topicArticleID)
	if err != nil {
		return nil, fmt.Errorf("query duplicate review entries: %w", err)
	}
	defer rows.Close()

	var entries []ReviewEntry
	for rows.Next() {
		var entry ReviewEntry
		err := rows.Scan(
			&entry.DuplicateID,
			&entry.OriginalTopicArticleID,
			&entry.DuplicateTopicArticleID,
			&entry.SimilarityScore,
			&entry.DetectionMethod,
			&entry.Status,
			&entry.OriginalTitle,
			&entry.DuplicateTitle,
			&entry.CreatedAt,
			&entry.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan duplicate review entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate review entries: %w", err)
	}
	return entries, nil
}

// ResolveReviewEntry closes a pending pair as confirmed or dismissed and
// settles the flagged article accordingly: confirmed merges it, dismissed
// returns it to new once no other pending pair holds it.
func (d *Detector) ResolveReviewEntry(ctx context.Context, duplicateID int64, confirm bool) error {
	if d == nil || d.pool == nil {
		return fmt.Errorf("duplicate detector is not initialized")
	}

	tx, err := d.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	resolution := "dismissed"
	if confirm {
		resolution = "confirmed"
	}

	const resolveStmt = `
UPDATE pipeline.article_duplicates
SET status = $2, resolved_at = NOW()
WHERE duplicate_id = $1
  AND status = 'pending'
RETURNING duplicate_topic_article_id
`

	var flaggedID int64
	err = tx.QueryRow(ctx, resolveStmt, duplicateID, resolution).Scan(&flaggedID)
	if db.IsNoRows(err) {
		return fmt.Errorf("duplicate pair %d is not pending", duplicateID)
	}
	if err != nil {
		return fmt.Errorf("resolve duplicate pair %d: %w", duplicateID, err)
	}

	var settleStmt string
	if confirm {
		settleStmt = `
UPDATE pipeline.topic_articles
SET processing_status = 'merged', updated_at = NOW()
WHERE topic_article_id = $1
  AND processing_status = 'duplicate_pending'
`
	} else {
		settleStmt = `
UPDATE pipeline.topic_articles ta
SET processing_status = 'new', updated_at = NOW()
WHERE ta.topic_article_id = $1
  AND ta.processing_status = 'duplicate_pending'
  AND NOT EXISTS (
		SELECT 1 FROM pipeline.article_duplicates ad
		WHERE ad.duplicate_topic_article_id = ta.topic_article_id
		  AND ad.status = 'pending'
  )
`
	}
	if _, err := tx.Exec(ctx, settleStmt, flaggedID); err != nil {
		return fmt.Errorf("settle flagged article %d: %w", flaggedID, err)
	}

	if err := db.InsertAudit(ctx, tx, db.AuditEntry{
		EventType:      "duplicate_" + resolution,
		TopicArticleID: &flaggedID,
		Detail:         map[string]any{"duplicate_id": duplicateID},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}

	d.logger.Info().
		Int64("duplicate_id", duplicateID).
		Str("resolution", resolution).
		Msg("duplicate review resolved")

	return nil
}
