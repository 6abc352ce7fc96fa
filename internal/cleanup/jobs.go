// Package cleanup holds the scheduled maintenance jobs that keep the
// pipeline tables consistent: orphan repair, source-count reconciliation,
// duplicate-source consolidation, stuck-row recovery, and review-queue
// expiry. Every job reports how many rows it touched.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/db"
	"horse.fit/gazette/internal/globaltime"
	"horse.fit/gazette/internal/metrics"
	"horse.fit/gazette/internal/settings"
)

// Job names accepted by Run.
const (
	JobRelinkOrphans      = "relink_orphans"
	JobRecomputeCounts    = "recompute_counts"
	JobConsolidateSources = "consolidate_sources"
	JobSweepStuck         = "sweep_stuck"
	JobExpireStaleReviews = "expire_stale_reviews"
)

// JobNames lists every runnable job in the order the full sweep executes
// them.
var JobNames = []string{
	JobRelinkOrphans,
	JobRecomputeCounts,
	JobConsolidateSources,
	JobSweepStuck,
	JobExpireStaleReviews,
}

type Runner struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewRunner(pool *db.Pool, logger zerolog.Logger) *Runner {
	return &Runner{
		pool:   pool,
		logger: logger,
	}
}

// Run executes one named job and returns the number of rows it changed.
func (r *Runner) Run(ctx context.Context, job string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("cleanup runner is not initialized")
	}

	var (
		affected int64
		err      error
	)
	switch job {
	case JobRelinkOrphans:
		affected, err = r.RelinkOrphanedContent(ctx)
	case JobRecomputeCounts:
		affected, err = r.RecomputeSourceCounts(ctx)
	case JobConsolidateSources:
		affected, err = r.ConsolidateDuplicateSources(ctx)
	case JobSweepStuck:
		affected, err = r.SweepStuckProcessing(ctx)
	case JobExpireStaleReviews:
		affected, err = r.ExpireStaleDuplicates(ctx)
	default:
		return 0, fmt.Errorf("unknown cleanup job %q", job)
	}
	if err != nil {
		return 0, err
	}

	metrics.CleanupRuns.WithLabelValues(job).Inc()
	r.logger.Info().
		Str("job", job).
		Int64("rows_affected", affected).
		Msg("cleanup job finished")
	return affected, nil
}

// RunAll executes every job in order and returns the total rows changed.
// A failing job stops the sweep; later jobs assume earlier ones ran.
func (r *Runner) RunAll(ctx context.Context) (int64, error) {
	var total int64
	for _, job := range JobNames {
		affected, err := r.Run(ctx, job)
		if err != nil {
			return total, fmt.Errorf("cleanup job %s: %w", job, err)
		}
		total += affected
	}
	return total, nil
}

// RelinkOrphanedContent re-attaches shared content whose source row was
// deleted, matching on the canonical domain of the normalized URL. Content
// with no matching source keeps a NULL source and fails open at relevance
// time.
func (r *Runner) RelinkOrphanedContent(ctx context.Context) (int64, error) {
	const stmt = `
UPDATE pipeline.shared_article_content c
SET source_id = s.source_id, updated_at = $1
FROM pipeline.content_sources s
WHERE c.source_id IS NULL
  AND s.canonical_domain = split_part(split_part(c.normalized_url, '/', 1), '?', 1)
  AND s.source_id = (
		SELECT s2.source_id
		FROM pipeline.content_sources s2
		WHERE s2.canonical_domain = s.canonical_domain
		ORDER BY s2.articles_scraped DESC, s2.created_at ASC, s2.source_id ASC
		LIMIT 1
  )
`

	tag, err := r.pool.Exec(ctx, stmt, globaltime.UTC())
	if err != nil {
		return 0, fmt.Errorf("relink orphaned content: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecomputeSourceCounts resets articles_scraped from the actual content
// rows. Counter drift accumulates from consolidations and manual deletes.
func (r *Runner) RecomputeSourceCounts(ctx context.Context) (int64, error) {
	const stmt = `
UPDATE pipeline.content_sources s
SET articles_scraped = counted.n, updated_at = $1
FROM (
	SELECT s2.source_id, COUNT(c.content_id) AS n
	FROM pipeline.content_sources s2
	LEFT JOIN pipeline.shared_article_content c
		ON c.source_id = s2.source_id
	GROUP BY s2.source_id
) counted
WHERE counted.source_id = s.source_id
  AND s.articles_scraped IS DISTINCT FROM counted.n
`

	tag, err := r.pool.Exec(ctx, stmt, globaltime.UTC())
	if err != nil {
		return 0, fmt.Errorf("recompute source counts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ConsolidateDuplicateSources merges sources that share a canonical domain
// into one canonical row and deletes the rest. Content and topic links move
// to the survivor first.
func (r *Runner) ConsolidateDuplicateSources(ctx context.Context) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin consolidation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	groups, err := loadDuplicateSourceGroups(ctx, tx)
	if err != nil {
		return 0, err
	}

	var merged int64
	now := globaltime.UTC()
	for _, group := range groups {
		survivor := PickCanonicalSource(group.Sources)
		for _, candidate := range group.Sources {
			if candidate.SourceID == survivor.SourceID {
				continue
			}
			if err := mergeSourceTx(ctx, tx, candidate.SourceID, survivor.SourceID, now); err != nil {
				return 0, err
			}
			merged++
		}

		if err := db.InsertAudit(ctx, tx, db.AuditEntry{
			EventType: "sources_consolidated",
			Detail: map[string]any{
				"canonical_domain":   group.Domain,
				"survivor_source_id": survivor.SourceID,
				"merged_count":       len(group.Sources) - 1,
			},
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit consolidation tx: %w", err)
	}
	return merged, nil
}

// SourceCandidate is one content source competing to be the canonical row
// for its domain.
type SourceCandidate struct {
	SourceID        int64
	FeedURL         string
	ArticlesScraped int64
	CreatedAt       time.Time
}

type sourceGroup struct {
	Domain  string
	Sources []SourceCandidate
}

// PickCanonicalSource chooses the survivor for a group of same-domain
// sources: a real feed URL beats none, then most articles scraped, then
// the oldest row.
func PickCanonicalSource(candidates []SourceCandidate) SourceCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if sourceRanksHigher(c, best) {
			best = c
		}
	}
	return best
}

func sourceRanksHigher(a, b SourceCandidate) bool {
	aFeed, bFeed := a.FeedURL != "", b.FeedURL != ""
	if aFeed != bFeed {
		return aFeed
	}
	if a.ArticlesScraped != b.ArticlesScraped {
		return a.ArticlesScraped > b.ArticlesScraped
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.SourceID < b.SourceID
}

func loadDuplicateSourceGroups(ctx context.Context, q db.Querier) ([]sourceGroup, error) {
	const query = `
SELECT s.canonical_domain, s.source_id, COALESCE(s.feed_url, ''), s.articles_scraped, s.created_at
FROM pipeline.content_sources s
WHERE s.canonical_domain IN (
	SELECT canonical_domain
	FROM pipeline.content_sources
	GROUP BY canonical_domain
	HAVING COUNT(*) > 1
)
ORDER BY s.canonical_domain, s.source_id
`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load duplicate source groups: %w", err)
	}
	defer rows.Close()

	var groups []sourceGroup
	for rows.Next() {
		var (
			domain string
			c      SourceCandidate
		)
		if err := rows.Scan(&domain, &c.SourceID, &c.FeedURL, &c.ArticlesScraped, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan duplicate source row: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].Domain != domain {
			groups = append(groups, sourceGroup{Domain: domain})
		}
		groups[len(groups)-1].Sources = append(groups[len(groups)-1].Sources, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate source rows: %w", err)
	}
	return groups, nil
}

func mergeSourceTx(ctx context.Context, tx db.Tx, fromID, intoID int64, now time.Time) error {
	const relinkContent = `
UPDATE pipeline.shared_article_content
SET source_id = $2, updated_at = $3
WHERE source_id = $1
`
	if _, err := tx.Exec(ctx, relinkContent, fromID, intoID, now); err != nil {
		return fmt.Errorf("relink content from source %d: %w", fromID, err)
	}

	// Topic links that already exist on the survivor would collide, so
	// drop those first and move the rest.
	const dropColliding = `
DELETE FROM pipeline.topic_sources ts
WHERE ts.source_id = $1
  AND EXISTS (
		SELECT 1 FROM pipeline.topic_sources keep
		WHERE keep.source_id = $2 AND keep.topic_id = ts.topic_id
  )
`
	if _, err := tx.Exec(ctx, dropColliding, fromID, intoID); err != nil {
		return fmt.Errorf("drop colliding topic links for source %d: %w", fromID, err)
	}

	const moveLinks = `
UPDATE pipeline.topic_sources
SET source_id = $2
WHERE source_id = $1
`
	if _, err := tx.Exec(ctx, moveLinks, fromID, intoID); err != nil {
		return fmt.Errorf("move topic links from source %d: %w", fromID, err)
	}

	const absorbCounts = `
UPDATE pipeline.content_sources
SET
	articles_scraped = articles_scraped + (SELECT articles_scraped FROM pipeline.content_sources WHERE source_id = $1),
	updated_at = $3
WHERE source_id = $2
`
	if _, err := tx.Exec(ctx, absorbCounts, fromID, intoID, now); err != nil {
		return fmt.Errorf("absorb counts from source %d: %w", fromID, err)
	}

	const deleteSource = `
DELETE FROM pipeline.content_sources
WHERE source_id = $1
`
	if _, err := tx.Exec(ctx, deleteSource, fromID); err != nil {
		return fmt.Errorf("delete merged source %d: %w", fromID, err)
	}
	return nil
}

// SweepStuckProcessing returns topic articles abandoned mid-processing to
// new so they get picked up again. The window comes from the active
// settings version.
func (r *Runner) SweepStuckProcessing(ctx context.Context) (int64, error) {
	cfg, err := settings.Load(ctx, r.pool)
	if err != nil {
		return 0, fmt.Errorf("load settings for stuck sweep: %w", err)
	}

	now := globaltime.UTC()
	cutoff := now.Add(-time.Duration(cfg.Policy.StuckProcessingMinutes) * time.Minute)

	const stmt = `
UPDATE pipeline.topic_articles
SET
	processing_status = 'new',
	import_metadata = COALESCE(import_metadata, '{}'::jsonb)
		|| jsonb_build_object('stuck_recovery', jsonb_build_object('recovered_at', to_char($2::timestamptz, 'YYYY-MM-DD"T"HH24:MI:SS"Z"'))),
	updated_at = $2
WHERE processing_status = 'processing'
  AND updated_at < $1
`

	tag, err := r.pool.Exec(ctx, stmt, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("sweep stuck processing rows: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.Warn().
			Int64("recovered", tag.RowsAffected()).
			Int("window_minutes", cfg.Policy.StuckProcessingMinutes).
			Msg("recovered stuck processing articles")
	}
	return tag.RowsAffected(), nil
}

// ExpireStaleDuplicates resolves review-queue entries nobody acted on
// inside the retention window. The flagged article returns to new; the
// pair row is marked expired rather than deleted so the history survives.
func (r *Runner) ExpireStaleDuplicates(ctx context.Context) (int64, error) {
	cfg, err := settings.Load(ctx, r.pool)
	if err != nil {
		return 0, fmt.Errorf("load settings for duplicate expiry: %w", err)
	}

	now := globaltime.UTC()
	cutoff := now.Add(-time.Duration(cfg.Policy.DuplicateRetentionDays) * 24 * time.Hour)

	tx, err := r.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin duplicate expiry tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const expirePairs = `
UPDATE pipeline.article_duplicates
SET status = 'expired', resolved_at = $2
WHERE status = 'pending'
  AND created_at < $1
RETURNING duplicate_topic_article_id
`

	rows, err := tx.Query(ctx, expirePairs, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale duplicate pairs: %w", err)
	}
	flagged := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expired pair: %w", err)
		}
		flagged[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate expired pairs: %w", err)
	}

	var released int64
	for id := range flagged {
		// Only release articles with no remaining pending pair.
		const releaseStmt = `
UPDATE pipeline.topic_articles ta
SET processing_status = 'new', updated_at = $2
WHERE ta.topic_article_id = $1
  AND ta.processing_status = 'duplicate_pending'
  AND NOT EXISTS (
		SELECT 1 FROM pipeline.article_duplicates ad
		WHERE ad.duplicate_topic_article_id = ta.topic_article_id
		  AND ad.status = 'pending'
  )
`
		tag, err := tx.Exec(ctx, releaseStmt, id, now)
		if err != nil {
			return 0, fmt.Errorf("release expired duplicate %d: %w", id, err)
		}
		released += tag.RowsAffected()
	}

	if len(flagged) > 0 {
		if err := db.InsertAudit(ctx, tx, db.AuditEntry{
			EventType: "duplicates_expired",
			Detail: map[string]any{
				"expired_pairs":     len(flagged),
				"released_articles": released,
				"retention_days":    cfg.Policy.DuplicateRetentionDays,
			},
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit duplicate expiry tx: %w", err)
	}
	return released, nil
}
