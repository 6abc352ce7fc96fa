package db

import (
	"context"
	"fmt"
)

// PipelineStats is the operational snapshot served by the stats endpoint.
type PipelineStats struct {
	Topics            int64            `json:"topics"`
	ActiveSources     int64            `json:"active_sources"`
	SharedContent     int64            `json:"shared_content"`
	TopicArticles     map[string]int64 `json:"topic_articles_by_status"`
	PendingDuplicates int64            `json:"pending_duplicates"`
	PublishedStories  int64            `json:"published_stories"`
}

// GetPipelineStats aggregates row counts across the pipeline tables.
func (p *Pool) GetPipelineStats(ctx context.Context) (PipelineStats, error) {
	if p == nil || p.gdb == nil {
		return PipelineStats{}, fmt.Errorf("database pool is not initialized")
	}

	stats := PipelineStats{
		TopicArticles: make(map[string]int64),
	}

	const countsQuery = `
SELECT
	(SELECT COUNT(*) FROM pipeline.topics WHERE is_active),
	(SELECT COUNT(*) FROM pipeline.content_sources WHERE is_active),
	(SELECT COUNT(*) FROM pipeline.shared_article_content),
	(SELECT COUNT(*) FROM pipeline.article_duplicates WHERE status = 'pending'),
	(SELECT COUNT(*) FROM pipeline.stories WHERE is_published)
`

	err := p.QueryRow(ctx, countsQuery).Scan(
		&stats.Topics,
		&stats.ActiveSources,
		&stats.SharedContent,
		&stats.PendingDuplicates,
		&stats.PublishedStories,
	)
	if err != nil {
		return PipelineStats{}, fmt.Errorf("query pipeline counts: %w", err)
	}

	const statusQuery = `
SELECT processing_status, COUNT(*)
FROM pipeline.topic_articles
GROUP BY processing_status
`

	rows, err := p.Query(ctx, statusQuery)
	if err != nil {
		return PipelineStats{}, fmt.Errorf("query topic article statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return PipelineStats{}, fmt.Errorf("scan status count: %w", err)
		}
		stats.TopicArticles[status] = count
	}
	if err := rows.Err(); err != nil {
		return PipelineStats{}, fmt.Errorf("iterate status counts: %w", err)
	}

	return stats, nil
}
