package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// Querier is the read/write surface shared by Pool and Tx so decision
// logic can run either standalone or inside a transaction.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

// AuditEntry is one append-only decision record. Detail is marshaled to
// jsonb; nil detail is stored as an empty object.
type AuditEntry struct {
	EventType       string
	TopicID         *int64
	TopicArticleID  *int64
	SharedContentID *int64
	SettingsVersion *int64
	Detail          any
}

// InsertAudit appends one audit row through the given querier. Admission
// decisions are recorded, never silently dropped; callers treat a failed
// audit write as a failure of the whole decision.
func InsertAudit(ctx context.Context, q Querier, entry AuditEntry) error {
	if q == nil {
		return fmt.Errorf("querier is nil")
	}
	if entry.EventType == "" {
		return fmt.Errorf("audit event_type is required")
	}

	detail := entry.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	const stmt = `
INSERT INTO pipeline.audit_log (
	event_type,
	topic_id,
	topic_article_id,
	shared_content_id,
	settings_version,
	detail
)
VALUES ($1, $2, $3, $4, $5, $6::jsonb)
`

	if _, err := q.Exec(ctx, stmt,
		entry.EventType,
		entry.TopicID,
		entry.TopicArticleID,
		entry.SharedContentID,
		entry.SettingsVersion,
		string(detailJSON),
	); err != nil {
		return fmt.Errorf("insert audit log %s: %w", entry.EventType, err)
	}
	return nil
}
