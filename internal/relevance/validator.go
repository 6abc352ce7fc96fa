// Package relevance decides whether an article is pertinent enough to keep
// for a topic. The policy leans hard toward acceptance: losing good local
// content costs more than surfacing a borderline item for an editor.
package relevance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/db"
	"horse.fit/gazette/internal/settings"
)

// ReasonBelowThreshold is the machine-readable rejection code recorded in
// article metadata and the audit log.
const ReasonBelowThreshold = "below_relevance_threshold"

// SourceInfo describes the content source a candidate article came from.
// Found is false when the source row is missing, in which case the policy
// fails open toward acceptance.
type SourceInfo struct {
	SourceID         int64
	SourceType       string
	CredibilityScore int
	Found            bool
}

// Decision is the full scoring context for one validation, kept whole so
// both the accept and reject paths can be audit-logged.
type Decision struct {
	Score            int    `json:"score"`
	Threshold        int    `json:"threshold"`
	Accepted         bool   `json:"accepted"`
	SourceType       string `json:"source_type"`
	CredibilityScore int    `json:"credibility_score"`
	SourceMissing    bool   `json:"source_missing"`
	SettingsVersion  int64  `json:"settings_version"`
	ReasonCode       string `json:"reason_code,omitempty"`
}

type Validator struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewValidator(pool *db.Pool, logger zerolog.Logger) *Validator {
	return &Validator{
		pool:   pool,
		logger: logger,
	}
}

// Evaluate computes the acceptance decision for a relevance score. It is
// pure: the caller supplies the source info and the tuning snapshot.
func Evaluate(score int, source SourceInfo, cfg settings.Settings) Decision {
	decision := Decision{
		Score:            score,
		SourceType:       source.SourceType,
		CredibilityScore: source.CredibilityScore,
		SettingsVersion:  cfg.Version,
	}

	if !source.Found {
		decision.SourceMissing = true
		decision.Threshold = cfg.Policy.MissingSourceThreshold
	} else {
		decision.Threshold = cfg.ThresholdFor(source.SourceType, source.CredibilityScore)
	}

	decision.Accepted = score >= decision.Threshold
	if !decision.Accepted {
		decision.ReasonCode = ReasonBelowThreshold
	}
	return decision
}

// Validate looks up the owning source and evaluates the score against the
// current tuning. Every call logs the full scoring context; over-aggressive
// filtering incidents were only ever diagnosed from these lines.
func (v *Validator) Validate(ctx context.Context, sourceID *int64, score int, cfg settings.Settings) (Decision, error) {
	if v == nil || v.pool == nil {
		return Decision{}, fmt.Errorf("relevance validator is not initialized")
	}

	source, err := v.lookupSource(ctx, sourceID)
	if err != nil {
		return Decision{}, err
	}

	decision := Evaluate(score, source, cfg)

	event := v.logger.Info()
	if decision.SourceMissing {
		event = v.logger.Warn()
	}
	event.
		Int("score", decision.Score).
		Int("threshold", decision.Threshold).
		Bool("accepted", decision.Accepted).
		Str("source_type", decision.SourceType).
		Int("credibility_score", decision.CredibilityScore).
		Bool("source_missing", decision.SourceMissing).
		Int64("settings_version", decision.SettingsVersion).
		Msg("relevance decision")

	return decision, nil
}

// lookupSource fetches the source row backing a candidate article. A nil or
// unknown source id yields a zero SourceInfo with Found unset.
func (v *Validator) lookupSource(ctx context.Context, sourceID *int64) (SourceInfo, error) {
	if sourceID == nil {
		return SourceInfo{}, nil
	}

	const q = `
SELECT source_id, source_type, credibility_score
FROM pipeline.content_sources
WHERE source_id = $1
`

	var info SourceInfo
	err := v.pool.QueryRow(ctx, q, *sourceID).Scan(&info.SourceID, &info.SourceType, &info.CredibilityScore)
	if db.IsNoRows(err) {
		return SourceInfo{}, nil
	}
	if err != nil {
		return SourceInfo{}, fmt.Errorf("lookup content source %d: %w", *sourceID, err)
	}

	info.Found = true
	return info, nil
}
