// Package settings holds the versioned tuning configuration for the
// admission pipeline. Thresholds here were retuned many times in
// production, so they live in the database rather than in code; every
// decision records the settings version it was made under.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"horse.fit/gazette/internal/db"
)

// Source types, ordered most to least permissive.
const (
	SourceTypeHyperlocal = "hyperlocal"
	SourceTypeRegional   = "regional"
	SourceTypeNational   = "national"
)

// RelevanceTier maps a credibility floor to per-source-type relevance
// thresholds. Tiers are evaluated highest credibility floor first.
type RelevanceTier struct {
	MinCredibility int            `json:"min_credibility"`
	Thresholds     map[string]int `json:"thresholds"`
}

// Policy is the serializable tuning document stored in pipeline.settings.
type Policy struct {
	TitleSimilarityThreshold float64         `json:"title_similarity_threshold"`
	RelevanceTiers           []RelevanceTier `json:"relevance_tiers"`
	MissingSourceThreshold   int             `json:"missing_source_threshold"`
	StuckProcessingMinutes   int             `json:"stuck_processing_minutes"`
	DuplicateRetentionDays   int             `json:"duplicate_retention_days"`
}

// Settings is a compiled policy plus the version it was loaded from.
// Version 0 means the built-in defaults (settings table empty).
type Settings struct {
	Version int64
	Policy  Policy
}

// Default returns the last known production tuning. Credibility >= 90 is a
// near-total relevance bypass; lower credibility sources get graduated
// bypasses down to small positive floors. Hyperlocal sources are always
// the most permissive for a given credibility band.
func Default() Settings {
	return Settings{
		Version: 0,
		Policy: Policy{
			TitleSimilarityThreshold: 0.85,
			RelevanceTiers: []RelevanceTier{
				{
					MinCredibility: 90,
					Thresholds: map[string]int{
						SourceTypeHyperlocal: -10000,
						SourceTypeRegional:   -10000,
						SourceTypeNational:   -10000,
					},
				},
				{
					MinCredibility: 75,
					Thresholds: map[string]int{
						SourceTypeHyperlocal: -2000,
						SourceTypeRegional:   -1000,
						SourceTypeNational:   -500,
					},
				},
				{
					MinCredibility: 60,
					Thresholds: map[string]int{
						SourceTypeHyperlocal: -200,
						SourceTypeRegional:   -100,
						SourceTypeNational:   -50,
					},
				},
				{
					MinCredibility: 0,
					Thresholds: map[string]int{
						SourceTypeHyperlocal: 20,
						SourceTypeRegional:   22,
						SourceTypeNational:   25,
					},
				},
			},
			MissingSourceThreshold: -10000,
			StuckProcessingMinutes: 30,
			DuplicateRetentionDays: 14,
		},
	}
}

// ThresholdFor returns the minimum acceptable relevance score for a source.
// Unknown source types fall back to the national (least permissive) column.
func (s Settings) ThresholdFor(sourceType string, credibilityScore int) int {
	tiers := append([]RelevanceTier(nil), s.Policy.RelevanceTiers...)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinCredibility > tiers[j].MinCredibility
	})

	normalizedType := strings.ToLower(strings.TrimSpace(sourceType))
	for _, tier := range tiers {
		if credibilityScore < tier.MinCredibility {
			continue
		}
		if threshold, ok := tier.Thresholds[normalizedType]; ok {
			return threshold
		}
		if threshold, ok := tier.Thresholds[SourceTypeNational]; ok {
			return threshold
		}
	}

	return s.Policy.MissingSourceThreshold
}

// Load reads the highest-version settings row, falling back to Default when
// the table is empty.
func Load(ctx context.Context, pool *db.Pool) (Settings, error) {
	if pool == nil {
		return Settings{}, fmt.Errorf("database pool is nil")
	}

	const q = `
SELECT version, policy
FROM pipeline.settings
ORDER BY version DESC
LIMIT 1
`

	var version int64
	var policyJSON []byte
	err := pool.QueryRow(ctx, q).Scan(&version, &policyJSON)
	if db.IsNoRows(err) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}

	var policy Policy
	if err := json.Unmarshal(policyJSON, &policy); err != nil {
		return Settings{}, fmt.Errorf("decode settings policy version=%d: %w", version, err)
	}
	if err := validatePolicy(policy); err != nil {
		return Settings{}, fmt.Errorf("invalid settings policy version=%d: %w", version, err)
	}

	return Settings{Version: version, Policy: policy}, nil
}

// Save inserts a new settings version. Versions are append-only; the
// caller supplies the next version number and a change comment.
func Save(ctx context.Context, pool *db.Pool, version int64, policy Policy, comment string) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	if version < 1 {
		return fmt.Errorf("settings version must be >= 1")
	}
	if err := validatePolicy(policy); err != nil {
		return fmt.Errorf("invalid settings policy: %w", err)
	}

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode settings policy: %w", err)
	}

	const q = `
INSERT INTO pipeline.settings (version, policy, comment)
VALUES ($1, $2::jsonb, NULLIF($3, ''))
`

	if _, err := pool.Exec(ctx, q, version, string(policyJSON), strings.TrimSpace(comment)); err != nil {
		return fmt.Errorf("insert settings version=%d: %w", version, err)
	}
	return nil
}

func validatePolicy(policy Policy) error {
	if policy.TitleSimilarityThreshold <= 0 || policy.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("title_similarity_threshold must be in (0, 1], got %f", policy.TitleSimilarityThreshold)
	}
	if len(policy.RelevanceTiers) == 0 {
		return fmt.Errorf("relevance_tiers must not be empty")
	}
	for _, tier := range policy.RelevanceTiers {
		if tier.MinCredibility < 0 || tier.MinCredibility > 100 {
			return fmt.Errorf("tier min_credibility out of range: %d", tier.MinCredibility)
		}
		if len(tier.Thresholds) == 0 {
			return fmt.Errorf("tier min_credibility=%d has no thresholds", tier.MinCredibility)
		}
	}
	if policy.StuckProcessingMinutes < 1 {
		return fmt.Errorf("stuck_processing_minutes must be >= 1")
	}
	if policy.DuplicateRetentionDays < 1 {
		return fmt.Errorf("duplicate_retention_days must be >= 1")
	}
	return nil
}
