package relevance

import (
	"testing"

	"horse.fit/gazette/internal/settings"
)

func TestEvaluate_NationalLowCredibilityDiscard(t *testing.T) {
	t.Parallel()

	source := SourceInfo{
		SourceID:         1,
		SourceType:       settings.SourceTypeNational,
		CredibilityScore: 40,
		Found:            true,
	}

	decision := Evaluate(-60, source, settings.Default())
	if decision.Accepted {
		t.Fatal("score -60 from a credibility-40 national source must be rejected")
	}
	if decision.ReasonCode != ReasonBelowThreshold {
		t.Fatalf("unexpected reason code: %q", decision.ReasonCode)
	}
	if decision.Threshold != 25 {
		t.Fatalf("unexpected threshold: %d", decision.Threshold)
	}
}

func TestEvaluate_HighCredibilityBypass(t *testing.T) {
	t.Parallel()

	source := SourceInfo{
		SourceID:         2,
		SourceType:       settings.SourceTypeRegional,
		CredibilityScore: 95,
		Found:            true,
	}

	decision := Evaluate(-500, source, settings.Default())
	if !decision.Accepted {
		t.Fatalf("credibility 95 must bypass relevance filtering, got threshold %d", decision.Threshold)
	}
	if decision.ReasonCode != "" {
		t.Fatalf("accepted decision must carry no reason code, got %q", decision.ReasonCode)
	}
}

func TestEvaluate_ScoreAtThresholdIsAccepted(t *testing.T) {
	t.Parallel()

	source := SourceInfo{
		SourceType:       settings.SourceTypeHyperlocal,
		CredibilityScore: 40,
		Found:            true,
	}

	decision := Evaluate(20, source, settings.Default())
	if !decision.Accepted {
		t.Fatalf("score equal to threshold must be accepted, threshold=%d", decision.Threshold)
	}
}

func TestEvaluate_MissingSourceFailsOpen(t *testing.T) {
	t.Parallel()

	decision := Evaluate(-900, SourceInfo{Found: false}, settings.Default())
	if !decision.Accepted {
		t.Fatalf("missing source must fail open toward acceptance, got threshold %d", decision.Threshold)
	}
	if !decision.SourceMissing {
		t.Fatal("decision must record that the source was missing")
	}
}

func TestEvaluate_CarriesSettingsVersion(t *testing.T) {
	t.Parallel()

	cfg := settings.Default()
	cfg.Version = 12

	decision := Evaluate(0, SourceInfo{SourceType: settings.SourceTypeRegional, CredibilityScore: 70, Found: true}, cfg)
	if decision.SettingsVersion != 12 {
		t.Fatalf("decision must record the settings version used, got %d", decision.SettingsVersion)
	}
}

func TestEvaluate_FullContextPreserved(t *testing.T) {
	t.Parallel()

	source := SourceInfo{
		SourceType:       settings.SourceTypeNational,
		CredibilityScore: 10,
		Found:            true,
	}

	decision := Evaluate(-1, source, settings.Default())
	if decision.Score != -1 {
		t.Fatalf("decision must keep the evaluated score, got %d", decision.Score)
	}
	if decision.SourceType != settings.SourceTypeNational {
		t.Fatalf("decision must keep the source type, got %q", decision.SourceType)
	}
	if decision.CredibilityScore != 10 {
		t.Fatalf("decision must keep the credibility score, got %d", decision.CredibilityScore)
	}
}
