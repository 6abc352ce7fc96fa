package dedup

import "testing"

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	if got := normalizeTitle("  Council APPROVES new-housing plan!  "); got != "council approves new housing plan" {
		t.Fatalf("unexpected normalized title: %q", got)
	}
	if got := normalizeTitle("???"); got != "" {
		t.Fatalf("expected punctuation-only title to normalize empty, got %q", got)
	}
	if got := normalizeTitle(""); got != "" {
		t.Fatalf("expected empty title to stay empty, got %q", got)
	}
}

func TestTitleTrigramSimilarity_IdenticalTitles(t *testing.T) {
	t.Parallel()

	score := titleTrigramSimilarity("Council approves new housing plan", "council APPROVES new housing plan")
	if score != 1.0 {
		t.Fatalf("expected identical titles to score 1.0, got %f", score)
	}
}

func TestTitleTrigramSimilarity_TrivialPluralization(t *testing.T) {
	t.Parallel()

	score := titleTrigramSimilarity(
		"Council approves new housing plan",
		"Council approves new housing plans",
	)
	if score < 0.85 {
		t.Fatalf("trivial pluralization must clear the default threshold, got %f", score)
	}
	if score >= 1.0 {
		t.Fatalf("pluralization should not be an exact match, got %f", score)
	}
}

func TestTitleTrigramSimilarity_UnrelatedTitles(t *testing.T) {
	t.Parallel()

	score := titleTrigramSimilarity(
		"Council approves new housing plan",
		"Local bakery wins national pie award",
	)
	if score >= 0.5 {
		t.Fatalf("unrelated titles scored too high: %f", score)
	}
}

func TestTitleTrigramSimilarity_EmptyInput(t *testing.T) {
	t.Parallel()

	if score := titleTrigramSimilarity("", "Council approves plan"); score != 0 {
		t.Fatalf("expected zero score for empty side, got %f", score)
	}
	if score := titleTrigramSimilarity("!!!", "..."); score != 0 {
		t.Fatalf("expected zero score for punctuation-only titles, got %f", score)
	}
}

func TestTitleTrigramSimilarity_ShortTitles(t *testing.T) {
	t.Parallel()

	if score := titleTrigramSimilarity("ab", "ab"); score != 1.0 {
		t.Fatalf("expected short identical titles to score 1.0, got %f", score)
	}
	if score := titleTrigramSimilarity("ab", "xy"); score != 0 {
		t.Fatalf("expected disjoint short titles to score 0, got %f", score)
	}
}
