package cleanup

import (
	"testing"
	"time"
)

func TestPickCanonicalSource(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		candidates []SourceCandidate
		wantID     int64
	}{
		{
			name: "feed url beats article count",
			candidates: []SourceCandidate{
				{SourceID: 1, FeedURL: "", ArticlesScraped: 900, CreatedAt: base},
				{SourceID: 2, FeedURL: "https://example.com/rss", ArticlesScraped: 10, CreatedAt: base},
			},
			wantID: 2,
		},
		{
			name: "most scraped wins among feeds",
			candidates: []SourceCandidate{
				{SourceID: 1, FeedURL: "https://example.com/rss", ArticlesScraped: 50, CreatedAt: base},
				{SourceID: 2, FeedURL: "https://example.com/feed", ArticlesScraped: 200, CreatedAt: base},
			},
			wantID: 2,
		},
		{
			name: "oldest breaks scrape ties",
			candidates: []SourceCandidate{
				{SourceID: 1, FeedURL: "https://example.com/rss", ArticlesScraped: 50, CreatedAt: base.Add(time.Hour)},
				{SourceID: 2, FeedURL: "https://example.com/feed", ArticlesScraped: 50, CreatedAt: base},
			},
			wantID: 2,
		},
		{
			name: "lowest id is the final tiebreak",
			candidates: []SourceCandidate{
				{SourceID: 7, FeedURL: "", ArticlesScraped: 5, CreatedAt: base},
				{SourceID: 3, FeedURL: "", ArticlesScraped: 5, CreatedAt: base},
			},
			wantID: 3,
		},
		{
			name: "single candidate",
			candidates: []SourceCandidate{
				{SourceID: 11, FeedURL: "", ArticlesScraped: 0, CreatedAt: base},
			},
			wantID: 11,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := PickCanonicalSource(tt.candidates)
			if got.SourceID != tt.wantID {
				t.Fatalf("PickCanonicalSource picked %d, want %d", got.SourceID, tt.wantID)
			}
		})
	}
}
