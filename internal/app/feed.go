package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/gazette/internal/cli"
	"horse.fit/gazette/internal/db"
)

func runFeed(args []string) int {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	keywords := fs.String("keywords", "", "Comma-separated keyword filters")
	sourceDomains := fs.String("source-domains", "", "Comma-separated source domain filters")
	sourceNames := fs.String("source-names", "", "Comma-separated source name filters")
	limit := fs.Uint64("limit", 0, "Maximum stories to return (0 uses the server default)")
	offset := fs.Uint64("offset", 0, "Stories to skip")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "feed requires exactly one topic slug")
		return 2
	}
	slug := strings.TrimSpace(fs.Arg(0))
	if slug == "" {
		fmt.Fprintln(os.Stderr, "topic slug must not be empty")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	filter := db.FeedFilter{
		Keywords:      splitCommaList(*keywords),
		SourceDomains: splitCommaList(*sourceDomains),
		SourceNames:   splitCommaList(*sourceNames),
		Limit:         *limit,
		Offset:        *offset,
	}

	feed, err := pool.GetTopicStories(ctx, slug, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load feed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(feed); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if len(feed) == 0 {
		fmt.Println("no published stories")
		return 0
	}

	rows := make([][]string, 0, len(feed))
	for _, story := range feed {
		rows = append(rows, []string{
			strconv.FormatInt(story.StoryID, 10),
			truncateForTable(story.Headline, 56),
			strconv.Itoa(len(story.Slides)),
			formatUTCTimestampPtr(story.ArticlePublishedAt),
		})
	}
	if err := writeTable([]string{"story_id", "headline", "slides", "article_published_at"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func splitCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
