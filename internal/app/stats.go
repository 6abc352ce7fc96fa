package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"horse.fit/gazette/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
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

	stats, err := pool.GetPipelineStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query pipeline stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	totalsRows := [][]string{
		{"topics", fmt.Sprintf("%d", stats.Topics)},
		{"active_sources", fmt.Sprintf("%d", stats.ActiveSources)},
		{"shared_content", fmt.Sprintf("%d", stats.SharedContent)},
		{"pending_duplicates", fmt.Sprintf("%d", stats.PendingDuplicates)},
		{"published_stories", fmt.Sprintf("%d", stats.PublishedStories)},
	}
	if err := writeTable([]string{"metric", "value"}, totalsRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render totals table: %v\n", err)
		return 1
	}

	if len(stats.TopicArticles) > 0 {
		fmt.Println()
		statuses := make([]string, 0, len(stats.TopicArticles))
		for status := range stats.TopicArticles {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)

		statusRows := make([][]string, 0, len(statuses))
		for _, status := range statuses {
			statusRows = append(statusRows, []string{status, fmt.Sprintf("%d", stats.TopicArticles[status])})
		}
		if err := writeTable([]string{"processing_status", "count"}, statusRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render status table: %v\n", err)
			return 1
		}
	}

	return 0
}
