package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"horse.fit/gazette/internal/cli"
	"horse.fit/gazette/internal/dedup"
	"horse.fit/gazette/internal/settings"
)

func runDetect(args []string) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	topicID := fs.Int64("topic-id", 0, "Restrict matching to this topic (0 means all topics)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "detect requires exactly one topic article id")
		return 2
	}

	topicArticleID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || topicArticleID <= 0 {
		fmt.Fprintln(os.Stderr, "topic article id must be a positive integer")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, logger, err := connectServices(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	cfg, err := settings.Load(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		return 1
	}

	opts := dedup.Options{TitleThreshold: cfg.Policy.TitleSimilarityThreshold}
	if *topicID > 0 {
		opts.TopicID = topicID
	}

	detector := dedup.NewDetector(pool, logger)
	matches, err := detector.Detect(ctx, topicArticleID, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(matches); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if len(matches) == 0 {
		fmt.Println("no matches")
		return 0
	}

	rows := make([][]string, 0, len(matches))
	for _, match := range matches {
		rows = append(rows, []string{
			strconv.FormatInt(match.TopicArticleID, 10),
			fmt.Sprintf("%.3f", match.SimilarityScore),
			match.DetectionMethod,
		})
	}
	if err := writeTable([]string{"topic_article_id", "similarity", "method"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
