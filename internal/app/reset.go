package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"horse.fit/gazette/internal/admission"
	"horse.fit/gazette/internal/cli"
)

func runReset(args []string) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	reason := fs.String("reason", "", "Why the article is being reset (required)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "reset requires exactly one topic article id")
		return 2
	}
	if *reason == "" {
		fmt.Fprintln(os.Stderr, "--reason is required")
		return 2
	}

	topicArticleID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || topicArticleID <= 0 {
		fmt.Fprintln(os.Stderr, "topic article id must be a positive integer")
		return 2
	}

	ctx, cancel, pool, logger, err := connectServices(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	service := admission.NewService(pool, logger)
	if err := service.ResetTopicArticle(ctx, topicArticleID, *reason); err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		return 1
	}

	fmt.Printf("topic article %d reset to new\n", topicArticleID)
	return 0
}
