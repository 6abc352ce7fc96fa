package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/gazette/internal/cleanup"
	"horse.fit/gazette/internal/cli"
)

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "cleanup accepts at most one job name")
		return 2
	}

	job := "all"
	if fs.NArg() == 1 {
		job = strings.TrimSpace(strings.ToLower(fs.Arg(0)))
	}

	ctx, cancel, pool, logger, err := connectServices(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	runner := cleanup.NewRunner(pool, logger)

	var affected int64
	if job == "all" {
		affected, err = runner.RunAll(ctx)
	} else {
		affected, err = runner.Run(ctx, job)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		if strings.Contains(err.Error(), "unknown cleanup job") {
			fmt.Fprintf(os.Stderr, "known jobs: %s\n", strings.Join(cleanup.JobNames, ", "))
			return 2
		}
		return 1
	}

	fmt.Printf("%s: %d rows affected\n", job, affected)
	return 0
}
