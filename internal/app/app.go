package app

import (
	"fmt"
	"os"
	"strings"

	"horse.fit/gazette/internal/cleanup"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "submit":
		return runSubmit(args[1:])
	case "detect":
		return runDetect(args[1:])
	case "reset":
		return runReset(args[1:])
	case "feed":
		return runFeed(args[1:])
	case "story":
		return runStory(args[1:])
	case "cleanup":
		return runCleanup(args[1:])
	case "sweep":
		return runCleanup(append(args[1:], cleanup.JobSweepStuck))
	case "sources":
		return runCleanup(append(args[1:], cleanup.JobConsolidateSources))
	case "settings":
		return runSettings(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "gazette CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  gazette <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  submit    Submit article JSON files into the pipeline")
	fmt.Fprintln(os.Stderr, "  detect    Run duplicate detection for one topic article")
	fmt.Fprintln(os.Stderr, "  reset     Return a discarded or processed topic article to new")
	fmt.Fprintln(os.Stderr, "  feed      Print the published feed of a topic")
	fmt.Fprintln(os.Stderr, "  story     Create, ready, or publish stories")
	fmt.Fprintln(os.Stderr, "  cleanup   Run one maintenance job or all of them")
	fmt.Fprintln(os.Stderr, "  sweep     Reset stuck processing articles (cleanup sweep_stuck)")
	fmt.Fprintln(os.Stderr, "  sources   Consolidate duplicate sources (cleanup consolidate_sources)")
	fmt.Fprintln(os.Stderr, "  settings  Show or append pipeline tuning settings")
	fmt.Fprintln(os.Stderr, "  stats     Print pipeline row counts")
	fmt.Fprintln(os.Stderr, "  serve     Start the API server with scheduled maintenance")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"gazette <command> -h\" for command-specific flags.")
}
