package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/gazette/internal/cli"
	"horse.fit/gazette/internal/settings"
)

func runSettings(args []string) int {
	if len(args) == 0 {
		printSettingsUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printSettingsUsage()
		return 0
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown settings action: %s\n\n", args[0])
		printSettingsUsage()
		return 2
	}
}

func printSettingsUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  gazette settings show")
	fmt.Fprintln(os.Stderr, "  gazette settings set --version <n> [--comment <text>] <policy.json>")
}

func runSettingsShow(args []string) int {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel, pool, err := connectPool(*timeout, envLoader)
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
	if err := printJSON(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func runSettingsSet(args []string) int {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	version := fs.Int64("version", 0, "New settings version (must exceed the current one)")
	comment := fs.String("comment", "", "Optional note on why the tuning changed")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *version <= 0 {
		fmt.Fprintln(os.Stderr, "--version must be a positive integer")
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "settings set requires exactly one policy JSON file")
		return 2
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read policy file: %v\n", err)
		return 1
	}
	var policy settings.Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid policy JSON: %v\n", err)
		return 1
	}

	ctx, cancel, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	current, err := settings.Load(ctx, pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load current settings: %v\n", err)
		return 1
	}
	if *version <= current.Version {
		fmt.Fprintf(os.Stderr, "--version must be greater than the current version %d\n", current.Version)
		return 2
	}

	if err := settings.Save(ctx, pool, *version, policy, *comment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save settings: %v\n", err)
		return 1
	}

	fmt.Printf("settings version %d saved\n", *version)
	return 0
}
