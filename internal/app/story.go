package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/gazette/internal/cli"
	"horse.fit/gazette/internal/stories"
)

func runStory(args []string) int {
	if len(args) == 0 {
		printStoryUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printStoryUsage()
		return 0
	case "create":
		return runStoryCreate(args[1:])
	case "claim":
		return runStoryLifecycle("claim", args[1:])
	case "ready":
		return runStoryLifecycle("ready", args[1:])
	case "publish":
		return runStoryLifecycle("publish", args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown story action: %s\n\n", args[0])
		printStoryUsage()
		return 2
	}
}

func printStoryUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  gazette story create --article <topic-article-id> <slides.json>")
	fmt.Fprintln(os.Stderr, "  gazette story claim <topic-article-id>")
	fmt.Fprintln(os.Stderr, "  gazette story ready <story-id>")
	fmt.Fprintln(os.Stderr, "  gazette story publish <story-id>")
}

// storyFile is the on-disk shape accepted by story create.
type storyFile struct {
	Headline string `json:"headline"`
	Slides   []struct {
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	} `json:"slides"`
}

func runStoryCreate(args []string) int {
	fs := flag.NewFlagSet("story create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	articleID := fs.Int64("article", 0, "Topic article id the story is built from")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *articleID <= 0 {
		fmt.Fprintln(os.Stderr, "--article must be a positive topic article id")
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "story create requires exactly one story JSON file")
		return 2
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read story file: %v\n", err)
		return 1
	}
	var file storyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid story JSON: %v\n", err)
		return 1
	}

	req := stories.CreateRequest{
		TopicArticleID: *articleID,
		Headline:       file.Headline,
	}
	for _, slide := range file.Slides {
		req.Slides = append(req.Slides, stories.SlideInput{
			Content:  slide.Content,
			ImageURL: slide.ImageURL,
		})
	}

	ctx, cancel, pool, logger, err := connectServices(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	service := stories.NewService(pool, logger)
	storyID, err := service.CreateStory(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create story: %v\n", err)
		return 1
	}

	fmt.Printf("story %d created\n", storyID)
	return 0
}

func runStoryLifecycle(action string, args []string) int {
	fs := flag.NewFlagSet("story "+action, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "story %s requires exactly one id\n", action)
		return 2
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintln(os.Stderr, "id must be a positive integer")
		return 2
	}

	ctx, cancel, pool, logger, err := connectServices(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	service := stories.NewService(pool, logger)
	switch action {
	case "claim":
		claimed, err := service.ClaimTopicArticle(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Claim failed: %v\n", err)
			return 1
		}
		if !claimed {
			fmt.Fprintf(os.Stderr, "topic article %d is not claimable\n", id)
			return 1
		}
		fmt.Printf("topic article %d claimed for processing\n", id)
	case "ready":
		if err := service.MarkStoryReady(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Mark ready failed: %v\n", err)
			return 1
		}
		fmt.Printf("story %d marked ready\n", id)
	case "publish":
		publishedAt, err := service.PublishStory(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Publish failed: %v\n", err)
			return 1
		}
		fmt.Printf("story %d published at %s\n", id, publishedAt.Format(time.RFC3339))
	}
	return 0
}
