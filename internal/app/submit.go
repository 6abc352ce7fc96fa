package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/gazette/internal/admission"
	"horse.fit/gazette/internal/cli"
	payloadschema "horse.fit/gazette/schema"
)

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "submit requires at least one article JSON file")
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

	service := admission.NewService(pool, logger)

	type submitRow struct {
		File   string            `json:"file"`
		Result *admission.Result `json:"result,omitempty"`
		Error  string            `json:"error,omitempty"`
	}

	rows := make([]submitRow, 0, fs.NArg())
	failures := 0
	for _, path := range fs.Args() {
		result, err := submitFile(ctx, service, path)
		row := submitRow{File: path}
		if err != nil {
			row.Error = err.Error()
			failures++
		} else {
			row.Result = &result
		}
		rows = append(rows, row)
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		tableRows := make([][]string, 0, len(rows))
		for _, row := range rows {
			outcome := "error"
			detail := row.Error
			if row.Result != nil {
				outcome = row.Result.Outcome
				detail = fmt.Sprintf("topic_article_id=%d", row.Result.TopicArticleID)
				if row.Result.DuplicateOfID != nil {
					detail = fmt.Sprintf("duplicate_of=%d", *row.Result.DuplicateOfID)
				}
			}
			tableRows = append(tableRows, []string{
				truncateForTable(row.File, 48),
				outcome,
				truncateForTable(detail, 64),
			})
		}
		if err := writeTable([]string{"file", "outcome", "detail"}, tableRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d submissions failed\n", failures, len(rows))
		return 1
	}
	return 0
}

func submitFile(ctx context.Context, service *admission.Service, path string) (admission.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return admission.Result{}, fmt.Errorf("read file: %w", err)
	}

	payload, err := payloadschema.ValidateArticlePayload(json.RawMessage(raw))
	if err != nil {
		return admission.Result{}, fmt.Errorf("validate payload: %w", err)
	}

	req, err := admission.RequestFromPayload(payload)
	if err != nil {
		return admission.Result{}, err
	}

	return service.Submit(ctx, req)
}
