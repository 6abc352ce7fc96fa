package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/config"
)

func TestStartMaintenanceScheduleSkipsEmptyExpressions(t *testing.T) {
	t.Parallel()

	scheduler, err := startMaintenanceSchedule(context.Background(), nil, &config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("empty cron expressions should disable the schedule, got %v", err)
	}
	defer scheduler.Stop()

	if got := len(scheduler.Entries()); got != 0 {
		t.Fatalf("expected no scheduled jobs, got %d", got)
	}
}

func TestStartMaintenanceScheduleRegistersBothJobs(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		CleanupCron: "17 */2 * * *",
		SweepCron:   "*/10 * * * *",
	}
	scheduler, err := startMaintenanceSchedule(context.Background(), nil, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("schedule with valid expressions: %v", err)
	}
	defer scheduler.Stop()

	if got := len(scheduler.Entries()); got != 2 {
		t.Fatalf("expected 2 scheduled jobs, got %d", got)
	}
}

func TestStartMaintenanceScheduleRejectsBadExpression(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{CleanupCron: "not a cron"}
	if _, err := startMaintenanceSchedule(context.Background(), nil, cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for malformed cron expression")
	}
}
