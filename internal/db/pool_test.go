package db

import (
	"fmt"
	"testing"

	"gorm.io/gorm/logger"
)

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		logLevel    string
		environment string
		want        logger.LogLevel
	}{
		{"debug", "debug", "production", logger.Info},
		{"trace", "trace", "production", logger.Info},
		{"info", "info", "production", logger.Warn},
		{"empty defaults to warn", "", "production", logger.Warn},
		{"error", "error", "production", logger.Error},
		{"silent", "silent", "production", logger.Silent},
		{"unknown in local", "verbose", "local", logger.Warn},
		{"unknown in production", "verbose", "production", logger.Error},
		{"case and spaces", "  ERROR ", "production", logger.Error},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := resolveGormLogLevel(tt.logLevel, tt.environment); got != tt.want {
				t.Fatalf("resolveGormLogLevel(%q, %q) = %v, want %v", tt.logLevel, tt.environment, got, tt.want)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	t.Parallel()

	if !IsNoRows(ErrNoRows) {
		t.Fatalf("IsNoRows(ErrNoRows) = false")
	}
	if !IsNoRows(fmt.Errorf("scan row: %w", ErrNoRows)) {
		t.Fatalf("IsNoRows should unwrap wrapped errors")
	}
	if IsNoRows(fmt.Errorf("connection refused")) {
		t.Fatalf("IsNoRows matched an unrelated error")
	}
	if IsNoRows(nil) {
		t.Fatalf("IsNoRows(nil) = true")
	}
}

func TestNilRowScanReturnsNoRows(t *testing.T) {
	t.Parallel()

	var row *Row
	if err := row.Scan(new(int)); !IsNoRows(err) {
		t.Fatalf("nil row Scan = %v, want ErrNoRows", err)
	}

	var rows *Rows
	if rows.Next() {
		t.Fatalf("nil rows Next = true")
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("nil rows Err = %v", err)
	}
	rows.Close()
}
