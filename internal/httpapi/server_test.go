package httpapi

import (
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestContext(t *testing.T, paramName, paramValue string) echo.Context {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramName != "" {
		c.SetParamNames(paramName)
		c.SetParamValues(paramValue)
	}
	return c
}

func TestParseIDParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{"valid", "42", 42, false},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
		{"not a number", "abc", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestContext(t, "id", tt.raw)
			got, err := parseIDParam(c, "id")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseIDParam(%q) expected error, got %d", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseIDParam(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("parseIDParam(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseUintParam(t *testing.T) {
	t.Parallel()

	if got, err := parseUintParam("", 25, 200); err != nil || got != 25 {
		t.Fatalf("empty value: got %d, %v; want default 25", got, err)
	}
	if got, err := parseUintParam("100", 25, 200); err != nil || got != 100 {
		t.Fatalf("valid value: got %d, %v", got, err)
	}
	if _, err := parseUintParam("300", 25, 200); err == nil {
		t.Fatalf("expected error above max")
	}
	if _, err := parseUintParam("-1", 25, 200); err == nil {
		t.Fatalf("expected error for negative value")
	}
}

func TestSplitListParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "council", []string{"council"}},
		{"multiple with spaces", " council , budget ,", []string{"council", "budget"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := splitListParam(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitListParam(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
