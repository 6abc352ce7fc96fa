package langdetect

import "testing"

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "en", "en"},
		{"uppercase", "EN", "en"},
		{"region tag", "en-US", "en"},
		{"underscore separator", "pt_BR", "pt"},
		{"surrounding space", "  de ", "de"},
		{"empty", "", ""},
		{"digits rejected", "e1", ""},
		{"leading dash", "-en", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeCode(tt.in); got != tt.want {
				t.Fatalf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
