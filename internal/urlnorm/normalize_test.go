package urlnorm

import "testing"

func TestNormalize_StripsProtocolTrackingAndFragment(t *testing.T) {
	t.Parallel()

	got := Normalize("HTTPS://WWW.Example.com/a/?utm_source=x#frag")
	if got != "example.com/a" {
		t.Fatalf("unexpected normalized url: %q", got)
	}
	if got != Normalize("example.com/a") {
		t.Fatalf("equivalent inputs did not normalize identically: %q", got)
	}
}

func TestNormalize_KeepsNonTrackingParams(t *testing.T) {
	t.Parallel()

	got := Normalize("http://news.example.com/story?id=42&utm_campaign=mail&page=2")
	if got != "news.example.com/story?id=42&page=2" {
		t.Fatalf("unexpected normalized url: %q", got)
	}
}

func TestNormalize_DropsDanglingQuery(t *testing.T) {
	t.Parallel()

	got := Normalize("https://example.com/a/?fbclid=abc&gclid=def")
	if got != "example.com/a" {
		t.Fatalf("expected dangling query to be removed, got %q", got)
	}
}

func TestNormalize_BareDomainIsValidKey(t *testing.T) {
	t.Parallel()

	got := Normalize("https://www.example.com/")
	if got != "example.com" {
		t.Fatalf("unexpected bare domain key: %q", got)
	}
	if got == "" {
		t.Fatal("bare domain must remain a non-empty key")
	}
}

func TestNormalize_BlankInput(t *testing.T) {
	t.Parallel()

	if got := Normalize("   "); got != "" {
		t.Fatalf("expected empty output for blank input, got %q", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://www.example.com/a/?utm_source=x&id=1#frag",
		"http://example.com",
		"example.com/path/",
		"EXAMPLE.com/Path?ref=homepage",
	}
	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("normalize is not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestNormalize_TrailingSlashEquivalence(t *testing.T) {
	t.Parallel()

	if Normalize("https://x.com/a/") != Normalize("https://x.com/a") {
		t.Fatal("trailing slash variants must normalize to the same key")
	}
}
