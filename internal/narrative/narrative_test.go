package narrative_test

import (
	"strings"
	"testing"
	"time"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/narrative"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{999 * time.Millisecond, "0s"},
		{1 * time.Second, "1s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m 0s"},
		{125 * time.Second, "2m 5s"},
		{59*time.Minute + 59*time.Second, "59m 59s"},
		{time.Hour, "1h 0m"},
		{3*time.Hour + 47*time.Minute + 12*time.Second, "3h 47m"},
	}
	for _, tc := range cases {
		if got := narrative.FormatDuration(tc.d); got != tc.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestSummarizeTitleFirstLineVerbatim(t *testing.T) {
	got := narrative.SummarizeTitle("Fix the login flow\nIt keeps redirecting to /404 after OAuth.")
	if got != "Fix the login flow" {
		t.Fatalf("got %q", got)
	}
}

func TestSummarizeTitleTrimsWhitespace(t *testing.T) {
	got := narrative.SummarizeTitle("   Ship the release notes   \nbody")
	if got != "Ship the release notes" {
		t.Fatalf("got %q", got)
	}
}

func TestSummarizeTitleExactly80Verbatim(t *testing.T) {
	line := strings.Repeat("a", 80)
	if got := narrative.SummarizeTitle(line); got != line {
		t.Fatalf("80-char line should pass through, got %q", got)
	}
}

func TestSummarizeTitleTruncatesAtWordBoundary(t *testing.T) {
	prompt := "Deploy the new caching layer to staging and run the smoke tests before we flip traffic"
	got := narrative.SummarizeTitle(prompt)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	if len(got) > 80 {
		t.Fatalf("truncated title too long: %d chars", len(got))
	}
	body := strings.TrimSuffix(got, "...")
	if strings.HasSuffix(body, " ") {
		t.Fatalf("trailing space before ellipsis: %q", got)
	}
	if !strings.HasPrefix(prompt, body) {
		t.Fatalf("truncation is not a prefix of the prompt: %q", got)
	}
}

func TestSummarizeTitleHardCutWithoutLateSpace(t *testing.T) {
	// No space after position 50, so the cut lands mid-word.
	prompt := strings.Repeat("a", 30) + " " + strings.Repeat("b", 60)
	got := narrative.SummarizeTitle(prompt)
	want := prompt[:77] + "..."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
