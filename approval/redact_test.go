package approval

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		gone    string
		keep    string
	}{
		{
			name: "card_number_dashed",
			in:   "pay with card 4111-1111-1111-1111 at checkout",
			gone: "4111-1111-1111-1111",
			keep: "checkout",
		},
		{
			name: "card_number_spaced",
			in:   "enter 4242 4242 4242 4242 into the form",
			gone: "4242",
			keep: "form",
		},
		{
			name: "cvv",
			in:   "cvv: 123 on the back",
			gone: "123",
			keep: "back",
		},
		{
			name: "bearer_token",
			in:   "use header Bearer abcdef0123456789 for auth",
			gone: "abcdef0123456789",
			keep: "header",
		},
		{
			name: "password_kv",
			in:   "login with password=hunter2secret then continue",
			gone: "hunter2secret",
			keep: "continue",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Redact(tc.in)
			if strings.Contains(got, tc.gone) {
				t.Fatalf("Redact(%q) = %q still contains %q", tc.in, got, tc.gone)
			}
			if !strings.Contains(got, tc.keep) {
				t.Fatalf("Redact(%q) = %q lost surrounding text %q", tc.in, got, tc.keep)
			}
		})
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("navigate to the page and wait ", 20)
	got := Summarize(long)
	if len(got) > summaryMaxLen {
		t.Fatalf("summary length %d > %d", len(got), summaryMaxLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("summary %q missing ellipsis", got)
	}
}

func TestSummarizeCollapsesWhitespace(t *testing.T) {
	got := Summarize("click   the\n\tbutton")
	if got != "click the button" {
		t.Fatalf("got %q", got)
	}
}
