package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		version int
		in, out string
	}{
		{MarkdownV1, "snake_case *bold* [x]", `snake\_case \*bold\* \[x]`},
		{MarkdownV1, "plain", "plain"},
		{MarkdownV2, "a.b-c!", `a\.b\-c\!`},
	}
	for _, tc := range cases {
		got, err := EscapeMarkdown(tc.in, tc.version)
		if err != nil {
			t.Fatalf("escape %q: %v", tc.in, err)
		}
		if got != tc.out {
			t.Fatalf("escape v%d %q = %q, want %q", tc.version, tc.in, got, tc.out)
		}
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
