package tgui

import "testing"

func TestEscapeHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  H
		want string
	}{
		{name: "esc", got: Esc(`a<b & "c"`), want: "a&lt;b &amp; &#34;c&#34;"},
		{name: "bold", got: B("<x>"), want: "<b>&lt;x&gt;</b>"},
		{name: "italic", got: I("2024-05-01"), want: "<i>2024-05-01</i>"},
		{name: "code", got: Code("a&b"), want: "<code>a&amp;b</code>"},
		{name: "link", got: Link("R&D", `https://x/?q="1"`), want: `<a href="https://x/?q=&#34;1&#34;">R&amp;D</a>`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got.String() != tc.want {
				t.Fatalf("got %q want %q", tc.got, tc.want)
			}
		})
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel…"},
		{"zürich", 2, "zü…"},
		{"abc", 0, ""},
	}
	for _, tc := range tests {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncRunes(%q, %d) = %q want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
