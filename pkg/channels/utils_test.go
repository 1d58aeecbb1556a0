package channels

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateStringCountsRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short", in: "hi", max: 5, want: "hi"},
		{name: "ascii", in: "hello world", max: 5, want: "hello"},
		{name: "chinese", in: "你好世界，欢迎", max: 4, want: "你好世界"},
		{name: "mixed", in: "ok好的", max: 3, want: "ok好"},
		{name: "zero", in: "你好", max: 0, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateString(tt.in, tt.max)
			if got != tt.want {
				t.Fatalf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncateString produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestTruncateStringLongChineseStaysValid(t *testing.T) {
	got := truncateString(strings.Repeat("微信", 40), 50)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 50 {
		t.Fatalf("unexpected truncation %q", got)
	}
}
