package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"collapses spaces and tabs", "a  \t b", "a b"},
		{"preserves paragraph break", "first para\n\nsecond para", "first para\n\nsecond para"},
		{"collapses blank line runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"strips control characters", "a\x01b\x02c", "abc"},
		{"removes http url", "see https://example.com/x for details", "see for details"},
		{"removes www url", "visit www.example.com today", "visit today"},
		{"trims surrounding whitespace", "  hello  ", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"a  b\n\n\nc\td  www.example.org end",
		"plain text",
		"para one\n\npara two\n\npara three",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("first\n\nsecond\n\n\n\nthird\n\n")
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitParagraphs = %v, want %v", got, want)
	}
	if len(SplitParagraphs("")) != 0 {
		t.Error("empty input should yield no paragraphs")
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First sentence. Second one! Third? Fourth without terminator")
	want := []string{"First sentence.", "Second one!", "Third?", "Fourth without terminator"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences = %v, want %v", got, want)
	}
}

func TestCountTokens(t *testing.T) {
	if got := CountTokens(""); got != 0 {
		t.Errorf("empty text: got %d tokens", got)
	}
	if got := CountTokens("   \n\t "); got != 0 {
		t.Errorf("whitespace-only text: got %d tokens", got)
	}
	one := CountTokens("hello")
	if one < 1 {
		t.Errorf("single word: got %d tokens", one)
	}
	// Monotonic: more words never yields fewer tokens.
	prev := 0
	for i := 1; i <= 20; i++ {
		n := CountTokens(strings.Repeat("word ", i))
		if n < prev {
			t.Fatalf("token count decreased: %d words -> %d, %d words -> %d", i-1, prev, i, n)
		}
		prev = n
	}
	// Deterministic.
	if CountTokens("the quick brown fox") != CountTokens("the quick brown fox") {
		t.Error("token count is not deterministic")
	}
}
