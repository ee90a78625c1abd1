// Package chunker provides text preprocessing and document chunking for the
// ingestion pipeline.
package chunker

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`(?:https?://|www\.)\S+`)
	horizontalSpaces  = regexp.MustCompile(`[ \t]+`)
	excessBlankLines  = regexp.MustCompile(`\n{3,}`)
	spaceAroundBreaks = regexp.MustCompile(` ?\n ?`)
	sentenceBoundary  = regexp.MustCompile(`([.!?])\s+`)
)

// Clean normalizes text for chunking and embedding: strips URL-like tokens
// and control characters (keeping newlines and tabs before collapsing),
// collapses horizontal whitespace runs, and reduces runs of blank lines to a
// single blank line. Paragraph breaks survive so semantic chunking can see
// them. Clean is idempotent.
func Clean(text string) string {
	text = urlPattern.ReplaceAllString(text, "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = horizontalSpaces.ReplaceAllString(text, " ")
	text = spaceAroundBreaks.ReplaceAllString(text, "\n")
	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SplitParagraphs splits cleaned text on blank lines, dropping empty entries.
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// SplitSentences splits text after terminal punctuation followed by
// whitespace. Abbreviations like "Dr." produce false splits; callers treat
// sentences as a heuristic unit, not a grammatical one.
func SplitSentences(text string) []string {
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// CountTokens estimates the number of subword tokens in text. The estimate
// is deterministic and monotonic: scaled word count at roughly 1.3 tokens
// per whitespace-separated word.
func CountTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return (words*13 + 9) / 10
}
