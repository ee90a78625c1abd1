package answer

import (
	"regexp"
	"strings"
	"unicode"
)

var wordPattern = regexp.MustCompile(`\w+`)

// splitSentencesUpper splits text after terminal punctuation only when the
// next sentence starts with an uppercase letter, which keeps abbreviations
// like "e.g. this" intact. Sentences of 10 characters or fewer are dropped.
func splitSentencesUpper(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); len(s) > 10 {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); len(s) > 10 {
		out = append(out, s)
	}
	return out
}

// splitSentences splits text after any terminal punctuation followed by
// whitespace, keeping the punctuation and empty-trimming each piece.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// words extracts lowercase word tokens.
func words(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// wordSet extracts lowercase word tokens as a set.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(text) {
		set[w] = struct{}{}
	}
	return set
}

// truncateAtSentence cuts text to max characters, preferring a period past
// minPeriod so the cut lands on a sentence boundary.
func truncateAtSentence(text string, max, minPeriod int) string {
	if len(text) <= max {
		return text
	}
	truncated := text[:max]
	if dot := strings.LastIndex(truncated, "."); dot > minPeriod {
		return truncated[:dot+1]
	}
	return strings.TrimRight(truncated, " \t\n") + "..."
}
