package orgdocs

import (
	"sort"
	"strings"
)

// maxSentencesPerFile caps how much of each document is scored.
const maxSentencesPerFile = 20

// Excerpt is one question-relevant sentence from a library document.
type Excerpt struct {
	Content  string
	Filename string
	Score    int
}

// Search scores cached documents against the question and returns the topK
// most relevant sentences. Scoring counts question words (longer than 3
// characters) per sentence; files with no match are skipped entirely.
func (l *Library) Search(question string, topK int) []Excerpt {
	questionWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if len(w) > 3 {
			questionWords[w] = struct{}{}
		}
	}
	if len(questionWords) == 0 || topK <= 0 {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var excerpts []Excerpt
	for filename, content := range l.docs {
		contentLower := strings.ToLower(content)
		fileScore := 0
		for w := range questionWords {
			if strings.Contains(contentLower, w) {
				fileScore++
			}
		}
		if fileScore == 0 {
			continue
		}

		sentences := strings.Split(content, ". ")
		if len(sentences) > maxSentencesPerFile {
			sentences = sentences[:maxSentencesPerFile]
		}
		for _, sentence := range sentences {
			sentenceLower := strings.ToLower(sentence)
			score := 0
			for w := range questionWords {
				if strings.Contains(sentenceLower, w) {
					score++
				}
			}
			if score > 0 {
				excerpts = append(excerpts, Excerpt{
					Content:  strings.TrimSpace(sentence),
					Filename: filename,
					Score:    score,
				})
			}
		}
	}

	sort.SliceStable(excerpts, func(i, j int) bool { return excerpts[i].Score > excerpts[j].Score })
	if len(excerpts) > topK {
		excerpts = excerpts[:topK]
	}
	return excerpts
}

// ContextText joins excerpt contents into prompt context.
func ContextText(excerpts []Excerpt) string {
	parts := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		parts = append(parts, e.Content)
	}
	return strings.Join(parts, "\n\n")
}
