package answer

import (
	"sort"
	"strings"
)

// maxExtractedChars keeps extractive answers at 2-3 sentences.
const maxExtractedChars = 400

// stopwords are excluded from question keyword matching.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "day": {}, "get": {}, "has": {}, "him": {},
	"his": {}, "how": {}, "its": {}, "may": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "boy": {},
	"did": {}, "let": {}, "put": {}, "say": {}, "she": {}, "too": {},
	"use": {}, "what": {}, "when": {}, "where": {}, "which": {},
}

// intentBuckets map question trigger words to the vocabulary a matching
// answer sentence tends to use.
var intentBuckets = []struct {
	triggers []string
	keywords []string
}{
	{
		triggers: []string{"topic", "topics", "subject", "subjects"},
		keywords: []string{"topic", "subject", "theme", "about", "covers", "discusses"},
	},
	{
		triggers: []string{"skill", "skills", "ability", "abilities"},
		keywords: []string{"skill", "ability", "competence", "proficient", "expertise", "capable"},
	},
	{
		triggers: []string{"education", "degree", "qualification"},
		keywords: []string{"education", "degree", "qualification", "study", "university", "college", "semester"},
	},
	{
		triggers: []string{"who", "person", "name"},
		keywords: []string{"name", "person", "individual", "who"},
	},
}

// intentKeywords collects answer-side vocabulary for the intents the
// question triggers.
func intentKeywords(question string) map[string]struct{} {
	questionLower := strings.ToLower(question)
	out := make(map[string]struct{})
	for _, bucket := range intentBuckets {
		for _, trigger := range bucket.triggers {
			if strings.Contains(questionLower, trigger) {
				for _, kw := range bucket.keywords {
					out[kw] = struct{}{}
				}
				break
			}
		}
	}
	return out
}

// questionTokens returns the question's content words, dropping short
// tokens and stopwords.
func questionTokens(question string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range words(question) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

type scoredSentence struct {
	score   float64
	text    string
	overlap int
	intent  int
}

// Extract pulls the most question-relevant sentences out of context and
// returns them as a concise answer, at most maxSentences long.
func Extract(question, context string, maxSentences int) string {
	context = strings.TrimSpace(context)
	if context == "" {
		return ""
	}
	sentences := splitSentencesUpper(context)
	if len(sentences) == 0 {
		return ""
	}

	tokens := questionTokens(question)
	intents := intentKeywords(question)

	scored := make([]scoredSentence, 0, len(sentences))
	for _, s := range sentences {
		sLower := strings.ToLower(s)
		overlap := 0
		for t := range tokens {
			if strings.Contains(sLower, t) {
				overlap++
			}
		}
		intentMatches := 0
		for t := range intents {
			if strings.Contains(sLower, t) {
				intentMatches++
			}
		}
		entry := scoredSentence{text: s, overlap: overlap, intent: intentMatches}
		if overlap > 0 || intentMatches > 0 {
			score := float64(overlap*2 + intentMatches*3)
			for t := range tokens {
				if strings.HasPrefix(sLower, t) {
					score++
					break
				}
			}
			if intentMatches > 0 {
				score += 2
			}
			if len(s) > 150 {
				score *= 0.8
			}
			entry.score = score
		}
		scored = append(scored, entry)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	// Intent-matching sentences first, then anything with a positive score.
	selected := pick(scored, maxSentences, func(s scoredSentence) bool { return s.intent > 0 })
	if len(selected) < maxSentences {
		selected = appendPick(selected, scored, maxSentences, func(s scoredSentence) bool { return s.score > 0 })
	}
	if len(selected) == 0 {
		selected = pick(scored, maxSentences, func(s scoredSentence) bool { return s.overlap > 0 })
	}
	if len(selected) == 0 {
		for _, s := range sentences {
			selected = append(selected, s)
			if len(selected) == maxSentences {
				break
			}
		}
	}

	result := Clean(strings.TrimSpace(strings.Join(selected, " ")), question)
	if len(result) < 20 {
		// Cleaning removed too much. Fall back to the leading sentences.
		fallback := sentences
		if len(fallback) > maxSentences {
			fallback = fallback[:maxSentences]
		}
		result = Clean(strings.Join(fallback, " "), question)
	}
	return truncateAtSentence(result, maxExtractedChars, maxExtractedChars/2)
}

func pick(scored []scoredSentence, max int, keep func(scoredSentence) bool) []string {
	var out []string
	for _, s := range scored {
		if keep(s) {
			out = append(out, s.text)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

func appendPick(selected []string, scored []scoredSentence, max int, keep func(scoredSentence) bool) []string {
	have := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		have[s] = struct{}{}
	}
	for _, s := range scored {
		if len(selected) == max {
			break
		}
		if !keep(s) {
			continue
		}
		if _, dup := have[s.text]; dup {
			continue
		}
		selected = append(selected, s.text)
		have[s.text] = struct{}{}
	}
	return selected
}
