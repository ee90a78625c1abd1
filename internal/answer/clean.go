package answer

import (
	"regexp"
	"strings"
)

var (
	separatorPrefix = regexp.MustCompile(`^[:\-–—]\s*`)
	whitespaceRun   = regexp.MustCompile(`\s+`)

	// Phrases that invite a follow-up question. They get stripped so answers
	// end on statements.
	questionPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)would\s+you\s+like\s+to\s+know\s+more[.?]?`),
		regexp.MustCompile(`(?i)do\s+you\s+have\s+any\s+other\s+questions[.?]?`),
		regexp.MustCompile(`(?i)is\s+there\s+anything\s+else\s+you\s+would\s+like\s+to\s+know[.?]?`),
		regexp.MustCompile(`(?i)can\s+I\s+help\s+you\s+with\s+anything\s+else[.?]?`),
		regexp.MustCompile(`(?i)would\s+you\s+like\s+to\s+ask\s+another\s+question[.?]?`),
		regexp.MustCompile(`(?i)do\s+you\s+need\s+any\s+further\s+assistance[.?]?`),
		regexp.MustCompile(`(?i)are\s+there\s+any\s+other\s+questions[.?]?`),
	}

	// Prefixes that echo the question back before answering it.
	echoPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^regarding\s+your\s+question[:\-–—]?\s*`),
		regexp.MustCompile(`(?i)^to\s+answer\s+your\s+question[:\-–—]?\s*`),
		regexp.MustCompile(`(?i)^based\s+on\s+your\s+question[:\-–—]?\s*`),
		regexp.MustCompile(`(?i)^in\s+response\s+to[:\-–—]?\s*`),
		regexp.MustCompile(`(?i)^the\s+answer\s+to\s+your\s+question\s+is[:\-–—]?\s*`),
	}

	sourceBracket = regexp.MustCompile(`\[Source:[^\]]+\]`)
	sourceParen   = regexp.MustCompile(`\(Source:[^)]+\)`)
	sourceLine    = regexp.MustCompile(`Source:\s*[^\n]+`)
	separatorLine = regexp.MustCompile(`---+`)

	closingPhrases = []string{
		"thank you", "thanks", "appreciate", "glad to help",
		"hope this helps", "best regards",
	}
)

// Clean strips question echoes, interrogative sentences, and follow-up
// invitations from a generated answer.
func Clean(generated, question string) string {
	if generated == "" {
		return generated
	}
	answer := generated

	questionLower := strings.ToLower(strings.TrimSpace(question))
	if strings.HasPrefix(strings.ToLower(answer), questionLower) {
		answer = strings.TrimSpace(answer[len(question):])
		answer = separatorPrefix.ReplaceAllString(answer, "")
	}

	questionWords := wordSet(questionLower)
	var kept []string
	for _, sent := range splitSentences(answer) {
		if strings.HasSuffix(sent, "?") {
			if isQuestionPhrase(sent) {
				continue
			}
			sent = strings.TrimSuffix(sent, "?") + "."
		}
		sentWords := wordSet(sent)
		if len(sentWords) > 0 {
			overlap := 0
			for w := range sentWords {
				if _, ok := questionWords[w]; ok {
					overlap++
				}
			}
			ratio := float64(overlap) / float64(len(sentWords))
			// Sentences that mostly restate the question add nothing, but
			// longer sentences can overlap and still carry an answer.
			if ratio >= 0.5 && len(sentWords) <= 5 {
				continue
			}
		}
		kept = append(kept, sent)
	}
	answer = strings.TrimSpace(strings.Join(kept, " "))

	for _, prefix := range echoPrefixes {
		answer = prefix.ReplaceAllString(answer, "")
	}
	for _, phrase := range questionPhrases {
		answer = phrase.ReplaceAllString(answer, "")
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(answer, " "))
}

func isQuestionPhrase(sent string) bool {
	for _, phrase := range questionPhrases {
		if phrase.MatchString(sent) {
			return true
		}
	}
	return false
}

// Sign removes source mentions and appends an organization signature unless
// the answer already closes politely and names the organization.
func Sign(answer, organizationName string) string {
	if answer == "" {
		return answer
	}
	answer = sourceBracket.ReplaceAllString(answer, "")
	answer = sourceParen.ReplaceAllString(answer, "")
	answer = sourceLine.ReplaceAllString(answer, "")
	answer = separatorLine.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(whitespaceRun.ReplaceAllString(answer, " "))
	for _, phrase := range questionPhrases {
		answer = phrase.ReplaceAllString(answer, "")
	}
	answer = strings.TrimSpace(answer)

	if organizationName == "" {
		return answer
	}
	answerLower := strings.ToLower(answer)
	tail := answerLower
	if len(tail) > 50 {
		tail = tail[len(tail)-50:]
	}
	hasClosing := false
	for _, phrase := range closingPhrases {
		if strings.Contains(tail, phrase) {
			hasClosing = true
			break
		}
	}
	if !hasClosing || !strings.Contains(answerLower, strings.ToLower(organizationName)) {
		answer = answer + "\n\nBest regards,\n" + organizationName
	}
	return answer
}
