// Package answer turns retrieved context into user-facing answers. It uses
// an LLM when one is configured and falls back to rule-based sentence
// extraction otherwise.
package answer

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[^\w\s]`)

var (
	positiveWords  = []string{"perfect", "great", "excellent", "awesome", "nice", "good", "ok", "okay", "fine", "cool", "sure", "yes", "yeah", "yep"}
	gratitudeWords = []string{"thanks", "thank", "appreciate", "grateful"}
	agreementWords = []string{"correct", "right", "exactly", "precisely", "agreed"}
)

// Acknowledge returns a canned reply when the message is a short
// acknowledgment such as "thanks" or "ok" rather than a question. The second
// return is false for anything that needs real retrieval.
func Acknowledge(question string) (string, bool) {
	clean := strings.TrimSpace(punctuation.ReplaceAllString(strings.ToLower(question), ""))
	if len(strings.Fields(clean)) > 3 {
		return "", false
	}
	containsAny := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(clean, w) {
				return true
			}
		}
		return false
	}
	switch {
	case containsAny(positiveWords):
		return "I'm glad I could help. Feel free to ask if you need any additional information.", true
	case containsAny(gratitudeWords):
		return "You're welcome. I'm here to assist you whenever you need help.", true
	case containsAny(agreementWords):
		return "I'm pleased that the information was helpful. Let me know if you have any other questions.", true
	}
	return "", false
}
