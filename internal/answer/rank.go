package answer

import (
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	// minQualityThreshold is the floor applied on top of the caller's
	// similarity threshold.
	minQualityThreshold = 0.4
	// relaxedThreshold is the second pass when nothing clears the floor.
	relaxedThreshold = 0.3
	// lexicalBoost is added per question word found in a chunk.
	lexicalBoost = 0.1
)

// FilterByQuality keeps chunks scoring at least max(threshold, 0.4). When
// that leaves nothing but matches exist, it relaxes to 0.3 capped at topK.
// An empty result means the question does not match the corpus.
func FilterByQuality(chunks []models.RetrievedChunk, threshold float64, topK int) []models.RetrievedChunk {
	quality := threshold
	if quality < minQualityThreshold {
		quality = minQualityThreshold
	}
	filtered := make([]models.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Score >= quality {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > 0 || len(chunks) == 0 {
		return filtered
	}
	for _, c := range chunks {
		if c.Score >= relaxedThreshold {
			filtered = append(filtered, c)
			if len(filtered) == topK {
				break
			}
		}
	}
	return filtered
}

// RankByQuestion boosts each chunk by 0.1 per question word (longer than 3
// characters) found in its content and re-sorts. The input is not modified.
func RankByQuestion(question string, chunks []models.RetrievedChunk) []models.RetrievedChunk {
	questionWords := make(map[string]struct{})
	for _, w := range words(question) {
		if len(w) > 3 {
			questionWords[w] = struct{}{}
		}
	}

	ranked := make([]models.RetrievedChunk, len(chunks))
	copy(ranked, chunks)
	for i := range ranked {
		content := strings.ToLower(ranked[i].Content)
		matches := 0
		for w := range questionWords {
			if strings.Contains(content, w) {
				matches++
			}
		}
		ranked[i].Score += float64(matches) * lexicalBoost
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// ContextText joins the top maxChunks chunk contents into the prompt
// context, separated by blank lines.
func ContextText(chunks []models.RetrievedChunk, maxChunks int) string {
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
