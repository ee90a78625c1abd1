package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/models"
)

// Strategy selects how a document is split into chunks.
type Strategy string

const (
	// StrategyCharacter uses fixed-size character windows with overlap,
	// pulling the boundary back to a sentence end when one falls in the
	// last 30% of the window.
	StrategyCharacter Strategy = "character"
	// StrategySemantic accumulates whole paragraphs under the token budget.
	StrategySemantic Strategy = "semantic"
)

// Chunker splits cleaned document text into retrieval units.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	strategy     Strategy
}

// New creates a chunker. chunkSize is a token budget for the semantic
// strategy and a character window for the character strategy; chunkOverlap
// applies to the character strategy only.
func New(chunkSize, chunkOverlap int, strategy Strategy) *Chunker {
	if strategy != StrategyCharacter {
		strategy = StrategySemantic
	}
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		strategy:     strategy,
	}
}

// span is a chunk candidate with its [start,end) offsets into cleaned text.
type span struct {
	text  string
	start int
	end   int
}

// Chunk cleans text and splits it into chunks for docID. Offsets refer to
// the cleaned text. Empty or whitespace-only input yields no chunks.
func (c *Chunker) Chunk(docID models.DocumentID, text string) []*models.Chunk {
	text = Clean(text)
	if text == "" {
		return nil
	}

	var spans []span
	if c.strategy == StrategyCharacter {
		spans = c.characterSpans(text)
	} else {
		spans = c.semanticSpans(text)
	}

	chunks := make([]*models.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, &models.Chunk{
			ID:         fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8]),
			DocumentID: docID,
			Content:    sp.text,
			Index:      i,
			StartChar:  sp.start,
			EndChar:    sp.end,
			TokenCount: CountTokens(sp.text),
			Metadata: map[string]interface{}{
				"strategy":   string(c.strategy),
				"word_count": len(strings.Fields(sp.text)),
			},
		})
	}
	return chunks
}

// characterSpans walks fixed windows over text. Boundaries prefer a period
// in the last 30% of the window, then the last space; consecutive windows
// overlap by chunkOverlap characters so no boundary loses context.
func (c *Chunker) characterSpans(text string) []span {
	var spans []span
	start := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end < len(text) {
			if dot := strings.LastIndex(text[start:end], "."); dot >= 0 && float64(dot) > float64(c.chunkSize)*0.7 {
				end = start + dot + 1
			} else if sp := strings.LastIndex(text[start:end], " "); sp > 0 {
				end = start + sp
			}
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			spans = append(spans, span{text: chunk, start: start, end: end})
		}

		if end >= len(text) {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans
}

// semanticSpans accumulates paragraphs while the combined token count stays
// within the budget. Offsets are located by scanning forward from the end of
// the previous paragraph, so repeated paragraphs map to distinct spans.
func (c *Chunker) semanticSpans(text string) []span {
	paragraphs := SplitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var spans []span
	var current string
	startPos := 0
	searchFrom := 0

	for _, para := range paragraphs {
		paraStart := strings.Index(text[searchFrom:], para)
		if paraStart < 0 {
			paraStart = searchFrom
		} else {
			paraStart += searchFrom
		}

		if current == "" {
			startPos = paraStart
		}

		combined := para
		if current != "" {
			combined = current + "\n\n" + para
		}

		if CountTokens(combined) > c.chunkSize && current != "" {
			spans = append(spans, span{text: current, start: startPos, end: paraStart})
			current = para
			startPos = paraStart
		} else {
			current = combined
		}

		searchFrom = paraStart + len(para)
	}

	if current != "" {
		spans = append(spans, span{text: current, start: startPos, end: searchFrom})
	}
	return spans
}
