package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
)

func corpusText(paragraphs int) string {
	var b strings.Builder
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "Paragraph %d covers onboarding, expense policy, and travel booking rules in moderate detail across several sentences.\n\n", i)
	}
	return b.String()
}

func BenchmarkChunkSemantic(b *testing.B) {
	c := chunker.New(512, 100, chunker.StrategySemantic)
	text := corpusText(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if got := c.Chunk("doc", text); len(got) == 0 {
			b.Fatal("no chunks")
		}
	}
}

func BenchmarkChunkCharacter(b *testing.B) {
	c := chunker.New(512, 100, chunker.StrategyCharacter)
	text := corpusText(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if got := c.Chunk("doc", text); len(got) == 0 {
			b.Fatal("no chunks")
		}
	}
}

func BenchmarkEmbedBatch(b *testing.B) {
	e := embedding.NewHashEmbedder(384)
	defer e.Close()
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = corpusText(1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.EmbedBatch(context.Background(), texts); err != nil {
			b.Fatal(err)
		}
	}
}
