package respond

import (
	"strings"
	"unicode/utf8"

	"github.com/harborchat/harborchat/internal/retrieve"
)

const (
	// excerptCount and excerptRunes bound the heuristic answer: up to three
	// chunk excerpts of 240 runes each.
	excerptCount = 3
	excerptRunes = 240

	noContextAnswer = "I could not find relevant information in the company knowledge base to answer your question."
)

// synthesize builds a deterministic answer from retrieved chunks. Pure
// computation: same question and chunks always produce the same bytes, and
// the answer is never empty.
func synthesize(message string, results []retrieve.Result) string {
	if len(results) == 0 {
		return noContextAnswer
	}

	n := min(len(results), excerptCount)
	excerpts := make([]string, 0, n)
	for _, res := range results[:n] {
		excerpts = append(excerpts, excerpt(res.Chunk.Text))
	}

	var b strings.Builder
	b.WriteString("Based on company knowledge, here is what I found regarding \"")
	b.WriteString(strings.TrimSpace(message))
	b.WriteString("\":\n\n")
	b.WriteString(strings.Join(excerpts, "\n\n"))
	return b.String()
}

// excerpt returns the first excerptRunes runes of text, cut back to the last
// space when the limit lands mid-word.
func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:excerptRunes])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
