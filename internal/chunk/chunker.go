// Package chunk splits entity text into bounded-size passages for
// independent embedding. Splitting happens on sentence boundaries so a
// passage never ends mid-sentence; retrieval quality depends on passages
// staying topically coherent.
package chunk

import (
	"strings"
	"unicode"
)

// DefaultTargetChars is the passage size the chunker packs toward.
const DefaultTargetChars = 1200

// Split breaks text into passages of at most targetChars characters,
// except that a single sentence longer than targetChars is emitted whole,
// never truncated. Sentences are packed greedily: when adding the next
// sentence would overflow a non-empty buffer, the buffer is emitted and
// the sentence starts a new one.
//
// Split is a pure function: same input, same output, no state.
// Empty or whitespace-only input yields no passages.
func Split(text string, targetChars int) []string {
	if targetChars <= 0 {
		targetChars = DefaultTargetChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)

	var out []string
	var buf strings.Builder
	for _, s := range sentences {
		if buf.Len() > 0 && buf.Len()+1+len(s) > targetChars {
			out = append(out, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
	}
	if tail := strings.TrimSpace(buf.String()); tail != "" {
		out = append(out, tail)
	}
	return out
}

// splitSentences cuts text after end-of-sentence punctuation followed by
// whitespace. Newlines between fragments without terminal punctuation do
// not start a new sentence; they collapse into the running one.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if isSentenceEnd(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := normalizeSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
			// Skip the whitespace run following the boundary.
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
		}
	}
	if s := normalizeSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// normalizeSpace trims and collapses internal whitespace runs to single
// spaces, so multi-line source text chunks cleanly.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
