package engine

import (
	"strings"
	"unicode/utf8"
)

// SplitText breaks text into chunks of at most maxChars characters,
// preferring paragraph boundaries, then sentence boundaries, then hard
// cuts. Chunk order follows document order.
func SplitText(text string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, piece := range splitPieces(text, maxChars) {
		pieceLen := utf8.RuneCountInString(piece)
		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+pieceLen > maxChars {
			flush()
			sep = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(piece)
		curLen += pieceLen
	}
	flush()

	return chunks
}

// splitPieces yields text fragments no longer than maxChars, splitting on
// paragraphs first, sentences second, and raw character runs last.
func splitPieces(text string, maxChars int) []string {
	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= maxChars {
			pieces = append(pieces, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if utf8.RuneCountInString(sent) <= maxChars {
				pieces = append(pieces, sent)
				continue
			}
			pieces = append(pieces, hardCut(sent, maxChars)...)
		}
	}
	return pieces
}

// splitSentences splits on sentence-ending punctuation followed by a space.
// Trailing punctuation stays with its sentence.
func splitSentences(s string) []string {
	var out []string
	start := 0
	runes := []rune(s)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if runes[i+1] == ' ' {
				out = append(out, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 2
				i++
			}
		}
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

func hardCut(s string, maxChars int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > maxChars {
		out = append(out, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
