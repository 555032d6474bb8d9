// Package chunker splits long narrative text into bounded chunks that fit a
// model's request budget, and extracts trailing context windows used to keep
// terminology and tense consistent across chunk and chapter boundaries.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// CharsPerToken is the empirical average characters-per-token ratio used
	// to convert a token budget into a character budget. It is a safe
	// approximation, not a tokenizer.
	CharsPerToken = 3.5

	// DefaultTokenBudget is the per-chunk token budget used when the caller
	// does not configure one.
	DefaultTokenBudget = 2000
)

// MaxChars converts a per-request token budget into a character budget using
// the CharsPerToken heuristic. Non-positive budgets fall back to
// DefaultTokenBudget.
func MaxChars(tokenBudget int) int {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return int(float64(tokenBudget) * CharsPerToken)
}

// Split divides text into chunks of at most maxChars runes each, preserving
// paragraph integrity: text is split on line breaks and whole paragraphs are
// accumulated until the next one would exceed the budget. A single paragraph
// longer than maxChars is hard-cut at fixed rune offsets, since no smaller
// natural boundary exists.
//
// Concatenating the returned chunks (modulo the line breaks consumed at chunk
// boundaries) reproduces the non-whitespace content of text exactly. If text
// already fits in one chunk it is returned unsplit, and maxChars ≤ 0 is
// treated as unlimited.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n")

	var chunks []string
	var buf strings.Builder
	bufRunes := 0

	flush := func() {
		if strings.TrimSpace(buf.String()) != "" {
			chunks = append(chunks, buf.String())
		}
		buf.Reset()
		bufRunes = 0
	}

	for _, para := range paragraphs {
		paraRunes := utf8.RuneCountInString(para)

		if paraRunes > maxChars {
			flush()
			chunks = append(chunks, hardSplit(para, maxChars)...)
			continue
		}

		// +1 for the line break that rejoins the paragraph to the buffer.
		if bufRunes > 0 && bufRunes+1+paraRunes > maxChars {
			flush()
		}
		if bufRunes > 0 {
			buf.WriteByte('\n')
			bufRunes++
		}
		buf.WriteString(para)
		bufRunes += paraRunes
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// hardSplit cuts an oversized paragraph at fixed rune offsets. Every piece is
// at most maxChars runes.
func hardSplit(para string, maxChars int) []string {
	runes := []rune(para)
	var pieces []string
	for len(runes) > maxChars {
		pieces = append(pieces, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

// Tail returns the trailing maxChars runes of text, trimmed of surrounding
// whitespace. The clip is tail-biased so the part nearest the upcoming text
// survives. When the clip lands mid-word, the leading partial word is
// dropped.
func Tail(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	tail := runes[len(runes)-maxChars:]
	clipped := string(tail)
	if i := strings.IndexAny(clipped, " \t\n"); i >= 0 && i < len(clipped)-1 {
		clipped = clipped[i+1:]
	}
	return strings.TrimSpace(clipped)
}
