// Package postprocess strips common LLM artifacts from non-streamed
// translation output: leaked reasoning blocks, echoed instructions, and
// quote wrapping. Streamed output cannot be cleaned retroactively, so the
// orchestrator applies Clean only to draft passes and non-streaming
// fallbacks.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text and returns the trimmed result.
func Clean(text string) string {
	text = stripThinking(text)
	text = stripEchoes(text)
	text = stripQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// Tag variants are listed explicitly because Go's RE2 engine has no
// backreferences.
var (
	thinkingRe = regexp.MustCompile(
		`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>`,
	)
	// An opened tag with no closing tag means the model was cut off
	// mid-thought; everything after it is scratch.
	truncatedThinkingRe = regexp.MustCompile(
		`(?is)(?:<thinking>|<think>|<reasoning>).*$`,
	)
)

func stripThinking(text string) string {
	text = thinkingRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// echoRes match introductory phrases models prepend even when told not to.
// Anchored to the start of the output and requiring a colon to avoid eating
// legitimate prose.
var echoRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:draft |literal |polished |final |translated )?(?:translation|text|version)\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:draft |literal |polished |final )?(?:translation|translated text)\s*:`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:draft |polished |translated )?(?:translation|text)\s*:`),
}

func stripEchoes(text string) string {
	for _, re := range echoRes {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimLeft(text[loc[1]:], " \t")
			text = strings.TrimPrefix(text, "\n")
		}
	}
	return text
}

// stripQuoteWrapping removes one matching pair of outer quotes when the
// whole output is wrapped in them.
func stripQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
