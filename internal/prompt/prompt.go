// Package prompt renders the system and user messages sent to LLM backends.
// The builders keep three rules: glossary terms are presented as exact
// mappings, carried-over context is marked do-not-retranslate, and the model
// is told to output nothing but the translation.
package prompt

import (
	"fmt"
	"strings"

	"github.com/valpere/kazkar/internal/glossary"
)

// ContextKind labels where a carried-over passage came from, which changes
// how it is introduced to the model.
type ContextKind int

const (
	// PreviousChunk is the tail of the preceding chunk of the same chapter.
	PreviousChunk ContextKind = iota
	// PreviousChapter is the tail of the prior chapter, used for chunk 0.
	PreviousChapter
)

func languageName(lang string) string {
	if lang == "" || lang == "auto" {
		return "the detected language"
	}
	return lang
}

// System builds the standard-mode (and polish-pass) system instruction.
func System(sourceLang, targetLang, style string, terms []glossary.Entry, contextTail string, kind ContextKind) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a professional literary translator. Translate the novel passage from %s to %s.\n",
		languageName(sourceLang), targetLang)
	sb.WriteString("Preserve the paragraph structure of the original. Output only the translation, nothing else. No explanations, no quotes, no commentary.")

	if style != "" {
		sb.WriteString("\n\nSTYLE:\n")
		sb.WriteString(style)
	}

	writeTerminology(&sb, terms)
	writeContext(&sb, contextTail, kind)

	return sb.String()
}

// DraftSystem builds the two-pass draft instruction: literal accuracy over
// prose quality. The draft is scratch text the polish pass rewrites.
func DraftSystem(sourceLang, targetLang string, terms []glossary.Entry, contextTail string, kind ContextKind) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a translator producing a literal draft. Translate the novel passage from %s to %s with maximum fidelity to the original meaning.\n",
		languageName(sourceLang), targetLang)
	sb.WriteString("Prioritize accuracy over elegance: keep every detail, name, and nuance. Output only the draft translation, nothing else.")

	writeTerminology(&sb, terms)
	writeContext(&sb, contextTail, kind)

	return sb.String()
}

// PolishSystem builds the two-pass polish instruction applied to a draft.
func PolishSystem(targetLang, style string, terms []glossary.Entry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an elite %s literary editor and prose stylist. You will receive the original passage and a literal draft translation.\n", targetLang)
	fmt.Fprintf(&sb, "Rewrite the draft into polished, natural %s prose: fix awkward literal phrasing, vary repetitive vocabulary, restore proper syntax and rhythm. Preserve all meaning, names, and the paragraph structure.\n", targetLang)
	sb.WriteString("If the draft is already good, return it unchanged. Output only the polished translation. Do not include any explanation.")

	if style != "" {
		sb.WriteString("\n\nSTYLE:\n")
		sb.WriteString(style)
	}

	writeTerminology(&sb, terms)

	return sb.String()
}

// PolishUser renders the polish pass's user message carrying both the
// original source and the draft to rewrite.
func PolishUser(sourceText, draftText string) string {
	var sb strings.Builder
	sb.WriteString("ORIGINAL:\n")
	sb.WriteString(sourceText)
	sb.WriteString("\n\nDRAFT TRANSLATION:\n")
	sb.WriteString(draftText)
	return sb.String()
}

func writeTerminology(sb *strings.Builder, terms []glossary.Entry) {
	if len(terms) == 0 {
		return
	}
	sb.WriteString("\n\nTERMINOLOGY (use these exact translations):\n")
	for _, t := range terms {
		fmt.Fprintf(sb, "  %s → %s\n", t.Original, t.Translated)
	}
}

func writeContext(sb *strings.Builder, contextTail string, kind ContextKind) {
	if contextTail == "" {
		return
	}
	switch kind {
	case PreviousChapter:
		sb.WriteString("\n\nCONTEXT (the story continues from here; for continuity only, do NOT retranslate or re-emit it):\n...")
	default:
		sb.WriteString("\n\nCONTEXT (previous passage for continuity; do NOT retranslate or re-emit it):\n...")
	}
	sb.WriteString(contextTail)
}
