// Package langcheck detects the language of narrative text and sanity-checks
// translation output. Verification only ever produces an advisory warning;
// translation quality is judged by the reader, not by this tool.
package langcheck

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// minVerifyRunes is the minimum rune count required to attempt detection.
// Shorter texts produce unreliable results and pass without checking.
const minVerifyRunes = 20

// Checker wraps a language detector. Building the detector is expensive;
// reuse one instance.
type Checker struct {
	detector lingua.LanguageDetector
}

func New() *Checker {
	return &Checker{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

// ISO returns the ISO 639-1 code of the detected language of text.
func (c *Checker) ISO(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lang, ok := c.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Verify returns a non-nil error when text does not appear to be written in
// wantLang (an ISO 639-1 code). Short or undetectable texts pass.
func (c *Checker) Verify(text, wantLang string) error {
	if wantLang == "" {
		return nil
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minVerifyRunes {
		return nil
	}
	got, ok := c.ISO(text)
	if !ok {
		return nil
	}
	if !strings.EqualFold(got, wantLang) {
		return fmt.Errorf("output looks like %q, expected %q", got, wantLang)
	}
	return nil
}
