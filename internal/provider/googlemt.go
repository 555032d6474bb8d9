package provider

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleMTClient wraps the Google Cloud Translation API. It is a plain
// machine-translation backend: no prompt following, no streaming. The system
// instruction is ignored and GenerateStream degrades to one delta carrying
// the full output. Callers that need glossary or style adherence should use
// an LLM backend instead.
type GoogleMTClient struct {
	credentialsFile string
	sourceLang      string
	targetLang      string
}

func newGoogleMT(cfg Config) *GoogleMTClient {
	return &GoogleMTClient{
		credentialsFile: cfg.CredentialsFile,
		sourceLang:      cfg.SourceLang,
		targetLang:      cfg.TargetLang,
	}
}

func (c *GoogleMTClient) Name() string { return "google" }

func (c *GoogleMTClient) SupportsStreaming() bool { return false }

func (c *GoogleMTClient) Generate(ctx context.Context, system, text string) (string, error) {
	target, err := language.Parse(c.targetLang)
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", c.targetLang, err)
	}

	var opts []option.ClientOption
	if c.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.credentialsFile))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create translate client: %w", err)
	}
	defer client.Close()

	var translateOpts *translate.Options
	if c.sourceLang != "" && c.sourceLang != "auto" {
		if source, perr := language.Parse(c.sourceLang); perr == nil {
			translateOpts = &translate.Options{Source: source}
		}
	}

	translations, err := client.Translate(ctx, []string{text}, target, translateOpts)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) == 0 {
		return "", fmt.Errorf("google: no translation returned")
	}
	return translations[0].Text, nil
}

func (c *GoogleMTClient) GenerateStream(ctx context.Context, system, text string, onDelta func(string)) (string, error) {
	out, err := c.Generate(ctx, system, text)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		onDelta(out)
	}
	return out, nil
}
