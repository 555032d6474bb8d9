/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/kazkar/internal/errclass"
	"github.com/valpere/kazkar/internal/glossary"
	"github.com/valpere/kazkar/internal/langcheck"
	"github.com/valpere/kazkar/internal/orchestrator"
	"github.com/valpere/kazkar/internal/pipeline"
	"github.com/valpere/kazkar/internal/store"
)

var (
	inputFile   string
	outputFile  string
	sourceLang  string
	targetLang  string
	styleText   string
	modeFlag    string
	contextFile string
	tokenBudget int
	maxRetries  int
	noCache     bool
	quiet       bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate one chapter file",
	Long: `Translate a single chapter file through the configured provider,
streaming output incrementally as the model produces it.

Glossary entries for the language pair are loaded from the database and
enforced in every request. An optional context file supplies the tail of
the previous chapter for narrative continuity.

Two-pass translation:
  --mode two_pass   Literal draft, then a streamed literary polish pass.
                    Doubles latency and cost per chunk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		if err := validateLangs(targetLang); err != nil {
			return err
		}
		mode, err := pipeline.ParseMode(modeFlag)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(raw)

		// Cancellation handle: Ctrl-C settles the in-flight call instead of
		// killing the process mid-write.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		checker := langcheck.New()
		if sourceLang == "auto" {
			if detected, ok := checker.ISO(text); ok {
				sourceLang = detected
				fmt.Fprintf(os.Stderr, "Detected source language: %s\n", sourceLang)
			}
		}

		var db *store.Store
		dbPath := viper.GetString("db")
		if !noCache && dbPath != "" {
			db, err = store.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if cached, found, cacheErr := db.GetChapter(ctx, text, sourceLang, targetLang, string(mode)); cacheErr == nil && found {
				fmt.Fprintf(os.Stderr, "Using cached translation\n")
				return writeResult(cached)
			}
		}

		var terms []glossary.Entry
		if db != nil {
			terms, err = db.Entries(ctx, sourceLang, targetLang)
			if err != nil {
				return fmt.Errorf("failed to load glossary: %w", err)
			}
			if len(terms) > 0 {
				fmt.Fprintf(os.Stderr, "Loaded %d glossary terms\n", len(terms))
			}
		}

		var previousTail string
		if contextFile != "" {
			prev, err := os.ReadFile(contextFile)
			if err != nil {
				return fmt.Errorf("failed to read context file: %w", err)
			}
			previousTail = string(prev)
		}

		prov, cfg, err := buildProvider(sourceLang, targetLang)
		if err != nil {
			return err
		}
		if err := checkMode(mode, prov); err != nil {
			return err
		}

		pipe := pipeline.New(prov, pipeline.Options{
			TokenBudget:  tokenBudget,
			Orchestrator: orchestrator.Config{MaxAttempts: maxRetries},
		})

		req := pipeline.Request{
			SourceText:          text,
			SourceLang:          sourceLang,
			TargetLang:          targetLang,
			Style:               styleText,
			Glossary:            terms,
			Mode:                mode,
			PreviousChapterTail: previousTail,
		}

		onDelta := func(fragment string) {
			if !quiet {
				fmt.Print(fragment)
			}
		}

		result, err := pipe.Run(ctx, req, onDelta)
		if !quiet {
			fmt.Println()
		}
		if err != nil {
			class := errclass.Classify(err)
			if class == errclass.UserAborted {
				// An expected outcome, not a failure needing attention.
				fmt.Fprintf(os.Stderr, "Translation cancelled. Output already shown is preserved above.\n")
				return nil
			}
			return fmt.Errorf("translation failed (%s): %w", errclass.Describe(class), err)
		}

		if verr := checker.Verify(result, targetLang); verr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", verr)
		}

		if db != nil {
			if err := db.SaveChapter(ctx, text, sourceLang, targetLang, string(mode), cfg.Name, result); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save to translation memory: %v\n", err)
			}
		}

		if err := writeResult(result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Successfully translated %s to %s\n", sourceLang, targetLang)
		return nil
	},
}

// writeResult writes the final text to the output file when one was given.
// Streaming already echoed it to stdout otherwise.
func writeResult(result string) error {
	if outputFile == "" {
		return nil
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input chapter file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (streams to stdout when omitted)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")
	translateCmd.Flags().StringVar(&styleText, "style", "", "Style instruction passed to the model")
	translateCmd.Flags().StringVar(&modeFlag, "mode", "standard", "Translation mode: standard or two_pass")
	translateCmd.Flags().StringVar(&contextFile, "context-file", "", "File whose tail provides previous-chapter context")
	translateCmd.Flags().IntVar(&tokenBudget, "token-budget", 0, "Per-chunk token budget (0 = default)")
	translateCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Total attempts per call including the first")
	translateCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the translation memory cache")
	translateCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo streamed output to stdout")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("target")
}
