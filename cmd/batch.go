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
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/kazkar/internal/chunker"
	"github.com/valpere/kazkar/internal/errclass"
	"github.com/valpere/kazkar/internal/glossary"
	"github.com/valpere/kazkar/internal/langcheck"
	"github.com/valpere/kazkar/internal/orchestrator"
	"github.com/valpere/kazkar/internal/pipeline"
	"github.com/valpere/kazkar/internal/provider"
	"github.com/valpere/kazkar/internal/store"
)

// previousChapterTailChars matches the prompt budget the pipeline grants
// cross-chapter context.
const previousChapterTailChars = 1500

var (
	batchInputDir    string
	batchOutputDir   string
	batchSourceLang  string
	batchTargetLang  string
	batchStyle       string
	batchMode        string
	batchTokenBudget int
	batchMaxRetries  int
	batchResume      string
	batchQuiet       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Translate a directory of chapter files",
	Long: `Translate every .txt file in a directory, one pipeline invocation per
chapter, strictly in lexicographic order. The tail of each chapter's source
is carried into the next chapter's first prompt for narrative continuity.

Progress is checkpointed in the database; an interrupted run can continue
with --resume <checkpoint-id>.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateLangs(batchTargetLang); err != nil {
			return err
		}
		mode, err := pipeline.ParseMode(batchMode)
		if err != nil {
			return err
		}

		names, err := listChapterFiles(batchInputDir)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("no .txt files found in %s", batchInputDir)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		var checkpointID string
		done := make(map[string]bool)
		if batchResume != "" {
			if _, err := db.GetCheckpoint(ctx, batchResume); err != nil {
				return fmt.Errorf("failed to load checkpoint: %w", err)
			}
			checkpointID = batchResume
			if done, err = db.DoneFiles(ctx, checkpointID); err != nil {
				return fmt.Errorf("failed to load checkpoint files: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Resuming checkpoint %s (%d chapters already done)\n", checkpointID, len(done))
		} else {
			checkpointID, err = db.CreateCheckpoint(ctx, batchInputDir, batchOutputDir, batchTargetLang)
			if err != nil {
				return fmt.Errorf("failed to create checkpoint: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Checkpoint ID: %s (use --resume %s to continue if interrupted)\n", checkpointID, checkpointID)
		}

		checker := langcheck.New()
		srcLang := batchSourceLang

		var prov provider.Provider

		// Previous chapter's source tail, threaded chapter to chapter.
		var previousTail string

		for i, name := range names {
			source, err := os.ReadFile(filepath.Join(batchInputDir, name))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			text := string(source)

			if done[name] {
				previousTail = chunker.Tail(text, previousChapterTailChars)
				continue
			}

			if srcLang == "auto" {
				if detected, ok := checker.ISO(text); ok {
					srcLang = detected
					fmt.Fprintf(os.Stderr, "Detected source language: %s\n", srcLang)
				}
			}

			p, cfg, err := buildProvider(srcLang, batchTargetLang)
			if err != nil {
				return err
			}
			if err := checkMode(mode, p); err != nil {
				return err
			}
			prov = p

			var terms []glossary.Entry
			if terms, err = db.Entries(ctx, srcLang, batchTargetLang); err != nil {
				return fmt.Errorf("failed to load glossary: %w", err)
			}

			fmt.Fprintf(os.Stderr, "[%d/%d] Translating %s\n", i+1, len(names), name)

			pipe := pipeline.New(p, pipeline.Options{
				TokenBudget:  batchTokenBudget,
				Orchestrator: orchestrator.Config{MaxAttempts: batchMaxRetries},
			})

			onDelta := func(fragment string) {
				if !batchQuiet {
					fmt.Print(fragment)
				}
			}

			result, err := pipe.Run(ctx, pipeline.Request{
				SourceText:          text,
				SourceLang:          srcLang,
				TargetLang:          batchTargetLang,
				Style:               batchStyle,
				Glossary:            terms,
				Mode:                mode,
				PreviousChapterTail: previousTail,
			}, onDelta)
			if !batchQuiet {
				fmt.Println()
			}
			if err != nil {
				if errclass.Classify(err) == errclass.UserAborted {
					fmt.Fprintf(os.Stderr, "Batch cancelled at %s. Resume with --resume %s\n", name, checkpointID)
					return nil
				}
				return fmt.Errorf("%s: translation failed (%s): %w", name, errclass.Describe(errclass.Classify(err)), err)
			}

			if err := os.MkdirAll(batchOutputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.WriteFile(filepath.Join(batchOutputDir, name), []byte(result), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}

			if err := db.SaveChapter(ctx, text, srcLang, batchTargetLang, string(mode), cfg.Name, result); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save to translation memory: %v\n", err)
			}
			if err := db.MarkFileDone(ctx, checkpointID, name); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint %s: %v\n", name, err)
			}

			previousTail = chunker.Tail(text, previousChapterTailChars)
		}

		if err := db.CompleteCheckpoint(ctx, checkpointID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to finalize checkpoint: %v\n", err)
		}
		if prov != nil {
			fmt.Fprintf(os.Stderr, "Batch complete: %d chapters via %s\n", len(names), prov.Name())
		} else {
			fmt.Fprintf(os.Stderr, "Batch complete: all %d chapters were already done\n", len(names))
		}
		return nil
	},
}

func listChapterFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".txt" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchInputDir, "input-dir", "i", "", "Directory of chapter .txt files (required)")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "", "Directory for translated chapters (required)")
	batchCmd.Flags().StringVarP(&batchSourceLang, "source", "s", "auto", "Source language code")
	batchCmd.Flags().StringVarP(&batchTargetLang, "target", "t", "", "Target language code (required)")
	batchCmd.Flags().StringVar(&batchStyle, "style", "", "Style instruction passed to the model")
	batchCmd.Flags().StringVar(&batchMode, "mode", "standard", "Translation mode: standard or two_pass")
	batchCmd.Flags().IntVar(&batchTokenBudget, "token-budget", 0, "Per-chunk token budget (0 = default)")
	batchCmd.Flags().IntVar(&batchMaxRetries, "max-retries", 3, "Total attempts per call including the first")
	batchCmd.Flags().StringVar(&batchResume, "resume", "", "Checkpoint ID to resume")
	batchCmd.Flags().BoolVarP(&batchQuiet, "quiet", "q", false, "Do not echo streamed output to stdout")

	batchCmd.MarkFlagRequired("input-dir")
	batchCmd.MarkFlagRequired("output-dir")
	batchCmd.MarkFlagRequired("target")
}
