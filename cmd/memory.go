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
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/kazkar/internal/store"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the chapter translation memory",
	Long:  `List, inspect, and clear the SQLite chapter translation memory.`,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List translated chapters in memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		entries, err := db.ListChapters(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No chapters in translation memory.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tMODE\tPROVIDER\tUSED\tLAST USED\tTEXT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				e.ID, e.SourceLang, e.TargetLang, e.Mode, e.Provider,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"), snippet(e.SourceText, 40))
		}
		return w.Flush()
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all translation memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		n, err := db.ClearChapters(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		fmt.Printf("Removed %d entries.\n", n)
		return nil
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		st, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to gather stats: %w", err)
		}

		fmt.Printf("Chapters in memory:  %d\n", st.Chapters)
		fmt.Printf("Cache hits total:    %d\n", st.TotalUsage)
		fmt.Printf("Glossary terms:      %d\n", st.GlossaryTerms)
		fmt.Printf("Batch checkpoints:   %d\n", st.Checkpoints)
		return nil
	},
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func init() {
	rootCmd.AddCommand(memoryCmd)

	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
}
