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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.3.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "kazkar",
	Short: "Glossary-consistent novel translator",
	Long: `A CLI application that translates long-form narrative text (novel
chapters) through a language-model backend, chunked and streamed, with a
persistent terminology glossary and translation memory.

Supported providers: OpenAI, DeepSeek, OpenRouter, Ollama (streaming LLMs)
and Google Cloud Translation (non-streaming fallback).

Use "kazkar translate --help" for translation options.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.kazkar.yaml)")
	rootCmd.PersistentFlags().String("provider", "openai", "Backend provider: openai, deepseek, openrouter, ollama, google")
	rootCmd.PersistentFlags().String("model", "", "Model name for LLM providers")
	rootCmd.PersistentFlags().String("api-key", "", "Provider API key")
	rootCmd.PersistentFlags().String("base-url", "", "Provider base URL override")
	rootCmd.PersistentFlags().String("credentials", "", "Path to Google Cloud credentials JSON")
	rootCmd.PersistentFlags().String("db", "./data/kazkar.db", "Database path for glossary and translation memory")

	for _, flag := range []string{"provider", "model", "api-key", "base-url", "credentials", "db"} {
		_ = viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}
}

// initConfig reads in the config file and KAZKAR_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".kazkar")
		}
	}

	viper.SetEnvPrefix("KAZKAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
