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

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/kazkar/internal/pipeline"
	"github.com/valpere/kazkar/internal/provider"
)

// buildProvider constructs the backend selected through flags, config file,
// or KAZKAR_* environment (in viper precedence order).
func buildProvider(sourceLang, targetLang string) (provider.Provider, provider.Config, error) {
	cfg := provider.Config{
		Name:            viper.GetString("provider"),
		Model:           viper.GetString("model"),
		APIKey:          viper.GetString("api-key"),
		BaseURL:         viper.GetString("base-url"),
		CredentialsFile: viper.GetString("credentials"),
		SourceLang:      sourceLang,
		TargetLang:      targetLang,
	}

	p, err := provider.New(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return p, cfg, nil
}

// validateLangs checks the target language code and the mode/provider
// combination before any network call is made.
func validateLangs(targetLang string) error {
	if targetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if _, err := language.Parse(targetLang); err != nil {
		return fmt.Errorf("invalid target language %q: %w", targetLang, err)
	}
	return nil
}

// checkMode rejects combinations the backend cannot honour: the polish pass
// of two-pass mode needs an instruction-following model, which plain machine
// translation is not.
func checkMode(mode pipeline.Mode, p provider.Provider) error {
	if mode == pipeline.ModeTwoPass && !p.SupportsStreaming() {
		return fmt.Errorf("two_pass mode requires an LLM provider, %s is not one", p.Name())
	}
	return nil
}
