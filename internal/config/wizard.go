package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to topoview! Let's configure your topology card.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Backend.
	basePrompt := promptui.Prompt{
		Label:    "Backend base URL",
		Default:  cfg.BaseURL,
		Validate: validateURL,
	}
	baseURL, err := basePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	cfg.BaseURL = baseURL

	// 2. Source: a config entry, or explicit URLs.
	sourcePrompt := promptui.Select{
		Label: "Where does the diagram come from?",
		Items: []string{
			"entry  - a configured network map entry id",
			"urls   - explicit svg_url and data_url",
		},
	}
	sourceIdx, _, err := sourcePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("source selection: %w", err)
	}

	if sourceIdx == 0 {
		entryPrompt := promptui.Prompt{
			Label:    "Entry id",
			Validate: required("entry id"),
		}
		if cfg.EntryID, err = entryPrompt.Run(); err != nil {
			return nil, fmt.Errorf("entry id: %w", err)
		}
	} else {
		svgPrompt := promptui.Prompt{Label: "SVG URL", Validate: validateURL}
		if cfg.SVGURL, err = svgPrompt.Run(); err != nil {
			return nil, fmt.Errorf("svg url: %w", err)
		}
		dataPrompt := promptui.Prompt{Label: "Payload URL (optional)"}
		if cfg.DataURL, err = dataPrompt.Run(); err != nil {
			return nil, fmt.Errorf("data url: %w", err)
		}
	}

	// 3. Theme.
	themePrompt := promptui.Select{
		Label: "Diagram theme",
		Items: []Theme{ThemeAuto, ThemeLight, ThemeDark},
	}
	themeIdx, _, err := themePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("theme selection: %w", err)
	}
	cfg.Theme = []Theme{ThemeAuto, ThemeLight, ThemeDark}[themeIdx]

	// 4. Edge hit width.
	widthPrompt := promptui.Prompt{
		Label:   "Edge hit width in px",
		Default: strconv.FormatFloat(cfg.HitWidth, 'f', -1, 64),
		Validate: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 {
				return fmt.Errorf("enter a non-negative number")
			}
			return nil
		},
	}
	widthStr, err := widthPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("hit width: %w", err)
	}
	cfg.HitWidth, _ = strconv.ParseFloat(widthStr, 64)

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if os.Getenv(envPrefix+"TOKEN") == "" {
		fmt.Printf("\nNote: Set %sTOKEN in your environment or .env before running topoview inspect.\n", envPrefix)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("enter an absolute URL such as http://localhost:8321")
	}
	return nil
}
