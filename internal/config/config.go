package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "TOPOVIEW_"

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TOPOVIEW_*), then normalizes it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// TOPOVIEW_ENTRY_ID -> entry_id, TOPOVIEW_PREVIEW_PORT -> preview.port.
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "preview_"); ok {
		return "preview." + rest
	}
	return key
}

// Save writes the configuration to the given YAML file path. The access
// token and signing secret are never written.
func (c *Config) Save(path string) error {
	out := *c
	out.Token = ""
	out.Preview.JWTSecret = ""
	data, err := yamlv3.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Normalize folds entry_id into canonical svg_url and data_url values and
// derives the push channel URL from base_url when it is not set.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.EntryID = strings.TrimSpace(c.EntryID)
	if c.Theme == "" {
		c.Theme = ThemeAuto
	}

	if c.EntryID != "" && c.BaseURL != "" {
		prefix := c.BaseURL + "/api/" + c.Namespace + "/" + url.PathEscape(c.EntryID)
		c.SVGURL = prefix + "/svg?theme=" + url.QueryEscape(string(c.Theme))
		c.DataURL = prefix + "/payload"
	}

	if c.WSURL == "" && c.BaseURL != "" {
		switch {
		case strings.HasPrefix(c.BaseURL, "https://"):
			c.WSURL = "wss://" + strings.TrimPrefix(c.BaseURL, "https://") + "/api/websocket"
		case strings.HasPrefix(c.BaseURL, "http://"):
			c.WSURL = "ws://" + strings.TrimPrefix(c.BaseURL, "http://") + "/api/websocket"
		}
	}
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q check", fieldName(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("validating config: %w", err)
	}

	if c.SVGURL == "" && c.EntryID == "" {
		return fmt.Errorf("svg_url or entry_id is required")
	}
	if c.EntryID != "" && c.BaseURL == "" {
		return fmt.Errorf("base_url is required when entry_id is set")
	}
	for _, u := range []struct{ name, raw string }{
		{"svg_url", c.SVGURL},
		{"data_url", c.DataURL},
		{"ws_url", c.WSURL},
	} {
		if u.raw == "" {
			continue
		}
		if _, err := url.Parse(u.raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", u.name, u.raw, err)
		}
	}
	return nil
}

// fieldName turns a validator namespace such as "Config.preview.port" into
// the YAML key "preview.port".
func fieldName(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
