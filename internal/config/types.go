package config

// Theme selects the diagram colour scheme requested from the backend.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Config is the topology card configuration, corresponding to .topoview.yml.
type Config struct {
	// BaseURL is the backend origin that entry-based URLs are built against.
	BaseURL string `yaml:"base_url" koanf:"base_url" validate:"omitempty,url"`
	SVGURL  string `yaml:"svg_url" koanf:"svg_url"`
	DataURL string `yaml:"data_url" koanf:"data_url"`
	EntryID string `yaml:"entry_id" koanf:"entry_id"`
	Theme   Theme  `yaml:"theme" koanf:"theme" validate:"omitempty,oneof=auto light dark"`

	// Namespace prefixes API paths and push message types.
	Namespace string `yaml:"namespace" koanf:"namespace" validate:"required,excludesall=/"`
	Token     string `yaml:"token,omitempty" koanf:"token"`
	WSURL     string `yaml:"ws_url,omitempty" koanf:"ws_url"`

	HitWidth        float64 `yaml:"hit_width" koanf:"hit_width" validate:"gte=0"`
	MoreInfoDelayMS int     `yaml:"more_info_delay_ms" koanf:"more_info_delay_ms" validate:"gte=0"`
	EventsURL       string  `yaml:"events_url,omitempty" koanf:"events_url" validate:"omitempty,url"`

	Preview PreviewConfig `yaml:"preview" koanf:"preview"`
}

// PreviewConfig holds settings for the local fixture server.
type PreviewConfig struct {
	Port           int      `yaml:"port" koanf:"port" validate:"min=1,max=65535"`
	FixturesDir    string   `yaml:"fixtures_dir" koanf:"fixtures_dir" validate:"required"`
	JWTSecret      string   `yaml:"jwt_secret,omitempty" koanf:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}
