package config

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".topoview.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:8321",
		Theme:           ThemeAuto,
		Namespace:       "network_map",
		HitWidth:        14,
		MoreInfoDelayMS: 1500,
		Preview: PreviewConfig{
			Port:           8321,
			FixturesDir:    "fixtures",
			AllowedOrigins: []string{"*"},
		},
	}
}
