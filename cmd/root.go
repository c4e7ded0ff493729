package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/topoview/internal/config"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "topoview",
	Short: "Interactive network topology card tooling",
	Long: `topoview loads a server-rendered network topology diagram and its graph
payload, sanitizes and augments the diagram for pointer interaction and
keeps it in sync over a push channel. The preview command hosts fixture
diagrams so a card can be developed without the real backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}
