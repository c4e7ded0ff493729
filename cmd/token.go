package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/topoview/internal/auth"
	"github.com/ziadkadry99/topoview/internal/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the preview server",
	Long: `Signs an HS256 token with preview.jwt_secret (or TOPOVIEW_PREVIEW_JWT_SECRET)
and prints it. Export it as TOPOVIEW_TOKEN for the inspect command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		tok, err := auth.NewManager(cfg.Preview.JWTSecret).Mint(tokenSubject, tokenTTL)
		if err != nil {
			return fmt.Errorf("minting token: %w", err)
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "topoview", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTTL, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
