package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/topoview/internal/auth"
	"github.com/ziadkadry99/topoview/internal/config"
	"github.com/ziadkadry99/topoview/internal/dashboard"
	"github.com/ziadkadry99/topoview/internal/datasync"
	"github.com/ziadkadry99/topoview/internal/server"
)

var (
	previewPort     int
	previewFixtures string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve fixture diagrams, payloads and a push channel",
	Long: `Starts a local server that answers the card's diagram, payload and
push channel requests from files in the fixtures directory. A payload
POSTed to /api/<namespace>/<entry>/payload is pushed to subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cmd.Flags().Changed("port") {
			cfg.Preview.Port = previewPort
		}
		if cmd.Flags().Changed("fixtures") {
			cfg.Preview.FixturesDir = previewFixtures
		}

		srv, err := server.New(server.Config{
			Port:           cfg.Preview.Port,
			Namespace:      cfg.Namespace,
			FixturesDir:    cfg.Preview.FixturesDir,
			JWTSecret:      cfg.Preview.JWTSecret,
			AllowedOrigins: cfg.Preview.AllowedOrigins,
		})
		if err != nil {
			return fmt.Errorf("creating preview server: %w", err)
		}

		dash, err := newPreviewDashboard(cfg, srv)
		if err != nil {
			return err
		}
		defer dash.Close()

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down preview server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "topoview preview v%s starting on port %d\n", Version, cfg.Preview.Port)
		fmt.Fprintf(os.Stderr, "  Fixtures: %s\n", cfg.Preview.FixturesDir)
		fmt.Fprintf(os.Stderr, "  Entries: %d\n", len(srv.Fixtures().Entries()))
		fmt.Fprintf(os.Stderr, "  Dashboard: http://localhost:%d/dashboard/<entry>\n", cfg.Preview.Port)
		if cfg.Preview.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "  Auth: open (any bearer token is accepted)")
		} else {
			fmt.Fprintln(os.Stderr, "  Auth: HS256 bearer tokens (see `topoview token`)")
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// newPreviewDashboard mounts server-side card sessions that load from the
// preview server itself.
func newPreviewDashboard(cfg *config.Config, srv *server.Server) (*dashboard.Dashboard, error) {
	base := *cfg
	base.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Preview.Port)
	base.WSURL = ""
	base.Token = "preview"
	if cfg.Preview.JWTSecret != "" {
		tok, err := auth.NewManager(cfg.Preview.JWTSecret).Mint("dashboard", 0)
		if err != nil {
			return nil, fmt.Errorf("minting dashboard token: %w", err)
		}
		base.Token = tok
	}
	base.Normalize()

	dash := dashboard.New(&base, datasync.NewMetrics(srv.Registry()))
	dash.RegisterRoutes(srv.Router())
	return dash, nil
}

func init() {
	previewCmd.Flags().IntVar(&previewPort, "port", 8321, "Port to listen on")
	previewCmd.Flags().StringVar(&previewFixtures, "fixtures", "fixtures", "Directory of <entry>.svg and <entry>.json fixtures")
	rootCmd.AddCommand(previewCmd)
}
