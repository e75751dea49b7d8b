package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/persona/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the persona API over HTTP",
	Long: `Serve exposes analysis over HTTP:

  POST /analyze      {"username": "spez"} -> persona with citations
  GET  /health       API and history database status
  GET  /runs         recent runs (?username=, ?limit=)
  GET  /runs/{id}    one stored run

Example:
  persona serve
  persona serve --addr :9000
  PERSONA_SERVER_ALLOWED_ORIGINS=http://localhost:3000 persona serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	serveCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record runs in the history database")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noHistory {
		cfg.Store.Enabled = false
	}

	d, err := buildDeps(cfg, "prod")
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.analyzer.Provider().Ping(ctx); err != nil {
		d.log.Warnw("LLM provider not reachable at startup", "provider", d.analyzer.Provider().Name(), "error", err)
	}

	return server.New(d.analyzer, d.repo, cfg.Server, d.log).Run(ctx)
}
