package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/persona/internal/cache"
	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/pipeline"
	"github.com/ppiankov/persona/internal/store"
)

var (
	outJSON     bool
	outDir      string
	timeout     time.Duration
	userAgent   string
	limit       int
	noCache     bool
	noHistory   bool
	httpProxy   string
	httpsProxy  string
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <username>",
	Short: "Build a cited persona for one Reddit user",
	Long: `Analyze fetches a user's newest public posts and comments, asks the
configured language model for a persona, repairs and validates the answer,
and checks every citation against the fetched content.

The report is written to <username>_persona_<provider>.txt.

Example:
  persona analyze spez
  persona analyze u/spez --json --out ./reports
  persona analyze https://www.reddit.com/user/spez/ --llm-provider ollama`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().BoolVar(&outJSON, "json", false, "also write the outcome as JSON next to the text report")
	analyzeCmd.Flags().StringVar(&outDir, "out", ".", "output directory for reports")

	addSourceFlags(analyzeCmd)
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall analysis timeout")
}

// addSourceFlags registers the flags shared by analyze and batch
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userAgent, "ua", "", "HTTP User-Agent for Reddit requests")
	cmd.Flags().IntVar(&limit, "limit", 0, "max posts and max comments to fetch (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record runs in the history database")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// LLM flags
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (groq, openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

// applySourceFlags overlays command flags on the loaded configuration
func applySourceFlags(cfg *model.Config) {
	if userAgent != "" {
		cfg.Source.UserAgent = userAgent
	}
	if limit > 0 {
		cfg.Source.Limit = limit
	}
	if httpProxy != "" {
		cfg.Source.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.Source.HTTPSProxy = httpsProxy
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noHistory {
		cfg.Store.Enabled = false
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		// A model name only makes sense for the provider it was configured for
		if llmModel == "" {
			cfg.LLM.Model = ""
		}
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// deps is what a command needs to run analyses
type deps struct {
	log      *zap.SugaredLogger
	cache    cache.Cache
	repo     store.Repository
	analyzer *pipeline.Analyzer
}

func (d *deps) Close() {
	if d.repo != nil {
		if err := d.repo.Close(); err != nil {
			d.log.Warnw("Failed to close history database", "error", err)
		}
	}
	_ = d.log.Sync()
}

// buildDeps wires cache, history store and analyzer from cfg
func buildDeps(cfg *model.Config, logMode string, opts ...pipeline.Option) (*deps, error) {
	log, err := newLogger(cfg, logMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	d := &deps{log: log}

	d.cache, err = cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	if cfg.Store.Enabled {
		repo, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			// History is optional; analysis still works without it
			log.Warnw("Run history disabled", "path", cfg.Store.Path, "error", err)
		} else {
			d.repo = repo
		}
	}

	opts = append([]pipeline.Option{pipeline.WithLogger(log)}, opts...)
	if d.repo != nil {
		opts = append(opts, pipeline.WithStore(d.repo))
	}

	d.analyzer, err = pipeline.NewAnalyzerFromConfig(cfg, d.cache, opts...)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	handle := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySourceFlags(cfg)

	d, err := buildDeps(cfg, "quiet", pipeline.WithProgress(func(line string) {
		fmt.Fprintf(os.Stderr, "⚙️  %s\n", line)
	}))
	if err != nil {
		return err
	}
	defer d.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Provider: %s\n", d.analyzer.Provider().Name())
		fmt.Fprintf(os.Stderr, "Timeout:  %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache:    %v\n", d.cache != nil)
		fmt.Fprintf(os.Stderr, "History:  %v\n", d.repo != nil)
		fmt.Fprintln(os.Stderr)
	}

	outcome, err := d.analyzer.Analyze(ctx, handle)
	if err != nil {
		return describeFailure(err)
	}

	if !outcome.HasActivity {
		fmt.Fprintf(os.Stderr, "✗ %s\n", outcome.Message)
		return fmt.Errorf("u/%s: %w", outcome.Username, pipeline.ErrNoActivity)
	}

	paths, err := writeReports(outcome, outDir, outJSON)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", p)
	}
	fmt.Fprintln(os.Stderr)

	pipeline.NewRenderer().RenderSummary(os.Stdout, outcome)
	return nil
}

// writeReports writes the text report and, when asked, the JSON outcome
func writeReports(outcome *model.Outcome, dir string, withJSON bool) ([]string, error) {
	renderer := pipeline.NewRenderer()
	name := pipeline.ReportFilename(outcome.Username, outcome.Provider)

	textPath := filepath.Join(dir, name)
	if err := renderer.WriteText(outcome.Persona, textPath); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	paths := []string{textPath}

	if withJSON {
		jsonPath := filepath.Join(dir, trimExt(name)+".json")
		if err := renderer.WriteJSON(outcome, jsonPath); err != nil {
			return nil, fmt.Errorf("write JSON: %w", err)
		}
		paths = append(paths, jsonPath)
	}
	return paths, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// describeFailure turns pipeline errors into one-line CLI messages
func describeFailure(err error) error {
	var fetchErr *pipeline.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return fmt.Errorf("could not read u/%s from Reddit: %w", fetchErr.Handle, fetchErr.Err)
	case errors.Is(err, llm.ErrCompletion):
		return fmt.Errorf("language model call failed: %w", err)
	default:
		return fmt.Errorf("analysis failed: %w", err)
	}
}
