package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/pipeline"
	"github.com/ppiankov/persona/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	llmRate      float64
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze many Reddit users from a file in parallel",
	Long: `Batch analyzes multiple users concurrently:
- Read handles from the input file (one per line, # for comments)
- Accept bare names, u/name or profile URLs; duplicates are skipped
- Analyze users in parallel with a configurable worker count
- Pace language model calls with a shared token bucket
- Write one report per user

Example:
  persona batch users.txt
  persona batch users.txt --concurrency 2 --output-dir ./personas
  persona batch users.txt --llm-rps 0.2 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./persona-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().Float64Var(&llmRate, "llm-rps", 0, "language model requests per second across workers (default from config)")
	batchCmd.Flags().BoolVar(&outJSON, "json", false, "also write each outcome as JSON")

	addSourceFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySourceFlags(cfg)
	if concurrency > 0 {
		cfg.Batch.Workers = concurrency
	}
	if llmRate > 0 {
		cfg.Batch.RequestsPerSecond = llmRate
	}

	limiter := worker.NewLimiter(cfg.Batch.RequestsPerSecond, cfg.Batch.Burst)
	d, err := buildDeps(cfg, "quiet", pipeline.WrapProvider(func(p llm.Provider) llm.Provider {
		return limiter.Wrap(p)
	}))
	if err != nil {
		return err
	}
	defer d.Close()

	handles, err := worker.ReadHandlesFromFile(file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Persona Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d users)\n", file, len(handles))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Batch.Workers)
	fmt.Fprintf(os.Stderr, "  LLM:          %s (%.2f req/s)\n", d.analyzer.Provider().Name(), cfg.Batch.RequestsPerSecond)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var successCount, emptyCount, degradedCount int

	processor := worker.NewBatchProcessor(d.analyzer, cfg.Batch.Workers)
	processor.OnResult = func(result *worker.AnalyzeResult) {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Handle, describeFailure(result.Error))
			return
		}

		outcome := result.Outcome
		if !outcome.HasActivity {
			emptyCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", result.Handle, outcome.Message)
			return
		}

		if _, err := writeReports(outcome, outputDir, outJSON); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Handle, err)
			return
		}

		successCount++
		if outcome.Persona.Degraded {
			degradedCount++
		}
		verified := 0
		if outcome.Diagnostics != nil {
			verified = outcome.Diagnostics.ResolvedCites
		}
		fmt.Fprintf(os.Stderr, "✓ %s (%d citations, %s)\n", outcome.Username, verified, result.Duration.Round(time.Second))
	}

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing %d users with %d workers...\n", len(handles), cfg.Batch.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	results := processor.ProcessHandles(ctx, handles)

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d users\n", len(results))
	fmt.Fprintf(os.Stderr, "  Personas:    %d (%d degraded)\n", successCount, degradedCount)
	fmt.Fprintf(os.Stderr, "  No activity: %d\n", emptyCount)
	// Handles never started before the timeout count as failures too
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", len(results)-successCount-emptyCount)
	fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
