package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/source"
)

// Analyzer defines the interface for analyzing one user handle
type Analyzer interface {
	Analyze(ctx context.Context, handle string) (*model.Outcome, error)
}

// AnalyzeJob represents one persona analysis
type AnalyzeJob struct {
	Index    int
	Handle   string
	Analyzer Analyzer
}

// Execute runs the analysis
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	start := time.Now()
	outcome, err := j.Analyzer.Analyze(ctx, j.Handle)
	return &AnalyzeResult{
		Index:    j.Index,
		Handle:   j.Handle,
		Outcome:  outcome,
		Error:    err,
		Duration: time.Since(start),
	}
}

// AnalyzeResult represents the result of an analysis job
type AnalyzeResult struct {
	Index    int
	Handle   string
	Outcome  *model.Outcome
	Error    error
	Duration time.Duration
}

// GetError returns the error from the analysis
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple handles concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int

	// OnResult, when set, is called from the collecting goroutine as each
	// analysis finishes.
	OnResult func(*AnalyzeResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessHandles analyzes every handle and returns results in input order.
// Handles never reached because ctx ended carry ctx.Err().
func (b *BatchProcessor) ProcessHandles(ctx context.Context, handles []string) []*AnalyzeResult {
	results := make([]*AnalyzeResult, len(handles))
	if len(handles) == 0 {
		return results
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	defer pool.Shutdown()

	go func() {
		defer pool.Close()
		for i, handle := range handles {
			if !pool.Submit(&AnalyzeJob{Index: i, Handle: handle, Analyzer: b.analyzer}) {
				return
			}
		}
	}()

	for r := range pool.Results() {
		res := r.(*AnalyzeResult)
		results[res.Index] = res
		if b.OnResult != nil {
			b.OnResult(res)
		}
	}

	for i, res := range results {
		if res == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &AnalyzeResult{Index: i, Handle: handles[i], Error: err}
		}
	}
	return results
}

// ProcessFile reads handles from a file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalyzeResult, error) {
	handles, err := ReadHandlesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read handles: %w", err)
	}

	return b.ProcessHandles(ctx, handles), nil
}

// ReadHandlesFromFile reads user handles from a file (one per line). Profile
// URLs and u/ prefixes are accepted; duplicates are dropped case-insensitively.
func ReadHandlesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var handles []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		handle := source.SanitizeHandle(line)
		if handle == "" {
			continue
		}

		key := strings.ToLower(handle)
		if !seen[key] {
			seen[key] = true
			handles = append(handles, handle)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return handles, nil
}
