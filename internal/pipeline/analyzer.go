package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/persona/internal/cache"
	"github.com/ppiankov/persona/internal/citation"
	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/logger"
	"github.com/ppiankov/persona/internal/mapper"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/normalize"
	"github.com/ppiankov/persona/internal/prompt"
	"github.com/ppiankov/persona/internal/repair"
	"github.com/ppiankov/persona/internal/score"
	"github.com/ppiankov/persona/internal/source"
	"github.com/ppiankov/persona/internal/util"
	"github.com/ppiankov/persona/internal/worker"
)

// Failure stage recorded when the mapper, rather than the repairer, gave up
const StageMapping = "mapping"

// rawLogChars bounds the model text logged for a degraded run
const rawLogChars = 2000

// RunStore persists completed runs
type RunStore interface {
	SaveRun(ctx context.Context, outcome *model.Outcome) error
}

// Analyzer runs the fetch-to-citation pipeline for one user at a time and
// scores how well the result is grounded. It holds no per-run state and is
// safe for concurrent use.
type Analyzer struct {
	fetcher    source.Fetcher
	provider   llm.Provider
	normalizer *normalize.Normalizer
	compiler   *prompt.Compiler
	repairer   *repair.Repairer
	resolver   *citation.Resolver
	scorer     *score.Scorer
	store      RunStore
	logger     *zap.SugaredLogger
	progress   func(string)
	maxTokens  int
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithStore saves every analyzed run to s
func WithStore(s RunStore) Option {
	return func(a *Analyzer) {
		a.store = s
	}
}

// WithLogger sets the analyzer logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Analyzer) {
		a.logger = logger.OrNop(l)
	}
}

// WithProgress receives one human-readable line per pipeline step
func WithProgress(fn func(string)) Option {
	return func(a *Analyzer) {
		a.progress = fn
	}
}

// WithCompiler replaces the prompt compiler
func WithCompiler(c *prompt.Compiler) Option {
	return func(a *Analyzer) {
		a.compiler = c
	}
}

// WithRepairer replaces the response repairer
func WithRepairer(r *repair.Repairer) Option {
	return func(a *Analyzer) {
		a.repairer = r
	}
}

// WithMaxTokens caps the completion length
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) {
		a.maxTokens = n
	}
}

// WrapProvider decorates the provider, e.g. to pace completions
func WrapProvider(fn func(llm.Provider) llm.Provider) Option {
	return func(a *Analyzer) {
		a.provider = fn(a.provider)
	}
}

// NewAnalyzer creates an analyzer over a content source and an LLM provider
func NewAnalyzer(fetcher source.Fetcher, provider llm.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		fetcher:    fetcher,
		provider:   provider,
		normalizer: normalize.NewNormalizer(),
		compiler:   prompt.NewCompiler(prompt.DefaultItemChars, prompt.DefaultTotalChars),
		repairer:   repair.NewRepairer(),
		resolver:   citation.NewResolver(citation.DefaultExcerptChars),
		scorer:     score.NewScorer(),
		logger:     zap.NewNop().Sugar(),
		progress:   func(string) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAnalyzerFromConfig wires the Reddit source, the configured provider and
// the listing cache (nil disables caching)
func NewAnalyzerFromConfig(cfg *model.Config, listingCache cache.Cache, opts ...Option) (*Analyzer, error) {
	llmConfig := llm.LoadConfigFromEnv(llm.ConfigFromModel(cfg.LLM, cfg.Source))
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	var sourceOpts []source.Option
	if listingCache != nil {
		sourceOpts = append(sourceOpts, source.WithCache(listingCache, cfg.Cache.TTL))
	}
	if cfg.Source.RequestsPerSec > 0 {
		sourceOpts = append(sourceOpts, source.WithPacer(worker.NewLimiter(cfg.Source.RequestsPerSec, 1)))
	}

	a := NewAnalyzer(source.NewClient(cfg.Source, sourceOpts...), provider,
		WithCompiler(prompt.NewCompiler(cfg.Prompt.ItemChars, cfg.Prompt.TotalChars)),
		WithMaxTokens(cfg.LLM.MaxTokens),
	)
	for _, opt := range opts {
		opt(a)
	}
	// The source logs through the same logger as the analyzer
	if client, ok := a.fetcher.(*source.Client); ok {
		source.WithLogger(a.logger)(client)
	}
	return a, nil
}

// Provider returns the configured LLM provider
func (a *Analyzer) Provider() llm.Provider {
	return a.provider
}

// Analyze builds a persona for handle. Fetch and completion failures are
// returned as errors. A user with no usable content yields an Outcome with
// HasActivity false and no LLM call. Unusable model output yields a degraded
// record, never an error.
func (a *Analyzer) Analyze(ctx context.Context, handle string) (*model.Outcome, error) {
	handle, err := source.ValidateHandle(handle)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log := a.logger.With("handle", handle)

	a.progress(fmt.Sprintf("Fetching posts and comments for u/%s", handle))
	activity, err := a.fetcher.FetchUser(ctx, handle)
	if err != nil {
		return nil, &FetchError{Handle: handle, Err: err}
	}

	corpus := a.normalizer.Normalize(activity.Items())
	outcome := &model.Outcome{
		Username: handle,
		Posts:    corpus.Count(model.KindPost),
		Comments: corpus.Count(model.KindComment),
	}
	log.Debugw("Normalized content", "kept", corpus.Len(), "dropped", corpus.Dropped, "duplicates", corpus.Duplicates)

	if corpus.Len() == 0 {
		outcome.Message = NoActivityMessage
		log.Infow("No usable activity, skipping analysis")
		return outcome, nil
	}
	outcome.HasActivity = true
	a.progress(fmt.Sprintf("Found %d posts and %d comments", outcome.Posts, outcome.Comments))

	bundle := a.compiler.Compile(corpus.Items())
	if bundle.Truncated {
		log.Debugw("Prompt content truncated", "content_chars", bundle.ContentChars, "cut_at", bundle.CutAt)
	}

	a.progress(fmt.Sprintf("Analyzing content with %s", a.provider.Name()))
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:    bundle.Text,
		System:    llm.SystemPrompt,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		if !errors.Is(err, llm.ErrCompletion) {
			err = &llm.CompletionError{Provider: a.provider.Name(), Err: err}
		}
		return nil, err
	}

	record, diag := a.interpret(resp.Text, corpus, log)
	diag.PromptChars = len([]rune(bundle.Text))
	diag.PromptTruncated = bundle.Truncated

	outcome.RunID = uuid.NewString()
	outcome.Persona = record
	outcome.Provider = a.provider.Name()
	outcome.Model = resp.Model
	outcome.Diagnostics = diag
	grounding := a.scorer.Calculate(outcome)
	outcome.Grounding = &grounding

	log.Infow("Persona built",
		"run_id", outcome.RunID,
		"degraded", record.Degraded,
		"citations", diag.ResolvedCites,
		"attempted", diag.AttemptedCites,
		"grounding", grounding.Index,
		"tokens", resp.TokensUsed,
		"duration", time.Since(start),
	)

	if a.store != nil {
		if err := a.store.SaveRun(ctx, outcome); err != nil {
			log.Warnw("Failed to save run", "run_id", outcome.RunID, "error", err)
		}
	}
	return outcome, nil
}

// interpret repairs, maps and resolves raw model text. It always returns a
// record: the degraded placeholder when the text is unusable.
func (a *Analyzer) interpret(raw string, corpus *normalize.Corpus, log *zap.SugaredLogger) (*model.PersonaRecord, *model.Diagnostics) {
	diag := &model.Diagnostics{}

	doc, err := a.repairer.Parse(raw)
	if err != nil {
		diag.FailedStage = repair.StageParse
		var malformed *repair.MalformedResponseError
		if errors.As(err, &malformed) {
			diag.FailedStage = malformed.Stage
		}
		log.Warnw("Model response could not be repaired",
			"stage", diag.FailedStage,
			"error", err,
			"raw", util.Truncate(raw, rawLogChars),
		)
		return model.UnknownPersona(), diag
	}

	result, err := mapper.Map(doc, corpus.Username())
	if err != nil {
		diag.FailedStage = StageMapping
		log.Warnw("Model response could not be mapped",
			"stage", diag.FailedStage,
			"error", err,
			"raw", util.Truncate(raw, rawLogChars),
		)
		return model.UnknownPersona(), diag
	}

	stats := a.resolver.Attach(result.Record, result.Attempts, corpus)
	diag.Claims = len(result.Claims)
	diag.AttemptedCites = stats.Attempted
	diag.ResolvedCites = stats.Resolved
	for _, claim := range result.Claims {
		if len(result.Record.Citations[claim.Field]) == 0 {
			diag.UncitedClaims++
		}
	}
	if stats.Resolved < stats.Attempted {
		log.Debugw("Dropped unresolved citations", "dropped", stats.Attempted-stats.Resolved)
	}
	return result.Record, diag
}
