package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/persona/internal/llm"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/pipeline"
	"github.com/ppiankov/persona/internal/source"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_EnvOverridesNestedKeys(t *testing.T) {
	resetViper(t)
	t.Setenv("PERSONA_LLM_PROVIDER", "ollama")
	t.Setenv("PERSONA_SOURCE_LIMIT", "25")
	t.Setenv("PERSONA_CACHE_TTL", "2m")

	viper.SetEnvPrefix("PERSONA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := registerDefaults(model.DefaultConfig()); err != nil {
		t.Fatalf("registerDefaults failed: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Expected provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.Source.Limit != 25 {
		t.Errorf("Expected limit 25, got %d", cfg.Source.Limit)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("Expected TTL 2m, got %v", cfg.Cache.TTL)
	}
	if cfg.Prompt.TotalChars != 8000 {
		t.Errorf("Expected default total chars 8000, got %d", cfg.Prompt.TotalChars)
	}
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "source:\n  limit: 40\nserver:\n  allowed_origins:\n    - http://localhost:3000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	viper.SetConfigFile(path)
	if err := registerDefaults(model.DefaultConfig()); err != nil {
		t.Fatalf("registerDefaults failed: %v", err)
	}
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Source.Limit != 40 {
		t.Errorf("Expected limit 40, got %d", cfg.Source.Limit)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Source.BaseURL != "https://www.reddit.com" {
		t.Errorf("Expected default base URL, got %s", cfg.Source.BaseURL)
	}
}

func TestApplySourceFlags(t *testing.T) {
	defer func() {
		limit, noCache, noHistory, llmProvider, llmModel = 0, false, false, "", ""
	}()

	cfg := model.DefaultConfig()
	cfg.LLM.Model = "llama-3.1-8b-instant"

	limit = 10
	noCache = true
	noHistory = true
	llmProvider = "ollama"
	applySourceFlags(cfg)

	if cfg.Source.Limit != 10 || cfg.Cache.Enabled || cfg.Store.Enabled {
		t.Errorf("Flags not applied: %+v", cfg)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "" {
		t.Errorf("Expected provider switch to clear the model, got %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}

	llmModel = "mistral"
	applySourceFlags(cfg)
	if cfg.LLM.Model != "mistral" {
		t.Errorf("Expected model mistral, got %s", cfg.LLM.Model)
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	outcome := &model.Outcome{
		Username:    "spez",
		HasActivity: true,
		Provider:    "groq",
		Persona:     model.UnknownPersona(),
	}

	paths, err := writeReports(outcome, dir, true)
	if err != nil {
		t.Fatalf("writeReports failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "spez_persona_groq.txt"),
		filepath.Join(dir, "spez_persona_groq.json"),
	}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("Expected %v, got %v", want, paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist: %v", p, err)
		}
	}
}

func TestDescribeFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		prefix string
		target error
	}{
		{"fetch", &pipeline.FetchError{Handle: "ghost", Err: source.ErrNotFound}, "could not read u/ghost", source.ErrNotFound},
		{"completion", &llm.CompletionError{Provider: "groq", Err: errors.New("quota")}, "language model call failed", llm.ErrCompletion},
		{"other", source.ErrInvalidHandle, "analysis failed", source.ErrInvalidHandle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := describeFailure(tt.err)
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("Expected prefix %q, got %q", tt.prefix, err.Error())
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected wrapped %v, got %v", tt.target, err)
			}
		})
	}
}

func TestNewLogger_VerboseForcesDebug(t *testing.T) {
	defer func() { verbose = false }()

	cfg := model.DefaultConfig()
	log, err := newLogger(cfg, "quiet")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected quiet logger to drop debug entries")
	}

	verbose = true
	log, err = newLogger(cfg, "quiet")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if !log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected verbose logger to keep debug entries")
	}
}
