package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("LLM_TEMPERATURE", "0.1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AGENT_MAX_HOPS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LLM.Timeout != 15*time.Second {
		t.Errorf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Temperature != 0.1 {
		t.Errorf("LLM.Temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.Agent.MaxHops != 4 {
		t.Errorf("Agent.MaxHops = %d", cfg.Agent.MaxHops)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode without FRONTEND_URL")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("AGENT_MAX_HOPS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for AGENT_MAX_HOPS=0")
	}
}

func TestLoadStageSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	doc := []byte("stages:\n  orchestrator:\n    model: small-model\n    temperature: 0\n  resilience_coach:\n    temperature: 0.8\n    max_tokens: 512\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write stage file: %v", err)
	}
	t.Setenv("STAGE_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	orch := cfg.LLM.Stages.For("orchestrator")
	if orch.Model != "small-model" || orch.Temperature == nil || *orch.Temperature != 0 {
		t.Errorf("unexpected orchestrator settings: %+v", orch)
	}
	coach := cfg.LLM.Stages.For("resilience_coach")
	if coach.MaxTokens != 512 {
		t.Errorf("coach max tokens = %d", coach.MaxTokens)
	}
	if got := cfg.LLM.Stages.For("planner"); got.Model != "" {
		t.Errorf("planner should have no override, got %+v", got)
	}
}

func TestParseStageSettingsValidation(t *testing.T) {
	t.Parallel()

	if _, err := ParseStageSettings([]byte("stages:\n  planner:\n    temperature: 5\n")); err == nil {
		t.Fatal("expected temperature range error")
	}
	if _, err := ParseStageSettings([]byte("stages: [")); err == nil {
		t.Fatal("expected YAML parse error")
	}
	s, err := ParseStageSettings([]byte(""))
	if err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("expected empty settings, got %v", s)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn,
		"error": slog.LevelError, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
