package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageModel overrides model settings for one agent stage.
type StageModel struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// StageSettings maps a stage name (e.g. "goal_formulator") to its overrides.
type StageSettings map[string]StageModel

type stageFile struct {
	Stages StageSettings `yaml:"stages"`
}

// LoadStageSettings reads per-stage model overrides from a YAML file:
//
//	stages:
//	  orchestrator:
//	    model: gpt-4o-mini
//	    temperature: 0
//	  resilience_coach:
//	    temperature: 0.7
func LoadStageSettings(path string) (StageSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseStageSettings(data)
}

// ParseStageSettings decodes the stage settings document.
func ParseStageSettings(data []byte) (StageSettings, error) {
	var f stageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stage settings: %w", err)
	}
	for name, s := range f.Stages {
		if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
			return nil, fmt.Errorf("stage %s: temperature must be within [0, 2]", name)
		}
		if s.MaxTokens < 0 {
			return nil, fmt.Errorf("stage %s: max_tokens must be >= 0", name)
		}
	}
	if f.Stages == nil {
		f.Stages = StageSettings{}
	}
	return f.Stages, nil
}

// For returns the overrides for stage, or the zero value.
func (s StageSettings) For(stage string) StageModel {
	if s == nil {
		return StageModel{}
	}
	return s[stage]
}
