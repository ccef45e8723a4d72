package analyzer

import (
	"fmt"

	"github.com/your-org/woundphoto/internal/config"
)

// FromConfig builds the configured upload analyzer. The CLIP engine is
// wrapped in Fallback so uploads never fail on classification alone.
func FromConfig(engine config.AnalyzerEngine, cache *ModelCache) (Analyzer, error) {
	switch engine {
	case config.EngineMock:
		return NewMock(), nil
	case config.EngineCLIP:
		return NewFallback(NewWoundClassifier(cache), NewMock()), nil
	default:
		return nil, fmt.Errorf("unknown analyzer engine %q", engine)
	}
}

// CLIPConfigFrom maps the analyzer config section onto CLIPConfig.
func CLIPConfigFrom(cfg config.AnalyzerConfig) CLIPConfig {
	return CLIPConfig{
		ModelsDir:   cfg.ModelsDir,
		ONNXLibPath: cfg.ONNXLibPath,
		LogitScale:  cfg.LogitScale,
	}
}
