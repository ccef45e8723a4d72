package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/internal/observability"
)

// Fallback runs Primary and substitutes the mock result when it fails.
// The substitute is marked with Fallback and a Note naming the failure.
type Fallback struct {
	Primary Analyzer
	Mock    *Mock
}

func NewFallback(primary Analyzer, mock *Mock) *Fallback {
	return &Fallback{Primary: primary, Mock: mock}
}

func (f *Fallback) Engine() string { return f.Primary.Engine() }

func (f *Fallback) Analyze(ctx context.Context, data []byte) (*models.Analysis, error) {
	res, err := safeAnalyze(ctx, f.Primary, data)
	if err == nil {
		return res, nil
	}

	engine := f.Primary.Engine()
	slog.Warn("analyzer failed, using mock", "engine", engine, "error", err)
	observability.AnalysisFallbacks.WithLabelValues(engine).Inc()

	res, mockErr := f.Mock.Analyze(ctx, data)
	if mockErr != nil {
		return nil, fmt.Errorf("mock analyzer: %w", mockErr)
	}
	res.Note = fmt.Sprintf("%s failed: %v", engine, err)
	res.Fallback = true
	return res, nil
}

// safeAnalyze converts a panic inside the engine into an error.
func safeAnalyze(ctx context.Context, a Analyzer, data []byte) (res *models.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Analyze(ctx, data)
}
