package analyzer

import (
	"context"
	"math/rand/v2"

	"github.com/your-org/woundphoto/internal/models"
)

const (
	EngineMock = "mock"

	mockPrecision = 3
	mockExplain   = "Mock analyzer used. Configure PHOTO_ANALYZER_ENGINE=clip to enable zero-shot CV."
)

// Mock ignores the image and draws one uniform value per call.
type Mock struct {
	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

func NewMock() *Mock {
	return &Mock{Rand: rand.Float64}
}

func (m *Mock) Engine() string { return EngineMock }

func (m *Mock) Analyze(_ context.Context, _ []byte) (*models.Analysis, error) {
	draw := rand.Float64
	if m.Rand != nil {
		draw = m.Rand
	}
	p := draw()

	prediction := LabelHealthy
	if p > 0.5 {
		prediction = LabelInfected
	}

	return &models.Analysis{
		Engine:     EngineMock,
		Labels:     append([]string(nil), Labels...),
		Probs:      []float64{round(1-p, mockPrecision), round(p, mockPrecision)},
		Prediction: prediction,
		Explain:    mockExplain,
	}, nil
}
