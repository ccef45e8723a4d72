// Package analyzer classifies wound photos as healthy or infected.
package analyzer

import (
	"context"
	"math"

	"github.com/your-org/woundphoto/internal/models"
)

const (
	LabelHealthy  = "healthy"
	LabelInfected = "infected"

	Disclaimer = "This is a prototype; not a medical device. Consult a clinician."
)

// Labels is the fixed label order shared by every engine.
var Labels = []string{LabelHealthy, LabelInfected}

// Analyzer turns cleaned image bytes into an analysis payload.
type Analyzer interface {
	Engine() string
	Analyze(ctx context.Context, data []byte) (*models.Analysis, error)
}

// softmax converts raw scores into a probability distribution.
func softmax(scores []float32) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := float64(scores[0])
	for _, s := range scores[1:] {
		maxScore = math.Max(maxScore, float64(s))
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(float64(s) - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the first index holding the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
