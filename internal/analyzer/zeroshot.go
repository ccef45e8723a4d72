package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/woundphoto/internal/imageproc"
	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/internal/observability"
)

const (
	EngineCLIP = "clip"

	zeroShotPrecision = 4
)

// WoundPrompts describe the two classes in Labels order.
var WoundPrompts = []string{
	"a photo of a healthy post-operative wound",
	"a photo of an infected post-operative wound",
}

// ArmLabels and ArmPrompts drive the standalone arm injury classifier.
var (
	ArmLabels  = []string{"healthy", "injured"}
	ArmPrompts = []string{"a photo of a healthy arm", "a photo of an injured arm"}
)

// ZeroShot classifies by softmax over model similarity to fixed prompts.
type ZeroShot struct {
	cache   *ModelCache
	labels  []string
	prompts []string
}

func NewZeroShot(cache *ModelCache, labels, prompts []string) (*ZeroShot, error) {
	if len(labels) != len(prompts) || len(labels) == 0 {
		return nil, fmt.Errorf("labels and prompts must be non-empty and the same length (%d vs %d)", len(labels), len(prompts))
	}
	return &ZeroShot{cache: cache, labels: labels, prompts: prompts}, nil
}

// NewWoundClassifier is the healthy/infected zero-shot engine.
func NewWoundClassifier(cache *ModelCache) *ZeroShot {
	z, _ := NewZeroShot(cache, Labels, WoundPrompts)
	return z
}

func (z *ZeroShot) Engine() string { return EngineCLIP }

func (z *ZeroShot) Analyze(ctx context.Context, data []byte) (*models.Analysis, error) {
	model, err := z.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	img, err := imageproc.Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()

	start := time.Now()
	scores, err := model.Score(ctx, img, z.prompts)
	if err != nil {
		return nil, fmt.Errorf("score image: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("score").Observe(time.Since(start).Seconds())

	if len(scores) != len(z.prompts) {
		return nil, fmt.Errorf("model returned %d scores for %d prompts", len(scores), len(z.prompts))
	}

	probs := softmax(scores)
	rounded := make([]float64, len(probs))
	for i, p := range probs {
		rounded[i] = round(p, zeroShotPrecision)
	}

	return &models.Analysis{
		Engine:     EngineCLIP,
		Labels:     append([]string(nil), z.labels...),
		Probs:      rounded,
		Prediction: z.labels[argmax(probs)],
		Dimensions: &models.Dimensions{Width: bounds.Dx(), Height: bounds.Dy()},
		Disclaimer: Disclaimer,
	}, nil
}
