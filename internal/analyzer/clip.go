package analyzer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	clipImageSize     = 224
	clipContextLength = 77
	clipEmbedDim      = 512
	clipPadToken      = 49407
)

var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// CLIPConfig locates the exported encoders. ModelsDir must contain
// clip_image.onnx, clip_text.onnx and tokenizer.json.
type CLIPConfig struct {
	ModelsDir   string
	ONNXLibPath string
	LogitScale  float64
}

// CLIPModel runs CLIP ViT-B/32 image and text encoders with ONNX Runtime.
// The sessions reuse bound tensors, so Score calls are serialized.
type CLIPModel struct {
	mu sync.Mutex

	imageSession *ort.AdvancedSession
	pixelTensor  *ort.Tensor[float32]
	imageEmbeds  *ort.Tensor[float32]

	textSession *ort.AdvancedSession
	idsTensor   *ort.Tensor[int64]
	maskTensor  *ort.Tensor[int64]
	textEmbeds  *ort.Tensor[float32]

	tok        *tokenizer.Tokenizer
	promptVecs map[string][]float32
	logitScale float32
}

// LoadCLIP returns a LoadFunc suitable for NewModelCache.
func LoadCLIP(cfg CLIPConfig) LoadFunc {
	return func(ctx context.Context) (Model, error) {
		return NewCLIPModel(cfg)
	}
}

// NewCLIPModel initializes the ONNX Runtime environment if needed and
// opens both encoder sessions.
func NewCLIPModel(cfg CLIPConfig) (*CLIPModel, error) {
	if !ort.IsInitialized() {
		libPath := cfg.ONNXLibPath
		if libPath == "" {
			libPath = defaultONNXLibPath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx runtime (%s): %w", libPath, err)
		}
	}

	imagePath := filepath.Join(cfg.ModelsDir, "clip_image.onnx")
	textPath := filepath.Join(cfg.ModelsDir, "clip_text.onnx")
	tokPath := filepath.Join(cfg.ModelsDir, "tokenizer.json")

	for _, p := range []string{imagePath, textPath, tokPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file: %w", err)
		}
	}

	m := &CLIPModel{
		promptVecs: make(map[string][]float32),
		logitScale: float32(cfg.LogitScale),
	}
	if m.logitScale == 0 {
		m.logitScale = 100
	}

	slog.Info("loading clip tokenizer", "path", tokPath)
	tok, err := pretrained.FromFile(tokPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	m.tok = tok

	slog.Info("loading clip image encoder", "path", imagePath)
	if err := m.openImageSession(imagePath); err != nil {
		m.Close()
		return nil, err
	}

	slog.Info("loading clip text encoder", "path", textPath)
	if err := m.openTextSession(textPath); err != nil {
		m.Close()
		return nil, err
	}

	return m, nil
}

func (m *CLIPModel) openImageSession(path string) error {
	var err error
	m.pixelTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, clipImageSize, clipImageSize))
	if err != nil {
		return fmt.Errorf("create pixel tensor: %w", err)
	}
	m.imageEmbeds, err = ort.NewEmptyTensor[float32](ort.NewShape(1, clipEmbedDim))
	if err != nil {
		return fmt.Errorf("create image embedding tensor: %w", err)
	}

	m.imageSession, err = ort.NewAdvancedSession(path,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.Value{m.pixelTensor},
		[]ort.Value{m.imageEmbeds},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create image session: %w", err)
	}
	return nil
}

func (m *CLIPModel) openTextSession(path string) error {
	var err error
	shape := ort.NewShape(1, clipContextLength)
	m.idsTensor, err = ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return fmt.Errorf("create input_ids tensor: %w", err)
	}
	m.maskTensor, err = ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return fmt.Errorf("create attention_mask tensor: %w", err)
	}
	m.textEmbeds, err = ort.NewEmptyTensor[float32](ort.NewShape(1, clipEmbedDim))
	if err != nil {
		return fmt.Errorf("create text embedding tensor: %w", err)
	}

	m.textSession, err = ort.NewAdvancedSession(path,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.Value{m.idsTensor, m.maskTensor},
		[]ort.Value{m.textEmbeds},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create text session: %w", err)
	}
	return nil
}

// Score returns logit_scale * cosine(image, prompt) for each prompt,
// matching CLIP's logits_per_image.
func (m *CLIPModel) Score(ctx context.Context, img image.Image, prompts []string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	copy(m.pixelTensor.GetData(), preprocessCLIP(img))
	if err := m.imageSession.Run(); err != nil {
		return nil, fmt.Errorf("run image encoder: %w", err)
	}
	imgVec := make([]float32, clipEmbedDim)
	copy(imgVec, m.imageEmbeds.GetData())
	normalize(imgVec)

	scores := make([]float32, len(prompts))
	for i, prompt := range prompts {
		textVec, err := m.promptEmbedding(prompt)
		if err != nil {
			return nil, err
		}
		scores[i] = m.logitScale * dot(imgVec, textVec)
	}
	return scores, nil
}

// promptEmbedding encodes a prompt once and caches it. Caller holds m.mu.
func (m *CLIPModel) promptEmbedding(prompt string) ([]float32, error) {
	if v, ok := m.promptVecs[prompt]; ok {
		return v, nil
	}

	enc, err := m.tok.EncodeSingle(prompt, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", prompt, err)
	}

	ids := m.idsTensor.GetData()
	mask := m.maskTensor.GetData()
	for i := range ids {
		ids[i] = clipPadToken
		mask[i] = 0
	}
	for i, id := range enc.Ids {
		if i >= clipContextLength {
			break
		}
		ids[i] = int64(id)
		mask[i] = 1
	}

	if err := m.textSession.Run(); err != nil {
		return nil, fmt.Errorf("run text encoder: %w", err)
	}

	vec := make([]float32, clipEmbedDim)
	copy(vec, m.textEmbeds.GetData())
	normalize(vec)
	m.promptVecs[prompt] = vec
	return vec, nil
}

func (m *CLIPModel) Close() {
	if m.imageSession != nil {
		m.imageSession.Destroy()
	}
	if m.textSession != nil {
		m.textSession.Destroy()
	}
	if m.pixelTensor != nil {
		m.pixelTensor.Destroy()
	}
	if m.imageEmbeds != nil {
		m.imageEmbeds.Destroy()
	}
	if m.idsTensor != nil {
		m.idsTensor.Destroy()
	}
	if m.maskTensor != nil {
		m.maskTensor.Destroy()
	}
	if m.textEmbeds != nil {
		m.textEmbeds.Destroy()
	}
}

// preprocessCLIP resizes the short side to 224, center-crops, and lays the
// pixels out as CHW floats normalized with the CLIP mean and std.
func preprocessCLIP(img image.Image) []float32 {
	resized := imaging.Fill(img, clipImageSize, clipImageSize, imaging.Center, imaging.CatmullRom)
	return imageToFloat32CHW(resized, clipMean, clipStd)
}

// imageToFloat32CHW converts an NRGBA image to CHW float32 format:
//
//	pixel = (pixel/255 - mean) / std
func imageToFloat32CHW(img *image.NRGBA, mean, std [3]float32) []float32 {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)
			idx := y*w + x
			for c := 0; c < 3; c++ {
				v := float32(img.Pix[off+c]) / 255
				data[c*h*w+idx] = (v - mean[c]) / std[c]
			}
		}
	}
	return data
}

// normalize performs L2 normalization in-place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// defaultONNXLibPath returns the ONNX Runtime shared library name for this OS.
func defaultONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
