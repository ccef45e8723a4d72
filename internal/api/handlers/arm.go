package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/woundphoto/internal/analyzer"
	"github.com/your-org/woundphoto/internal/imageproc"
	"github.com/your-org/woundphoto/pkg/dto"
)

// maxArmImageBytes caps the demo endpoint, which has no configured limit of its own.
const maxArmImageBytes = 15 << 20

// ArmHandler serves the standalone arm injury demo. Nothing is stored.
type ArmHandler struct {
	classifier analyzer.Analyzer
}

func NewArmHandler(classifier analyzer.Analyzer) *ArmHandler {
	return &ArmHandler{classifier: classifier}
}

// Detect handles POST /detect-arm-injury (multipart: file).
func (h *ArmHandler) Detect(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxArmImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	if len(data) > maxArmImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	res, err := h.classifier.Analyze(c.Request.Context(), data)
	if err != nil {
		if errors.Is(err, imageproc.ErrDecode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
			return
		}
		slog.Error("arm classification failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "classification model unavailable"})
		return
	}

	var confidence float64
	for _, p := range res.Probs {
		confidence = max(confidence, p)
	}
	c.JSON(http.StatusOK, dto.ArmInjuryResponse{
		Prediction: res.Prediction,
		Confidence: confidence,
	})
}
