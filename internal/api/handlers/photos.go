package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/woundphoto/internal/storage"
	"github.com/your-org/woundphoto/internal/upload"
	"github.com/your-org/woundphoto/pkg/dto"
)

type PhotoHandler struct {
	pipeline *upload.Pipeline
	store    storage.PhotoStore
}

func NewPhotoHandler(pipeline *upload.Pipeline, store storage.PhotoStore) *PhotoHandler {
	return &PhotoHandler{pipeline: pipeline, store: store}
}

// Upload handles POST /photo/upload (multipart: userId, day, file).
func (h *PhotoHandler) Upload(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	day, err := strconv.Atoi(c.PostForm("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be an integer"})
		return
	}

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

	data, err := h.pipeline.ReadBody(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), upload.Upload{
		UserID:      userID,
		Day:         day,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		var inErr *upload.InputError
		if errors.As(err, &inErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": inErr.Msg})
			return
		}
		slog.Error("upload failed", "user_id", userID, "day", day, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	p := res.Photo
	c.JSON(http.StatusOK, dto.UploadResponse{
		UserID:     p.UserID,
		Day:        p.Day,
		PhotoID:    p.ID,
		PhotoURL:   p.StorageURL,
		ThumbURL:   p.ThumbURL,
		Analysis:   p.Analysis,
		Normalized: res.Normalized,
	})
}

// ListForDay handles GET /photo/:user_id/:day, newest first.
func (h *PhotoHandler) ListForDay(c *gin.Context) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be an integer"})
		return
	}

	photos, err := h.store.ListPhotosForDay(c.Request.Context(), c.Param("user_id"), day)
	if err != nil {
		slog.Error("list photos for day", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.NewPhotoList(photos))
}

// ClinicianList handles GET /clinician/photos?userId=&fromDay=&toDay=.
func (h *PhotoHandler) ClinicianList(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	fromDay, err := optionalInt(c.Query("fromDay"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fromDay must be an integer"})
		return
	}
	toDay, err := optionalInt(c.Query("toDay"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "toDay must be an integer"})
		return
	}

	photos, err := h.store.ListPhotosForUser(c.Request.Context(), userID, fromDay, toDay)
	if err != nil {
		slog.Error("list photos for user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.NewPhotoList(photos))
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
