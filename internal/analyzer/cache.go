package analyzer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Model scores one image against each prompt. Higher is more similar.
type Model interface {
	Score(ctx context.Context, img image.Image, prompts []string) ([]float32, error)
}

// LoadFunc builds a Model. It may be slow (weights on disk or network).
type LoadFunc func(ctx context.Context) (Model, error)

// ModelCache loads a Model at most once per process. Concurrent first
// callers share a single load; a failed load is retried on the next call.
type ModelCache struct {
	load  LoadFunc
	group singleflight.Group

	mu    sync.RWMutex
	model Model
}

func NewModelCache(load LoadFunc) *ModelCache {
	return &ModelCache{load: load}
}

// Get returns the cached model, loading it on first use.
func (c *ModelCache) Get(ctx context.Context) (Model, error) {
	c.mu.RLock()
	m := c.model
	c.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	v, err, _ := c.group.Do("model", func() (interface{}, error) {
		c.mu.RLock()
		m := c.model
		c.mu.RUnlock()
		if m != nil {
			return m, nil
		}

		start := time.Now()
		slog.Info("loading classification model")
		m, err := c.load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		slog.Info("classification model ready", "duration", time.Since(start).String())

		c.mu.Lock()
		c.model = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// Loaded reports whether the model is already resident.
func (c *ModelCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Close releases the model if it holds native resources.
func (c *ModelCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.model.(interface{ Close() }); ok {
		closer.Close()
	}
	c.model = nil
}
