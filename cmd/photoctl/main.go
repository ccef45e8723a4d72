// Command photoctl is the operator CLI for the photo service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/woundphoto/internal/analyzer"
	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/imageproc"
	"github.com/your-org/woundphoto/internal/models"
	"github.com/your-org/woundphoto/internal/observability"
	"github.com/your-org/woundphoto/internal/storage"
	"github.com/your-org/woundphoto/pkg/dto"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		slog.Error("photoctl failed", "error", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "photoctl",
		Usage: "operate the wound photo service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config file (optional)"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			observability.SetupLogger(cfg.Logging.Level, "text")
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					store, err := storage.Open(c.Context, configFrom(c).Database)
					if err != nil {
						return err
					}
					store.Close()
					fmt.Fprintln(out, "migrations applied")
					return nil
				},
			},
			{
				Name:  "analyze",
				Usage: "normalize and classify a local image without storing it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "image to analyze"},
				},
				Action: func(c *cli.Context) error {
					return analyzeFile(c.Context, configFrom(c), c.String("file"), out)
				},
			},
			{
				Name:  "list",
				Usage: "list a patient's photos by day then creation time",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true},
					&cli.IntFlag{Name: "from", Usage: "first day (inclusive)"},
					&cli.IntFlag{Name: "to", Usage: "last day (inclusive)"},
				},
				Action: func(c *cli.Context) error {
					var fromDay, toDay *int
					if c.IsSet("from") {
						v := c.Int("from")
						fromDay = &v
					}
					if c.IsSet("to") {
						v := c.Int("to")
						toDay = &v
					}
					return listPhotos(c.Context, configFrom(c), c.String("user"), fromDay, toDay, out)
				},
			},
		},
	}
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

type analyzeReport struct {
	File       string           `json:"file"`
	Normalized bool             `json:"normalized"`
	Width      *int             `json:"width"`
	Height     *int             `json:"height"`
	Analysis   *models.Analysis `json:"analysis"`
}

func analyzeFile(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	report := analyzeReport{File: path}
	if n, err := imageproc.Normalize(data); err != nil {
		slog.Warn("normalization failed, analyzing original bytes", "error", err)
	} else {
		data = n.Data
		report.Normalized = true
		report.Width, report.Height = &n.Width, &n.Height
	}

	cache := analyzer.NewModelCache(analyzer.LoadCLIP(analyzer.CLIPConfigFrom(cfg.Analyzer)))
	defer func() {
		cache.Close()
		if ort.IsInitialized() {
			_ = ort.DestroyEnvironment()
		}
	}()

	a, err := analyzer.FromConfig(cfg.Analyzer.Engine, cache)
	if err != nil {
		return err
	}
	if report.Analysis, err = a.Analyze(ctx, data); err != nil {
		return err
	}
	return writeJSON(out, report)
}

func listPhotos(ctx context.Context, cfg *config.Config, userID string, fromDay, toDay *int, out io.Writer) error {
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	photos, err := store.ListPhotosForUser(ctx, userID, fromDay, toDay)
	if err != nil {
		return err
	}
	return writeJSON(out, dto.NewPhotoList(photos))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
