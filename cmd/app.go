package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/katalogcu/partalog/internal/aiclient"
	"github.com/katalogcu/partalog/internal/config"
	"github.com/katalogcu/partalog/internal/gemini"
	"github.com/katalogcu/partalog/internal/images"
	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/ollama"
	"github.com/katalogcu/partalog/internal/openai"
	"github.com/katalogcu/partalog/internal/pipeline"
	"github.com/katalogcu/partalog/internal/storage"
	"github.com/katalogcu/partalog/internal/vision"
)

// app bundles everything a command needs to run the pipeline
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStore
	resolver  *images.Resolver
	processor *pipeline.Processor
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := storage.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	resolver := images.NewResolver(cfg.Images.WebRoot)
	if cfg.Images.Download {
		resolver = resolver.WithDownloads(cfg.AI.Timeout)
	}

	collab, err := collaborators(cfg, resolver)
	if err != nil {
		store.Close()
		return nil, err
	}

	processor := pipeline.New(store, collab, pipeline.NewLogObserver(slog.Default()))
	addHooks(cfg, processor, resolver)

	slog.Info("Pipeline ready",
		"provider", cfg.AI.Provider,
		"database", cfg.Database.Path,
		"web_root", cfg.Images.WebRoot,
		"analyze_cover", cfg.AI.AnalyzeCover)

	return &app{cfg: cfg, store: store, resolver: resolver, processor: processor}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("Failed to close database", "err", err)
	}
}

// visionBackend is implemented by both the AI service client and the LLM-backed service
type visionBackend interface {
	pipeline.PageClassifier
	pipeline.HotspotDetector
	pipeline.TableExtractor
	pipeline.CoverAnalyzer
}

func collaborators(cfg *config.Config, resolver *images.Resolver) (pipeline.Collaborators, error) {
	var backend visionBackend
	httpClient := &http.Client{Timeout: cfg.AI.Timeout}

	switch cfg.AI.Provider {
	case config.ProviderService:
		backend = serviceClient(cfg)
	case config.ProviderOllama:
		backend = vision.NewService(ollama.New(cfg.AI.OllamaURL, httpClient), cfg.AI.OllamaModel)
	case config.ProviderOpenAI:
		backend = vision.NewService(openai.New(cfg.AI.OpenAIKey, "", httpClient), cfg.AI.OpenAIModel)
	case config.ProviderGemini:
		backend = vision.NewService(gemini.New(cfg.AI.GeminiKey), cfg.AI.GeminiModel)
	default:
		return pipeline.Collaborators{}, fmt.Errorf("unsupported vision provider: %s", cfg.AI.Provider)
	}

	collab := pipeline.Collaborators{
		Images:     resolver,
		Classifier: backend,
		Detector:   backend,
		Extractor:  backend,
	}
	if cfg.AI.AnalyzeCover {
		collab.Cover = backend
	}
	return collab, nil
}

func serviceClient(cfg *config.Config) *aiclient.Client {
	client := aiclient.New(cfg.AI.ServiceURL, cfg.AI.Timeout)
	if cfg.AI.RateLimit > 0 {
		client.SetRateLimit(cfg.AI.RateLimit)
	}
	return client
}

// addHooks registers the optional post-run calls to the AI service
func addHooks(cfg *config.Config, processor *pipeline.Processor, resolver *images.Resolver) {
	if !cfg.Hooks.TrainAfterRun && !cfg.Hooks.VisualIngestAfterRun {
		return
	}
	client := serviceClient(cfg)

	if cfg.Hooks.TrainAfterRun {
		processor.AddHook(pipeline.Hook{
			Name: "train",
			Run: func(ctx context.Context, catalog *models.Catalog) error {
				return client.TriggerTraining(ctx)
			},
		})
	}

	if cfg.Hooks.VisualIngestAfterRun {
		processor.AddHook(pipeline.Hook{
			Name: "visual-ingest",
			Run: func(ctx context.Context, catalog *models.Catalog) error {
				if catalog.PdfURL == "" {
					slog.Debug("Catalog has no PDF, skipping visual ingest", "catalog_id", catalog.ID)
					return nil
				}
				pdfPath, err := resolver.Path(catalog.PdfURL)
				if err != nil {
					return fmt.Errorf("failed to resolve catalog PDF: %w", err)
				}
				return client.VisualIngest(ctx, catalog.ID, pdfPath)
			},
		})
	}
}
