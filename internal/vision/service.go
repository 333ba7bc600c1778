// Package vision implements the page collaborators on top of a vision-capable LLM.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/katalogcu/partalog/internal/models"
	"github.com/katalogcu/partalog/internal/providers"
)

// Service answers page questions by prompting an LLM with the page image
type Service struct {
	provider    providers.Provider
	model       string
	temperature float64
}

func NewService(provider providers.Provider, model string) *Service {
	return &Service{
		provider:    provider,
		model:       model,
		temperature: 0.1, // Low temperature for consistent, factual output
	}
}

func (s *Service) Analyze(ctx context.Context, image []byte) (models.PageAnalysis, error) {
	var analysis models.PageAnalysis
	if err := s.ask(ctx, classifyPrompt, image, &analysis); err != nil {
		return models.PageAnalysis{}, fmt.Errorf("failed to classify page: %w", err)
	}
	analysis.Title = strings.TrimSpace(analysis.Title)
	return analysis, nil
}

func (s *Service) Detect(ctx context.Context, image []byte) ([]models.Detection, error) {
	var result struct {
		Hotspots []models.Detection `json:"hotspots"`
	}
	if err := s.ask(ctx, detectPrompt, image, &result); err != nil {
		return nil, fmt.Errorf("failed to detect hotspots: %w", err)
	}

	return models.CleanDetections(result.Hotspots), nil
}

func (s *Service) Extract(ctx context.Context, image []byte, pageNumber int) ([]models.TableRow, error) {
	var result struct {
		Products []models.TableRow `json:"products"`
	}
	if err := s.ask(ctx, fmt.Sprintf(extractPrompt, pageNumber), image, &result); err != nil {
		return nil, fmt.Errorf("failed to extract table from page %d: %w", pageNumber, err)
	}

	rows := make([]models.TableRow, 0, len(result.Products))
	for _, r := range result.Products {
		if r.PartCode == "" && r.PartName == "" {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *Service) AnalyzeCover(ctx context.Context, image []byte) (models.CoverMetadata, error) {
	var meta models.CoverMetadata
	if err := s.ask(ctx, coverPrompt, image, &meta); err != nil {
		return models.CoverMetadata{}, fmt.Errorf("failed to analyze cover: %w", err)
	}
	meta.MachineModel = strings.TrimSpace(meta.MachineModel)
	meta.MachineBrand = strings.TrimSpace(meta.MachineBrand)
	meta.MachineGroup = strings.TrimSpace(meta.MachineGroup)
	meta.CatalogTitle = strings.TrimSpace(meta.CatalogTitle)
	return meta, nil
}

func (s *Service) ask(ctx context.Context, prompt string, image []byte, out interface{}) error {
	response, err := s.provider.ExtractText(ctx, providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      prompt,
		Image:       image,
		JSON:        true,
	})
	if err != nil {
		return err
	}
	return decodeJSON(response, out)
}

// decodeJSON parses a model answer, tolerating markdown code fences around it
func decodeJSON(response string, out interface{}) error {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if err := json.Unmarshal([]byte(response), out); err != nil {
		slog.Warn("Failed to parse JSON response", "error", err, "length", len(response))
		return fmt.Errorf("invalid JSON in model response: %w", err)
	}
	return nil
}
