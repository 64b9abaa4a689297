package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/metrics"
)

// GeminiGenerator generates site files using Google's Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (repository.CodeGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiGenerator) GenerateSite(ctx context.Context, input entity.GenerationInput, prompt entity.Prompt) (entity.GeneratedSite, error) {
	metrics.IncLLMRequest(g.model)

	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(buildUserPrompt(input)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt.Text, genai.RoleUser),
		},
	)
	if err != nil {
		metrics.IncError("llm", "gemini_generate")
		return entity.GeneratedSite{}, fmt.Errorf("gemini generate failed: %w", err)
	}

	content := result.Text()
	if content == "" {
		metrics.IncError("llm", "gemini_empty")
		return entity.GeneratedSite{}, fmt.Errorf("gemini returned no text")
	}

	files := extractFilesFromContent(content)
	if len(files) == 0 {
		files = []*entity.SiteFile{
			{
				Name:    "index.html",
				Content: content,
				Type:    "html",
			},
		}
	}

	return entity.GeneratedSite{
		Files:     files,
		RequestID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Status:    "success",
	}, nil
}
