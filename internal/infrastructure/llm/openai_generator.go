package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/metrics"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	apiKey    string
	baseURL   string
	model     string
	client    *http.Client
	maxTokens int
}

func NewOpenAIGenerator(apiKey, baseURL, model string, timeout time.Duration) repository.CodeGenerator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		client:    &http.Client{Timeout: timeout},
		maxTokens: 8000,
	}
}

func (g *OpenAIGenerator) GenerateSite(ctx context.Context, input entity.GenerationInput, prompt entity.Prompt) (entity.GeneratedSite, error) {
	metrics.IncLLMRequest(g.model)

	request := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": prompt.Text,
			},
			{
				"role":    "user",
				"content": buildUserPrompt(input),
			},
		},
		"temperature": 1,
		"max_tokens":  g.maxTokens,
	}

	response, err := g.makeRequest(ctx, request)
	if err != nil {
		metrics.IncError("llm", "make_request")
		return entity.GeneratedSite{}, fmt.Errorf("failed to make completion request: %w", err)
	}

	files, err := g.parseResponse(response)
	if err != nil {
		metrics.IncError("llm", "parse_response")
		return entity.GeneratedSite{}, fmt.Errorf("failed to parse completion response: %w", err)
	}

	return entity.GeneratedSite{
		Files:     files,
		RequestID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Status:    "success",
	}, nil
}

func (g *OpenAIGenerator) makeRequest(ctx context.Context, request map[string]interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		metrics.IncError("llm", "marshal_request")
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		metrics.IncError("llm", "create_request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "http_do")
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		err := resp.Body.Close()
		if err != nil {
			log.Printf("close body err: %s", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.IncError("llm", fmt.Sprintf("api_error_%d", resp.StatusCode))
		return nil, fmt.Errorf("completion api error: %d - %s", resp.StatusCode, string(body))
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		metrics.IncError("llm", "decode_response")
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response, nil
}

func (g *OpenAIGenerator) parseResponse(response map[string]interface{}) ([]*entity.SiteFile, error) {
	choices, ok := response["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return nil, fmt.Errorf("invalid response format: no choices")
	}

	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid response format: invalid choice")
	}

	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid response format: no message")
	}

	content, ok := message["content"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid response format: no content")
	}

	files := extractFilesFromContent(content)

	// Модель проигнорировала формат — считаем весь ответ точкой входа.
	if len(files) == 0 {
		files = []*entity.SiteFile{
			{
				BuildID:  "",
				Name:     "index.html",
				Content:  content,
				Type:     "html",
				HasError: false,
				ErrorMsg: nil,
			},
		}
	}

	return files, nil
}
