package repository

import (
	"context"

	"pagesmith/internal/domain/entity"
)

// CodeGenerator интерфейс для генерации файлов приложения через LLM
type CodeGenerator interface {
	// GenerateSite генерирует файлы статического приложения по brief'у
	GenerateSite(ctx context.Context, input entity.GenerationInput, prompt entity.Prompt) (entity.GeneratedSite, error)
}
