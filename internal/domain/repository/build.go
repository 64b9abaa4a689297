package repository

import (
	"context"

	"pagesmith/internal/domain/entity"
)

// BuildRepository определяет интерфейс доступа к хранилищу сборок (Build).
type BuildRepository interface {
	Create(ctx context.Context, build *entity.Build) error
	GetByID(ctx context.Context, id string) (*entity.Build, error)
	// GetByKey looks a build up by its dedupe key; nil when unseen.
	GetByKey(ctx context.Context, key string) (*entity.Build, error)
	List(ctx context.Context) ([]*entity.Build, error)
	ListByStatus(ctx context.Context, status entity.BuildStatus) ([]*entity.Build, error)
	Update(ctx context.Context, build *entity.Build) error
	UpdateStatus(ctx context.Context, id string, status entity.BuildStatus) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status entity.BuildStatus) (int, error)
}
