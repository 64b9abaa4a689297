package repository

import (
	"context"

	"pagesmith/internal/domain/entity"
)

type SiteFileRepository interface {
	SaveFiles(ctx context.Context, files []*entity.SiteFile) error
	GetFilesByBuildID(ctx context.Context, buildID string) ([]*entity.SiteFile, error)
	ListBuilds(ctx context.Context) ([]string, error)
	DeleteBuild(ctx context.Context, buildID string) error
}
