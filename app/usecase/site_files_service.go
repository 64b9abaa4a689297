package usecase

import (
	"context"
	"fmt"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
)

type SiteFilesUseCase interface {
	SaveFiles(ctx context.Context, files []*entity.SiteFile, buildID string) error
	GetFilesByBuildID(ctx context.Context, buildID string) ([]*entity.SiteFile, error)
	ListBuilds(ctx context.Context) ([]string, error)
	DeleteBuild(ctx context.Context, buildID string) error
}

type SiteFilesService struct {
	repo repository.SiteFileRepository
}

func NewSiteFilesService(repo repository.SiteFileRepository) SiteFilesUseCase {
	return &SiteFilesService{repo: repo}
}

var _ SiteFilesUseCase = (*SiteFilesService)(nil)

func (s *SiteFilesService) SaveFiles(ctx context.Context, files []*entity.SiteFile, buildID string) error {
	if len(files) == 0 {
		return nil
	}
	if buildID == "" {
		return fmt.Errorf("buildID is required")
	}
	if err := s.repo.SaveFiles(ctx, files); err != nil {
		return fmt.Errorf("save files for build %s: %w", buildID, err)
	}
	return nil
}

func (s *SiteFilesService) GetFilesByBuildID(ctx context.Context, buildID string) ([]*entity.SiteFile, error) {
	if buildID == "" {
		return nil, fmt.Errorf("buildID is required")
	}
	files, err := s.repo.GetFilesByBuildID(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("get files for build %s: %w", buildID, err)
	}
	return files, nil
}

func (s *SiteFilesService) ListBuilds(ctx context.Context) ([]string, error) {
	builds, err := s.repo.ListBuilds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	return builds, nil
}

func (s *SiteFilesService) DeleteBuild(ctx context.Context, buildID string) error {
	if buildID == "" {
		return fmt.Errorf("buildID is required")
	}
	if err := s.repo.DeleteBuild(ctx, buildID); err != nil {
		return fmt.Errorf("delete build %s: %w", buildID, err)
	}
	return nil
}
