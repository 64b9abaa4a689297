package usecase

import (
	"context"
	"fmt"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/metrics"
)

// Notifier delivers build reports to the evaluation server.
type Notifier interface {
	Notify(ctx context.Context, evaluationURL string, report entity.Report) error
}

// SubmitRequest is the validated body of an incoming webhook call.
type SubmitRequest struct {
	Email         string
	Task          string
	Round         int
	Nonce         string
	Brief         string
	Checks        []string
	Attachments   []entity.Attachment
	EvaluationURL string
}

type BuildUsecase interface {
	// Submit accepts a request, dedupes it, and enqueues a pending build.
	// For a duplicate the previously reported result is re-sent and the
	// stored build is returned with duplicate=true.
	Submit(ctx context.Context, req SubmitRequest) (build *entity.Build, duplicate bool, err error)
	GetBuild(ctx context.Context, id string) (*entity.Build, error)
	ListBuilds(ctx context.Context) ([]*entity.Build, error)
	UpdateStatus(ctx context.Context, buildID string, status entity.BuildStatus) error
	DeleteBuild(ctx context.Context, buildID string) error
}

var _ BuildUsecase = (*BuildService)(nil)

type BuildService struct {
	buildsRepo repository.BuildRepository
	filesRepo  repository.SiteFileRepository
	notifier   Notifier
}

func NewBuildService(
	br repository.BuildRepository,
	fr repository.SiteFileRepository,
	n Notifier,
) *BuildService {
	return &BuildService{
		buildsRepo: br,
		filesRepo:  fr,
		notifier:   n,
	}
}

func (u *BuildService) Submit(ctx context.Context, req SubmitRequest) (*entity.Build, bool, error) {
	key := entity.BuildKey(req.Email, req.Task, req.Round, req.Nonce)

	prev, err := u.buildsRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("lookup build by key: %w", err)
	}
	if prev != nil {
		metrics.IncDuplicateRequest()
		// Повторная доставка результата — запрос уже обработан.
		if prev.Status == entity.BuildStatusCompleted {
			if err := u.notifier.Notify(ctx, req.EvaluationURL, prev.Report()); err != nil {
				return prev, true, fmt.Errorf("re-notify evaluation server: %w", err)
			}
		}
		return prev, true, nil
	}

	build := entity.NewBuild(req.Email, req.Task, req.Round, req.Nonce, req.Brief, req.EvaluationURL)
	build.Checks = req.Checks
	build.Attachments = req.Attachments

	if err := u.buildsRepo.Create(ctx, build); err != nil {
		return nil, false, fmt.Errorf("create build: %w", err)
	}
	return build, false, nil
}

func (u *BuildService) GetBuild(ctx context.Context, id string) (*entity.Build, error) {
	build, err := u.buildsRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if build == nil {
		return nil, buildNotFoundError(id)
	}
	return build, nil
}

func (u *BuildService) ListBuilds(ctx context.Context) ([]*entity.Build, error) {
	return u.buildsRepo.List(ctx)
}

func (u *BuildService) UpdateStatus(ctx context.Context, buildID string, status entity.BuildStatus) error {
	return u.buildsRepo.UpdateStatus(ctx, buildID, status)
}

func (u *BuildService) DeleteBuild(ctx context.Context, buildID string) error {
	if err := u.filesRepo.DeleteBuild(ctx, buildID); err != nil {
		return fmt.Errorf("delete site files: %w", err)
	}
	if err := u.buildsRepo.Delete(ctx, buildID); err != nil {
		return fmt.Errorf("delete build: %w", err)
	}

	return nil
}

func buildNotFoundError(id string) error {
	return fmt.Errorf("build %s not found", id)
}
