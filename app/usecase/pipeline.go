package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/events"
	"pagesmith/internal/infrastructure/github"
	"pagesmith/internal/infrastructure/metrics"
	"pagesmith/internal/infrastructure/store/filesystem"
	"pagesmith/internal/infrastructure/validator"
)

// BuildPipelineService — фоновый воркер: забирает pending-сборки и гонит их
// через generate → validate → publish → notify.
type BuildPipelineService struct {
	buildsRepo repository.BuildRepository
	filesRepo  repository.SiteFileRepository
	workspace  filesystem.Workspace
	generator  repository.CodeGenerator
	publisher  repository.SitePublisher

	staticVal validator.SiteAnalyzer

	notifier Notifier
	hub      *events.Hub
	logger   *slog.Logger

	// sharedSecret is only used to verify the model did not echo it back.
	sharedSecret  string
	licenseHolder string

	pollInterval time.Duration
	buildTimeout time.Duration

	// control
	stop    chan struct{}
	stopped chan struct{}
}

func NewBuildPipelineService(
	br repository.BuildRepository,
	fr repository.SiteFileRepository,
	ws filesystem.Workspace,
	gen repository.CodeGenerator,
	pub repository.SitePublisher,
	staticVal validator.SiteAnalyzer,
	n Notifier,
	hub *events.Hub,
	logger *slog.Logger,
	sharedSecret, licenseHolder string,
) *BuildPipelineService {
	return &BuildPipelineService{
		buildsRepo:    br,
		filesRepo:     fr,
		workspace:     ws,
		generator:     gen,
		publisher:     pub,
		staticVal:     staticVal,
		notifier:      n,
		hub:           hub,
		logger:        logger,
		sharedSecret:  sharedSecret,
		licenseHolder: licenseHolder,
		pollInterval:  5 * time.Second,
		buildTimeout:  10 * time.Minute,
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

func (s *BuildPipelineService) Start(ctx context.Context) {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		s.logger.Info("BuildPipelineService started", "interval", s.pollInterval)

		if err := s.runOnce(ctx); err != nil {
			s.logger.Warn("initial runOnce failed", "err", err)
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("BuildPipelineService context canceled")
				return
			case <-s.stop:
				s.logger.Info("BuildPipelineService stopped by Stop()")
				return
			case <-ticker.C:
				if err := s.runOnce(ctx); err != nil {
					s.logger.Warn("runOnce failed", "err", err)
				}
			}
		}
	}()
}

func (s *BuildPipelineService) Stop() {
	close(s.stop)
	<-s.stopped
	s.logger.Info("BuildPipelineService fully stopped")
}

func (s *BuildPipelineService) runOnce(ctx context.Context) error {
	builds, err := s.buildsRepo.ListByStatus(ctx, entity.BuildStatusPending)
	if err != nil {
		return fmt.Errorf("list pending builds: %w", err)
	}
	if len(builds) == 0 {
		return nil
	}

	s.logger.Debug("found pending builds", "count", len(builds))
	metrics.SetActiveBuilds(len(builds))
	defer metrics.SetActiveBuilds(0)

	for _, build := range builds {
		if err := s.setStatus(ctx, build, entity.BuildStatusRunning); err != nil {
			s.logger.Warn("failed to set build running; skip", "build_id", build.ID, "err", err)
			continue
		}

		procCtx, cancel := context.WithTimeout(ctx, s.buildTimeout)
		func() {
			defer cancel()
			if err := s.processBuild(procCtx, build); err != nil {
				s.logger.Error("processBuild failed", "build_id", build.ID, "err", err)
			}
		}()
	}

	return nil
}

// processBuild — полный pipeline для отдельной сборки:
// 1) Decode attachments
// 2) Ensure repo (round 1 creates, round >= 2 reuses)
// 3) Previous README as revision context
// 4) Generate via LLM, static validation
// 5) Commit files + attachments + LICENSE, enable Pages
// 6) Notify evaluation server, set final status
func (s *BuildPipelineService) processBuild(ctx context.Context, build *entity.Build) error {
	startTime := time.Now()
	buildID := build.ID

	s.logger.Info("start processing build", "build_id", buildID, "task", build.Task, "round", build.Round)

	// 1) Attachments
	saved, attErrs := s.workspace.SaveAttachments(ctx, buildID, build.Attachments)
	for _, aerr := range attErrs {
		s.logger.Warn("attachment skipped", "build_id", buildID, "err", aerr)
	}

	// 2) Repository
	description := fmt.Sprintf("Auto-generated app for task: %s", truncate(build.Brief, 200))
	repo, err := s.publisher.EnsureRepo(ctx, build.Task, description)
	if err != nil {
		return s.fail(ctx, build, fmt.Errorf("ensure repo: %w", err))
	}

	// 3) Previous README for revision context
	prevReadme := ""
	if build.IsRevision() {
		prevReadme, err = s.publisher.GetFileText(ctx, repo, "README.md")
		if err != nil {
			if !errors.Is(err, repository.ErrFileNotFound) {
				s.logger.Warn("could not load previous README; continuing without context",
					"build_id", buildID, "err", err)
			}
			prevReadme = ""
		}
	}

	// 4) Generate via LLM
	prompt := entity.SitePrompt
	if build.IsRevision() {
		prompt = entity.RevisionPrompt
	}
	names := make([]string, 0, len(saved))
	for _, att := range saved {
		names = append(names, att.Name)
	}

	site, err := s.generator.GenerateSite(ctx, entity.GenerationInput{
		Brief:           build.Brief,
		Checks:          build.Checks,
		Round:           build.Round,
		PrevReadme:      prevReadme,
		AttachmentNames: names,
	}, prompt)
	if err != nil {
		return s.fail(ctx, build, fmt.Errorf("llm generate: %w", err))
	}
	for i := range site.Files {
		site.Files[i].BuildID = buildID
	}

	// Static validation: ошибки записываем на файлы, публикацию не прерываем.
	staticRes, err := s.staticVal.Analyze(site.Files, []string{s.sharedSecret})
	if err != nil {
		metrics.IncValidationRun("error")
		s.logger.Error("static validator error", "build_id", buildID, "err", err)
	} else {
		markFilesWithErrors(site.Files, staticRes.Errors)
		if staticRes.Passed {
			metrics.IncValidationRun("pass")
		} else {
			metrics.IncValidationRun("fail")
			s.logger.Warn("generated site failed static validation",
				"build_id", buildID, "errors", len(staticRes.Errors))
		}
	}

	if err := s.filesRepo.SaveFiles(ctx, site.Files); err != nil {
		return s.fail(ctx, build, fmt.Errorf("save files: %w", err))
	}
	if err := s.workspace.SaveFiles(ctx, site.Files, buildID); err != nil {
		s.logger.Error("save files to workspace failed", "build_id", buildID, "err", err)
	}

	// 5) Publish
	if err := s.setStatus(ctx, build, entity.BuildStatusPublishing); err != nil {
		s.logger.Warn("failed to set build publishing", "build_id", buildID, "err", err)
	}

	if !build.IsRevision() {
		s.commitAttachments(ctx, repo, saved)
	}

	for _, f := range site.Files {
		message := fmt.Sprintf("Add %s", f.Name)
		if build.IsRevision() {
			message = fmt.Sprintf("Update %s for round %d", f.Name, build.Round)
		}
		if err := s.publisher.PutFile(ctx, repo, f.Name, []byte(f.Content), message); err != nil {
			return s.fail(ctx, build, fmt.Errorf("commit %s: %w", f.Name, err))
		}
	}

	if err := s.publisher.PutFile(ctx, repo, "LICENSE", []byte(github.MITLicense(s.licenseHolder)), "Add MIT license"); err != nil {
		s.logger.Warn("license commit failed", "build_id", buildID, "err", err)
	}

	pagesURL := s.publisher.PagesURL(build.Task)
	if !build.IsRevision() {
		if err := s.publisher.EnablePages(ctx, repo); err != nil {
			s.logger.Warn("enable pages failed", "build_id", buildID, "err", err)
			pagesURL = ""
		}
	}

	commitSHA, err := s.publisher.HeadCommitSHA(ctx, repo)
	if err != nil {
		s.logger.Warn("head commit lookup failed", "build_id", buildID, "err", err)
		commitSHA = ""
	}

	build.RepoURL = repo.HTMLURL
	build.PagesURL = pagesURL
	build.CommitSHA = commitSHA

	// 6) Notify and finish
	if err := s.notifier.Notify(ctx, build.EvaluationURL, build.Report()); err != nil {
		s.logger.Error("notify evaluation server failed", "build_id", buildID, "err", err)
	}

	build.UpdateStatus(entity.BuildStatusCompleted)
	if err := s.buildsRepo.Update(ctx, build); err != nil {
		s.logger.Warn("failed to store completed build", "build_id", buildID, "err", err)
	}
	metrics.IncBuildStatusChange(string(entity.BuildStatusPublishing), string(entity.BuildStatusCompleted))
	s.hub.Publish(events.BuildEvent{BuildID: buildID, Status: entity.BuildStatusCompleted, At: time.Now()})

	metrics.ObserveBuildDuration(strconv.Itoa(build.Round), time.Since(startTime))
	s.logger.Info("build processed", "build_id", buildID, "round", build.Round, "duration", time.Since(startTime))
	return nil
}

// commitAttachments pushes round-1 attachments: text files as-is, binary
// files plus a base64 backup under attachments/. Per-attachment failures
// are logged, not fatal.
func (s *BuildPipelineService) commitAttachments(ctx context.Context, repo entity.Repo, saved []filesystem.SavedAttachment) {
	for _, att := range saved {
		content, err := os.ReadFile(att.Path)
		if err != nil {
			s.logger.Error("attachment read failed", "name", att.Name, "err", err)
			continue
		}

		if err := s.publisher.PutFile(ctx, repo, att.Name, content, fmt.Sprintf("Add attachment %s", att.Name)); err != nil {
			s.logger.Error("attachment commit failed", "name", att.Name, "err", err)
			continue
		}

		if !att.IsText() {
			b64 := base64.StdEncoding.EncodeToString(content)
			backupPath := fmt.Sprintf("attachments/%s.b64", att.Name)
			if err := s.publisher.PutFile(ctx, repo, backupPath, []byte(b64), fmt.Sprintf("Backup %s.b64", att.Name)); err != nil {
				s.logger.Error("attachment backup commit failed", "name", att.Name, "err", err)
			}
		}
	}
}

func (s *BuildPipelineService) setStatus(ctx context.Context, build *entity.Build, status entity.BuildStatus) error {
	from := build.Status
	if err := s.buildsRepo.UpdateStatus(ctx, build.ID, status); err != nil {
		return err
	}
	build.UpdateStatus(status)
	metrics.IncBuildStatusChange(string(from), string(status))
	s.hub.Publish(events.BuildEvent{BuildID: build.ID, Status: status, At: time.Now()})
	return nil
}

func (s *BuildPipelineService) fail(ctx context.Context, build *entity.Build, cause error) error {
	from := build.Status
	build.Error = cause.Error()
	build.UpdateStatus(entity.BuildStatusFailed)
	if err := s.buildsRepo.Update(ctx, build); err != nil {
		s.logger.Warn("failed to store failed build", "build_id", build.ID, "err", err)
	}
	metrics.IncBuildStatusChange(string(from), string(entity.BuildStatusFailed))
	s.hub.Publish(events.BuildEvent{BuildID: build.ID, Status: entity.BuildStatusFailed, Error: cause.Error(), At: time.Now()})
	return cause
}

func markFilesWithErrors(files []*entity.SiteFile, errs []*entity.ValidationError) {
	for _, file := range files {
		file.HasError = false
		file.ErrorMsg = nil
		for _, verr := range errs {
			if verr.File == file.Name {
				file.HasError = true
				file.ErrorMsg = verr
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
