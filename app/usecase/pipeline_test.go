package usecase

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/events"
	"pagesmith/internal/infrastructure/metrics"
	"pagesmith/internal/infrastructure/store/filesystem"
	"pagesmith/internal/infrastructure/validator"
)

// fakePublisher records every hosting call.
type fakePublisher struct {
	mu           sync.Mutex
	repo         entity.Repo
	readme       string
	files        map[string][]byte
	messages     map[string]string
	pagesEnabled bool
	headSHA      string
	putErr       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		repo: entity.Repo{
			Owner:         "octo",
			Name:          "task-1",
			HTMLURL:       "https://github.com/octo/task-1",
			DefaultBranch: "main",
		},
		files:    make(map[string][]byte),
		messages: make(map[string]string),
		headSHA:  "deadbeef",
	}
}

func (p *fakePublisher) EnsureRepo(ctx context.Context, name, description string) (entity.Repo, error) {
	return p.repo, nil
}

func (p *fakePublisher) PutFile(ctx context.Context, repo entity.Repo, path string, content []byte, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return p.putErr
	}
	p.files[path] = content
	p.messages[path] = message
	return nil
}

func (p *fakePublisher) GetFileText(ctx context.Context, repo entity.Repo, path string) (string, error) {
	if p.readme == "" {
		return "", repository.ErrFileNotFound
	}
	return p.readme, nil
}

func (p *fakePublisher) EnablePages(ctx context.Context, repo entity.Repo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pagesEnabled = true
	return nil
}

func (p *fakePublisher) HeadCommitSHA(ctx context.Context, repo entity.Repo) (string, error) {
	return p.headSHA, nil
}

func (p *fakePublisher) PagesURL(task string) string {
	return "https://octo.github.io/" + task + "/"
}

// fakeGenerator returns a canned site and records its input.
type fakeGenerator struct {
	mu     sync.Mutex
	input  entity.GenerationInput
	prompt entity.Prompt
	files  []*entity.SiteFile
	err    error
}

func (g *fakeGenerator) GenerateSite(ctx context.Context, input entity.GenerationInput, prompt entity.Prompt) (entity.GeneratedSite, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.input = input
	g.prompt = prompt
	if g.err != nil {
		return entity.GeneratedSite{}, g.err
	}
	return entity.GeneratedSite{
		Files:     g.files,
		RequestID: "req-1",
		CreatedAt: time.Now().UTC(),
		Status:    "success",
	}, nil
}

func generatedFiles() []*entity.SiteFile {
	return []*entity.SiteFile{
		{Name: "index.html", Content: "<!doctype html><html><body><h1>app</h1></body></html>", Type: "html"},
		{Name: "app.js", Content: "console.log(1);", Type: "script"},
		{Name: "README.md", Content: "# App", Type: "markdown"},
	}
}

type pipelineFixture struct {
	svc       *BuildPipelineService
	builds    *memBuildRepo
	files     *memFileRepo
	publisher *fakePublisher
	generator *fakeGenerator
	notifier  *recordingNotifier
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	ws, err := filesystem.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	f := &pipelineFixture{
		builds:    newMemBuildRepo(),
		files:     newMemFileRepo(),
		publisher: newFakePublisher(),
		generator: &fakeGenerator{files: generatedFiles()},
		notifier:  &recordingNotifier{},
	}
	f.svc = NewBuildPipelineService(
		f.builds,
		f.files,
		ws,
		f.generator,
		f.publisher,
		*validator.NewSiteAnalyzer(),
		f.notifier,
		events.NewHub(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		"shared-secret",
		"octo",
	)
	return f
}

func TestProcessBuildRound1(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	build := entity.NewBuild("user@example.com", "task-1", 1, "n-1", "a todo app", "https://eval.example.com/cb")
	build.Attachments = []entity.Attachment{
		{Name: "data.csv", URL: "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte("a,b\n"))},
		{Name: "logo.png", URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 0x50})},
	}
	require.NoError(t, f.builds.Create(ctx, build))

	require.NoError(t, f.svc.processBuild(ctx, build))

	// Generated files and license were committed.
	assert.Contains(t, f.publisher.files, "index.html")
	assert.Contains(t, f.publisher.files, "app.js")
	assert.Contains(t, f.publisher.files, "README.md")
	assert.Contains(t, f.publisher.files, "LICENSE")
	assert.Equal(t, "Add index.html", f.publisher.messages["index.html"])

	// Attachments: text as-is, binary plus base64 backup.
	assert.Contains(t, f.publisher.files, "data.csv")
	assert.Contains(t, f.publisher.files, "logo.png")
	assert.Contains(t, f.publisher.files, "attachments/logo.png.b64")
	assert.NotContains(t, f.publisher.files, "attachments/data.csv.b64")

	// Pages enabled on round 1.
	assert.True(t, f.publisher.pagesEnabled)

	// Evaluation server was notified with the published coordinates.
	require.Len(t, f.notifier.reports, 1)
	rep := f.notifier.reports[0]
	assert.Equal(t, "https://github.com/octo/task-1", rep.RepoURL)
	assert.Equal(t, "deadbeef", rep.CommitSHA)
	assert.Equal(t, "https://octo.github.io/task-1/", rep.PagesURL)

	// Build completed with its result stored.
	stored, err := f.builds.GetByID(ctx, build.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BuildStatusCompleted, stored.Status)
	assert.Equal(t, "deadbeef", stored.CommitSHA)

	// Generator saw the attachment names and the build prompt.
	assert.Equal(t, []string{"data.csv", "logo.png"}, f.generator.input.AttachmentNames)
	assert.Equal(t, entity.SitePrompt.ID, f.generator.prompt.ID)

	// Files persisted to the store as well.
	files, err := f.files.GetFilesByBuildID(ctx, build.ID)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestProcessBuildRevision(t *testing.T) {
	f := newPipelineFixture(t)
	f.publisher.readme = "# Old App\nIt does things."
	ctx := context.Background()

	build := entity.NewBuild("user@example.com", "task-1", 2, "n-2", "add dark mode", "https://eval.example.com/cb")
	build.Attachments = []entity.Attachment{
		{Name: "data.csv", URL: "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte("a,b\n"))},
	}
	require.NoError(t, f.builds.Create(ctx, build))

	require.NoError(t, f.svc.processBuild(ctx, build))

	// Revision context flows into the generator.
	assert.Equal(t, "# Old App\nIt does things.", f.generator.input.PrevReadme)
	assert.Equal(t, entity.RevisionPrompt.ID, f.generator.prompt.ID)

	// Round >= 2: no pages toggle, no attachment commits, update messages.
	assert.False(t, f.publisher.pagesEnabled)
	assert.NotContains(t, f.publisher.files, "data.csv")
	assert.Equal(t, "Update index.html for round 2", f.publisher.messages["index.html"])

	// Pages URL is still reported for the already published site.
	require.Len(t, f.notifier.reports, 1)
	assert.Equal(t, "https://octo.github.io/task-1/", f.notifier.reports[0].PagesURL)
}

func TestProcessBuildGeneratorFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.err = assert.AnError
	ctx := context.Background()

	build := entity.NewBuild("user@example.com", "task-1", 1, "n-1", "brief", "url")
	require.NoError(t, f.builds.Create(ctx, build))

	err := f.svc.processBuild(ctx, build)
	require.Error(t, err)

	stored, err := f.builds.GetByID(ctx, build.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BuildStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	assert.Empty(t, f.notifier.reports)
	assert.Empty(t, f.publisher.files)
}

func TestProcessBuildPublishFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.publisher.putErr = assert.AnError
	ctx := context.Background()

	build := entity.NewBuild("user@example.com", "task-1", 1, "n-1", "brief", "url")
	require.NoError(t, f.builds.Create(ctx, build))

	before := testutil.ToFloat64(metrics.BuildStatusChanges.WithLabelValues(
		string(entity.BuildStatusPublishing), string(entity.BuildStatusFailed)))

	require.Error(t, f.svc.processBuild(ctx, build))

	stored, err := f.builds.GetByID(ctx, build.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BuildStatusFailed, stored.Status)
	assert.Empty(t, f.notifier.reports)

	// The transition is counted from the status the build actually held.
	after := testutil.ToFloat64(metrics.BuildStatusChanges.WithLabelValues(
		string(entity.BuildStatusPublishing), string(entity.BuildStatusFailed)))
	assert.Equal(t, before+1, after)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	got := truncate("привет мир", 6)
	assert.Equal(t, "привет", got)
	assert.True(t, utf8.ValidString(got))
}

func TestRunOncePicksUpPendingBuilds(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	build := entity.NewBuild("user@example.com", "task-1", 1, "n-1", "brief", "url")
	require.NoError(t, f.builds.Create(ctx, build))

	require.NoError(t, f.svc.runOnce(ctx))

	stored, err := f.builds.GetByID(ctx, build.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BuildStatusCompleted, stored.Status)
}
