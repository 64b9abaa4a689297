package filesystem

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/domain/entity"
)

func newTestWorkspace(t *testing.T) Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return ws
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantMime string
		wantData string
		wantErr  bool
	}{
		{
			name:     "base64 csv",
			raw:      "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n")),
			wantMime: "text/csv",
			wantData: "a,b\n1,2\n",
		},
		{
			name:     "plain payload",
			raw:      "data:,hello%20world",
			wantMime: "text/plain",
			wantData: "hello world",
		},
		{
			name:     "base64 without mime",
			raw:      "data:;base64," + base64.StdEncoding.EncodeToString([]byte("bytes")),
			wantMime: "text/plain",
			wantData: "bytes",
		},
		{
			name:    "not a data uri",
			raw:     "https://example.com/file.csv",
			wantErr: true,
		},
		{
			name:    "missing comma",
			raw:     "data:text/plain;base64",
			wantErr: true,
		},
		{
			name:    "bad base64",
			raw:     "data:;base64,%%%",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, data, err := ParseDataURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
			assert.Equal(t, tt.wantData, string(data))
		})
	}
}

func TestSaveAttachments(t *testing.T) {
	ws := newTestWorkspace(t)

	saved, errs := ws.SaveAttachments(context.Background(), "build-1", []entity.Attachment{
		{Name: "data.csv", URL: "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte("a,b\n"))},
		{Name: "broken.bin", URL: "not-a-data-uri"},
	})

	require.Len(t, errs, 1)
	require.Len(t, saved, 1)

	assert.Equal(t, "data.csv", saved[0].Name)
	assert.Equal(t, "text/csv", saved[0].Mime)
	assert.True(t, saved[0].IsText())

	content, err := os.ReadFile(saved[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(content))
}

func TestSavedAttachmentIsText(t *testing.T) {
	assert.True(t, SavedAttachment{Name: "x.bin", Mime: "text/plain"}.IsText())
	assert.True(t, SavedAttachment{Name: "notes.md", Mime: "application/octet-stream"}.IsText())
	assert.True(t, SavedAttachment{Name: "data.JSON", Mime: "application/json"}.IsText())
	assert.False(t, SavedAttachment{Name: "logo.png", Mime: "image/png"}.IsText())
}

func TestSaveAndGetFiles(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	files := []*entity.SiteFile{
		{BuildID: "build-1", Name: "index.html", Content: "<html/>", Type: "html"},
		{BuildID: "build-1", Name: "assets/app.js", Content: "console.log(1);", Type: "script"},
	}
	require.NoError(t, ws.SaveFiles(ctx, files, "build-1"))

	// metadata.json sits next to the files
	_, err := os.Stat(filepath.Join(ws.GetBasePath(), "build-1", "metadata.json"))
	require.NoError(t, err)

	got, err := ws.GetFiles(ctx, "build-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "<html/>", got[0].Content)
	assert.Equal(t, "console.log(1);", got[1].Content)
}

func TestSaveFilesRejectsEscapingNames(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		fileName string
	}{
		{"parent traversal", "../../escaped.txt"},
		{"nested traversal", "assets/../../escaped.txt"},
		{"absolute path", "/etc/escaped.txt"},
		{"bare dotdot", ".."},
		{"empty name", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ws.SaveFiles(ctx, []*entity.SiteFile{{Name: tt.fileName, Content: "x"}}, "build-1")
			assert.ErrorContains(t, err, "bad file name")
		})
	}

	// Nothing leaked outside the build directory.
	_, err := os.Stat(filepath.Join(filepath.Dir(ws.GetBasePath()), "escaped.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(ws.GetBasePath(), "escaped.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestGetFilesUnknownBuild(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.GetFiles(context.Background(), "nope")
	assert.ErrorContains(t, err, "build not found")
}

func TestListAndDeleteBuilds(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	require.NoError(t, ws.SaveFiles(ctx, []*entity.SiteFile{{Name: "index.html", Content: "x"}}, "b1"))
	require.NoError(t, ws.SaveFiles(ctx, []*entity.SiteFile{{Name: "index.html", Content: "y"}}, "b2"))

	builds, err := ws.ListBuilds(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "b2"}, builds)

	require.NoError(t, ws.DeleteBuild(ctx, "b1"))
	builds, err = ws.ListBuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, builds)
}
