package filesystem

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagesmith/internal/domain/entity"
)

// Workspace is the on-disk scratch area for a build: decoded attachments
// and a copy of the generated site files.
type Workspace struct {
	basePath string
}

func (w *Workspace) GetBasePath() string {
	return w.basePath
}

func NewWorkspace(basePath string) (Workspace, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0755); mkErr != nil {
			return Workspace{}, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return Workspace{}, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return Workspace{}, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return Workspace{
		basePath: basePath,
	}, nil
}

func (w *Workspace) SaveFiles(ctx context.Context, files []*entity.SiteFile, buildID string) error {
	buildDir := filepath.Join(w.basePath, buildID)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}

	for _, file := range files {
		name, err := safeRelPath(file.Name)
		if err != nil {
			return fmt.Errorf("bad file name %q: %w", file.Name, err)
		}
		filePath := filepath.Join(buildDir, name)
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return fmt.Errorf("failed to create parent dir for %s: %w", file.Name, err)
		}
		if err := os.WriteFile(filePath, []byte(file.Content), 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", file.Name, err)
		}
	}

	metadata := map[string]interface{}{
		"build_id":    buildID,
		"created_at":  time.Now(),
		"files_count": len(files),
		"files":       files,
	}

	metadataPath := filepath.Join(buildDir, "metadata.json")
	metadataData, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, metadataData, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// safeRelPath нормализует имя файла из ответа модели. Имена, выходящие за
// пределы каталога сборки, отклоняются.
func safeRelPath(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("empty file name")
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute path not allowed")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the build directory")
	}
	return cleaned, nil
}

// SavedAttachment describes a decoded attachment on disk.
type SavedAttachment struct {
	Name string
	Path string
	Mime string
	Size int
}

// IsText reports whether the attachment should be committed as text rather
// than binary.
func (a SavedAttachment) IsText() bool {
	if strings.HasPrefix(a.Mime, "text") {
		return true
	}
	switch strings.ToLower(filepath.Ext(a.Name)) {
	case ".md", ".csv", ".json", ".txt":
		return true
	}
	return false
}

// SaveAttachments decodes request attachments (data: URIs) into the build's
// workspace directory. Attachments that fail to decode are skipped with an
// entry-level error so one bad attachment does not sink the build.
func (w *Workspace) SaveAttachments(ctx context.Context, buildID string, attachments []entity.Attachment) ([]SavedAttachment, []error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	attDir := filepath.Join(w.basePath, buildID, "attachments")
	if err := os.MkdirAll(attDir, 0755); err != nil {
		return nil, []error{fmt.Errorf("failed to create attachments dir: %w", err)}
	}

	var saved []SavedAttachment
	var errs []error
	for _, att := range attachments {
		name := filepath.Base(att.Name)
		if name == "" || name == "." || name == string(filepath.Separator) {
			errs = append(errs, fmt.Errorf("attachment has no usable name"))
			continue
		}

		mime, data, err := ParseDataURL(att.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("decode attachment %s: %w", name, err))
			continue
		}

		path := filepath.Join(attDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			errs = append(errs, fmt.Errorf("write attachment %s: %w", name, err))
			continue
		}

		saved = append(saved, SavedAttachment{
			Name: name,
			Path: path,
			Mime: mime,
			Size: len(data),
		})
	}

	return saved, errs
}

// ParseDataURL decodes a data: URI into its media type and payload.
func ParseDataURL(raw string) (string, []byte, error) {
	if !strings.HasPrefix(raw, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}

	rest := strings.TrimPrefix(raw, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URI: no comma")
	}

	meta := rest[:comma]
	payload := rest[comma+1:]

	mime := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		if part == "base64" {
			isBase64 = true
		} else if i == 0 && part != "" {
			mime = part
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return mime, data, nil
	}

	decoded, err := url.QueryUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid url-encoded payload: %w", err)
	}
	return mime, []byte(decoded), nil
}

func (w *Workspace) GetFiles(ctx context.Context, buildID string) ([]*entity.SiteFile, error) {
	metadataPath := filepath.Join(w.basePath, buildID, "metadata.json")

	metadataData, err := os.ReadFile(metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("build not found: %s", buildID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata struct {
		Files []*entity.SiteFile `json:"files"`
	}

	if err := json.Unmarshal(metadataData, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	for i, file := range metadata.Files {
		name, err := safeRelPath(file.Name)
		if err != nil {
			return nil, fmt.Errorf("bad file name %q: %w", file.Name, err)
		}
		filePath := filepath.Join(w.basePath, buildID, name)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file.Name, err)
		}
		metadata.Files[i].Content = string(content)
	}

	return metadata.Files, nil
}

func (w *Workspace) ListBuilds(ctx context.Context) ([]string, error) {
	var builds []string

	err := filepath.WalkDir(w.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() && path != w.basePath {
			metadataPath := filepath.Join(path, "metadata.json")
			if _, err := os.Stat(metadataPath); err == nil {
				builds = append(builds, filepath.Base(path))
			}
			return fs.SkipDir
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return builds, nil
}

func (w *Workspace) DeleteBuild(ctx context.Context, buildID string) error {
	buildDir := filepath.Join(w.basePath, buildID)

	if err := os.RemoveAll(buildDir); err != nil {
		return fmt.Errorf("failed to delete build directory: %w", err)
	}

	return nil
}
