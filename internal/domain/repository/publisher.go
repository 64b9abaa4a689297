package repository

import (
	"context"
	"errors"

	"pagesmith/internal/domain/entity"
)

// ErrFileNotFound is returned by GetFileText when the path does not exist
// in the repository.
var ErrFileNotFound = errors.New("file not found")

// SitePublisher pushes generated files to the hosting provider and flips
// the static-site publishing flag.
type SitePublisher interface {
	// EnsureRepo returns the repository for a task, creating it on first use.
	EnsureRepo(ctx context.Context, name, description string) (entity.Repo, error)
	// PutFile creates or updates a single file on the default branch.
	PutFile(ctx context.Context, repo entity.Repo, path string, content []byte, message string) error
	// GetFileText fetches a text file; ErrFileNotFound when absent.
	GetFileText(ctx context.Context, repo entity.Repo, path string) (string, error)
	// EnablePages turns on static-site hosting; already enabled is success.
	EnablePages(ctx context.Context, repo entity.Repo) error
	HeadCommitSHA(ctx context.Context, repo entity.Repo) (string, error)
	PagesURL(task string) string
}
