package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BuildStatus string

const (
	BuildStatusPending    BuildStatus = "pending"
	BuildStatusRunning    BuildStatus = "running"
	BuildStatusPublishing BuildStatus = "publishing"
	BuildStatusCompleted  BuildStatus = "completed"
	BuildStatusFailed     BuildStatus = "failed"
)

// Attachment is a named file shipped with a build request. URL is a data: URI.
type Attachment struct {
	Name string `json:"name" bson:"name"`
	URL  string `json:"url" bson:"url"`
}

// Build is one accepted request to generate and publish an app.
// Round 1 creates the repository, round >= 2 revises it.
type Build struct {
	ID            string       `json:"id" bson:"id"`
	Email         string       `json:"email" bson:"email"`
	Task          string       `json:"task" bson:"task"`
	Round         int          `json:"round" bson:"round"`
	Nonce         string       `json:"nonce" bson:"nonce"`
	Brief         string       `json:"brief" bson:"brief"`
	Checks        []string     `json:"checks,omitempty" bson:"checks,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty" bson:"attachments,omitempty"`
	EvaluationURL string       `json:"evaluation_url" bson:"evaluation_url"`
	Status        BuildStatus  `json:"status" bson:"status"`
	RepoURL       string       `json:"repo_url,omitempty" bson:"repo_url,omitempty"`
	PagesURL      string       `json:"pages_url,omitempty" bson:"pages_url,omitempty"`
	CommitSHA     string       `json:"commit_sha,omitempty" bson:"commit_sha,omitempty"`
	Error         string       `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" bson:"updated_at"`
}

func NewBuild(email, task string, round int, nonce, brief, evaluationURL string) *Build {
	return &Build{
		ID:            uuid.New().String(),
		Email:         email,
		Task:          task,
		Round:         round,
		Nonce:         nonce,
		Brief:         brief,
		EvaluationURL: evaluationURL,
		Status:        BuildStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// Key identifies a request across retries from the evaluation server.
func (b *Build) Key() string {
	return BuildKey(b.Email, b.Task, b.Round, b.Nonce)
}

func BuildKey(email, task string, round int, nonce string) string {
	return fmt.Sprintf("%s::%s::round%d::nonce%s", email, task, round, nonce)
}

func (b *Build) UpdateStatus(status BuildStatus) {
	b.Status = status
	b.UpdatedAt = time.Now()
}

func (b *Build) IsRevision() bool {
	return b.Round >= 2
}

// Report is the payload sent back to the evaluation server once a build
// has been published.
type Report struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`
}

func (b *Build) Report() Report {
	return Report{
		Email:     b.Email,
		Task:      b.Task,
		Round:     b.Round,
		Nonce:     b.Nonce,
		RepoURL:   b.RepoURL,
		CommitSHA: b.CommitSHA,
		PagesURL:  b.PagesURL,
	}
}
