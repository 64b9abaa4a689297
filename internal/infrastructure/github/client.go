package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/metrics"
)

// Client is a GitHub REST v3 client covering the handful of calls the
// publish step needs: repos, contents, pages, commits.
type Client struct {
	token   string
	owner   string
	baseURL string
	client  *http.Client
}

func NewClient(token, owner, baseURL string, timeout time.Duration) repository.SitePublisher {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		token:   token,
		owner:   owner,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) EnsureRepo(ctx context.Context, name, description string) (entity.Repo, error) {
	metrics.IncPublishOp("ensure_repo")

	status, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", c.owner, name), nil)
	if err != nil {
		metrics.IncError("github", "get_repo")
		return entity.Repo{}, fmt.Errorf("get repo %s: %w", name, err)
	}
	if status == http.StatusOK {
		return c.decodeRepo(body)
	}
	if status != http.StatusNotFound {
		metrics.IncError("github", fmt.Sprintf("get_repo_%d", status))
		return entity.Repo{}, fmt.Errorf("get repo %s: unexpected status %d - %s", name, status, string(body))
	}

	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"auto_init":   true,
		"private":     false,
	}
	status, body, err = c.do(ctx, http.MethodPost, "/user/repos", payload)
	if err != nil {
		metrics.IncError("github", "create_repo")
		return entity.Repo{}, fmt.Errorf("create repo %s: %w", name, err)
	}
	if status != http.StatusCreated {
		metrics.IncError("github", fmt.Sprintf("create_repo_%d", status))
		return entity.Repo{}, fmt.Errorf("create repo %s: unexpected status %d - %s", name, status, string(body))
	}
	return c.decodeRepo(body)
}

func (c *Client) PutFile(ctx context.Context, repo entity.Repo, path string, content []byte, message string) error {
	metrics.IncPublishOp("put_file")

	// Existing files need their blob sha for an update.
	sha, err := c.fileSHA(ctx, repo, path)
	if err != nil {
		return fmt.Errorf("lookup sha for %s: %w", path, err)
	}

	payload := map[string]interface{}{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  repo.DefaultBranch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	status, body, err := c.do(ctx, http.MethodPut, c.contentsPath(repo, path), payload)
	if err != nil {
		metrics.IncError("github", "put_file")
		return fmt.Errorf("put file %s: %w", path, err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		metrics.IncError("github", fmt.Sprintf("put_file_%d", status))
		return fmt.Errorf("put file %s: unexpected status %d - %s", path, status, string(body))
	}
	return nil
}

func (c *Client) GetFileText(ctx context.Context, repo entity.Repo, path string) (string, error) {
	metrics.IncPublishOp("get_file")

	status, body, err := c.do(ctx, http.MethodGet, c.contentsPath(repo, path), nil)
	if err != nil {
		metrics.IncError("github", "get_file")
		return "", fmt.Errorf("get file %s: %w", path, err)
	}
	if status == http.StatusNotFound {
		return "", repository.ErrFileNotFound
	}
	if status != http.StatusOK {
		metrics.IncError("github", fmt.Sprintf("get_file_%d", status))
		return "", fmt.Errorf("get file %s: unexpected status %d - %s", path, status, string(body))
	}

	var doc struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode contents of %s: %w", path, err)
	}
	if doc.Encoding != "base64" {
		return doc.Content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(doc.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode base64 of %s: %w", path, err)
	}
	return string(raw), nil
}

func (c *Client) EnablePages(ctx context.Context, repo entity.Repo) error {
	metrics.IncPublishOp("enable_pages")

	payload := map[string]interface{}{
		"source": map[string]string{
			"branch": repo.DefaultBranch,
			"path":   "/",
		},
	}
	status, body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pages", repo.Owner, repo.Name), payload)
	if err != nil {
		metrics.IncError("github", "enable_pages")
		return fmt.Errorf("enable pages for %s: %w", repo.Name, err)
	}
	switch status {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// Уже включено — считаем успехом.
		return nil
	default:
		metrics.IncError("github", fmt.Sprintf("enable_pages_%d", status))
		return fmt.Errorf("enable pages for %s: unexpected status %d - %s", repo.Name, status, string(body))
	}
}

func (c *Client) HeadCommitSHA(ctx context.Context, repo entity.Repo) (string, error) {
	metrics.IncPublishOp("head_commit")

	status, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/commits?per_page=1", repo.Owner, repo.Name), nil)
	if err != nil {
		metrics.IncError("github", "head_commit")
		return "", fmt.Errorf("list commits for %s: %w", repo.Name, err)
	}
	if status != http.StatusOK {
		metrics.IncError("github", fmt.Sprintf("head_commit_%d", status))
		return "", fmt.Errorf("list commits for %s: unexpected status %d - %s", repo.Name, status, string(body))
	}

	var commits []struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &commits); err != nil {
		return "", fmt.Errorf("decode commits for %s: %w", repo.Name, err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("repo %s has no commits", repo.Name)
	}
	return commits[0].SHA, nil
}

func (c *Client) PagesURL(task string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.owner, task)
}

func (c *Client) fileSHA(ctx context.Context, repo entity.Repo, path string) (string, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.contentsPath(repo, path), nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d - %s", status, string(body))
	}
	var doc struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", err
	}
	return doc.SHA, nil
}

func (c *Client) contentsPath(repo entity.Repo, path string) string {
	// Escape each segment; the separators themselves must survive.
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s", repo.Owner, repo.Name, strings.Join(segments, "/"))
}

func (c *Client) decodeRepo(body []byte) (entity.Repo, error) {
	var doc struct {
		Name          string `json:"name"`
		HTMLURL       string `json:"html_url"`
		DefaultBranch string `json:"default_branch"`
		Owner         struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return entity.Repo{}, fmt.Errorf("decode repo: %w", err)
	}
	repo := entity.Repo{
		Owner:         doc.Owner.Login,
		Name:          doc.Name,
		HTMLURL:       doc.HTMLURL,
		DefaultBranch: doc.DefaultBranch,
	}
	if repo.Owner == "" {
		repo.Owner = c.owner
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	return repo, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		err := resp.Body.Close()
		if err != nil {
			log.Printf("close body err: %s", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
