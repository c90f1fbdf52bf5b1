// Package github fetches remote repositories so they can be indexed like
// local ones, and searches the GitHub repository catalog.
package github

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/codenav/codenav/pkg/types"
)

const (
	apiBaseURL     = "https://api.github.com"
	codeloadFormat = "https://codeload.github.com/%s/%s/zip/refs/heads/%s"

	// maxArchiveFileSize guards against zip bombs when extracting.
	maxArchiveFileSize = 50 << 20 // 50 MiB per file
)

// Method selects how a repository is fetched.
type Method string

const (
	MethodZip   Method = "zip"
	MethodClone Method = "clone"
)

// RepoRef identifies a GitHub repository.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// SearchResult is one repository from a catalog search.
type SearchResult struct {
	FullName    string
	Description string
	Stars       int
	Language    string
	HTMLURL     string
}

// SearchOptions narrow a repository search.
type SearchOptions struct {
	Language string
	MinStars int
	Limit    int
}

// Client talks to GitHub. An empty token works for public repositories
// at a lower rate limit.
type Client struct {
	token       string
	apiURL      string
	codeloadURL string // format string: owner, repo, branch
	httpClient  *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and archive endpoints, mainly for tests.
func WithBaseURLs(api, codeload string) Option {
	return func(c *Client) {
		c.apiURL = api
		c.codeloadURL = codeload
	}
}

// NewClient creates a GitHub client.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		apiURL:      apiBaseURL,
		codeloadURL: codeloadFormat,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseRepoURL extracts owner and name from a GitHub repository URL or a
// bare "owner/name" form.
func ParseRepoURL(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ".git")

	// Bare owner/name shorthand.
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "git@") {
		parts := strings.Split(strings.Trim(raw, "/"), "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return RepoRef{Owner: parts[0], Name: parts[1]}, nil
		}
		return RepoRef{}, fmt.Errorf("invalid repository reference %q", raw)
	}

	// SSH form: git@github.com:owner/name
	if after, ok := strings.CutPrefix(raw, "git@github.com:"); ok {
		return ParseRepoURL(after)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, fmt.Errorf("invalid repository URL %q: %v", raw, err)
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return RepoRef{}, fmt.Errorf("unsupported host %q, only github.com is supported", u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("repository URL %q is missing owner/name", raw)
	}
	return RepoRef{Owner: parts[0], Name: parts[1]}, nil
}

// Fetch downloads a repository into destDir using the given method and
// returns the directory holding its working tree.
func (c *Client) Fetch(ctx context.Context, ref RepoRef, destDir string, method Method) (string, error) {
	switch method {
	case MethodZip, "":
		return c.fetchZip(ctx, ref, destDir)
	case MethodClone:
		return c.clone(ctx, ref, destDir)
	default:
		return "", fmt.Errorf("unsupported fetch method %q", method)
	}
}

// fetchZip downloads the default-branch archive, trying main and falling
// back to master.
func (c *Client) fetchZip(ctx context.Context, ref RepoRef, destDir string) (string, error) {
	var lastErr error
	for _, branch := range []string{"main", "master"} {
		archive, err := c.downloadArchive(ctx, ref, branch)
		if err != nil {
			lastErr = err
			continue
		}
		dir := filepath.Join(destDir, ref.Name)
		if err := extractZip(archive, dir); err != nil {
			return "", fmt.Errorf("extracting %s: %w", ref, err)
		}
		return dir, nil
	}
	return "", fmt.Errorf("downloading %s: %w", ref, lastErr)
}

func (c *Client) downloadArchive(ctx context.Context, ref RepoRef, branch string) ([]byte, error) {
	archiveURL := fmt.Sprintf(c.codeloadURL, ref.Owner, ref.Name, branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: github: %v", types.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("branch %s not found", branch)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// extractZip unpacks an archive, stripping the top-level directory GitHub
// wraps around the tree.
func extractZip(archive []byte, destDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("invalid archive: %w", err)
	}

	for _, f := range reader.File {
		parts := strings.SplitN(f.Name, "/", 2)
		if len(parts) < 2 || parts[1] == "" {
			continue // the wrapper directory itself
		}
		rel := parts[1]

		target := filepath.Join(destDir, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if f.UncompressedSize64 > maxArchiveFileSize {
			return fmt.Errorf("archive entry %q exceeds size limit", f.Name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			_ = src.Close()
			return err
		}
		_, err = io.Copy(dst, io.LimitReader(src, maxArchiveFileSize))
		_ = src.Close()
		_ = dst.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// clone runs git clone with depth 1. The git binary must be on PATH.
func (c *Client) clone(ctx context.Context, ref RepoRef, destDir string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", fmt.Errorf("git binary not found: %w", err)
	}

	dir := filepath.Join(destDir, ref.Name)
	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", ref.Owner, ref.Name)
	if c.token != "" {
		cloneURL = fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", c.token, ref.Owner, ref.Name)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", cloneURL, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git clone %s: %v: %s", ref, err, strings.TrimSpace(string(out)))
	}
	return dir, nil
}

// SearchRepositories queries the repository catalog. The query may be
// empty when options narrow the search enough.
func (c *Client) SearchRepositories(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	qualifiers := []string{query}
	if opts.Language != "" {
		qualifiers = append(qualifiers, "language:"+opts.Language)
	}
	if opts.MinStars > 0 {
		qualifiers = append(qualifiers, fmt.Sprintf("stars:>=%d", opts.MinStars))
	}
	q := strings.TrimSpace(strings.Join(qualifiers, " "))
	if q == "" {
		return nil, fmt.Errorf("%w: empty search query", types.ErrEmptyContent)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	searchURL := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&order=desc&per_page=%d",
		c.apiURL, url.QueryEscape(q), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: github: %v", types.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: github search error %d: %s",
			types.ErrProviderUnavailable, resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Items []struct {
			FullName    string `json:"full_name"`
			Description string `json:"description"`
			Stars       int    `json:"stargazers_count"`
			Language    string `json:"language"`
			HTMLURL     string `json:"html_url"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(apiResp.Items))
	for _, item := range apiResp.Items {
		results = append(results, SearchResult{
			FullName:    item.FullName,
			Description: item.Description,
			Stars:       item.Stars,
			Language:    item.Language,
			HTMLURL:     item.HTMLURL,
		})
	}
	return results, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
