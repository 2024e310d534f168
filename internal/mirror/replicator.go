package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Job identifies a stored file to replicate.
type Job struct {
	FilePath string
	FileName string
	Category string
}

// Replicator copies a stored file to a secondary location.
type Replicator interface {
	Replicate(ctx context.Context, job Job) error
}

// Noop is used when mirroring is disabled.
type Noop struct{}

func (Noop) Replicate(context.Context, Job) error { return nil }

// HTTPReplicator uploads files with PUT <base>/<category>/<file>.
type HTTPReplicator struct {
	base   *url.URL
	token  string
	client *http.Client
}

// NewHTTPReplicator validates baseURL and builds a replicator. A nil client
// defaults to one with the given timeout.
func NewHTTPReplicator(baseURL, token string, timeout time.Duration, client *http.Client) (*HTTPReplicator, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse mirror url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("mirror url must be http or https, got %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPReplicator{base: u, token: token, client: client}, nil
}

func (r *HTTPReplicator) Replicate(ctx context.Context, job Job) error {
	f, err := os.Open(job.FilePath)
	if err != nil {
		// the file is gone; retrying will not bring it back
		return backoff.Permanent(fmt.Errorf("open %s: %w", job.FilePath, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return backoff.Permanent(fmt.Errorf("stat %s: %w", job.FilePath, err))
	}

	target := r.base.JoinPath(job.Category, job.FileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), f)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType(job.FileName))
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := fmt.Errorf("put %s: unexpected status %d", target, resp.StatusCode)
	if retryableStatus(resp.StatusCode) {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// DirReplicator copies files into a second directory tree, typically a
// mounted network share.
type DirReplicator struct {
	root string
}

func NewDirReplicator(root string) *DirReplicator {
	return &DirReplicator{root: root}
}

func (r *DirReplicator) Replicate(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}
	src, err := os.Open(job.FilePath)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("open %s: %w", job.FilePath, err))
	}
	defer src.Close()

	dir := filepath.Join(r.root, job.Category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".mirror-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s: %w", job.FileName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, job.FileName)); err != nil {
		return fmt.Errorf("rename into %s: %w", dir, err)
	}
	return nil
}
