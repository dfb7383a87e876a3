package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxParallel = 4
	defaultMaxAttempts = 3
	defaultTimeout     = 5 * time.Minute
	initialBackoff     = 2 * time.Second
)

// Config controls the fetcher.
type Config struct {
	// BaseURL is the release listing root the filenames resolve under.
	BaseURL string

	// Dir is the local destination directory.
	Dir string

	// MaxParallel bounds concurrent downloads. Files are independent,
	// so parallel fetches are safe.
	MaxParallel int

	// MaxAttempts is the per-file retry budget.
	MaxAttempts int

	// Timeout bounds one attempt for one file.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = defaultMaxParallel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Result reports the outcome of fetching one file.
type Result struct {
	Name     string
	Path     string
	Attempts int
	Err      error
}

// Client fetches release files over HTTP with bounded parallelism and
// exponential-backoff retries. A file exhausting its attempts is marked
// failed; the remaining files still fetch.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger

	// backoff is overridable for tests.
	backoff func(attempt int) time.Duration
}

// NewClient builds a fetcher. A nil logger is replaced with a no-op one.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
		backoff: func(attempt int) time.Duration {
			return initialBackoff << (attempt - 1)
		},
	}
}

// FetchAll downloads the named files into the destination directory.
// The returned results are in input order. The error is non-nil only
// when the context is cancelled or the destination is unusable.
func (c *Client) FetchAll(ctx context.Context, names []string) ([]Result, error) {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	results := make([]Result, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.cfg.MaxParallel)

	for i, name := range names {
		group.Go(func() error {
			results[i] = c.fetch(groupCtx, name)
			if results[i].Err != nil && groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// fetch downloads one file, retrying transient failures with
// exponential backoff up to the attempt budget.
func (c *Client) fetch(ctx context.Context, name string) Result {
	result := Result{Name: name, Path: filepath.Join(c.cfg.Dir, name)}

	fileURL, err := url.JoinPath(c.cfg.BaseURL, name)
	if err != nil {
		result.Err = fmt.Errorf("bad file url for %s: %w", name, err)
		return result
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt
		err := c.fetchOnce(ctx, fileURL, result.Path)
		if err == nil {
			result.Err = nil
			c.log.Info("downloaded file", zap.String("file", name), zap.Int("attempts", attempt))
			return result
		}
		result.Err = err
		if ctx.Err() != nil {
			return result
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}
		wait := c.backoff(attempt)
		c.log.Warn("download failed, backing off",
			zap.String("file", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		}
	}
	c.log.Error("download exhausted attempts", zap.String("file", name), zap.Error(result.Err))
	return result
}

func (c *Client) fetchOnce(ctx context.Context, fileURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	// Write via a temp file so a torn download never masquerades as a
	// complete one.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
