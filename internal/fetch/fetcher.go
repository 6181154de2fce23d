// Package fetch retrieves upstream source artifacts with bounded retries and
// records a content checksum for every successful fetch.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/boundaries-lt/boundaries/internal/checksum"
	berrors "github.com/boundaries-lt/boundaries/internal/errors"
)

// Options holds fetcher tuning knobs.
type Options struct {
	// Retries is the number of additional attempts after the first failure.
	Retries int

	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration

	// Timeout bounds each individual request, not the run as a whole.
	Timeout time.Duration

	// MaxRedirects bounds redirect following per request.
	MaxRedirects int
}

// DefaultOptions returns the default fetch options.
func DefaultOptions() Options {
	return Options{
		Retries:      4,
		RetryDelay:   5 * time.Second,
		Timeout:      2 * time.Minute,
		MaxRedirects: 10,
	}
}

// Artifact describes one successfully fetched source artifact.
type Artifact struct {
	// Name is the staging-relative artifact name recorded in the ledger.
	Name string

	// Path is the absolute path of the staged file.
	Path string

	// Digest is the hex-encoded SHA-256 of the artifact content.
	Digest string
}

// Fetcher downloads source artifacts into a staging directory. Every
// successful fetch appends its (digest, name) pair to the checksum ledger in
// call order.
type Fetcher struct {
	client     *http.Client
	opts       Options
	stagingDir string
	ledger     *checksum.Ledger
}

// NewFetcher creates a fetcher staging into stagingDir and reporting to ledger.
func NewFetcher(stagingDir string, ledger *checksum.Ledger, opts Options) *Fetcher {
	client := &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", opts.MaxRedirects)
			}
			return nil
		},
	}
	return &Fetcher{
		client:     client,
		opts:       opts,
		stagingDir: stagingDir,
		ledger:     ledger,
	}
}

// Fetch downloads url into the staging directory under name, records the
// artifact in the ledger and returns it.
func (f *Fetcher) Fetch(ctx context.Context, url, name string) (*Artifact, error) {
	art, err := f.FetchNoRecord(ctx, url, name)
	if err != nil {
		return nil, err
	}
	f.Record(art)
	return art, nil
}

// Record appends an already fetched artifact to the checksum ledger.
// Callers that download in parallel use FetchNoRecord and then Record in a
// deterministic order so the manifest stays reproducible.
func (f *Fetcher) Record(a *Artifact) {
	f.ledger.Append(a.Digest, a.Name)
}

// FetchNoRecord downloads url into the staging directory under name and
// returns the staged artifact with its content digest, without touching the
// ledger. Transient failures (network errors, HTTP 5xx, exhausted redirects)
// are retried with a fixed delay; client errors fail immediately. All
// failures surface as SourceUnavailable. The staged file is written to a
// temp path and renamed only on success, so a prior artifact of the same
// name is never partially overwritten.
func (f *Fetcher) FetchNoRecord(ctx context.Context, url, name string) (*Artifact, error) {
	destPath := filepath.Join(f.stagingDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, berrors.NewInternalError("create staging directory", err)
	}

	var lastErr error
	attempts := f.opts.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Printf("fetch: retrying %s (attempt %d/%d): %v", name, attempt+1, attempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, berrors.NewSourceUnavailable(name, ctx.Err())
			case <-time.After(f.opts.RetryDelay):
			}
		}

		digest, permanent, err := f.attempt(ctx, url, destPath)
		if err == nil {
			return &Artifact{Name: name, Path: destPath, Digest: digest}, nil
		}
		lastErr = err
		if permanent {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, berrors.NewSourceUnavailable(name, lastErr)
}

// attempt performs one download attempt. The second return value reports a
// permanent failure that must not be retried.
func (f *Fetcher) attempt(ctx context.Context, url, destPath string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", true, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", false, fmt.Errorf("server error: %s", resp.Status)
	case resp.StatusCode >= 400:
		return "", true, fmt.Errorf("client error: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*")
	if err != nil {
		return "", true, err
	}
	tmpPath := tmp.Name()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", true, err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", true, err
	}

	return hex.EncodeToString(hash.Sum(nil)), false, nil
}
