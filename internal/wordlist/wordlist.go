package wordlist

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/projectdiscovery/retryablehttp-go"
)

// downloadTimeout bounds a single download attempt.
const downloadTimeout = 2 * time.Minute

var (
	// ErrUnexpectedStatus is returned when the server does not answer 200.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrEmptyWordlist is returned when a wordlist has no content.
	ErrEmptyWordlist = errors.New("wordlist is empty")
)

// Downloader fetches and caches wordlists.
type Downloader struct {
	client   *retryablehttp.Client
	cacheDir string
	logger   *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// WithRetries sets the number of retries after a failed attempt.
func WithRetries(n int) Option {
	return func(d *Downloader) {
		opts := retryablehttp.DefaultOptionsSingle
		opts.RetryMax = n
		opts.Timeout = downloadTimeout
		d.client = retryablehttp.NewClient(opts)
	}
}

// NewDownloader creates a Downloader that caches into cacheDir.
func NewDownloader(cacheDir string, opts ...Option) *Downloader {
	clientOpts := retryablehttp.DefaultOptionsSingle
	clientOpts.Timeout = downloadTimeout
	d := &Downloader{
		client:   retryablehttp.NewClient(clientOpts),
		cacheDir: cacheDir,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CachePath returns where the wordlist at rawURL is cached.
// The file name keeps the URL's base name, prefixed with a hash of the URL
// so that different lists with the same name do not collide.
func (d *Downloader) CachePath(rawURL string) string {
	base := "wordlist.txt"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "" && b != "." && b != "/" {
			base = b
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(rawURL))
	return filepath.Join(d.cacheDir, fmt.Sprintf("%08x-%s", h.Sum32(), base))
}

// Fetch returns the cached copy of rawURL, downloading it first if needed.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (string, error) {
	dest := d.CachePath(rawURL)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		d.logger.Debug("wordlist already cached", "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(d.cacheDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	d.logger.Info("downloading wordlist", "url", rawURL)
	if err := d.download(ctx, rawURL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (d *Downloader) download(ctx context.Context, rawURL, dest string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create wordlist request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download wordlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, rawURL)
	}

	// Write to a temporary file first so an interrupted download never
	// leaves a truncated wordlist in the cache.
	tmp, err := os.CreateTemp(d.cacheDir, ".wordlist-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best effort cleanup after rename

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write wordlist: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyWordlist, rawURL)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to store wordlist: %w", err)
	}
	d.logger.Debug("wordlist downloaded", "path", dest, "bytes", n)
	return nil
}

// CheckLocal verifies that a user supplied wordlist exists and is not empty.
func CheckLocal(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("wordlist %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("wordlist %s is a directory", p)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyWordlist, p)
	}
	return nil
}
