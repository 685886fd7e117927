// Package downloader saves product images to disk with a small worker pool.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// maxFileSize caps a single download
const maxFileSize = 50 << 20

// ErrTooLarge is returned for files bigger than the download cap
var ErrTooLarge = errors.New("file exceeds size limit")

// Job is one file to fetch. An empty Filename is derived from the URL.
type Job struct {
	URL      string
	Filename string
}

// Result represents the result of a download operation
type Result struct {
	URL      string
	FilePath string
	Size     int64
	Err      error
	Duration time.Duration
}

// OK reports whether the file was saved
func (r *Result) OK() bool {
	return r.Err == nil
}

// Options configures where and how files are written
type Options struct {
	OutputDir string
	Headers   map[string]string
}

// Downloader streams files to disk through the shared rate limiter
type Downloader struct {
	client    *http.Client
	limiter   ratelimit.RateLimiter
	userAgent string
	maxSize   int64
}

// New creates a Downloader. client and lim may be nil.
func New(client *http.Client, lim ratelimit.RateLimiter, userAgent string) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if lim == nil {
		lim = ratelimit.Unlimited{}
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &Downloader{client: client, limiter: lim, userAgent: userAgent, maxSize: maxFileSize}
}

// Download fetches job.URL into opts.OutputDir. The file is written under a
// temporary name and renamed once complete, so a failed download leaves
// nothing behind.
func (d *Downloader) Download(ctx context.Context, job Job, opts Options) *Result {
	start := time.Now()
	res := &Result{URL: job.URL}
	res.FilePath, res.Size, res.Err = d.download(ctx, job, opts)
	res.Duration = time.Since(start)

	if res.Err != nil {
		log.Debug().Err(res.Err).Str("url", job.URL).Msg("Download failed")
		return res
	}
	log.Debug().
		Str("url", job.URL).
		Str("file", res.FilePath).
		Int64("bytes", res.Size).
		Dur("duration", res.Duration).
		Msg("Download completed")
	return res
}

func (d *Downloader) download(ctx context.Context, job Job, opts Options) (string, int64, error) {
	u, err := url.Parse(job.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", 0, fmt.Errorf("invalid URL %q", job.URL)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := d.limiter.Wait(ctx, job.URL); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("bad status: %s", resp.Status)
	}
	if resp.ContentLength > d.maxSize {
		return "", 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	name := job.Filename
	if name == "" {
		name = filenameFromURL(u)
	}
	name = withExtension(sanitizeFilename(name), resp.Header.Get("Content-Type"))
	target := filepath.Join(opts.OutputDir, name)

	tmp, err := os.CreateTemp(opts.OutputDir, ".part-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	// One byte past the cap tells a full file from a truncated one
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, d.maxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > d.maxSize {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxSize)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return target, n, nil
}

// filenameFromURL uses the last path segment, adding a short hash of the
// query so CDN variants of the same path do not collide.
func filenameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}
	if u.RawQuery == "" {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + shortHash(u.RawQuery) + ext
}

// sanitizeFilename prevents path traversal attacks
func sanitizeFilename(input string) string {
	input = strings.NewReplacer(
		"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	).Replace(input)
	input = strings.Trim(strings.TrimSpace(input), ".")

	if input == "" {
		input = "download_" + shortHash(time.Now().String())
	}
	if len(input) > 200 {
		input = input[:200]
	}
	return input
}

// withExtension adds an extension from the content type when the name has none
func withExtension(name, contentType string) string {
	if filepath.Ext(name) != "" || contentType == "" {
		return name
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return name
	}
	switch mediaType {
	case "image/jpeg":
		return name + ".jpg"
	case "image/webp":
		return name + ".webp"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return name + exts[0]
	}
	return name
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
