// Package images stores product pictures on local disk.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ChunkSize bounds how much of an image body is held in memory at once.
const ChunkSize = 32 * 1024

// SkipError reports an image that was not saved for a reason that must not
// stop the crawl: a non-200 status, a transport failure, or a URL with no
// usable file name.
type SkipError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *SkipError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("image %s not saved: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("image %s not saved: %v", e.URL, e.Err)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// Options tune a Downloader.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	CacheSize int
}

// Downloader fetches images sequentially and writes them as <stem>.jpg.
type Downloader struct {
	dir    string
	client *resty.Client
	saved  *lru.Cache[string, string]
}

// NewDownloader creates dir if needed and returns a downloader writing into it.
func NewDownloader(dir string, opts Options) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images directory %q: %w", dir, err)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	saved, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Downloader{
		dir:    dir,
		client: client,
		saved:  saved,
	}, nil
}

// WithTransport replaces the HTTP transport used for downloads.
func (d *Downloader) WithTransport(rt http.RoundTripper) {
	d.client.SetTransport(rt)
}

// Download stores imageURL and returns the written path. Errors of type
// *SkipError leave no file behind; any other error comes from the
// filesystem.
func (d *Downloader) Download(ctx context.Context, imageURL string) (string, error) {
	if target, ok := d.saved.Get(imageURL); ok {
		return target, nil
	}

	stem, err := FileStem(imageURL)
	if err != nil {
		return "", &SkipError{URL: imageURL, Err: err}
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return "", &SkipError{URL: imageURL, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", &SkipError{URL: imageURL, StatusCode: resp.StatusCode()}
	}

	target := filepath.Join(d.dir, stem+".jpg")
	if err := writeChunks(target, imageURL, body); err != nil {
		return "", err
	}

	d.saved.Add(imageURL, target)
	return target, nil
}

func writeChunks(target, imageURL string, body io.Reader) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}

	buf := make([]byte, ChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				return fmt.Errorf("write image file: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(target)
			return &SkipError{URL: imageURL, Err: fmt.Errorf("read image body: %w", readErr)}
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close image file: %w", err)
	}
	return nil
}

// FileStem returns the last path segment of rawURL without its extension.
func FileStem(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}

	base := path.Base(parsed.Path)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = base
	}
	switch stem {
	case "", ".", "..", "/":
		return "", fmt.Errorf("image url %q has no file name", rawURL)
	}
	return stem, nil
}
