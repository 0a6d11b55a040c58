package images

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/jarcoal/httpmock"
)

func newTestDownloader(t *testing.T) (*Downloader, *httpmock.MockTransport, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images")
	d, err := NewDownloader(dir, Options{UserAgent: "test-agent", CacheSize: 8})
	if err != nil {
		t.Fatalf("new downloader: %v", err)
	}

	transport := httpmock.NewMockTransport()
	d.WithTransport(transport)
	return d, transport, dir
}

func TestDownloadWritesStemJPG(t *testing.T) {
	d, transport, dir := newTestDownloader(t)
	payload := bytes.Repeat([]byte{0xff, 0xd8, 0x01}, ChunkSize)
	transport.RegisterResponder("GET", "https://cdn.test/media/catalog/sun-50.png",
		httpmock.NewBytesResponder(http.StatusOK, payload))

	target, err := d.Download(context.Background(), "https://cdn.test/media/catalog/sun-50.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if want := filepath.Join(dir, "sun-50.jpg"); target != want {
		t.Fatalf("target = %q, want %q", target, want)
	}

	written, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !bytes.Equal(written, payload) {
		t.Fatalf("written %d bytes, want the %d byte payload", len(written), len(payload))
	}
}

func TestDownloadNon200Skips(t *testing.T) {
	d, transport, dir := newTestDownloader(t)
	transport.RegisterResponder("GET", "https://cdn.test/missing.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "not here"))

	_, err := d.Download(context.Background(), "https://cdn.test/missing.jpg")
	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
	if skip.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", skip.StatusCode)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}

func TestDownloadTransportFailureSkips(t *testing.T) {
	d, transport, _ := newTestDownloader(t)
	transport.RegisterResponder("GET", "https://cdn.test/reset.jpg",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := d.Download(context.Background(), "https://cdn.test/reset.jpg")
	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
	if skip.StatusCode != 0 {
		t.Fatalf("status = %d, want none", skip.StatusCode)
	}
}

func TestDownloadReadFailureRemovesPartialFile(t *testing.T) {
	d, transport, dir := newTestDownloader(t)
	transport.RegisterResponder("GET", "https://cdn.test/broken.jpg",
		func(req *http.Request) (*http.Response, error) {
			body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("stream cut")))
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       io.NopCloser(body),
				Request:    req,
			}, nil
		})

	_, err := d.Download(context.Background(), "https://cdn.test/broken.jpg")
	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
	if skip.URL != "https://cdn.test/broken.jpg" {
		t.Fatalf("skip url = %q", skip.URL)
	}

	if _, err := os.Stat(filepath.Join(dir, "broken.jpg")); !os.IsNotExist(err) {
		t.Fatalf("partial file should be removed, stat err = %v", err)
	}
}

func TestDownloadSkipsRepeatedURL(t *testing.T) {
	d, transport, _ := newTestDownloader(t)
	transport.RegisterResponder("GET", "https://cdn.test/a.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("img")))

	first, err := d.Download(context.Background(), "https://cdn.test/a.jpg")
	if err != nil {
		t.Fatalf("first download: %v", err)
	}
	second, err := d.Download(context.Background(), "https://cdn.test/a.jpg")
	if err != nil {
		t.Fatalf("second download: %v", err)
	}

	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
}

func TestDownloadFilesystemErrorIsFatal(t *testing.T) {
	d, transport, dir := newTestDownloader(t)
	transport.RegisterResponder("GET", "https://cdn.test/a.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("img")))
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	_, err := d.Download(context.Background(), "https://cdn.test/a.jpg")
	if err == nil {
		t.Fatalf("expected filesystem error")
	}
	var skip *SkipError
	if errors.As(err, &skip) {
		t.Fatalf("filesystem error reported as skip: %v", err)
	}
}

func TestDownloadUnusableNameSkipsWithoutRequest(t *testing.T) {
	d, transport, _ := newTestDownloader(t)

	_, err := d.Download(context.Background(), "https://cdn.test/")
	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("requests = %d, want 0", got)
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "png", input: "https://cdn.test/media/x/sun-50.png", want: "sun-50"},
		{name: "query ignored", input: "https://cdn.test/media/sun.jpg?width=300", want: "sun"},
		{name: "no extension", input: "https://cdn.test/media/sun", want: "sun"},
		{name: "double extension", input: "https://cdn.test/a.tar.gz", want: "a.tar"},
		{name: "dotfile", input: "https://cdn.test/.jpg", want: ".jpg"},
		{name: "root", input: "https://cdn.test/", wantErr: true},
		{name: "empty path", input: "https://cdn.test", wantErr: true},
		{name: "dot dot", input: "https://cdn.test/a/..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileStem(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FileStem(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FileStem(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("FileStem(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
