package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/gocolly/colly/v2"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: KindTimeout},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: KindTimeout},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: KindConnection},
		{name: "forbidden", statusCode: http.StatusForbidden, expected: KindForbidden},
		{name: "not found", statusCode: http.StatusNotFound, expected: KindNotFound},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, expected: KindRateLimited},
		{name: "other status", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: KindHTTPStatus},
		{name: "success status without body", statusCode: http.StatusAccepted, expected: KindHTTPStatus},
		{name: "already visited", err: fmt.Errorf("visit: %w", colly.ErrAlreadyVisited), expected: KindAlreadyVisited},
		{name: "forbidden domain", err: colly.ErrForbiddenDomain, expected: KindForbiddenDomain},
		{name: "other", err: errors.New("some other error"), expected: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError("http://shop.test/", tt.err, tt.statusCode)
			var err error
			if classified != nil {
				err = classified
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestFetchErrorMessage(t *testing.T) {
	withStatus := classifyError("http://shop.test/sol/", nil, http.StatusNotFound)
	if msg := withStatus.Error(); !strings.Contains(msg, "not_found") || !strings.Contains(msg, "404") {
		t.Fatalf("unexpected message %q", msg)
	}

	cause := errors.New("connection reset")
	wrapped := classifyError("http://shop.test/sol/", cause, 0)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("fetch error should unwrap to its cause")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.IncRequest(PhasePage)
	m.IncRecords()
	m.IncImage(ImageSaved)
	m.IncError(KindOther)
	m.ObservePageFetch(0)
}
