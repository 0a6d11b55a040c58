package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gocolly/colly/v2"
)

// Failure kinds used in logs and the scraper_errors_total metric.
const (
	KindTimeout         = "timeout"
	KindConnection      = "connection"
	KindForbidden       = "forbidden"
	KindNotFound        = "not_found"
	KindRateLimited     = "rate_limited"
	KindHTTPStatus      = "http_status"
	KindAlreadyVisited  = "already_visited"
	KindForbiddenDomain = "forbidden_domain"
	KindOther           = "other"
)

// FetchError describes a request that produced no usable body.
type FetchError struct {
	Kind       string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return KindOther
}

func classifyError(url string, err error, statusCode int) *FetchError {
	if err == nil && statusCode == 0 {
		return nil
	}

	kind := KindOther
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, colly.ErrAlreadyVisited):
		kind = KindAlreadyVisited
	case errors.Is(err, colly.ErrForbiddenDomain):
		kind = KindForbiddenDomain
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &opErr):
		kind = KindConnection
	case statusCode == http.StatusForbidden:
		kind = KindForbidden
	case statusCode == http.StatusNotFound:
		kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case statusCode != 0 && statusCode != http.StatusOK:
		kind = KindHTTPStatus
	}

	return &FetchError{Kind: kind, URL: url, StatusCode: statusCode, Err: err}
}
