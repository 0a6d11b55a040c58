package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/images"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Reasons a crawl stops.
const (
	StopExhausted   = "exhausted"
	StopFetchFailed = "fetch_failed"
	StopMaxPages    = "max_pages"
	StopCanceled    = "canceled"
)

// Scraper follows a category's next-page chain one page at a time. A
// Scraper remembers visited URLs, so each instance is meant for one Run.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	images    *images.Downloader
	parser    *parser.Parser
	Metrics   *Metrics
	onEvent   EventFunc

	// Set by collector callbacks during a synchronous Visit.
	page       *fetchedPage
	lastStatus int

	requestCount  int
	errorCount    int
	errorsByType  map[string]int
	imagesSaved   int
	imagesSkipped int

	handlersOnce sync.Once
}

type fetchedPage struct {
	url    *url.URL
	status int
	body   []byte
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	options := []colly.CollectorOption{colly.UserAgent(cfg.UserAgent)}
	if cfg.SameHostOnly {
		options = append(options, colly.AllowedDomains(parsed.Hostname()))
	}
	collector := colly.NewCollector(options...)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.Timeout,
	})
	collector.SetRequestTimeout(cfg.Timeout)

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		Metrics:      NewMetrics(),
		onEvent:      LogEvent,
		errorsByType: make(map[string]int),
	}

	if cfg.DownloadImages {
		downloader, err := images.NewDownloader(cfg.ImagesDir, images.Options{
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
			CacheSize: cfg.ImageCacheSize,
		})
		if err != nil {
			return nil, err
		}
		s.images = downloader
		s.parser = parser.New(cfg.Selectors, imageSink{s: s})
	} else {
		s.parser = parser.New(cfg.Selectors, nil)
	}

	return s, nil
}

// WithTransport routes page and image requests through rt.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
	if s.images != nil {
		s.images.WithTransport(rt)
	}
}

// OnEvent replaces the event sink. A nil fn silences events.
func (s *Scraper) OnEvent(fn EventFunc) {
	if fn == nil {
		fn = func(Event) {}
	}
	s.onEvent = fn
}

// Run crawls from the base URL until the next-page chain ends, a page
// cannot be fetched, MaxPages is reached or ctx is cancelled. Only
// filesystem failures are returned as errors.
func (s *Scraper) Run(ctx context.Context) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.configureHandlers()

	start := time.Now()
	var state models.CrawlState
	reason := StopExhausted

	next := s.cfg.BaseURL
	for next != "" {
		if ctx.Err() != nil {
			reason = StopCanceled
			break
		}
		if s.cfg.MaxPages > 0 && state.Pages >= s.cfg.MaxPages {
			reason = StopMaxPages
			break
		}

		pageNum := state.Pages + 1
		page, err := s.fetchPage(next)
		if err != nil {
			s.recordError(err)
			s.emit(Event{Kind: EventPageFailed, URL: next, Page: pageNum, Err: err})
			reason = StopFetchFailed
			break
		}
		s.emit(Event{Kind: EventPageFetched, URL: next, Page: pageNum})

		result, err := s.parser.ParsePage(ctx, page.body, page.url)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", next, err)
		}
		state.Pages++

		for i, record := range result.Records {
			global := state.Append(record)
			s.Metrics.IncRecords()
			s.emit(Event{Kind: EventItemParsed, URL: next, Page: pageNum, Index: i, Global: global})
		}
		next = result.NextURL
	}

	s.emit(Event{Kind: EventCrawlDone, Page: state.Pages, Global: state.Counter, Reason: reason})

	return &models.CrawlResult{
		State:         state,
		StartTime:     start,
		EndTime:       time.Now(),
		StopReason:    reason,
		RequestCount:  s.requestCount,
		ErrorCount:    s.errorCount,
		ErrorsByType:  s.snapshotErrors(),
		ImagesSaved:   s.imagesSaved,
		ImagesSkipped: s.imagesSkipped,
	}, nil
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			s.requestCount++
			s.Metrics.IncRequest(PhasePage)
			slog.Debug("requesting page", slog.String("url", r.URL.String()))
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObservePageFetch(time.Since(start))
			}
			s.lastStatus = r.StatusCode
			s.page = &fetchedPage{
				url:    r.Request.URL,
				status: r.StatusCode,
				body:   r.Body,
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			if r == nil {
				return
			}
			if r.Ctx != nil {
				if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
					s.Metrics.ObservePageFetch(time.Since(start))
				}
			}
			s.lastStatus = r.StatusCode
		})
	})
}

func (s *Scraper) fetchPage(rawURL string) (*fetchedPage, error) {
	s.page = nil
	s.lastStatus = 0

	if err := s.collector.Visit(rawURL); err != nil {
		return nil, classifyError(rawURL, err, s.lastStatus)
	}
	if s.page == nil {
		return nil, classifyError(rawURL, errors.New("no response received"), s.lastStatus)
	}
	if s.page.status != http.StatusOK {
		return nil, classifyError(rawURL, nil, s.page.status)
	}
	return s.page, nil
}

func (s *Scraper) recordError(err error) {
	category := errorTypeLabel(err)
	s.errorCount++
	s.errorsByType[category]++
	s.Metrics.IncError(category)
}

func (s *Scraper) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *Scraper) snapshotErrors() map[string]int {
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// imageSink downloads pictures as the parser finds them. Skipped images
// are reported and the crawl continues; filesystem errors are returned.
type imageSink struct {
	s *Scraper
}

func (is imageSink) Save(ctx context.Context, imageURL string) error {
	s := is.s
	s.Metrics.IncRequest(PhaseImage)

	target, err := s.images.Download(ctx, imageURL)
	var skip *images.SkipError
	if errors.As(err, &skip) {
		fetchErr := classifyError(skip.URL, skip.Err, skip.StatusCode)
		s.recordError(fetchErr)
		s.imagesSkipped++
		s.Metrics.IncImage(ImageSkipped)
		s.emit(Event{Kind: EventImageSkipped, URL: imageURL, Err: fetchErr})
		return nil
	}
	if err != nil {
		return err
	}

	s.imagesSaved++
	s.Metrics.IncImage(ImageSaved)
	s.emit(Event{Kind: EventImageSaved, URL: imageURL, Path: target})
	return nil
}
