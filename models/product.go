// Package models defines data structures for the scraper.
package models

import "time"

// ZeroPrice stands in for a price the listing did not show.
const ZeroPrice = "0"

// ProductRecord is one listing item as scraped. Price fields hold the raw
// text and default to ZeroPrice; identity fields are nil when the markup
// was missing.
type ProductRecord struct {
	Title             *string `json:"title"`
	Link              *string `json:"link"`
	OldPrice          string  `json:"old_price"`
	SpecialPrice      string  `json:"special_price"`
	AfterSpecialPrice string  `json:"after_special_price"`
	DiscountPrice     string  `json:"discount_price"`
	PictureImage      *string `json:"picture_image"`
}

// PageResult holds the records of one listing page and the resolved
// next-page URL, empty when pagination ends there.
type PageResult struct {
	Records []*ProductRecord
	NextURL string
}

// CrawlState accumulates records across pages in page-then-item order.
type CrawlState struct {
	Records []*ProductRecord
	Counter int
	Pages   int
}

// Append adds rec and returns the updated global item counter.
func (s *CrawlState) Append(rec *ProductRecord) int {
	s.Records = append(s.Records, rec)
	s.Counter++
	return s.Counter
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	State         CrawlState
	StartTime     time.Time
	EndTime       time.Time
	StopReason    string
	RequestCount  int
	ErrorCount    int
	ErrorsByType  map[string]int
	ImagesSaved   int
	ImagesSkipped int
}
