package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ImageSink receives the absolute URL of every product picture found.
type ImageSink interface {
	Save(ctx context.Context, imageURL string) error
}

// Parser turns listing pages into product records.
type Parser struct {
	sel    config.Selectors
	images ImageSink
}

// New returns a parser using sel. images may be nil, in which case picture
// URLs are recorded but never downloaded.
func New(sel config.Selectors, images ImageSink) *Parser {
	return &Parser{sel: sel, images: images}
}

// NewDocument parses body as UTF-8, replacing invalid byte sequences with
// U+FFFD instead of failing.
func NewDocument(body []byte) (*goquery.Document, error) {
	reader := transform.NewReader(bytes.NewReader(body), unicode.UTF8.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParsePage extracts one record per item node in document order. A page
// without the listing container yields no records and no next page.
// pageURL resolves relative image and next-page links; it may be nil.
func (p *Parser) ParsePage(ctx context.Context, body []byte, pageURL *url.URL) (*models.PageResult, error) {
	doc, err := NewDocument(body)
	if err != nil {
		return nil, err
	}

	result := &models.PageResult{}
	listing := doc.Find(p.sel.Listing).First()
	if listing.Length() == 0 {
		return result, nil
	}

	items := listing.Find(p.sel.Item)
	result.Records = make([]*models.ProductRecord, 0, items.Length())
	for i := range items.Nodes {
		record, err := p.ParseItem(ctx, items.Eq(i), pageURL)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		result.Records = append(result.Records, record)
	}

	result.NextURL = p.NextPage(doc.Selection, pageURL)
	return result, nil
}

// ParseItem assembles the record for a single item node.
func (p *Parser) ParseItem(ctx context.Context, item *goquery.Selection, pageURL *url.URL) (*models.ProductRecord, error) {
	record := &models.ProductRecord{
		OldPrice:          orZero(p.OldPrice(item)),
		SpecialPrice:      orZero(p.SpecialPrice(item)),
		AfterSpecialPrice: orZero(p.AfterSpecialPrice(item)),
		DiscountPrice:     orZero(p.DiscountPrice(item)),
	}

	if title, link, ok := p.TitleAndLink(item); ok {
		record.Title = &title
		if link != "" {
			record.Link = &link
		}
	}

	picture, ok, err := p.PictureImage(ctx, item, pageURL)
	if err != nil {
		return nil, err
	}
	if ok {
		record.PictureImage = &picture
	}
	return record, nil
}

// NextPage returns the resolved href of the next-page anchor, or "".
func (p *Parser) NextPage(root *goquery.Selection, pageURL *url.URL) string {
	anchor := root.Find(p.sel.NextPageAnchor).First()
	if anchor.Length() == 0 {
		return ""
	}
	href, ok := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	return resolve(pageURL, href)
}

func orZero(value string, ok bool) string {
	if !ok {
		return models.ZeroPrice
	}
	return value
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
