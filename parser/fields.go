package parser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func first(s *goquery.Selection, selector string) (*goquery.Selection, bool) {
	found := s.Find(selector).First()
	return found, found.Length() > 0
}

// TitleAndLink reads the anchor inside the title container. ok is false
// when the container or its anchor is missing, and then neither value is
// usable. link is "" when the anchor has no href.
func (p *Parser) TitleAndLink(item *goquery.Selection) (title, link string, ok bool) {
	container, found := first(item, p.sel.Title)
	if !found {
		return "", "", false
	}
	anchor, found := first(container, p.sel.TitleAnchor)
	if !found {
		return "", "", false
	}
	link, _ = anchor.Attr("href")
	return anchor.Text(), link, true
}

// OldPrice returns the trimmed crossed-out price.
func (p *Parser) OldPrice(item *goquery.Selection) (string, bool) {
	return p.nestedText(item, p.sel.OldPrice, p.sel.PriceValue)
}

// SpecialPrice returns the trimmed sale price.
func (p *Parser) SpecialPrice(item *goquery.Selection) (string, bool) {
	return p.nestedText(item, p.sel.SpecialPrice, p.sel.PriceValue)
}

// DiscountPrice returns the trimmed discount badge text.
func (p *Parser) DiscountPrice(item *goquery.Selection) (string, bool) {
	badge, found := first(item, p.sel.Discount)
	if !found {
		return "", false
	}
	return strings.TrimSpace(badge.Text()), true
}

// AfterSpecialPrice returns the trimmed text shown after the sale price.
func (p *Parser) AfterSpecialPrice(item *goquery.Selection) (string, bool) {
	return p.nestedText(item, p.sel.PriceWrapper, p.sel.AfterSpecial)
}

// PictureImage reads the src of the product image and hands it to the
// image sink. Nothing is downloaded when the anchor, the image or its src
// is missing.
func (p *Parser) PictureImage(ctx context.Context, item *goquery.Selection, pageURL *url.URL) (string, bool, error) {
	anchor, found := first(item, p.sel.ImageAnchor)
	if !found {
		return "", false, nil
	}
	img, found := first(anchor, p.sel.Image)
	if !found {
		return "", false, nil
	}
	src, _ := img.Attr("src")
	src = strings.TrimSpace(src)
	if src == "" {
		return "", false, nil
	}

	if p.images != nil {
		if err := p.images.Save(ctx, resolve(pageURL, src)); err != nil {
			return "", false, fmt.Errorf("save image %s: %w", src, err)
		}
	}
	return src, true, nil
}

func (p *Parser) nestedText(item *goquery.Selection, outer, inner string) (string, bool) {
	container, found := first(item, outer)
	if !found {
		return "", false
	}
	value, found := first(container, inner)
	if !found {
		return "", false
	}
	return strings.TrimSpace(value.Text()), true
}
