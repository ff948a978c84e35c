package flyer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/groceryroute/flyer-comb/app/config"
)

// Parser pulls flyer and item handles out of rendered markup using the site
// profile's selectors. It stays deliberately thin: it finds things, it does
// not judge them.
type Parser struct {
	profile *config.Profile
}

func NewParser(profile *config.Profile) *Parser {
	return &Parser{profile: profile}
}

// ParseListing extracts flyer references from the listing page.
func (p *Parser) ParseListing(html string) ([]Ref, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	sel := p.profile.Selectors

	var refs []Ref
	doc.Find(sel.FlyerListing).Each(func(_ int, s *goquery.Selection) {
		rawID, ok := s.Attr(sel.FlyerID)
		if !ok {
			return
		}

		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			return
		}

		ref := Ref{
			ID:  id,
			URL: p.profile.FlyerURL(id),
		}

		if sel.FlyerStore != "" {
			if store, ok := s.Attr(sel.FlyerStore); ok {
				ref.StoreChain = strings.TrimSpace(store)
			}
		}

		if sel.FlyerValidTo != "" {
			if raw, ok := s.Attr(sel.FlyerValidTo); ok {
				if validUntil, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.Local); err == nil {
					ref.ValidUntil = &validUntil
				}
			}
		}

		refs = append(refs, ref)
	})

	return refs, nil
}

// ParseFlyerPage extracts the store chain and the candidate items from a
// flyer page.
func (p *Parser) ParseFlyerPage(html string) (string, []ItemRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse flyer page: %w", err)
	}

	sel := p.profile.Selectors

	storeChain := "Unknown Store"
	if sel.StoreChain != "" {
		if text := strings.TrimSpace(doc.Find(sel.StoreChain).First().Text()); text != "" {
			storeChain = text
		}
	}

	var items []ItemRef
	doc.Find(sel.ItemContainer).Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr(sel.ItemName)
		label = strings.TrimSpace(label)
		if label == "" {
			return
		}

		id, ok := s.Attr(sel.ItemID)
		if !ok || strings.TrimSpace(id) == "" {
			return
		}
		id = strings.TrimSpace(id)

		item := ItemRef{
			ID:    id,
			Label: label,
			URL:   p.profile.ItemURL(id),
		}

		if sel.ItemImage != "" {
			if src, ok := s.Find(sel.ItemImage).First().Attr("src"); ok {
				item.ImageURL = strings.TrimSpace(src)
			}
		}

		items = append(items, item)
	})

	return storeChain, items, nil
}

// ParseItemPage extracts price and unit from an item's detail page. The
// price usually sits in an attribute on a custom element, with the unit in
// a sibling text node; a missing unit falls back to "each".
func (p *Parser) ParseItemPage(html string) (float64, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse item page: %w", err)
	}

	sel := p.profile.Selectors

	priceEl := doc.Find(sel.ItemPrice).First()
	if priceEl.Length() == 0 {
		return 0, "", fmt.Errorf("price element %q not found", sel.ItemPrice)
	}

	raw := ""
	if sel.ItemPriceValue != "" {
		raw, _ = priceEl.Attr(sel.ItemPriceValue)
	}
	if raw == "" {
		raw = priceEl.Text()
	}

	price, err := parsePrice(raw)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse price %q: %w", raw, err)
	}

	unit := "each"
	if sel.ItemUnit != "" {
		if text := strings.TrimSpace(doc.Find(sel.ItemUnit).First().Text()); text != "" {
			unit = text
		}
	}

	return price, unit, nil
}

// parsePrice normalizes a raw price string ("$3.99", "3,99 $") to a float.
func parsePrice(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.TrimSpace(cleaned)

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}

	return price, nil
}
