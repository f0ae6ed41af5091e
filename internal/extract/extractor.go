// Package extract parses listing pages into candidate records using
// per-field selector strategies. Each field strategy can fail on its own
// without aborting the others; a page fails extraction only when no
// field produced a value at all.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/metrics"
	"github.com/JakeFAU/ec-listings-pipeline/internal/normalize"
)

// Rule describes one way to locate a field's raw value. Either Selector
// matches the value element directly (optionally reading Attr instead of
// text), or Label names a th/dt cell whose sibling td/dd holds the
// value. Rules for a field are tried in order; the first non-empty win.
type Rule struct {
	Selector string `mapstructure:"selector"`
	Attr     string `mapstructure:"attr"`
	Label    string `mapstructure:"label"`
}

// Config maps each field kind to its ordered extraction rules. Selector
// configuration is external data, not pipeline logic.
type Config map[listing.FieldKind][]Rule

// Extractor implements listing.Extractor over goquery documents.
type Extractor struct {
	rules  Config
	logger *zap.Logger
}

// New builds an Extractor from selector configuration. Fields without
// rules are simply never extracted.
func New(rules Config, logger *zap.Logger) *Extractor {
	if rules == nil {
		rules = DefaultConfig()
	}
	return &Extractor{rules: rules, logger: logger}
}

// Extract parses the page and runs every field strategy, then
// normalizes the raw values and derives the identity key. The returned
// error wraps listing.ErrExtraction when nothing usable was found, or
// listing.ErrIdentity when no stable key could be derived.
func (e *Extractor) Extract(body []byte, contentType, sourceURL string) (listing.Candidate, error) {
	if !isHTML(contentType) {
		metrics.ObserveExtractionFailure()
		return listing.Candidate{}, fmt.Errorf("content type %q: %w", contentType, listing.ErrExtraction)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		metrics.ObserveExtractionFailure()
		return listing.Candidate{}, fmt.Errorf("parse html: %w", listing.ErrExtraction)
	}

	cand := listing.Candidate{
		SourceURL:   sourceURL,
		RawSnapshot: make(map[listing.FieldKind]string),
	}
	for _, kind := range listing.AllFieldKinds {
		raw := e.extractField(doc, kind)
		if raw == "" {
			continue
		}
		cand.RawSnapshot[kind] = raw
		cand.SetField(kind, normalize.Field(kind, raw))
	}

	if len(cand.RawSnapshot) == 0 {
		metrics.ObserveExtractionFailure()
		return listing.Candidate{}, fmt.Errorf("page %s: %w", sourceURL, listing.ErrExtraction)
	}

	key, err := normalize.DeriveIdentityKey(cand)
	if err != nil {
		return cand, err
	}
	cand.IdentityKey = key
	return cand, nil
}

func (e *Extractor) extractField(doc *goquery.Document, kind listing.FieldKind) string {
	for _, rule := range e.rules[kind] {
		var raw string
		switch {
		case rule.Label != "":
			raw = extractByLabel(doc, rule.Label)
		case rule.Selector != "":
			raw = extractBySelector(doc, rule)
		}
		if raw != "" {
			return raw
		}
	}
	return ""
}

func extractBySelector(doc *goquery.Document, rule Rule) string {
	var raw string
	doc.Find(rule.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if rule.Attr != "" {
			if v, ok := sel.Attr(rule.Attr); ok {
				raw = strings.TrimSpace(v)
			}
		} else {
			raw = strings.TrimSpace(sel.Text())
		}
		return raw == ""
	})
	return raw
}

// extractByLabel finds a th/dt cell whose text matches the label and
// returns the text of the adjacent td/dd value cell.
func extractByLabel(doc *goquery.Document, label string) string {
	want := normalize.Text(label)
	var raw string
	doc.Find("th, dt").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if normalize.Text(sel.Text()) != want {
			return true
		}
		value := sel.Next()
		if value.Length() == 0 || !value.Is("td, dd") {
			value = sel.Parent().Find("td, dd").First()
		}
		raw = strings.TrimSpace(value.Text())
		return raw == ""
	})
	return raw
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
