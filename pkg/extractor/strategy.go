package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"igreels/pkg/instagram"
	"igreels/pkg/metadata"
	"igreels/pkg/models"
)

// Fields are the content fields a strategy could read. Nil means not
// found.
type Fields struct {
	IsVideo *bool
	Date    *string
	Caption *string
}

// HasContent reports whether caption or date was found.
func (f Fields) HasContent() bool {
	return f.Caption != nil || f.Date != nil
}

// Complete reports whether every field is set.
func (f Fields) Complete() bool {
	return f.IsVideo != nil && f.Date != nil && f.Caption != nil
}

// fill copies fields from other that f is missing and reports whether
// anything was taken.
func (f *Fields) fill(other Fields) bool {
	took := false
	if f.IsVideo == nil && other.IsVideo != nil {
		f.IsVideo, took = other.IsVideo, true
	}
	if f.Date == nil && other.Date != nil {
		f.Date, took = other.Date, true
	}
	if f.Caption == nil && other.Caption != nil {
		f.Caption, took = other.Caption, true
	}
	return took
}

// Strategy reads fields from a loaded post page. Absence is a zero
// Fields, not an error; errors mean the source was present but broken.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) (Fields, error)
}

// DefaultStrategies are tried in order; later ones only fill gaps.
func DefaultStrategies() []Strategy {
	return []Strategy{JSONLDStrategy{}, DOMStrategy{}}
}

// JSONLDStrategy reads the page's embedded ld+json blocks.
type JSONLDStrategy struct{}

func (JSONLDStrategy) Name() string { return "jsonld" }

func (JSONLDStrategy) Extract(doc *goquery.Document) (Fields, error) {
	var (
		fields   Fields
		firstErr error
		fallback *instagram.LDObject
	)
	doc.Find(instagram.JSONLDScript).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		objs, err := instagram.ParseLD(s.Text())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		for i := range objs {
			if objs[i].IsMedia() {
				fields = fromLD(objs[i], true)
				return false
			}
			if fallback == nil {
				fallback = &objs[i]
			}
		}
		return true
	})

	if fields.HasContent() || fields.IsVideo != nil {
		return fields, nil
	}
	if fallback != nil {
		return fromLD(*fallback, false), nil
	}
	return Fields{}, firstErr
}

func fromLD(obj instagram.LDObject, media bool) Fields {
	var f Fields
	if caption, ok := obj.CaptionText(); ok {
		f.Caption = models.StringPtr(caption)
	}
	if date, ok := obj.Date(); ok {
		f.Date = models.StringPtr(metadata.NormalizeDate(date))
	}
	if media {
		f.IsVideo = models.BoolPtr(obj.IsVideo())
	}
	return f
}

// DOMStrategy scrapes visible elements with best-effort selectors.
type DOMStrategy struct{}

func (DOMStrategy) Name() string { return "dom" }

func (DOMStrategy) Extract(doc *goquery.Document) (Fields, error) {
	var f Fields

	for _, sel := range instagram.CaptionSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			f.Caption = models.StringPtr(text)
			break
		}
	}

	if dt, ok := doc.Find(instagram.TimeElement).First().Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		f.Date = models.StringPtr(metadata.NormalizeDate(dt))
	}

	if doc.Find(instagram.VideoElement).Length() > 0 {
		f.IsVideo = models.BoolPtr(true)
	}
	return f, nil
}
