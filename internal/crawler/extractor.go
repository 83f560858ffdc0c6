package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// Selectors locates the parts of a listing page. DefaultSelectors matches the
// current patronite.pl markup.
type Selectors struct {
	// ProfileLink is the card link whose href is the record URL.
	ProfileLink string
	// Name holds the display name.
	Name string
	// Image is the lazily loaded avatar; its data-src (or src) is used.
	Image string
	// NumberBlocks are the labelled metric blocks of a card.
	NumberBlocks string
	// NumberValue is the element inside a block holding the figure.
	NumberValue string
	// Tags are the label elements of a card.
	Tags string

	// PatronsLabel, MonthlyLabel and TotalLabel identify the metric blocks
	// by a substring of their text.
	PatronsLabel string
	MonthlyLabel string
	TotalLabel   string

	// SectionHeading is the heading element of a page section.
	SectionHeading string
	// RecommendedMarker and AllMarker are substrings of the section headings.
	RecommendedMarker string
	AllMarker         string
	// Entries are the cards inside a section.
	Entries string

	// CategoryLinks are counted to know how many categories the tag bar holds.
	CategoryLinks string
	// CategoryItems are the tag bar items walked from the first one.
	CategoryItems string
}

// DefaultSelectors returns the selectors for patronite.pl.
func DefaultSelectors() Selectors {
	return Selectors{
		ProfileLink:       "a.author__card[href]",
		Name:              "div.card__content--name h5",
		Image:             "img[data-src]",
		NumberBlocks:      "div.card__content--numbers div",
		NumberValue:       "span",
		Tags:              "div.card__content--tags span",
		PatronsLabel:      "patron",
		MonthlyLabel:      "miesięcznie",
		TotalLabel:        "łącznie",
		SectionHeading:    "h4",
		RecommendedMarker: "Nasz wybór",
		AllMarker:         "Wszyscy",
		Entries:           "div.author__list div.carousel-cell",
		CategoryLinks:     "div.tags a",
		CategoryItems:     "div.tags div",
	}
}

// Extractor turns listing cards into records.
type Extractor struct {
	sel  Selectors
	base *url.URL
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithSelectors replaces DefaultSelectors.
func WithSelectors(s Selectors) ExtractorOption {
	return func(e *Extractor) {
		e.sel = s
	}
}

// WithBaseURL resolves relative profile and image links against base.
// An unparseable base is ignored.
func WithBaseURL(base string) ExtractorOption {
	return func(e *Extractor) {
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			e.base = u
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{sel: DefaultSelectors()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selectors returns the selectors in use.
func (e *Extractor) Selectors() Selectors {
	return e.sel
}

// ExtractOne reads one card. Missing parts leave strings empty and metrics
// at model.Unknown.
func (e *Extractor) ExtractOne(entry *goquery.Selection, recommended bool) model.Record {
	r := model.Record{
		IsRecommended:   recommended,
		MonthlyRevenue:  model.Unknown,
		TotalRevenue:    model.Unknown,
		NumberOfPatrons: model.Unknown,
		Tags:            make([]string, 0),
	}

	if href, ok := entry.Find(e.sel.ProfileLink).First().Attr("href"); ok {
		r.URL = e.resolve(href)
	}
	r.Name = strings.TrimSpace(entry.Find(e.sel.Name).First().Text())
	r.ImageURL = e.imageURL(entry)

	blocks := entry.Find(e.sel.NumberBlocks)
	r.NumberOfPatrons = e.metric(blocks, e.sel.PatronsLabel)
	r.MonthlyRevenue = e.metric(blocks, e.sel.MonthlyLabel)
	r.TotalRevenue = e.metric(blocks, e.sel.TotalLabel)

	tags := entry.Find(e.sel.Tags)
	for _, tag := range siblingRun(tags.First(), tags.Length()) {
		r.Tags = append(r.Tags, strings.TrimSpace(tag.Text()))
	}

	return r
}

// ExtractMany reads count cards starting at first and walking its following
// siblings. A shorter run yields fewer records.
func (e *Extractor) ExtractMany(first *goquery.Selection, count int, recommended bool) []model.Record {
	run := siblingRun(first, count)
	records := make([]model.Record, 0, len(run))
	for _, entry := range run {
		records = append(records, e.ExtractOne(entry, recommended))
	}
	return records
}

// ExtractSection finds the section whose heading contains marker and
// extracts its cards. ok is false when no such section exists.
func (e *Extractor) ExtractSection(doc *goquery.Selection, marker string, recommended bool) (records []model.Record, ok bool) {
	heading := doc.Find(e.sel.SectionHeading).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return containsLabel(s.Text(), marker)
	}).First()
	if heading.Length() == 0 {
		return nil, false
	}

	section := heading.Parent().Parent()
	entries := section.Find(e.sel.Entries)
	return e.ExtractMany(entries.First(), entries.Length(), recommended), true
}

func (e *Extractor) imageURL(entry *goquery.Selection) string {
	img := entry.Find(e.sel.Image).First()
	if img.Length() == 0 {
		img = entry.Find("img").First()
	}
	src, ok := img.Attr("data-src")
	if !ok || strings.TrimSpace(src) == "" {
		src, _ = img.Attr("src")
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	return e.resolve(src)
}

// metric parses the figure of the innermost block labelled with label.
func (e *Extractor) metric(blocks *goquery.Selection, label string) float64 {
	var value *goquery.Selection
	blocks.Each(func(_ int, b *goquery.Selection) {
		if !containsLabel(b.Text(), label) {
			return
		}
		if v := b.Find(e.sel.NumberValue).First(); v.Length() > 0 {
			value = v
		}
	})
	if value == nil {
		return model.Unknown
	}
	return ParseAmount(value.Text())
}

func (e *Extractor) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if e.base == nil || ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return e.base.ResolveReference(u).String()
}

// siblingRun returns first followed by its next element siblings, at most n
// in total. Extraction then works by index instead of chained Next calls.
func siblingRun(first *goquery.Selection, n int) []*goquery.Selection {
	if n <= 0 || first == nil {
		return nil
	}
	run := make([]*goquery.Selection, 0, n)
	for cur := first.First(); cur.Length() > 0 && len(run) < n; cur = cur.Next() {
		run = append(run, cur)
	}
	return run
}

// containsLabel reports whether text contains label, ignoring case and
// Unicode normalization differences ("ę" vs "e"+combining ogonek).
func containsLabel(text, label string) bool {
	return strings.Contains(
		strings.ToLower(norm.NFC.String(text)),
		strings.ToLower(norm.NFC.String(label)),
	)
}
