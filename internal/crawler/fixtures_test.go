package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// card is one listing card in a test page.
type card struct {
	url      string
	name     string
	image    string
	patrons  string
	monthly  string
	total    string
	tags     []string
	noImage  bool
	noMetric bool
}

func (c card) html() string {
	var b strings.Builder
	b.WriteString(`<div class="carousel-cell">`)
	fmt.Fprintf(&b, `<a class="author__card" href="%s">`, c.url)
	if !c.noImage {
		fmt.Fprintf(&b, `<img data-src="%s" src="placeholder.gif">`, c.image)
	}
	fmt.Fprintf(&b, `<div class="card__content--name"><h5> %s </h5></div>`, c.name)
	if !c.noMetric {
		b.WriteString(`<div class="card__content--numbers">`)
		fmt.Fprintf(&b, `<div><span>%s</span> patronów</div>`, c.patrons)
		fmt.Fprintf(&b, `<div><span>%s</span> miesięcznie</div>`, c.monthly)
		fmt.Fprintf(&b, `<div><span>%s</span> łącznie</div>`, c.total)
		b.WriteString(`</div>`)
	}
	b.WriteString(`<div class="card__content--tags">`)
	for _, t := range c.tags {
		fmt.Fprintf(&b, `<span>%s</span>`, t)
	}
	b.WriteString(`</div></a></div>`)
	return b.String()
}

func section(heading string, cards []card) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<section><div class="section__header"><h4>%s</h4></div><div class="author__list">`, heading)
	for _, c := range cards {
		b.WriteString(c.html())
	}
	b.WriteString(`</div></section>`)
	return b.String()
}

// listingPage renders a category page. A nil general slice omits the
// "all entries" section entirely.
func listingPage(featured, general []card) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body>`)
	if featured != nil {
		b.WriteString(section("Nasz wybór", featured))
	}
	if general != nil {
		b.WriteString(section("Wszyscy twórcy", general))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// tagBar renders a discovery page whose tag bar links to hrefs.
func tagBar(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body><div class="tags">`)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div class="tag"><a href="%s">tag</a></div>`, h)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc
}

// fakeSource serves fixed documents per path and records requested paths.
// Unknown paths return ErrNotFound.
type fakeSource struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func newFakeSource(pages map[string]string) *fakeSource {
	return &fakeSource{pages: pages, errs: make(map[string]error)}
}

func (f *fakeSource) Fetch(ctx context.Context, path string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	markup, ok := f.pages[path]
	err := f.errs[path]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

func (f *fakeSource) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
