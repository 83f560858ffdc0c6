package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testCard is one creator card on the fake listing site.
type testCard struct {
	path    string
	name    string
	patrons string
	monthly string
	total   string
}

func (c testCard) html(base string) string {
	return fmt.Sprintf(`<div class="carousel-cell"><a class="author__card" href="%s%s">`+
		`<img data-src="%s/img/%s.png">`+
		`<div class="card__content--name"><h5>%s</h5></div>`+
		`<div class="card__content--numbers">`+
		`<div><span>%s</span> patronów</div>`+
		`<div><span>%s</span> miesięcznie</div>`+
		`<div><span>%s</span> łącznie</div></div>`+
		`<div class="card__content--tags"><span>test</span></div></a></div>`,
		base, c.path, base, c.path, c.name, c.patrons, c.monthly, c.total)
}

func testSection(base, heading string, cards []testCard) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<section><div class="section__header"><h4>%s</h4></div><div class="author__list">`, heading)
	for _, c := range cards {
		b.WriteString(c.html(base))
	}
	b.WriteString(`</div></section>`)
	return b.String()
}

// newTestSite serves a two-category listing site: alpha has a featured
// creator and two pages, beta has one page. Every other path is 404.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]func(base string) string{
		"/kategoria/47/polityka": func(base string) string {
			return `<html><body><div class="tags">` +
				`<div class="tag"><a href="` + base + `/alpha">Alpha</a></div>` +
				`<div class="tag"><a href="/beta">Beta</a></div>` +
				`</div></body></html>`
		},
		"/alpha?page=1": func(base string) string {
			return `<html><body>` +
				testSection(base, "Nasz wybór", []testCard{{path: "/star", name: "Star", patrons: "120", monthly: "2,5 tys. zł", total: "40 tys. zł"}}) +
				testSection(base, "Wszyscy twórcy", []testCard{
					{path: "/anna", name: "Anna", patrons: "10", monthly: "300 zł", total: "1 tys. zł"},
					{path: "/star", name: "Star", patrons: "120", monthly: "2,5 tys. zł", total: "40 tys. zł"},
				}) +
				`</body></html>`
		},
		"/alpha?page=2": func(base string) string {
			return `<html><body>` +
				testSection(base, "Wszyscy twórcy", []testCard{{path: "/bolek", name: "Bolek", patrons: "3", monthly: "50 zł", total: "200 zł"}}) +
				`</body></html>`
		},
		"/beta?page=1": func(base string) string {
			return `<html><body>` +
				testSection(base, "Wszyscy twórcy", []testCard{
					{path: "/anna", name: "Anna", patrons: "10", monthly: "300 zł", total: "1 tys. zł"},
					{path: "/celina", name: "Celina", patrons: "7", monthly: "120 zł", total: "900 zł"},
				}) +
				`</body></html>`
		},
	}

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page(server.URL)))
	}))
	t.Cleanup(server.Close)
	return server
}

// writeTestConfig writes a config file so that no file from the working or
// home directory is picked up.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	if content == "" {
		content = "source:\n  userAgent: creatorcrawl-test\n"
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
