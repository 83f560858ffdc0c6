package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestCategoryCrawler(src PageSource) *CategoryCrawler {
	return NewCategoryCrawler(src, WithPageDelay(0), WithCategoryLogger(discardLogger()))
}

func recordURLs(t *testing.T, c *CategoryCrawler, category string) []string {
	t.Helper()
	records, err := c.Crawl(context.Background(), category)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := make([]string, 0, len(records))
	for _, r := range records {
		urls = append(urls, r.URL)
	}
	return urls
}

func TestCategoryCrawler_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("page one not found yields nothing and stops", func(t *testing.T) {
		t.Parallel()

		src := newFakeSource(map[string]string{
			// Page 2 exists but must never be requested.
			PagePath("alpha", 2): listingPage(nil, []card{{url: "/never"}}),
		})
		records, err := newTestCategoryCrawler(src).Crawl(context.Background(), "alpha")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
		if diff := cmp.Diff([]string{"/alpha?page=1"}, src.requested()); diff != "" {
			t.Errorf("requests mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("featured records only on page one and first", func(t *testing.T) {
		t.Parallel()

		src := newFakeSource(map[string]string{
			PagePath("alpha", 1): listingPage(
				[]card{{url: "/f1"}},
				[]card{{url: "/a1"}, {url: "/a2"}},
			),
			PagePath("alpha", 2): listingPage(
				[]card{{url: "/f2"}},
				[]card{{url: "/a3"}},
			),
		})
		c := newTestCategoryCrawler(src)

		records, err := c.Crawl(context.Background(), "alpha")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/f1", "/a1", "/a2", "/a3"}
		got := make([]string, 0, len(records))
		for _, r := range records {
			got = append(got, r.URL)
			if r.URL == "/f1" && !r.IsRecommended {
				t.Error("featured record must be recommended")
			}
			if r.URL != "/f1" && r.IsRecommended {
				t.Errorf("record %s must not be recommended", r.URL)
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		wantCalls := []string{"/alpha?page=1", "/alpha?page=2", "/alpha?page=3"}
		if diff := cmp.Diff(wantCalls, src.requested()); diff != "" {
			t.Errorf("requests mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("page without listing section ends the category", func(t *testing.T) {
		t.Parallel()

		src := newFakeSource(map[string]string{
			PagePath("beta", 1): listingPage(nil, []card{{url: "/b1"}}),
			PagePath("beta", 2): listingPage([]card{{url: "/x"}}, nil),
			PagePath("beta", 3): listingPage(nil, []card{{url: "/never"}}),
		})
		got := recordURLs(t, newTestCategoryCrawler(src), "beta")
		if diff := cmp.Diff([]string{"/b1"}, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fetch error returns partial records", func(t *testing.T) {
		t.Parallel()

		src := newFakeSource(map[string]string{
			PagePath("gamma", 1): listingPage(nil, []card{{url: "/g1"}}),
		})
		src.errs[PagePath("gamma", 2)] = ErrRetriesExhausted

		records, err := newTestCategoryCrawler(src).Crawl(context.Background(), "gamma")
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
		if len(records) != 1 || records[0].URL != "/g1" {
			t.Errorf("expected the page-1 record, got %+v", records)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		src := newFakeSource(map[string]string{PagePath("delta", 1): listingPage(nil, []card{{url: "/d"}})})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestCategoryCrawler(src).Crawl(ctx, "delta")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPagePath(t *testing.T) {
	t.Parallel()

	if got := PagePath("kategoria/47/polityka", 3); got != "/kategoria/47/polityka?page=3" {
		t.Errorf("PagePath = %q", got)
	}
}
