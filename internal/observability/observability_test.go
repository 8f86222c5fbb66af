package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/httpx"
)

func TestClassifyFetchError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ErrorUnknown},
		{&httpx.FetchError{Status: http.StatusTooManyRequests}, ErrorRateLimit},
		{fmt.Errorf("page 3: %w", &httpx.FetchError{Status: http.StatusNotFound}), ErrorNotFound},
		{&httpx.FetchError{Status: http.StatusBadGateway}, ErrorNetwork},
		{context.DeadlineExceeded, ErrorNetwork},
		{errors.New("boom"), ErrorUnknown},
	}
	for _, c := range cases {
		if got := ClassifyFetchError(c.err); got != c.want {
			t.Fatalf("ClassifyFetchError(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestClassifyScrapeError(t *testing.T) {
	var v []int
	err := json.Unmarshal([]byte("{nope"), &v)
	if got := ClassifyScrapeError(fmt.Errorf("feed: %w", err)); got != ErrorParsing {
		t.Fatalf("got %q, want parsing", got)
	}
	if got := ClassifyScrapeError(errors.New("boom")); got != ErrorNetwork {
		t.Fatalf("got %q, want network", got)
	}
}

func TestSnapshotCounts(t *testing.T) {
	before := Snapshot()

	IncPagesCrawled()
	AddListingsScraped(3)
	AddListingsRemoved(2)
	IncContactReceived()
	ObserveStreetView(http.StatusOK)
	ObserveStreetView(http.StatusForbidden)
	IncError(ErrorStore, "api")
	at := time.Date(2026, time.October, 19, 6, 0, 0, 0, time.UTC)
	ObserveScrape(2*time.Second, at)

	after := Snapshot()
	if after.PagesCrawled-before.PagesCrawled != 1 {
		t.Fatalf("pages crawled delta wrong")
	}
	if after.ListingsScraped-before.ListingsScraped != 3 || after.ListingsRemoved-before.ListingsRemoved != 2 {
		t.Fatalf("listing counters wrong: %+v", after)
	}
	if after.StreetViewServed-before.StreetViewServed != 2 {
		t.Fatalf("streetview counter wrong")
	}
	if after.StreetViewByStatus["4xx"] < 1 || after.StreetViewByStatus["2xx"] < 1 {
		t.Fatalf("status classes = %v", after.StreetViewByStatus)
	}
	if after.ErrorsByComponent["api"] < 1 || after.ErrorsByType[ErrorStore] < 1 {
		t.Fatalf("errors not recorded: %+v", after)
	}
	if after.LastScrapeAt == nil || !after.LastScrapeAt.Equal(at) {
		t.Fatalf("LastScrapeAt = %v", after.LastScrapeAt)
	}
	if after.CrawlSecondsAvg <= 0 {
		t.Fatalf("CrawlSecondsAvg = %f", after.CrawlSecondsAvg)
	}
}
