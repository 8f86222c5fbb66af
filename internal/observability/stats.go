package observability

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

type StatsSnapshot struct {
	PagesCrawled       uint64            `json:"pages_crawled"`
	ListingsScraped    uint64            `json:"listings_scraped"`
	ListingsRemoved    uint64            `json:"listings_removed"`
	GeocodeLookups     uint64            `json:"geocode_lookups"`
	ContactsReceived   uint64            `json:"contacts_received"`
	EmailsSent         uint64            `json:"emails_sent"`
	StreetViewServed   uint64            `json:"streetview_served"`
	ErrorsTotal        uint64            `json:"errors_total"`
	CrawlSecondsAvg    float64           `json:"crawl_seconds_avg"`
	LastScrapeAt       *time.Time        `json:"last_scrape_at,omitempty"`
	StreetViewByStatus map[string]uint64 `json:"streetview_by_status,omitempty"`
	ErrorsByType       map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent  map[string]uint64 `json:"errors_by_component,omitempty"`
}

var (
	pagesCrawled     uint64
	listingsScraped  uint64
	listingsRemoved  uint64
	geocodeLookups   uint64
	contactsReceived uint64
	emailsSent       uint64
	streetViewServed uint64
	errorsTotal      uint64

	crawlCount uint64
	crawlNanos uint64

	statsMu            sync.Mutex
	lastScrapeAt       time.Time
	streetViewByStatus = map[string]uint64{}
	errorsByType       = map[string]uint64{}
	errorsByComponent  = map[string]uint64{}
)

func IncPagesCrawled() {
	atomic.AddUint64(&pagesCrawled, 1)
}

func AddListingsScraped(n int) {
	if n > 0 {
		atomic.AddUint64(&listingsScraped, uint64(n))
	}
}

func AddListingsRemoved(n int64) {
	if n > 0 {
		atomic.AddUint64(&listingsRemoved, uint64(n))
	}
}

func IncGeocodeLookup() {
	atomic.AddUint64(&geocodeLookups, 1)
}

func IncContactReceived() {
	atomic.AddUint64(&contactsReceived, 1)
}

func IncEmailSent() {
	atomic.AddUint64(&emailsSent, 1)
}

// ObserveStreetView counts a proxied image by its HTTP status class.
func ObserveStreetView(status int) {
	atomic.AddUint64(&streetViewServed, 1)
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	statsMu.Lock()
	streetViewByStatus[class]++
	statsMu.Unlock()
}

// ObserveScrape records the duration and completion time of a scrape run.
func ObserveScrape(d time.Duration, at time.Time) {
	statsMu.Lock()
	lastScrapeAt = at
	statsMu.Unlock()
	if d <= 0 {
		return
	}
	atomic.AddUint64(&crawlCount, 1)
	atomic.AddUint64(&crawlNanos, uint64(d.Nanoseconds()))
}

func IncError(errType, component string) {
	if errType == "" {
		errType = ErrorUnknown
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	svCopy := copyMap(streetViewByStatus)
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	last := lastScrapeAt
	statsMu.Unlock()

	count := atomic.LoadUint64(&crawlCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&crawlNanos)) / float64(count) / 1e9
	}

	snap := StatsSnapshot{
		PagesCrawled:       atomic.LoadUint64(&pagesCrawled),
		ListingsScraped:    atomic.LoadUint64(&listingsScraped),
		ListingsRemoved:    atomic.LoadUint64(&listingsRemoved),
		GeocodeLookups:     atomic.LoadUint64(&geocodeLookups),
		ContactsReceived:   atomic.LoadUint64(&contactsReceived),
		EmailsSent:         atomic.LoadUint64(&emailsSent),
		StreetViewServed:   atomic.LoadUint64(&streetViewServed),
		ErrorsTotal:        atomic.LoadUint64(&errorsTotal),
		CrawlSecondsAvg:    avg,
		StreetViewByStatus: svCopy,
		ErrorsByType:       errorsTypeCopy,
		ErrorsByComponent:  errorsComponentCopy,
	}
	if !last.IsZero() {
		snap.LastScrapeAt = &last
	}
	return snap
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	return maps.Clone(src)
}
