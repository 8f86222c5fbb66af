package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// maxPhotoBytes bounds a single photo download.
const maxPhotoBytes = 10 << 20

// PoliteClient is a plain HTTP client that honours robots.txt and a per-host
// rate limit. The scraper uses it to download listing photos.
type PoliteClient struct {
	client      *http.Client
	ua          string
	every       time.Duration
	limiters    map[string]*rate.Limiter
	robotsCache map[string]*robotstxt.RobotsData
	mu          sync.Mutex
}

func NewPoliteClient(userAgent string, every time.Duration) *PoliteClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if every <= 0 {
		every = time.Second
	}
	return &PoliteClient{
		client:      &http.Client{Timeout: 30 * time.Second},
		ua:          userAgent,
		every:       every,
		limiters:    map[string]*rate.Limiter{},
		robotsCache: map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(p.every), 2)
	p.limiters[host] = l
	return l
}

// NewRequest builds a GET request, defaulting the scheme to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Host
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Do executes req after the robots.txt check, retrying on 429 and 503.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.ua)
	}

	u := req.URL
	if !p.allowed(ctx, u, req.Method) {
		return nil, fmt.Errorf("blocked by robots.txt: %s", u)
	}

	limiter := p.limiterFor(u.Host)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = &FetchError{URL: u.String(), Status: resp.StatusCode}
			resp.Body.Close()
			if err := sleepWithContext(ctx, time.Duration(500*(1<<attempt))*time.Millisecond); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, lastErr
}

// Download saves rawURL under dir, named after base plus the extension of the
// remote file, and returns the written path. An existing file is kept.
func (p *PoliteClient) Download(ctx context.Context, rawURL, dir, base string) (string, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(req.URL.Path))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	dest := filepath.Join(dir, base+ext)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	resp, err := p.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: req.URL.String(), Status: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, base+"-*.part")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxPhotoBytes)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", req.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	// Only reads are ever sent.
	if !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead) {
		return false
	}
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		// Fail open: an unreachable robots.txt should not stop the crawl.
		return true
	}
	group := data.FindGroup(p.ua)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}
