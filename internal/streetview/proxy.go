// Package streetview proxies Google Street View static images so the API key
// never reaches the browser.
package streetview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const DefaultUpstream = "https://maps.googleapis.com/maps/api/streetview"

type Proxy struct {
	upstream   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	onServe    func(status int)
}

type Option func(*Proxy)

func WithUpstream(u string) Option {
	return func(p *Proxy) {
		if u != "" {
			p.upstream = u
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithRate caps upstream requests per second. Zero disables the limit.
func WithRate(perSecond float64, burst int) Option {
	return func(p *Proxy) {
		if perSecond <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
	}
}

// WithServeHook is called with the status of every proxied response.
func WithServeHook(fn func(status int)) Option {
	return func(p *Proxy) { p.onServe = fn }
}

func New(apiKey string, opts ...Option) *Proxy {
	p := &Proxy{
		upstream:   DefaultUpstream,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Params are the image parameters accepted from the browser.
type Params struct {
	Location string
	Size     string
	Heading  string
	Pitch    string
	Fov      string
}

// ParseParams reads query parameters and fills in the defaults.
func ParseParams(q url.Values) Params {
	get := func(key, def string) string {
		if v := q.Get(key); v != "" {
			return v
		}
		return def
	}
	return Params{
		Location: q.Get("location"),
		Size:     get("size", "960x540"),
		Heading:  get("heading", "0"),
		Pitch:    get("pitch", "0"),
		Fov:      get("fov", "80"),
	}
}

func (p *Proxy) upstreamURL(params Params) (string, error) {
	u, err := url.Parse(p.upstream)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("size", params.Size)
	q.Set("location", params.Location)
	q.Set("heading", params.Heading)
	q.Set("pitch", params.Pitch)
	q.Set("fov", params.Fov)
	q.Set("key", p.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := ParseParams(r.URL.Query())
	if params.Location == "" {
		p.fail(w, http.StatusBadRequest, "Missing location")
		return
	}
	if p.apiKey == "" {
		p.fail(w, http.StatusInternalServerError, "Missing GOOGLE_MAPS_API_KEY")
		return
	}

	status, err := p.forward(r.Context(), w, params)
	if err != nil {
		log.Printf("streetview: %v", err)
		p.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p.onServe != nil {
		p.onServe(status)
	}
}

// forward copies the upstream response into w. An error means nothing has
// been written yet.
func (p *Proxy) forward(ctx context.Context, w http.ResponseWriter, params Params) (int, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit: %w", err)
		}
	}
	target, err := p.upstreamURL(params)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		// The URL carries the key; keep it out of logs and responses.
		if uerr, ok := err.(*url.Error); ok {
			err = uerr.Err
		}
		return 0, fmt.Errorf("streetview proxy error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read upstream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return resp.StatusCode, nil
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return http.StatusOK, nil
}

func (p *Proxy) fail(w http.ResponseWriter, status int, msg string) {
	if p.onServe != nil {
		p.onServe(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
