package streetview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProxyValidation(t *testing.T) {
	cases := []struct {
		name   string
		key    string
		query  string
		status int
		msg    string
	}{
		{"missing location", "k", "/api/streetview", http.StatusBadRequest, "Missing location"},
		{"missing key", "", "/api/streetview?location=48.8,2.3", http.StatusInternalServerError, "Missing GOOGLE_MAPS_API_KEY"},
	}
	for _, c := range cases {
		p := New(c.key, WithUpstream("http://127.0.0.1:0"))
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.query, nil))
		if rec.Code != c.status {
			t.Fatalf("%s: status = %d", c.name, rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", c.name, err)
		}
		if body["error"] != c.msg {
			t.Fatalf("%s: error = %q", c.name, body["error"])
		}
	}
}

func TestProxyForwardsImage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "secret" || q.Get("location") != "48.856650,2.352250" {
			t.Errorf("unexpected upstream query: %s", r.URL.RawQuery)
		}
		if q.Get("size") != "960x540" || q.Get("heading") != "0" || q.Get("pitch") != "0" || q.Get("fov") != "80" {
			t.Errorf("defaults not applied: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("PNGDATA"))
	}))
	defer upstream.Close()

	var served []int
	p := New("secret", WithUpstream(upstream.URL), WithRate(0, 0), WithServeHook(func(s int) { served = append(served, s) }))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/streetview?location=48.856650,2.352250", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "PNGDATA" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Cache-Control") != "public, max-age=86400" {
		t.Fatalf("cache control = %q", rec.Header().Get("Cache-Control"))
	}
	if len(served) != 1 || served[0] != http.StatusOK {
		t.Fatalf("serve hook = %v", served)
	}
}

func TestProxyPassesUpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("The provided API key is invalid."))
	}))
	defer upstream.Close()

	p := New("bad", WithUpstream(upstream.URL))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/streetview?location=1,2", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "The provided API key is invalid." {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestProxyTransportError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	p := New("secret", WithUpstream(url))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/streetview?location=1,2", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] == "" {
		t.Fatalf("expected an error message")
	}
}
