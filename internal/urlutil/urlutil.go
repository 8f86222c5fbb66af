package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

const (
	LicitorBase = "https://www.licitor.com"
	// ResultsPath lists upcoming sales for Paris and Île-de-France.
	ResultsPath = "/ventes-aux-encheres-immobilieres/paris-et-ile-de-france/prochaines-ventes.html"
)

var listingNumber = regexp.MustCompile(`/(\d+)\.html(?:$|\?)`)

var trackingParams = []string{"gclid", "fbclid", "ref", "source", "xtor"}

var imageExtensions = map[string]struct{}{
	".gif":  {},
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".webp": {},
}

// ResultsPage is the URL of page n of the upcoming sales list.
func ResultsPage(base string, n int) string {
	if base == "" {
		base = LicitorBase
	}
	return fmt.Sprintf("%s%s?p=%d", strings.TrimRight(base, "/"), ResultsPath, max(n, 1))
}

// Resolve turns href into an absolute URL against base. Non-http links give "".
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}

// Normalize drops the fragment and tracking parameters and cleans the path.
// It returns the normalized URL and its host.
func Normalize(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = normalizePath(u.Path)
	u.RawQuery = normalizeQuery(u.RawQuery)
	return u.String(), u.Hostname(), nil
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	return clean
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || slices.Contains(trackingParams, lk) {
			delete(values, key)
		}
	}
	// Encode sorts by key.
	return values.Encode()
}

// ListingNumber extracts the licitor listing number from a detail URL
// (".../104512.html" gives "104512").
func ListingNumber(raw string) string {
	m := listingNumber.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsListingDetail reports whether raw points at a sale detail page.
func IsListingDetail(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, "/annonce/") && ListingNumber(u.Path) != ""
}

// SameHost compares hosts ignoring case and a leading "www.".
func SameHost(a, b string) bool {
	return a != "" && bareHost(a) == bareHost(b)
}

// SameSite reports whether host is site or one of its subdomains, so
// "img.licitor.com" belongs to "www.licitor.com".
func SameSite(host, site string) bool {
	if SameHost(host, site) {
		return true
	}
	s := bareHost(site)
	return s != "" && strings.HasSuffix(bareHost(host), "."+s)
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

// IsImage reports whether the URL path ends in a known image extension.
func IsImage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}
