package scraper

import (
	"path/filepath"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/config"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/httpx"
	"github.com/baxromumarov/immo-encheres/internal/urlutil"
)

// FromConfig builds the licitor scraper the commands run. cache backs the
// address geocoder.
func FromConfig(cfg *config.Config, cache *geo.Cache) *Licitor {
	fetcher := httpx.NewFetcher(cfg.UserAgent)
	fetcher.SetHostLimit(hostOf(urlutil.LicitorBase), 1500*time.Millisecond, 1)

	opts := []Option{}
	if cfg.DownloadPhotos {
		photos := httpx.NewPoliteClient(fetcher.UserAgent(), time.Second)
		opts = append(opts, WithPhotoDownloads(photos, filepath.Join(cfg.StaticDir, "photos"), "/photos"))
	}
	if cfg.GeocodeMissingCoord {
		nominatim := geo.NewNominatim(geo.WithBaseURL(cfg.NominatimURL), geo.WithUserAgent(fetcher.UserAgent()))
		opts = append(opts, WithGeocoder(geo.NewResolver(nominatim, cache)))
	}
	return NewLicitor(fetcher, opts...)
}

func hostOf(raw string) string {
	_, host, err := urlutil.Normalize(raw)
	if err != nil {
		return ""
	}
	return host
}
