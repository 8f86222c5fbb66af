package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/baxromumarov/immo-encheres/internal/httpx"
)

const (
	ErrorNetwork   = "network"
	ErrorParsing   = "parsing"
	ErrorRateLimit = "rate_limit"
	ErrorNotFound  = "not_found"
	ErrorStore     = "store"
	ErrorMail      = "mail"
	ErrorUnknown   = "unknown"
)

// ClassifyFetchError buckets an error returned by httpx.
func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case fe.Status == http.StatusNotFound || fe.Status == http.StatusGone:
			return ErrorNotFound
		default:
			return ErrorNetwork
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// ClassifyScrapeError extends ClassifyFetchError with decoding failures.
func ClassifyScrapeError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorParsing
	}
	return ErrorNetwork
}
