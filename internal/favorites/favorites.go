// Package favorites keeps a visitor's favorite listing ids in a cookie.
package favorites

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

const CookieName = "fav"

var (
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidAction = errors.New("invalid action")
)

// Read returns the ids stored in the request cookie. A missing or malformed
// cookie reads as no favorites.
func Read(r *http.Request) []int {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return []int{}
	}
	return Decode(c.Value)
}

// Decode parses a cookie value, keeping only integer entries.
func Decode(raw string) []int {
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []int{}
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		if n, ok := intFromFloat(f); ok {
			out = append(out, n)
		}
	}
	return out
}

// ParseID accepts a JSON number or a numeric string holding an integer that
// fits in an int.
func ParseID(v any) (int, bool) {
	switch id := v.(type) {
	case float64:
		return intFromFloat(id)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(id))
		return n, err == nil
	}
	return 0, false
}

// -float64(math.MinInt) is 2^63 (or 2^31), the first value past MaxInt.
func intFromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return 0, false
	}
	return int(f), true
}

// Write sets the cookie to the deduplicated ids.
func Write(w http.ResponseWriter, ids []int, secure bool) {
	payload, _ := json.Marshal(dedupe(ids))
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    string(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Apply runs action against favs for id. An empty action toggles.
func Apply(favs []int, id int, action string) ([]int, error) {
	switch action {
	case "add":
		if slices.Contains(favs, id) {
			return favs, nil
		}
		return append(slices.Clone(favs), id), nil
	case "remove":
		return slices.DeleteFunc(slices.Clone(favs), func(x int) bool { return x == id }), nil
	case "toggle", "":
		if slices.Contains(favs, id) {
			return Apply(favs, id, "remove")
		}
		return Apply(favs, id, "add")
	default:
		return nil, ErrInvalidAction
	}
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
