package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// MaxJSONBody caps request bodies read by DecodeJSON.
const MaxJSONBody = 1 << 20

// WriteJSON writes v with Cache-Control: no-store. Token responses and
// error bodies must never be cached.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	writeJSON(w, code, v)
}

// WriteCacheableJSON writes a public document, such as JWKS or discovery
// metadata, that clients may cache for maxAge.
func WriteCacheableJSON(w http.ResponseWriter, code int, v any, maxAge time.Duration) {
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	writeJSON(w, code, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ErrBadJSON is returned by DecodeJSON for malformed or oversized bodies.
var ErrBadJSON = errors.New("httpx: malformed JSON body")

// DecodeJSON reads a single JSON value from the request body into v. An
// empty body leaves v untouched when allowEmpty is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadJSON)
	}
	return nil
}
