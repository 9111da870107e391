package web

import (
	"bytes"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (w *bodyCacheWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// cached wraps a GET handler with a short-TTL in-memory response cache.
// Mutations never pass through here, so staleness is bounded by the TTL
// alone; only hot read endpoints whose data tolerates that get wrapped.
func cached(store *gocache.Cache, duration time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next(w, r)
			return
		}

		key := r.RequestURI
		if resp, found := store.Get(key); found {
			entry := resp.(cachedResponse)
			for k, v := range entry.headers {
				w.Header()[k] = v
			}
			w.WriteHeader(entry.status)
			w.Write(entry.body)
			return
		}

		bcw := &bodyCacheWriter{ResponseWriter: w, status: http.StatusOK, body: bytes.NewBuffer(nil)}
		next(bcw, r)

		// Only cache successful responses
		if bcw.status >= 200 && bcw.status < 300 {
			store.Set(key, cachedResponse{
				status:  bcw.status,
				headers: bcw.Header().Clone(),
				body:    bcw.body.Bytes(),
			}, duration)
		}
	}
}
