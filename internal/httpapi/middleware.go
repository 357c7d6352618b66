package httpapi

import (
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader carries a per-request correlation id, logged alongside
// the payment_hash/commitment_id fields domain operations already carry
// — this is the HTTP-layer counterpart for requests that fail before a
// bet or round id exists yet (e.g. a malformed query).
const requestIDHeader = "X-Request-Id"

// withRequestID assigns a fresh request id to every inbound request that
// doesn't already carry one, logs it, and echoes it back on the response.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		s.log.WithField("request_id", id).WithField("path", r.URL.Path).Debug("handling request")
		next.ServeHTTP(w, r)
	})
}
