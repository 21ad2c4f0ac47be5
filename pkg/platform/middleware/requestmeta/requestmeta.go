// Package requestmeta stamps every request with one "now" and a request id so
// all work done for it shares a timestamp and a correlation id.
package requestmeta

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"brick/pkg/requestcontext"
)

// HeaderRequestID is honoured when present and echoed on the response.
const HeaderRequestID = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		ctx = requestcontext.WithRequestID(ctx, id)
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
