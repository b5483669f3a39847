package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/artpar/novagate/internal/shell/logging"
)

// HeaderComputeRequestID carries the id of every response.
const HeaderComputeRequestID = "X-Compute-Request-Id"

// ComputeRequestID tags each request with a req-<uuid> id, echoes it in the
// response and adds it to the request's log attributes.
func ComputeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := "req-" + uuid.NewString()
		w.Header().Set(HeaderComputeRequestID, id)
		ctx := logging.WithContext(r.Context(), slog.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
