package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/reelforge/reelforge/pkg/contentrange"
)

// ChunkInfo is the parsed envelope of one chunk PUT, bound to the
// request context before the body is touched.
type ChunkInfo struct {
	// Range is the parsed Content-Range value.
	Range *contentrange.Range

	// ContentLength is the declared body length. Zero for status probes.
	ContentLength int64
}

// ChunkFromContext returns the chunk envelope placed by BindChunk.
func ChunkFromContext(ctx context.Context) (*ChunkInfo, bool) {
	info, ok := ctx.Value(chunkContextKey).(*ChunkInfo)
	return info, ok
}

// BindChunk validates the chunk PUT envelope and hands the handler an
// unread body. The Content-Range header is parsed here; status probes
// must carry an empty body; data chunks must declare their length. The
// body itself is never read: the session service decides whether to
// consume it after validating alignment under the row lock.
//
// deadline bounds the whole request, sized for the largest chunk at the
// slowest acceptable ingress rate. Zero disables it.
func BindChunk(deadline time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Content-Range")
			if header == "" {
				writeProblem(w, http.StatusBadRequest, "Bad Request",
					"Content-Range header is required")
				return
			}

			cr, err := contentrange.Parse(header)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Bad Request",
					"malformed Content-Range: "+header)
				return
			}

			contentLength := r.ContentLength
			if cr.StatusProbe {
				if contentLength > 0 {
					writeProblem(w, http.StatusBadRequest, "Bad Request",
						"status probe must have an empty body")
					return
				}
				contentLength = 0
			} else if contentLength < 0 {
				writeProblem(w, http.StatusBadRequest, "Bad Request",
					"Content-Length header is required")
				return
			}

			ctx := r.Context()
			if deadline > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, deadline)
				defer cancel()
			}

			ctx = context.WithValue(ctx, chunkContextKey, &ChunkInfo{
				Range:         cr,
				ContentLength: contentLength,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
