package middleware

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/audit"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// AuditSink accepts finished request records.
type AuditSink interface {
	Log(rec audit.Record)
}

// Audit hands a record of every request to sink after the handler has
// written its response. It must run outside Auth so rejected requests are
// recorded too.
func Audit(sink AuditSink, maxCapture int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, state := apicontext.WithState(r.Context())
			r = r.WithContext(ctx)

			var reqBody []byte
			if r.Body != nil && r.Body != http.NoBody {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, maxCapture))
				// Whatever was not captured is still readable by the handler.
				r.Body = readCloser{io.MultiReader(bytes.NewReader(reqBody), r.Body), r.Body}
			}

			var respBody bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&limitedBuffer{buf: &respBody, max: maxCapture})

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			sink.Log(audit.Record{
				RequestID:      apicontext.RequestID(ctx),
				APIKeyID:       state.APIKeyID,
				OrganizationID: state.OrganizationID,
				Method:         r.Method,
				Path:           r.URL.Path,
				RequestBody:    reqBody,
				ResponseBody:   respBody.Bytes(),
				StatusCode:     status,
				ErrorMessage:   state.ErrorMessage,
				StartedAt:      start,
				Duration:       time.Since(start),
				IPAddress:      clientIP(r),
				UserAgent:      r.UserAgent(),
			})
		})
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int64
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - int64(b.buf.Len()); room > 0 {
		if int64(len(p)) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
