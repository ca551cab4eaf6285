package admin

import (
	"bytes"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/architeacher/adaptivebreaker/pkg/idempotency"
	"github.com/architeacher/adaptivebreaker/pkg/logger"
)

func AccessLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			reqLogger := log.WithContext(r.Context()).
				With().
				Str("component", "admin").
				Logger()

			event := reqLogger.Info()
			if wrapped.Status() >= http.StatusInternalServerError {
				event = reqLogger.Error()
			} else if wrapped.Status() >= http.StatusBadRequest {
				event = reqLogger.Warn()
			}

			event.
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", wrapped.Status()).
				Int("bytes", wrapped.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Send()
		})
	}
}

// Idempotency makes a management command carrying an Idempotency-Key apply
// once. A repeated key replays the recorded response; a key whose first
// request is still running is rejected with 409.
func Idempotency(store *replayStore, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok, err := idempotency.FromRequest(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)

				return
			}

			if !ok {
				next.ServeHTTP(w, r)

				return
			}

			cacheKey := idempotency.ReplayKey(r.Method, r.URL.Path, key)

			cached, acquired := store.acquire(cacheKey)
			if cached != nil {
				w.Header().Set(contentTypeHeader, applicationJSON)
				w.Header().Set(idempotency.ReplayedHeader, "true")
				w.WriteHeader(cached.status)
				_, _ = w.Write(cached.body)

				return
			}

			if !acquired {
				writeError(w, http.StatusConflict, errRequestInProgress)

				return
			}

			var body bytes.Buffer

			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			wrapped.Tee(&body)

			committed := false
			defer func() {
				if !committed {
					store.release(cacheKey)
				}
			}()

			next.ServeHTTP(wrapped, r.WithContext(idempotency.WithKey(r.Context(), key)))

			if wrapped.Status() >= http.StatusOK && wrapped.Status() < http.StatusMultipleChoices {
				store.commit(cacheKey, wrapped.Status(), body.Bytes())
				committed = true

				reqLogger := log.WithContext(r.Context())
				reqLogger.Debug().
					Str("idempotency_key", key).
					Msg("recorded command response")
			}
		})
	}
}
