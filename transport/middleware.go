package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"storefront/pkg/metrics"
)

// Identity is the caller's verified identity, supplied by the external
// session layer through trusted headers. This core never issues or validates
// credentials itself.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

func (id Identity) IsOperator() bool { return id.Role == "admin" }

type contextKey int

const identityKey contextKey = iota

const (
	headerUserID = "X-User-Id"
	headerRole   = "X-User-Role"
)

func identityMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(headerUserID))
		if err != nil {
			h.ServeHTTP(w, r)
			return
		}
		identity := Identity{UserID: userID, Role: r.Header.Get(headerRole)}
		h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func identityFrom(r *http.Request) (Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(Identity)
	return identity, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h.ServeHTTP(recorder, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"status":     recorder.status,
			"duration":   time.Since(start),
			"remoteAddr": r.RemoteAddr,
		}).Info("handled request")
	})
}

func metricsMiddleware(m *metrics.ServerMetrics) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if name := route.GetName(); name != "" {
					handler = name
				}
			}
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			h.ServeHTTP(recorder, r)
			m.Requests.WithLabelValues(handler, strconv.Itoa(recorder.status)).Inc()
			m.Latency.WithLabelValues(handler).Observe(time.Since(start).Seconds())
		})
	}
}
