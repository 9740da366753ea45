package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hemogram-alerts-go/internal/metrics"
	"hemogram-alerts-go/web"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	// Display surface
	r.Get("/", h.IndexHandler)
	r.Get("/events", h.EventsHandler)
	r.Get("/api/state", h.StateHandler)

	// Push delivery
	r.Post("/push/messages", h.PushMessageHandler)
	r.Post("/push/token", h.TokenHandler)

	// Browser notifications
	r.Get("/api/push/vapid", h.GetVAPIDKeyHandler)
	r.Post("/api/push/subscribe", h.SubscribePushHandler)
	r.Get("/api/notifications/permission", h.PermissionHandler)
	r.Post("/api/notifications/permission", h.PermissionHandler)
	r.Get("/api/notifications", h.NotificationsHandler)
	r.Post("/api/notifications/purge", h.PurgeNotificationsHandler)
	r.Get("/notifications/events", h.NotificationEventsHandler)

	// Hemogram analysis
	r.Post("/api/analyze", h.AnalyzeHandler)

	// Browser assets
	r.Handle("/static/*", web.StaticHandler())
	r.Handle("/sw.js", web.ServiceWorkerHandler())

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
