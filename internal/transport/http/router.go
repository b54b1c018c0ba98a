package http

import (
	"net/http"
	"time"

	"exam-session-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter mounts the REST, WebSocket and operational endpoints. m may be nil.
func NewRouter(service SessionService, m *metrics.Metrics, log zerolog.Logger) http.Handler {
	rest := NewRESTHandler(service, log)
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware(routePattern))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", rest.Start)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", rest.Current)
			r.Delete("/", rest.Abandon)
			r.Post("/answers", rest.SetAnswer)
			r.Post("/next", rest.Next)
			r.Post("/previous", rest.Previous)
			r.Put("/timer", rest.SetTimerVisible)
			r.Post("/submit", rest.Submit)
		})
	})
	r.Get("/results/{sessionID}", rest.Result)
	r.Get("/results/{sessionID}/view", rest.ResultPage)
	r.Get("/ws", ws.ServeWS)
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func accessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
