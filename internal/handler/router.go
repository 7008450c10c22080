// internal/handler/router.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/notification-engine/internal/controller"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Controllers struct {
	Config *controller.ConfigController
	Events *controller.EventController
	Queue  *controller.QueueController
}

// NewRouter wires every route of the admin and integration surface.
func NewRouter(c Controllers, store Pinger, corsOrigins []string, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-User-ID",
		},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthz(store))
	r.Handle("/metrics", promhttp.Handler())

	// Tenant config
	r.HandleFunc("/config", c.Config.MissingCompany)
	r.HandleFunc("/config/", c.Config.MissingCompany)
	r.Route("/config/{companyId}", func(r chi.Router) {
		r.Get("/", c.Config.GetConfig)
		r.Put("/", c.Config.UpdateConfig)
		r.Delete("/", c.Config.ResetConfig)
		r.Put("/master", c.Config.ToggleMaster)
	})

	// Catalog and event intake
	r.Get("/events", c.Events.ListEvents)
	r.Post("/events", c.Events.RaiseEvent)

	// Delivery queue
	r.Get("/queue", c.Queue.ListQueue)
	r.Delete("/queue", c.Queue.CancelQueue)
	r.Get("/queue/{queueId}", c.Queue.GetQueueItem)

	return r
}

func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
