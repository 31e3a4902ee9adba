package mockapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yitethio/liyt-driver/internal/logx"
)

// NewRouter constructs a chi-based http.Handler with base middleware
// and the driver API routes.
func NewRouter(h *Handlers, logger logx.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(Observability(logger))

	r.Get("/ping", h.Ping)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/drivers/sessions", h.Login)
	r.Post("/drivers/sessions/refresh", h.Refresh)
	r.Post("/drivers/registrations", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/drivers/me", h.Me)
		r.Get("/drivers/deliveries", h.ListDeliveries)
		r.Get("/drivers/deliveries/{id}", h.GetDelivery)
		r.Patch("/drivers/deliveries/{id}/{transition}", h.Transition)
	})

	return r
}
