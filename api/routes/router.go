package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketloop/cartengine/api/controllers"
	cartcontrollers "github.com/marketloop/cartengine/api/controllers/cart"
	"github.com/marketloop/cartengine/api/middleware"
	"github.com/marketloop/cartengine/internal/cart"
	"github.com/marketloop/cartengine/internal/guard"
	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	abuse *guard.AbuseMonitor,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Owner(logg))
		r.Use(middleware.Restriction(abuse, logg))

		r.Get("/", cartcontrollers.Fetch(cartService, logg))
		r.Post("/items", cartcontrollers.AddItem(cartService, logg))
		r.Patch("/items/{itemId}", cartcontrollers.UpdateItem(cartService, logg))
		r.Delete("/items/{itemId}", cartcontrollers.RemoveItem(cartService, logg))
		r.Post("/promotions", cartcontrollers.ApplyPromotion(cartService, logg))
		r.Delete("/promotions/{code}", cartcontrollers.RemovePromotion(cartService, logg))
		r.Post("/merge", cartcontrollers.Merge(cartService, logg))
		r.Post("/convert", cartcontrollers.Convert(cartService, logg))
	})

	return r
}
