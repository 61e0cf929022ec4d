package fakeshop

import (
	"net/http"
	"time"

	"github.com/example/sweetshop-storefront/internal/auth"
	"github.com/example/sweetshop-storefront/internal/fakeshop/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RouterConfig holds the dependencies of the HTTP router
type RouterConfig struct {
	Shop       *Shop
	JWTService *auth.JWTService
	Logger     logrus.FieldLogger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "fakeshop")
	h := NewHandlers(cfg.Shop, cfg.JWTService, log)
	requireAuth := middleware.AuthMiddleware(cfg.JWTService)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(withLogging(log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.GetProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Post("/users", h.Register)
		r.Post("/users/login", h.Login)
		r.With(requireAuth).Get("/users/profile", h.GetProfile)
		r.With(requireAuth).Put("/users/profile", h.UpdateProfile)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/orders", h.PlaceOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Put("/orders/{id}/pay", h.PayOrder)
			r.Put("/orders/{id}/deliver", h.DeliverOrder)

			r.Post("/payment/create-payment-intent", h.CreatePaymentIntent)
			r.Post("/payment/confirm-payment", h.ConfirmPayment)
		})
	})

	return r
}

func withLogging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start),
				"request_id": chimw.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}
