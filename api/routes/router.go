package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	"github.com/angelmondragon/storefront-checkout/internal/region"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Deps are the services and stores the HTTP surface is built from.
type Deps struct {
	Regions     region.Service
	Carts       cart.Service
	Customers   customer.Service
	Checkout    checkout.Service
	Sessions    *session.Manager
	Idempotency pkgredis.IdempotencyStore
	RateLimiter pkgredis.RateLimiter
	Redis       pkgredis.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{"redis": deps.Redis}))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	paymentPolicy := middleware.NewRateLimitPolicy("payment", cfg.RateLimit.PaymentWindow, cfg.RateLimit.PaymentLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Session(cfg.Session, logg),
			middleware.Idempotency(deps.Idempotency, logg),
		)

		r.Get("/regions", controllers.RegionsList(deps.Regions, logg))

		r.Route("/session", func(r chi.Router) {
			r.Post("/region", controllers.SessionSelectRegion(deps.Regions, deps.Carts, logg))
			r.Post("/auth", controllers.SessionSignIn(deps.Sessions, logg))
			r.Delete("/auth", controllers.SessionSignOut(deps.Sessions, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Carts, logg))
			r.Post("/items", controllers.CartAddItem(deps.Carts, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Carts, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Carts, logg))
			r.Post("/refresh", controllers.CartRefresh(deps.Carts, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCustomer(deps.Sessions, logg))

			r.Get("/customer/me", controllers.CustomerMe(deps.Customers, logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CheckoutPage(deps.Checkout, logg))
				r.Post("/previous", controllers.CheckoutPrevious(deps.Checkout, logg))
				r.Post("/addresses", controllers.CheckoutSubmitAddresses(deps.Checkout, logg))
				r.Get("/shipping-options", controllers.CheckoutShippingOptions(deps.Checkout, logg))
				r.Post("/shipping", controllers.CheckoutSubmitShipping(deps.Checkout, logg))
				r.Post("/payment/initialize", controllers.CheckoutInitializePayment(deps.Checkout, logg))
				r.Post("/payment/providers", controllers.CheckoutLoadPaymentProviders(deps.Checkout, logg))
				r.Post("/payment/collection", controllers.CheckoutCreatePaymentCollection(deps.Checkout, logg))
				r.Post("/payment/session", controllers.CheckoutCreatePaymentSession(deps.Checkout, logg))
				r.Post("/payment/provider", controllers.CheckoutSelectProvider(deps.Checkout, logg))
				r.With(middleware.RateLimit(paymentPolicy, deps.RateLimiter, logg)).
					Post("/payment", controllers.CheckoutConfirmPayment(deps.Checkout, logg))
				r.Post("/complete", controllers.CheckoutComplete(deps.Checkout, logg))
			})
		})
	})

	return r
}
