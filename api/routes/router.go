package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopfront-backend/api/controllers"
	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/internal/admin"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/contacts"
	"github.com/angelmondragon/shopfront-backend/internal/imports"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	"github.com/angelmondragon/shopfront-backend/internal/shops"
	"github.com/angelmondragon/shopfront-backend/internal/users"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/shopfront-backend/pkg/redis"
)

// Store is the redis surface the HTTP layer needs for idempotency replay,
// auth throttling and readiness.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Deps collects everything NewRouter wires. Nil services answer 500.
type Deps struct {
	DB       controllers.Pinger
	Redis    Store
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Auth     auth.Service
	Register auth.RegisterService
	Users    users.Service
	Contacts contacts.Service
	Shops    shops.Service
	Catalog  catalog.Service
	Orders   orders.Service
	Imports  imports.Service
	Admin    admin.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var idem pkgredis.IdempotencyStore
	var limiter interface {
		FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	}
	ready := map[string]controllers.Pinger{}
	if deps.DB != nil {
		ready["database"] = deps.DB
	}
	if deps.Redis != nil {
		idem = deps.Redis
		limiter = deps.Redis
		ready["redis"] = deps.Redis
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).
			Post("/user/register", controllers.AuthRegister(deps.Register, logg))
		r.Post("/user/register/confirm", controllers.AuthConfirm(deps.Register, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).
			Post("/user/login", controllers.AuthLogin(deps.Auth, logg))

		r.Get("/shops", controllers.ShopList(deps.Shops, logg))
		r.Get("/categories", controllers.CategoryList(deps.Catalog, logg))
		r.Get("/products", controllers.ProductList(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(deps.Auth, logg))
			r.Use(middleware.Idempotency(idem, logg))

			r.Get("/user/details", controllers.UserDetails(deps.Users, logg))
			r.Post("/user/details", controllers.UserUpdateDetails(deps.Users, logg))

			r.Get("/user/contact", controllers.ContactList(deps.Contacts, logg))
			r.Post("/user/contact", controllers.ContactCreate(deps.Contacts, logg))
			r.Put("/user/contact", controllers.ContactUpdate(deps.Contacts, logg))
			r.Delete("/user/contact", controllers.ContactDelete(deps.Contacts, logg))

			r.Get("/basket", controllers.BasketGet(deps.Orders, logg))
			r.Post("/basket", controllers.BasketAdd(deps.Orders, logg))
			r.Put("/basket", controllers.BasketUpdate(deps.Orders, logg))
			r.Delete("/basket", controllers.BasketDelete(deps.Orders, logg))

			r.Get("/order", controllers.OrderList(deps.Orders, logg))
			r.Post("/order", controllers.OrderCheckout(deps.Orders, logg))
			r.Get("/order/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Post("/order/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))

			r.Route("/partner", func(r chi.Router) {
				r.Use(middleware.RequireUserType(enums.UserTypeShop, logg))
				r.Post("/update", controllers.PartnerUpdate(deps.Imports, cfg.Import.MaxBodyBytes, logg))
				r.Get("/state", controllers.PartnerState(deps.Shops, logg))
				r.Post("/state", controllers.PartnerSetState(deps.Shops, logg))
				r.Get("/orders", controllers.PartnerOrders(deps.Orders, logg))
				r.Post("/orders/{orderId}/state", controllers.PartnerOrderState(deps.Orders, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).
				Post("/login", controllers.AdminAuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AdminAuthRefresh(deps.Auth, cfg.JWT, logg))
			r.Post("/logout", controllers.AdminAuthLogout(deps.Auth, cfg.JWT, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.Idempotency(idem, logg))

			r.Get("/{entity}", controllers.AdminList(deps.Admin, logg))
			r.Get("/{entity}/{id}", controllers.AdminGet(deps.Admin, logg))
			r.Patch("/{entity}/{id}", controllers.AdminPatch(deps.Admin, logg))
			r.Delete("/{entity}/{id}", controllers.AdminDelete(deps.Admin, logg))
			// only orders accept it; the controller rejects other entities.
			r.Post("/{entity}/{id}/state", controllers.AdminOrderState(deps.Admin, logg))
		})
	})

	return r
}
