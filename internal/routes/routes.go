package routes

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/config"
	"github.com/AnshRaj112/usedgoods-backend/internal/handlers"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

const (
	authRateLimitWindow = 15 * time.Minute
	authRateLimitMax    = 5
	apiRateLimitWindow  = time.Minute
	apiRateLimitMax     = 60

	uploadBurstEvery = 6 * time.Second
	uploadBurst      = 10
	uploadBurstTTL   = 30 * time.Minute
)

// Dependencies wires the router. AuthRateLimitMax and APIRateLimitMax
// override the built-in limits when positive.
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	Handler       *handlers.Handler
	Auth          *middleware.Authenticator
	Attempts      *services.LoginAttemptService
	RateStore     middleware.Store
	UploadLimiter *middleware.BurstLimiter
	// ServeUploads exposes UPLOAD_DIR under /uploads (local image store only).
	ServeUploads bool

	AuthRateLimitMax int
	APIRateLimitMax  int
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Dependencies) http.Handler {
	cfg, logger, h, auth := d.Config, d.Logger, d.Handler, d.Auth

	authMax := authRateLimitMax
	if d.AuthRateLimitMax > 0 {
		authMax = d.AuthRateLimitMax
	}
	apiMax := apiRateLimitMax
	if d.APIRateLimitMax > 0 {
		apiMax = d.APIRateLimitMax
	}

	if d.RateStore == nil {
		d.RateStore = middleware.NewMemoryStore()
	}
	if d.UploadLimiter == nil {
		d.UploadLimiter = NewUploadLimiter()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(logger, !cfg.IsProduction()))
	r.Use(middleware.ClientIP(cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	if d.ServeUploads {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(noListingFS{http.Dir(cfg.UploadDir)})))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateStore, middleware.RateLimitOptions{
			Name:   "global",
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		}, logger))
		r.Use(middleware.MaxBody(middleware.MaxJSONBody))
		r.Use(middleware.Sanitize)
		if cfg.CSRFEnabled {
			r.Use(middleware.CSRF(cfg.SessionSecret, cfg.SessionMaxAge, cfg.IsProduction(), cfg.AllowedOrigins, logger))
			r.Get("/csrf-token", middleware.CSRFToken)
		}

		r.Get("/health", h.Health)

		authLimit := middleware.RateLimit(d.RateStore, middleware.RateLimitOptions{
			Name:           "auth",
			Window:         authRateLimitWindow,
			Max:            authMax,
			SkipSuccessful: true,
			Message:        "too many authentication attempts, please try again later",
		}, logger)
		apiLimit := middleware.RateLimit(d.RateStore, middleware.RateLimitOptions{
			Name:   "api",
			Window: apiRateLimitWindow,
			Max:    apiMax,
		}, logger)

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/register", h.Handle(h.Register))
			r.With(authLimit, middleware.LoginThrottle(d.Attempts, logger)).Post("/login", h.Handle(h.Login))

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/logout", h.Handle(h.Logout))
				r.Get("/me", h.Handle(h.Me))
				r.Put("/me", h.Handle(h.UpdateMe))
				r.Put("/password", h.Handle(h.ChangePassword))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(apiLimit)
			r.Group(func(r chi.Router) {
				r.Use(auth.OptionalAuth)
				r.Get("/", h.Handle(h.ListProducts))
				r.Get("/search", h.Handle(h.SearchProducts))
				r.Get("/{id}", h.Handle(h.GetProduct))
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/", h.Handle(h.CreateProduct))
				r.Put("/{id}", h.Handle(h.UpdateProduct))
				r.Delete("/{id}", h.Handle(h.DeleteProduct))
				r.With(d.UploadLimiter.Middleware).Post("/{id}/images", h.Handle(h.UploadProductImages))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(apiLimit)
			r.Use(auth.RequireAuth)
			r.Get("/", h.Handle(h.GetCart))
			r.Delete("/", h.Handle(h.ClearCart))
			r.Post("/items", h.Handle(h.AddCartItem))
			r.Put("/items/{productId}", h.Handle(h.UpdateCartItem))
			r.Delete("/items/{productId}", h.Handle(h.RemoveCartItem))
		})

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Use(middleware.RequireSelf("userId"))
			r.Get("/recently-viewed", h.Handle(h.RecentlyViewed))
			r.Get("/search-history", h.Handle(h.SearchHistory))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.IPAllowList(cfg.AdminIPWhitelist, logger))
			r.Use(auth.RequireAuth)
			r.Use(middleware.RequireAdmin)
			r.Post("/maintenance/sweep-sessions", h.Handle(h.SweepSessions))
			r.Post("/maintenance/prune-login-attempts", h.Handle(h.PruneLoginAttempts))
			r.Get("/login-attempts", h.Handle(h.LoginAttempts))
			r.Delete("/users/{userId}", h.Handle(h.DeleteUser))
		})
	})

	return r
}

// NewUploadLimiter allows a burst of uploads per user, refilling one every
// few seconds.
func NewUploadLimiter() *middleware.BurstLimiter {
	return middleware.NewBurstLimiter(uploadBurstEvery, uploadBurst, uploadBurstTTL)
}

// noListingFS serves files but answers directories with 404.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
