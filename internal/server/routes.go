package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/handlers"
	"github.com/shieldline/siteapi/internal/middleware"
	"github.com/shieldline/siteapi/internal/ratelimit"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

const requestTimeout = 60 * time.Second

// Dependencies are the services the router dispatches to.
type Dependencies struct {
	Auth     *services.AuthService
	Perms    *services.PermissionService
	Activity *services.ActivityService
	Users    *services.UserService
	Roles    *services.RoleService
	Blog     *services.BlogService
	Leads    *services.LeadService
	Uploads  *services.UploadService
	Stats    *services.StatsService
	Limiter  *ratelimit.Limiter
	DB       handlers.Pinger
}

// NewRouter builds the site API router.
func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *chi.Mux {
	dev := cfg.IsDevelopment()
	limits := ratelimit.PoliciesFromConfig(cfg.RateLimits)

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Perms, cfg.Auth.CookieSecure, dev)
	blogHandler := handlers.NewBlogHandler(deps.Blog, deps.Activity, dev)
	leadHandler := handlers.NewLeadHandler(deps.Leads, deps.Activity, dev)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Activity, dev)
	roleHandler := handlers.NewRoleHandler(deps.Roles, deps.Activity, dev)
	uploadHandler := handlers.NewUploadHandler(deps.Uploads, deps.Activity, dev)
	dashboardHandler := handlers.NewDashboardHandler(deps.Stats, deps.Activity, deps.Perms, dev)
	require := handlers.PermissionMiddleware(authHandler.RequirePermission)

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Warn("ignoring forwarding headers", "error", err)
		trusted = nil
	}

	router := chi.NewRouter()
	router.Use(
		chimw.RequestID,
		middleware.RealIP(trusted),
		middleware.RequestLogger(logger),
		chimw.Recoverer,
		chimw.Timeout(requestTimeout),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(dev)),
		middleware.CORS(cfg.AllowedOrigin),
	)

	router.Get("/healthz", handlers.Health(deps.DB))

	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "local" {
		router.Handle("/uploads/*", staticFiles(cfg.Storage.Local.Dir))
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, handlers.AuthRoutes{
				LoginLimit:    deps.Limiter.Middleware(limits.Login),
				RegisterLimit: deps.Limiter.Middleware(limits.Register),
				RequireAuth:   authHandler.RequireAuth,
			})
		})
		r.Route("/blog", func(r chi.Router) {
			handlers.BlogRouter(r, blogHandler)
		})

		r.With(deps.Limiter.Middleware(limits.Contact)).Post("/contact", leadHandler.SubmitContact)
		r.With(deps.Limiter.Middleware(limits.Consultation)).Post("/consultations", leadHandler.SubmitConsultation)
		r.With(
			authHandler.RequireAuth,
			require(types.ResourceUploads, types.ActionCreate),
			deps.Limiter.Middleware(limits.Upload),
		).Post("/upload", uploadHandler.Upload)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			handlers.DashboardRouter(r, dashboardHandler, require)
			r.Route("/blog", func(r chi.Router) {
				handlers.BlogAdminRouter(r, blogHandler, require)
			})
			r.Route("/users", func(r chi.Router) {
				handlers.UserAdminRouter(r, userHandler, require)
			})
			r.Route("/roles", func(r chi.Router) {
				handlers.RoleAdminRouter(r, roleHandler, require)
			})
			r.Route("/consultations", func(r chi.Router) {
				handlers.ConsultationAdminRouter(r, leadHandler, require)
			})
			r.Route("/contacts", func(r chi.Router) {
				handlers.ContactAdminRouter(r, leadHandler, require)
			})
			r.Route("/uploads", func(r chi.Router) {
				handlers.UploadAdminRouter(r, uploadHandler, require)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"route not found"}` + "\n"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"success":false,"error":"method not allowed"}` + "\n"))
	})

	return router
}

// staticFiles serves uploaded objects from the local storage directory
// without directory listings.
func staticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	})
}
