// Package httpapi assembles the HTTP surface of the ledger service. Handlers
// stay thin and delegate to the feature services; this package only wires
// routing and middleware.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "safemint/internal/audit/handler"
	authhandler "safemint/internal/jwttoken/handler"
	"safemint/internal/platform/middleware"
	registryhandler "safemint/internal/registry/handler"
	roleshandler "safemint/internal/roles/handler"
	tokenhandler "safemint/internal/token/handler"
)

// Deps collects the handlers and cross-cutting pieces the router mounts.
type Deps struct {
	Logger    *slog.Logger
	Validator middleware.JWTValidator

	Auth     *authhandler.Handler
	Tokens   *tokenhandler.Handler
	Roles    *roleshandler.Handler
	Registry *registryhandler.Handler
	Audits   *audithandler.Handler
}

// NewRouter wires all endpoints. Everything under the authenticated group
// requires a bearer token resolving to a ledger account; the admin group
// additionally requires the admin claim.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	deps.Auth.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		deps.Tokens.Register(r)
		deps.Roles.Register(r)
		deps.Registry.Register(r)
		deps.Audits.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(deps.Logger))

			deps.Tokens.RegisterAdmin(r)
			deps.Roles.RegisterAdmin(r)
			deps.Registry.RegisterAdmin(r)
			deps.Audits.RegisterAdmin(r)
		})
	})

	return r
}
