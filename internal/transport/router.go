package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/internal/crud"
	"github.com/lunahq/posada/internal/observability"
	"github.com/lunahq/posada/internal/reservation"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Authenticate func(http.Handler) http.Handler
	Manager      *crud.Manager
	Reservations *reservation.Engine
	Readiness    observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware. Resource mutations require the administrator
// role; reservation endpoints only need an authenticated subject.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public routes — bypass authentication.
	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	resources := NewResourceHandler(deps.Manager, deps.Logger)
	reservations := NewReservationHandler(deps.Reservations, deps.Logger)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext(deps.Config.Identity.RoleClaim, deps.Logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))

		r.Get("/ui/resources", resources.HandleIndex)
		r.Get("/ui/resources/{collection}", resources.HandleView)
		r.Get("/ui/resources/{collection}/search/{id}", resources.HandleSearch)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/ui/resources/{collection}/refresh", resources.HandleRefresh)
			r.Post("/ui/resources/{collection}/form", resources.HandleFormInput)
			r.Post("/ui/resources/{collection}/submit", resources.HandleSubmit)
			r.Post("/ui/resources/{collection}/edit/{id}", resources.HandleEdit)
			r.Post("/ui/resources/{collection}/cancel", resources.HandleCancel)
			r.Delete("/ui/resources/{collection}/{id}", resources.HandleRemove)
		})

		r.Post("/ui/reservations", reservations.HandleStart)
		r.Get("/ui/reservations/{id}", reservations.HandleGet)
		r.Patch("/ui/reservations/{id}/draft", reservations.HandleDraft)
		r.Post("/ui/reservations/{id}/submit", reservations.HandleSubmit)
		r.Post("/ui/reservations/{id}/invoice/dismiss", reservations.HandleDismissInvoice)
	})

	return r
}
