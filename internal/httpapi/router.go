package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/stock-monitor/server/internal/authz"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
// Everything under /api/ requires an authorized operator.
func NewRouter(app *App, a authz.Authorizer, logger zerolog.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/products", app.listProductsHandler)
	api.HandleFunc("GET /api/products/{id}/stock", app.currentStockHandler)
	api.HandleFunc("GET /api/products/{id}/statistics", app.statisticsHandler)
	api.HandleFunc("GET /api/products/{id}/notifications", app.notificationsHandler)
	api.HandleFunc("POST /api/notifications/{id}/ack", app.acknowledgeHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", app.healthHandler)
	mux.Handle("/api/", RequireOperator(a, logger, api))
	return WithRequestID(WithLogging(logger, mux))
}
