package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/engine"
	"github.com/stock-monitor/server/internal/stock/model"
	"github.com/stock-monitor/server/internal/stock/presenter"
)

// Engine is the part of the monitor the API reads from.
type Engine interface {
	Products() []model.TrackedProduct
	Product(id string) (model.TrackedProduct, error)
	CurrentStock(ctx context.Context, id string) (model.StockSnapshot, error)
	Statistics(ctx context.Context, id string, window model.Window) ([]model.DayStat, error)
	Notifications(ctx context.Context, id string, limit int) ([]model.RestockNotification, error)
	Acknowledge(ctx context.Context, notificationID int64) (model.RestockNotification, error)
	Health() engine.Health
}

type App struct {
	engine   Engine
	renderer *presenter.TextRenderer
	log      zerolog.Logger
}

func NewApp(e Engine, renderer *presenter.TextRenderer, logger zerolog.Logger) *App {
	if renderer == nil {
		renderer = presenter.NewTextRenderer(nil)
	}
	return &App{engine: e, renderer: renderer, log: logger}
}

type statisticsResponse struct {
	Product model.TrackedProduct `json:"product"`
	Window  model.Window         `json:"window"`
	Days    []model.DayStat      `json:"days"`
}

type healthResponse struct {
	Status string `json:"status"`
	engine.Health
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errx.StatusOf(err) >= http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", RequestIDFromContext(r.Context())).Msg("request failed")
	}
	if wantsText(r) {
		writeText(w, errx.StatusOf(err), a.renderer.RenderError(errx.MessageOf(err)))
		return
	}
	writeAppError(w, err)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	h := a.engine.Health()
	if !h.Running {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stopped", Health: h})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Health: h})
}

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	products := a.engine.Products()
	if wantsText(r) {
		writeText(w, http.StatusOK, a.renderer.RenderMenu(products))
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *App) currentStockHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.CurrentStock(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, a.renderer.RenderCurrentStock(snap.Product.Name, snap.Product.Store, snap.Quantity, snap.CheckedAt))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *App) statisticsHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		raw = string(model.WindowWeek)
	}
	window, err := model.ParseWindow(raw)
	if err != nil {
		a.fail(w, r, errx.InvalidArgument("window must be week or month, got %q", raw))
		return
	}

	id := r.PathValue("id")
	product, err := a.engine.Product(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	days, err := a.engine.Statistics(r.Context(), id, window)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, a.renderer.RenderStatistics(window, days))
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{Product: product, Window: window, Days: days})
}

func (a *App) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.fail(w, r, errx.InvalidArgument("limit must be a non-negative integer, got %q", raw))
			return
		}
		limit = n
	}
	list, err := a.engine.Notifications(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) acknowledgeHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.fail(w, r, errx.InvalidArgument("notification id must be a positive integer, got %q", raw))
		return
	}
	n, err := a.engine.Acknowledge(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log.Info().Int64("notification_id", id).Str("operator_id", OperatorIDFromContext(r.Context())).Msg("notification acknowledged")
	writeJSON(w, http.StatusOK, n)
}
