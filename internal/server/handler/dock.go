package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/service"
)

// DockService defines the methods that the dock handler requires.
type DockService interface {
	Items(ctx context.Context, id string) ([]service.ItemView, error)
	Prices(ctx context.Context, id string, item domain.ItemID) (service.ItemView, error)
	Buy(ctx context.Context, id string, item domain.ItemID) (service.TradeResult, error)
	Sell(ctx context.Context, id string, item domain.ItemID) (service.TradeResult, error)
	Trades(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Trade, error)
}

// DockHandler serves item quotes, trades and the trade ledger.
type DockHandler struct {
	dock   DockService
	logger *slog.Logger
}

// NewDockHandler creates a DockHandler.
func NewDockHandler(dock DockService, logger *slog.Logger) *DockHandler {
	return &DockHandler{dock: dock, logger: logger}
}

type listItemsResponse struct {
	Items []service.ItemView `json:"items"`
}

// ListItems handles GET /api/sessions/{id}/items
func (h *DockHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.dock.Items(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, listItemsResponse{Items: items})
}

// GetItem handles GET /api/sessions/{id}/items/{item}
func (h *DockHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := parseItemID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	v, err := h.dock.Prices(r.Context(), r.PathValue("id"), item)
	if err != nil {
		writeServiceError(w, r, h.logger, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Buy handles POST /api/sessions/{id}/items/{item}/buy. A buy that would
// push the quote out of the price band returns 200 with outcome
// "rejected_price_limit".
func (h *DockHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, commandContext(r), h.dock.Buy)
}

// Sell handles POST /api/sessions/{id}/items/{item}/sell. A sell with no
// stock returns 200 with outcome "rejected_unavailable".
func (h *DockHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, commandContext(r), h.dock.Sell)
}

func (h *DockHandler) trade(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, domain.ItemID) (service.TradeResult, error)) {
	item, ok := parseItemID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	res, err := fn(r.Context(), r.PathValue("id"), item)
	if err != nil {
		writeServiceError(w, r, h.logger, "trade", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// ListTrades handles GET /api/sessions/{id}/trades?limit=&offset=
func (h *DockHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.dock.Trades(r.Context(), r.PathValue("id"), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list trades", err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
