package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merco/internal/backtest"
	"merco/internal/httputil"
	"merco/internal/strategies"
	"merco/internal/tasks"
)

// BacktestHandler exposes the task Manager over HTTP: create, list, get,
// and a live event stream.
type BacktestHandler struct {
	manager    *tasks.Manager
	strategies *strategies.Registry
	defaultCap decimal.Decimal
}

// NewBacktestHandler wires a handler over manager. defaultCap seeds a
// request that omits initial_capital.
func NewBacktestHandler(manager *tasks.Manager, registry *strategies.Registry, defaultCap decimal.Decimal) *BacktestHandler {
	return &BacktestHandler{manager: manager, strategies: registry, defaultCap: defaultCap}
}

type createBacktestRequest struct {
	Name           string `json:"name"`
	Exchange       string `json:"exchange"`
	Symbol         string `json:"symbol"`
	Timeframe      string `json:"timeframe"`
	StrategyID     string `json:"strategy_id"`
	From           int64  `json:"from_ms"`
	To             int64  `json:"to_ms"`
	InitialCapital string `json:"initial_capital,omitempty"`
}

// Create starts a new backtest run and returns its initial snapshot.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBacktestRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Exchange == "" || req.Symbol == "" || req.Timeframe == "" || req.StrategyID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "exchange, symbol, timeframe, and strategy_id are required")
		return
	}
	if req.To <= req.From {
		httputil.WriteError(w, http.StatusBadRequest, "to_ms must be after from_ms")
		return
	}

	capital := h.defaultCap
	if req.InitialCapital != "" {
		parsed, err := decimal.NewFromString(req.InitialCapital)
		if err != nil || parsed.Sign() <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid initial_capital")
			return
		}
		capital = parsed
	}

	snapshot, err := h.manager.CreateTask(r.Context(), tasks.CreateRequest{
		Name:           req.Name,
		Exchange:       req.Exchange,
		Symbol:         req.Symbol,
		Timeframe:      req.Timeframe,
		StrategyID:     req.StrategyID,
		From:           time.UnixMilli(req.From).UTC(),
		To:             time.UnixMilli(req.To).UTC(),
		InitialCapital: capital,
	})
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snapshot)
}

// List returns every task's current snapshot.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.manager.List())
}

// Get returns a single task's current snapshot.
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	snapshot, err := h.manager.Get(id)
	if err != nil {
		if errors.Is(err, backtest.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "task not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// Cancel requests the task stop at its next candle boundary.
func (h *BacktestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := h.manager.Cancel(id); err != nil {
		if errors.Is(err, backtest.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "task not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancel requested"})
}

// Strategies lists the registered strategy ids callers may run.
func (h *BacktestHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"strategies": h.strategies.Names()})
}
