package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merco/internal/backtest"
	"merco/internal/candlestore"
	"merco/internal/exchangemeta"
	"merco/internal/strategies"
)

// CreateRequest describes a backtest a caller wants run.
type CreateRequest struct {
	Name           string
	Exchange       string
	Symbol         string
	Timeframe      string
	StrategyID     string
	From           time.Time
	To             time.Time
	InitialCapital decimal.Decimal
}

// Manager owns the task registry and wires together the CandleStore,
// ExchangeMeta, and StrategyLoader ports to execute backtests as
// background jobs. Its map shape is protected by one RWMutex; each task's
// own fields are protected independently (see Task), so a task broadcasting
// progress never blocks Manager.List for every other task.
type Manager struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	order []uuid.UUID

	candles    candlestore.Store
	meta       exchangemeta.Lookup
	strategies *strategies.Registry
	bus        *Bus
}

// NewManager wires a Manager from its three opaque ports plus the event
// bus tasks broadcast over.
func NewManager(candles candlestore.Store, meta exchangemeta.Lookup, registry *strategies.Registry, bus *Bus) *Manager {
	return &Manager{
		tasks:      make(map[uuid.UUID]*Task),
		candles:    candles,
		meta:       meta,
		strategies: registry,
		bus:        bus,
	}
}

// CreateTask resolves the strategy, symbol fees/precision, and candle
// series up front (so request-time errors surface synchronously), then
// registers a Pending task and starts it running in the background.
// It returns the task's initial snapshot immediately; the caller
// observes progress over Subscribe.
func (m *Manager) CreateTask(ctx context.Context, req CreateRequest) (Snapshot, error) {
	strategy, err := m.strategies.Load(req.StrategyID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolve strategy: %w", err)
	}
	fees, err := m.meta.Fees(req.Exchange, req.Symbol)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: resolve fees: %w", backtest.ErrInternal, err)
	}
	prec, err := m.meta.Precision(req.Exchange, req.Symbol)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: resolve precision: %w", backtest.ErrInternal, err)
	}
	rawCandles, err := m.candles.Candles(ctx, req.Symbol, req.Timeframe, req.From, req.To)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: load candles: %w", backtest.ErrInternal, err)
	}
	if len(rawCandles) == 0 {
		return Snapshot{}, backtest.ErrNoData
	}
	candles := make([]backtest.Candle, len(rawCandles))
	for i, c := range rawCandles {
		candles[i] = backtest.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}

	id := uuid.New()
	task := newTask(id, req.Name, req.Exchange, req.Symbol, req.Timeframe, req.StrategyID)

	m.mu.Lock()
	m.tasks[id] = task
	m.order = append(m.order, id)
	m.mu.Unlock()

	snapshot := task.Snapshot()
	m.bus.Publish(Event{Type: "task_created", Data: snapshot})

	go task.run(context.Background(), candles, strategy, req.InitialCapital, fees, prec, m.bus.Publish)

	return snapshot, nil
}

// Get returns the current snapshot of a task by id, or ErrNotFound.
func (m *Manager) Get(id uuid.UUID) (Snapshot, error) {
	m.mu.RLock()
	task, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, backtest.ErrNotFound
	}
	return task.Snapshot(), nil
}

// List returns every task's current snapshot, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Snapshot())
	}
	return out
}

// Cancel requests the task with the given id stop at its next candle
// boundary. It returns ErrNotFound if no such task exists.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.RLock()
	task, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return backtest.ErrNotFound
	}
	task.Cancel()
	return nil
}

// Subscribe returns a channel that first receives a snapshot event for
// every task that currently exists, then forwards the live event stream
// until ctx is cancelled. The returned cleanup function must be called
// when the caller is done reading to release the underlying bus
// subscription.
func (m *Manager) Subscribe(ctx context.Context) (<-chan Event, func()) {
	live := m.bus.Subscribe()
	out := make(chan Event, 256)

	go func() {
		defer close(out)
		for _, snap := range m.List() {
			select {
			case out <- Event{Type: "task_snapshot", Data: snap}:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case evt, ok := <-live:
				if !ok {
					return
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	cleanup := func() { m.bus.Unsubscribe(live) }
	return out, cleanup
}
