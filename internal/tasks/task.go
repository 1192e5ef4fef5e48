package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"merco/internal/backtest"
	"merco/internal/precision"
	"merco/internal/types"
)

// Task is a single backtest run wrapped as a cancellable background job.
// Its own mutex is independent of the Manager's registry lock, so a
// long-running run never blocks Manager.List or Manager.Get for any
// other task.
type Task struct {
	ID         uuid.UUID
	Name       string
	Exchange   string
	Symbol     string
	Timeframe  string
	StrategyID string

	mu         sync.Mutex
	status     types.TaskStatus
	progress   float64
	errMessage string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	statistic  *backtest.BacktestStatistic

	cancel context.CancelFunc
}

// Snapshot is the immutable, JSON-friendly view of a Task at a point in
// time, what CreateTask/List/Get/the event stream all hand back.
type Snapshot struct {
	ID         uuid.UUID                   `json:"id"`
	Name       string                      `json:"name"`
	Exchange   string                      `json:"exchange"`
	Symbol     string                      `json:"symbol"`
	Timeframe  string                      `json:"timeframe"`
	StrategyID string                      `json:"strategy_id"`
	Status     types.TaskStatus            `json:"status"`
	Progress   float64                     `json:"progress"`
	Error      string                      `json:"error,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
	StartedAt  *time.Time                  `json:"started_at,omitempty"`
	FinishedAt *time.Time                  `json:"finished_at,omitempty"`
	Statistic  *backtest.BacktestStatistic `json:"statistic,omitempty"`
}

func newTask(id uuid.UUID, name, exchange, symbol, timeframe, strategyID string) *Task {
	return &Task{
		ID:         id,
		Name:       name,
		Exchange:   exchange,
		Symbol:     symbol,
		Timeframe:  timeframe,
		StrategyID: strategyID,
		status:     types.TaskPending,
		createdAt:  time.Now().UTC(),
	}
}

// Snapshot copies out the task's current state under its own lock.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		ID:         t.ID,
		Name:       t.Name,
		Exchange:   t.Exchange,
		Symbol:     t.Symbol,
		Timeframe:  t.Timeframe,
		StrategyID: t.StrategyID,
		Status:     t.status,
		Progress:   t.progress,
		Error:      t.errMessage,
		CreatedAt:  t.createdAt,
		Statistic:  t.statistic,
	}
	if !t.startedAt.IsZero() {
		st := t.startedAt
		s.StartedAt = &st
	}
	if !t.finishedAt.IsZero() {
		ft := t.finishedAt
		s.FinishedAt = &ft
	}
	return s
}

// Cancel requests the running backtest stop at its next candle boundary.
// It is a no-op if the task is not currently running.
func (t *Task) Cancel() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// run drives the task to completion: it executes the candle series
// against the strategy, computes statistics, and transitions through
// Running -> (Completed | Failed), publishing an event on every
// transition and every progress tick. A panic inside the strategy is not
// recovered here; callers running this in a goroutine should wrap it if
// they want panics converted to Failed instead of crashing the process.
func (t *Task) run(parent context.Context, candles []backtest.Candle, strategy backtest.StrategyHandle, initialCapital decimal.Decimal, fees backtest.TradingFees, prec precision.Precision, publish func(Event)) {
	runCtx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	t.status = types.TaskRunning
	t.startedAt = time.Now().UTC()
	t.cancel = cancel
	t.mu.Unlock()
	publish(Event{Type: "task_status", Data: t.Snapshot()})

	stratCtx := backtest.NewStrategyContext(initialCapital, fees, prec)
	onProgress := func(p backtest.Progress) {
		t.mu.Lock()
		t.progress = p.Fraction()
		t.mu.Unlock()
		publish(Event{Type: "task_progress", Data: t.Snapshot()})
	}

	runner := backtest.NewRunner(candles, strategy, stratCtx, onProgress)
	runErr := runner.Run(runCtx)
	cancel()

	builder := backtest.NewStatisticBuilder(initialCapital)
	stat := builder.Build(stratCtx.Candles(), stratCtx.Balance(), stratCtx.Position(), stratCtx.Trades())

	t.mu.Lock()
	t.finishedAt = time.Now().UTC()
	t.progress = 1
	if runErr != nil {
		t.status = types.TaskFailed
		t.errMessage = fmt.Sprintf("backtest run failed: %v", runErr)
	} else {
		t.status = types.TaskCompleted
		t.statistic = &stat
	}
	t.mu.Unlock()
	publish(Event{Type: "task_status", Data: t.Snapshot()})
}
