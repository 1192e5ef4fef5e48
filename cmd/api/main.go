package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"merco/internal/auth"
	"merco/internal/candlestore"
	"merco/internal/config"
	"merco/internal/exchangemeta"
	"merco/internal/httpserver"
	"merco/internal/strategies"
	"merco/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	initialCapital, err := decimal.NewFromString(cfg.DefaultInitialCapital)
	if err != nil {
		log.Fatal(err)
	}

	var candles candlestore.Store
	if cfg.DBDSN != "" {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		candles = candlestore.NewPostgresStore(pool)
		log.Printf("candle store: postgres")
	} else {
		candles = candlestore.NewGenerator()
		log.Printf("candle store: synthetic generator (set DB_DSN for postgres)")
	}

	meta := exchangemeta.NewStaticTable()
	registry := strategies.NewDefaultRegistry()
	bus := tasks.NewBus()
	manager := tasks.NewManager(candles, meta, registry, bus)

	authSvc := auth.NewService(cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	authHandler := auth.NewHandler(authSvc, cfg.ProfectMode)
	backtestHandler := httpserver.NewBacktestHandler(manager, registry, initialCapital)
	taskWS := httpserver.NewTaskWS(manager, cfg.WebSocketOrigin)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:     authHandler,
		AuthService:     authSvc,
		BacktestHandler: backtestHandler,
		TaskWS:          taskWS,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("server listening on %s", cfg.HTTPAddr)
	log.Printf("health endpoint: http://localhost%s/health", cfg.HTTPAddr)
	log.Printf("auth mode: %s", cfg.ProfectMode)
	log.Printf("strategies: %v", registry.Names())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
