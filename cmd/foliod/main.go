// Command foliod serves the portfolio dashboard API: ledger reads and
// mutations, price proxies, CSV interchange and prometheus metrics.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"folio"
	"folio/pricefeed"
	"folio/server"
	"folio/store"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.StoreKind, cfg.StorePath)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	ledger, err := st.Load(ctx)
	if errors.Is(err, store.ErrEmpty) {
		logger.Info("no snapshot found, starting an empty ledger",
			zap.String("currency", cfg.Currency), zap.Bool("trackCash", cfg.TrackCash))
		opts := []folio.Option{folio.WithCurrency(cfg.Currency)}
		if cfg.TrackCash {
			opts = append(opts, folio.WithCashTracking())
		}
		ledger, err = folio.NewLedger(opts...), nil
	}
	if err != nil {
		logger.Fatal("loading ledger", zap.Error(err))
	}
	ledger.SetPersister(store.AsPersister(ctx, st))

	feedCfg, err := pricefeed.LoadConfig()
	if err != nil {
		logger.Fatal("pricefeed config", zap.Error(err))
	}
	feed := pricefeed.New(feedCfg)

	s := server.NewServer(ledger, feed, logger, cfg.CORSOrigin)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: s.R}
	go func() {
		logger.Info("http listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
