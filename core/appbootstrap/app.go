package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil-ird/api"
	"vigil-ird/config"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

// Run wires the whole application and serves until SIGINT/SIGTERM.
func Run(cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}

	composition, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}

	for _, worker := range composition.workers {
		if err := worker.Start(); err != nil {
			return err
		}
	}
	defer func() {
		for _, worker := range composition.workers {
			worker.Stop()
		}
	}()

	server := api.NewServer(cfg, composition.serverDeps, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Printf("listening on %s", cfg.ListenAddr)
		}
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		if logger != nil {
			logger.Printf("received %s, shutting down", sig)
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
