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
)

func main() {
	cfg := loadServerConfig()

	logger, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}

	srv := NewServer(logger, cfg.WebhookURL)
	defer srv.Close()
	srv.SetSnapshotDir(cfg.SnapshotDir)

	if cfg.SchemaDir != "" {
		watcher, err := NewSchemaWatcher(cfg.SchemaDir, srv.manager, logger)
		if err != nil {
			logger.Errorf("cannot watch schema dir %s: %v", cfg.SchemaDir, err)
			os.Exit(1)
		}
		defer watcher.Close()
		if err := watcher.LoadAll(); err != nil {
			logger.Errorf("cannot load schema dir %s: %v", cfg.SchemaDir, err)
			os.Exit(1)
		}
		watcher.Start()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/definitions", srv.handleListDefinitions)
	mux.HandleFunc("/definition/", srv.handleDefinitionRoutes)
	mux.HandleFunc("/events", srv.handleEvents)

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Infof("joind listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server failed: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Infof("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}
