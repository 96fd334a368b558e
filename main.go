package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/config"
	"github.com/uwamba/edms/internal/db"
	"github.com/uwamba/edms/internal/gelf"
	"github.com/uwamba/edms/internal/server"
)

func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	// GELF UDP logging
	if cfg.GelfAddr != "" {
		hook, err := gelf.New(cfg.GelfAddr, "edms")
		if err != nil {
			log.WithError(err).Warn("GELF init failed")
			return
		}
		log.AddHook(hook)
		log.WithField("addr", cfg.GelfAddr).Info("GELF logging enabled")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	if cfg.Store == config.StoreSQLite {
		log.WithField("path", cfg.SQLitePath).Info("using embedded SQLite store")
		return db.OpenSQLite(ctx, cfg.SQLitePath)
	}
	pool, err := db.NewPool(ctx, cfg.OxiDBHost, cfg.OxiDBPort, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"host": cfg.OxiDBHost,
		"port": cfg.OxiDBPort,
		"pool": cfg.PoolSize,
	}).Info("connected to OxiDB")
	return pool, nil
}

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer store.Close()

	srv := server.New(store, cfg.Store, cfg.JWTSecret)

	// Index creation can take minutes on large submission collections, so it
	// runs alongside the listener.
	go func() {
		log.Info("background init: starting")
		if err := srv.Init(ctx, cfg.AdminEmail, cfg.AdminPass); err != nil {
			log.WithError(err).Warn("background init failed")
			return
		}
		log.Info("background init: done")
	}()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("EDMS server starting")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server failed")
	}
}
