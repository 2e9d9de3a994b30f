// Package main runs the whole appointment pipeline in one process for local development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kylejryan/appointment-lifecycle/internal/config"
	"github.com/kylejryan/appointment-lifecycle/internal/countrydb"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/pipeline"
	"github.com/kylejryan/appointment-lifecycle/internal/router"
)

const busInterval = 200 * time.Millisecond

func main() {
	env := config.LoadLocal()
	log := logging.New(env.LogLevel, env.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	countries, err := countrydb.Open(env.CountryStoreDriver, log)
	if err != nil {
		log.Error("open country store", "error", err)
		os.Exit(1)
	}
	if pg, ok := countries.(*countrydb.Postgres); ok {
		defer pg.Close()
	}

	local := pipeline.NewLocal(countries, env.BusMaxReceives, log)
	go local.Bus.Run(ctx, busInterval)

	server := &http.Server{
		Addr:         env.HTTPAddr,
		Handler:      router.New(local, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		log.Info("dev server listening", "addr", env.HTTPAddr, "country_store", env.CountryStoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
