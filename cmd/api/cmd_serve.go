package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wbor-twilio/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(rootCtx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		return err
	}
	defer a.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, a)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	consumer, err := a.outgoingConsumer()
	if err != nil {
		return err
	}
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if consumer == nil {
			return
		}
		if err := consumer.Run(rootCtx, a.smsSvc.HandleQueued); err != nil {
			log.Error("outgoing sms consumer stopped", "err", err)
			stop()
		}
	}()

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn("outgoing sms consumer did not stop in time")
	}
	if err := a.runner.Shutdown(shutdownCtx); err != nil {
		log.Warn("background tasks cancelled", "err", err, "in_flight", a.runner.InFlight())
	}
	if err := a.eventRun.Shutdown(shutdownCtx); err != nil {
		log.Warn("event publishes cancelled", "err", err, "in_flight", a.eventRun.InFlight())
	}

	return nil
}
