package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amoisekai/engine/internal/app"
	"github.com/amoisekai/engine/internal/config"
	"github.com/amoisekai/engine/internal/logger"
	"github.com/amoisekai/engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Amoisekai worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"llm_provider", cfg.LLMProvider,
		"workers", cfg.Workers)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	a, err := app.Build(initCtx, cfg, log, app.Options{Registerer: reg})
	initCancel()
	if err != nil {
		log.Error("Failed to build engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Error closing engine", "error", err)
		}
	}()
	log.Info("Engine initialized successfully", "model", cfg.ModelName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", "error", err)
		}
	}()

	processor := worker.NewRequestProcessor(a.Engine, log)
	var (
		workers []*worker.Worker
		wg      sync.WaitGroup
	)
	for i := range cfg.Workers {
		id := cfg.WorkerID
		if id != "" && cfg.Workers > 1 {
			id = fmt.Sprintf("%s-%d", id, i)
		}
		w := worker.New(a.Requests, processor, a.Redis, log, worker.Options{
			ID:        id,
			Heartbeat: cfg.HeartbeatInterval,
			Metrics:   a.Metrics,
		})
		workers = append(workers, w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Start(); err != nil {
				log.Error("Worker error", "error", err)
			}
		}()
	}

	log.Info("Workers started, waiting for requests...", "metrics_addr", cfg.MetricsAddr)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Worker shutdown signal received")

	for _, w := range workers {
		w.Stop()
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server shutdown failed", "error", err)
	}
	log.Info("Worker exited")
}
