package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/handlers"
	"argus-news-pipeline/internal/pkg/logger"
	"argus-news-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("starting article analysis pipeline", "environment", cfg.Environment)

	gemini, err := services.NewGeminiService(cfg.Gemini, log)
	if err != nil {
		log.Error("failed to initialize Gemini service", "error", err)
		os.Exit(1)
	}
	defer gemini.Close()

	store, err := services.NewRedisStore(cfg.Redis, log)
	if err != nil {
		log.Error("failed to initialize Redis store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	scraper, err := services.NewScraperService(cfg.Scraper, log)
	if err != nil {
		log.Error("failed to initialize scraper", "error", err)
		os.Exit(1)
	}

	tiers := services.NewStaticTierProvider(cfg.Gemini)
	extractor := services.NewEventExtractor(gemini, tiers, log)
	reasoner := services.NewCausalReasoner(gemini, tiers, log)
	synthesizer := services.NewBeliefSynthesizer(gemini, tiers, cfg.Pipeline.ConfidenceThreshold, log)

	pipeline := services.NewPipeline(extractor, reasoner, synthesizer, tiers, cfg.Pipeline, log)
	manager := services.NewArticleManager(pipeline, store, scraper, cfg.Pipeline, log)
	reviewer := services.NewQualityReviewer(store, cfg.Review, log)

	handler := handlers.NewPipelineHandler(manager, reviewer, store, map[string]handlers.HealthChecker{
		"gemini":  gemini,
		"redis":   store,
		"scraper": scraper,
	}, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}

	log.Info("shutdown complete")
}
