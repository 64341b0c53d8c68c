package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adperf/internal/delivery"
	"adperf/internal/infrastructure"
	"adperf/internal/usecase"
	"adperf/pkg/config"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	m := metrics.New()

	missing := cfg.MissingCredentials()
	if len(missing) > 0 {
		log.WithField("missing", missing).Warn("Upstream credentials incomplete, data endpoints will return 503")
	}

	httpClient := infrastructure.NewHTTPClient(infrastructure.ClientOptions{
		Timeout:            cfg.Upstream.Timeout,
		MaxRetries:         cfg.Upstream.MaxRetries,
		RetryBackoff:       cfg.Upstream.RetryBackoff,
		RateLimitPerSecond: cfg.Upstream.RateLimitPerSecond,
		RateLimitBurst:     cfg.Upstream.RateLimitBurst,
	}, log, m)

	metaAdapter := infrastructure.NewMetaAdapter(httpClient, infrastructure.MetaOptions{
		AccessToken:      cfg.Meta.AccessToken,
		AdAccountID:      cfg.Meta.AdAccountID,
		BaseURL:          cfg.Meta.BaseURL,
		APIVersion:       cfg.Meta.APIVersion,
		ConversionAction: cfg.Meta.ConversionAction,
		PageLimit:        cfg.Meta.PageLimit,
		MaxPages:         cfg.Meta.MaxPages,
	}, log, m)

	tiktokAdapter := infrastructure.NewTikTokAdapter(httpClient, infrastructure.TikTokOptions{
		AccessToken:      cfg.TikTok.AccessToken,
		AdvertiserID:     cfg.TikTok.AdvertiserID,
		BaseURL:          cfg.TikTok.BaseURL,
		ConversionMetric: cfg.TikTok.ConversionMetric,
		MaxRangeDays:     cfg.TikTok.MaxRangeDays,
		PageSize:         cfg.TikTok.PageSize,
		MaxPages:         cfg.TikTok.MaxPages,
	}, log, m)

	chatClient := infrastructure.NewChatClient(httpClient, infrastructure.ChatOptions{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
	}, log)

	sinkClient := infrastructure.NewSinkClient(httpClient, cfg.Sink.URL, cfg.Sink.Secret, log)

	reconciler := usecase.NewReconciler(metaAdapter, tiktokAdapter, log, m)
	reports := usecase.NewReportService(reconciler, sinkClient, log, m)
	chat := usecase.NewChatService(chatClient, reconciler, cfg.Chat.MaxHistory, log, m)

	handlers := delivery.NewHTTPHandlers(reconciler, reports, chat, delivery.HandlerOptions{
		MissingCredentials:  missing,
		ChatEnabled:         chatClient.Configured(),
		ExportEnabled:       sinkClient.Configured(),
		DefaultLookbackDays: cfg.Report.DefaultLookbackDays,
	}, log)

	gin.SetMode(gin.ReleaseMode)
	router := delivery.NewHTTPRouter(handlers, log, m, prometheus.DefaultGatherer, cfg.Server.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(map[string]any{
			"port":           cfg.Server.Port,
			"chat_enabled":   chatClient.Configured(),
			"export_enabled": sinkClient.Configured(),
		}).Info("Starting server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
