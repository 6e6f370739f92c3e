package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/config"
	dbRedis "github.com/answerdesk/retrieval/internal/db/redis"
	"github.com/answerdesk/retrieval/internal/domain"
	logpkg "github.com/answerdesk/retrieval/internal/logger"
	"github.com/answerdesk/retrieval/internal/metrics"
	contentrepo "github.com/answerdesk/retrieval/internal/repository/content"
	"github.com/answerdesk/retrieval/internal/repository/embcache"
	tenantrepo "github.com/answerdesk/retrieval/internal/repository/tenant"
	chiTransport "github.com/answerdesk/retrieval/internal/transport/chi"
	openaiEmb "github.com/answerdesk/retrieval/internal/transport/openai"
	"github.com/answerdesk/retrieval/internal/usecase/assemble"
	healthuc "github.com/answerdesk/retrieval/internal/usecase/health"
	"github.com/answerdesk/retrieval/internal/usecase/intent"
	"github.com/answerdesk/retrieval/internal/usecase/resultcache"
	searchuc "github.com/answerdesk/retrieval/internal/usecase/search"
	tenantuc "github.com/answerdesk/retrieval/internal/usecase/tenant"
	"github.com/answerdesk/retrieval/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting retrieval API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.Register()

	// Embedder chain: OpenAI provider -> cached
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	var embedder domain.Embedder = embcache.New(
		base, store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories
	contentRepo := contentrepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions).
		WithHNSW(contentrepo.HNSWConfig{
			M:           cfg.Search.IndexHNSWM,
			EFConstruct: cfg.Search.IndexHNSWEFConstr,
		})
	if err := contentRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}
	tenantRepo := tenantrepo.New(store, cfg.Storage.KeyPrefix)

	// Use case services
	resolver, err := tenantuc.New(tenantRepo, cfg.TenantCache.Size, logger)
	if err != nil {
		logger.Fatal("Failed to create tenant resolver", zap.Error(err))
	}
	cache := resultcache.New(store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Search.ResultCacheTTLSec)*time.Second, logger)
	orchestrator := searchuc.New(resolver, cache, contentRepo, embedder, searchuc.Config{
		DefaultLimit:     cfg.Search.DefaultLimit,
		MaxLimit:         cfg.Search.MaxLimit,
		DefaultThreshold: cfg.Search.DefaultThreshold,
		ThresholdStep:    cfg.Search.ThresholdStep,
		ThresholdFloor:   cfg.Search.ThresholdFloor,
		CallTimeout:      time.Duration(cfg.Search.CallTimeoutSec) * time.Second,
	}, logger)
	analyzer := intent.New()
	assembler := assemble.New(assemble.Config{
		HighChunkChars:   cfg.Context.HighChunkChars,
		MediumChunkChars: cfg.Context.MediumChunkChars,
		LowChunkChars:    cfg.Context.LowChunkChars,
		MaxTokens:        cfg.Context.MaxTokens,
	})
	healthSvc := healthuc.New(store, base, cache)

	server := chiTransport.NewServer(orchestrator, analyzer, assembler, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
