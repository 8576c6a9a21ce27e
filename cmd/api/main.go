package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	v1 "github.com/AndreiCalugar/MyCommunity/cmd/api/router/v1"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/config"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/logger"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/metrics"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/ratelimit"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/realtime"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/relay"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/task"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"
	httpHandler "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/presentation/http"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/deeplink"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env could not be loaded: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	l, err := logger.New(logger.Config{Development: cfg.Log.Development, Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, l *zap.Logger) error {
	var cs closers
	defer cs.closeAll(l)

	st, err := openStore(ctx, cfg, l, &cs)
	if err != nil {
		return err
	}
	feed, err := openFeed(ctx, cfg, st, l, &cs)
	if err != nil {
		return err
	}
	profiles := cachedProfiles(cfg, st, l)
	repo := decorateRepo(cfg, st, feed, l)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	queue, worker, err := openQueue(cfg, l, &cs)
	if err != nil {
		return err
	}
	task.RegisterSyncCommunityMemberTask(worker, usecase.NewResolveCommunityConversationUseCase(repo, l), l)

	rl := relay.New(feed.feed, l.Named("relay")).WithProfiles(profiles)
	rl.OnDrop = func(string) { m.RelayDropped.Inc() }

	limiter := ratelimit.New(cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst, l)
	go limiter.Run(ctx)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logger.Middleware(l), logger.Recovery(l), m.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), cfg.HTTP.RequestTimeout)
		defer cancel()
		if err := st.ping(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	socketCtl := v1.RegisterRoutes(r, httpHandler.Dependencies{
		Repo:     repo,
		Profiles: profiles,
		Queue:    queue,
		Router:   realtime.NewRouter(),
		Relay:    rl,
		Auth:     session.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AllowUserHeader),
		Limiter:  limiter,
		Links:    deeplink.Builder{WebBaseURL: cfg.Links.WebBaseURL, AppScheme: cfg.Links.AppScheme},
		Metrics:  m,
		Logger:   l,
	})

	go func() {
		if err := worker.Run(ctx); err != nil {
			l.Error("task worker stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		l.Info("http server listening", zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", cfg.Database.Driver), zap.String("feed", cfg.Feed.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("shutting down")
	socketCtl.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
