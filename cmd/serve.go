package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"soilchat/internal/api"
	"soilchat/internal/archive"
	"soilchat/internal/auth"
	"soilchat/internal/middleware"
	"soilchat/internal/redis"
	"soilchat/internal/service/ai"
	"soilchat/internal/service/assistant"
	"soilchat/internal/service/fertility"
	"soilchat/internal/service/soiltype"
	"soilchat/internal/soil"
	"soilchat/internal/storage"
	"soilchat/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.BasicConfig.ServerAddress = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := newServer(ctx)
		if err != nil {
			return err
		}
		defer srv.close()
		return srv.run(ctx)
	},
}

// server owns the HTTP listener and every component it was built from.
type server struct {
	http    *http.Server
	closers []func()
}

// newServer opens storage and builds the optional components. Components
// that cannot be configured are left out and their routes report so.
func newServer(ctx context.Context) (*server, error) {
	s := &server{}

	db, err := openStore()
	if err != nil {
		return nil, err
	}
	s.onClose(func() { db.Close() })

	opts := []assistant.Option{assistant.WithLogger(logger)}
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, history cache disabled", zap.Error(err))
		} else {
			s.onClose(func() { rdb.Close() })
			opts = append(opts, assistant.WithHistoryCache(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second))
		}
	}
	sessions := assistant.NewService(db, storage.DialectOf(cfg.BasicConfig.Database), opts...)

	var forest fertility.Classifier
	if f, err := fertility.LoadForest(cfg.Models.FertilityPath); err != nil {
		logger.Warn("fertility model not loaded", zap.String("path", cfg.Models.FertilityPath), zap.Error(err))
	} else {
		forest = f
	}
	fertilitySvc := fertility.NewService(forest)

	var imageModel soiltype.Model
	if endpoint := cfg.Models.ImageEndpoint; endpoint != "" {
		timeout := time.Duration(cfg.Models.ImageTimeoutSeconds) * time.Second
		imageModel = soiltype.NewRemoteModel(endpoint, cfg.Models.ImageModelName, timeout)
	} else {
		logger.Warn("soil type model endpoint not configured")
	}
	soilTypeSvc := soiltype.NewService(imageModel)

	gateway, err := ai.NewGateway(ctx, cfg)
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		logger.Warn("language model not configured, LLM routes disabled")
		gateway = nil
	case err != nil:
		logger.Error("language model init failed, LLM routes disabled", zap.Error(err))
		gateway = nil
	}
	llm := ai.NewAssistant(gateway, soil.NewRandom(cfg.Extraction.Seed), logger)

	store, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init archive: %w", err)
	}

	workers := worker.NewDispatcher(worker.Config{
		MinWorkers:  cfg.Workers.MinWorkers,
		MaxWorkers:  cfg.Workers.MaxWorkers,
		QueueSize:   cfg.Workers.QueueSize,
		IdleTimeout: time.Duration(cfg.Workers.IdleTimeoutSeconds) * time.Second,
	}, logger)
	s.onClose(workers.Close)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		go sweep(ctx, limiter)
	}

	if cfg.BasicConfig.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// without this gin believes X-Forwarded-For from any peer, which lets a
	// client pick its own rate limit and worker queue key
	if err := router.SetTrustedProxies(trustedProxies(cfg.BasicConfig.TrustedProxies)); err != nil {
		s.close()
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(cfg.BasicConfig.CORSOrigins))
	if cfg.BasicConfig.MaxBodyBytes > 0 {
		router.Use(middleware.MaxBody(cfg.BasicConfig.MaxBodyBytes))
	}
	guard := auth.NewService(cfg.BasicConfig.APIKey)
	api.NewHandler(api.Deps{
		Sessions:     sessions,
		Fertility:    fertilitySvc,
		SoilType:     soilTypeSvc,
		Assistant:    llm,
		Workers:      workers,
		Archive:      store,
		Auth:         guard,
		Limiter:      limiter,
		Logger:       logger,
		HistoryLimit: cfg.BasicConfig.HistoryLimit,
	}).RegisterRoutes(router)

	s.http = &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("components ready",
		zap.Bool("fertility_model", fertilitySvc.Available()),
		zap.Bool("soil_type_model", soilTypeSvc.Available()),
		zap.Bool("llm", llm.Available()),
		zap.Bool("history_cache", len(opts) > 1),
		zap.Bool("archive", store != nil),
		zap.Bool("api_key", guard.Enabled()),
	)
	return s, nil
}

func (s *server) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// close releases components in reverse order of creation.
func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// run serves until ctx ends, then drains in-flight requests.
func (s *server) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func trustedProxies(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return list
}

func sweep(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server_address")
}
