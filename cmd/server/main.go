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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Skufu/excipredict/internal/analytics"
	"github.com/Skufu/excipredict/internal/auth"
	"github.com/Skufu/excipredict/internal/config"
	"github.com/Skufu/excipredict/internal/dataset"
	"github.com/Skufu/excipredict/internal/kv"
	"github.com/Skufu/excipredict/internal/logging"
	"github.com/Skufu/excipredict/internal/prediction"
	"github.com/Skufu/excipredict/internal/server"
	"github.com/Skufu/excipredict/internal/store"
)

type app struct {
	router  *gin.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, logger, server.DetectStaticRoot())
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Predictions can take as long as the remote timeout.
		WriteTimeout: cfg.Prediction.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("port", cfg.Port))
	waitForShutdown(srv, logger)
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, staticRoot string) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	records, err := dataset.Open(cfg.Dataset.Path)
	if err != nil {
		return fail(err)
	}
	logger.Info("dataset loaded", zap.Int("records", len(records)))

	var (
		pool *pgxpool.Pool
		db   store.HealthChecker
	)
	if cfg.EnableDB {
		pool, err = store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("database connection failed: %w", err))
		}
		a.closers = append(a.closers, pool.Close)
		if err := store.Migrate(ctx, pool); err != nil {
			return fail(err)
		}
		db = pool
	}

	local, err := openLocalStore(cfg.Auth.StorePath)
	if err != nil {
		return fail(err)
	}
	if c, ok := local.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	var backend auth.Backend
	switch cfg.Auth.Backend {
	case config.AuthBackendPostgres:
		backend = auth.NewPostgresBackend(pool, local, logger.Named("auth"))
	default:
		backend = auth.NewMockBackend(local, logger.Named("auth"))
	}
	authSvc := auth.NewService(backend, auth.NewStore(), logger.Named("auth"))
	authSvc.Start(ctx)

	var recorder analytics.Recorder = analytics.NewMemoryRecorder()
	if pool != nil {
		recorder = analytics.NewPostgresRecorder(pool)
	}
	var remote *analytics.RemoteClient
	if cfg.Analytics.BaseURL != "" {
		remote = analytics.NewRemoteClient(cfg.Analytics.BaseURL, cfg.Analytics.Timeout())
	}
	an := analytics.NewService(recorder, remote, len(records), logger.Named("analytics"))

	pipeline := prediction.NewPipeline(
		prediction.NewClient(cfg.Prediction.BaseURL, cfg.Prediction.Timeout()),
		prediction.WithLogger(logger.Named("prediction")),
		prediction.WithSuccessHook(an.PredictionHook(authSvc.Store().UserID)),
	)
	a.closers = append(a.closers, pipeline.Close)

	watchCtx, stopWatch := context.WithCancel(ctx)
	go logTransitions(watchCtx, logger, authSvc.Store(), pipeline)
	a.closers = append(a.closers, stopWatch)

	srv, err := server.New(server.Deps{
		DB:         db,
		Auth:       authSvc,
		Records:    records,
		Pipeline:   pipeline,
		Analytics:  an,
		Logger:     logger,
		StaticRoot: staticRoot,
	})
	if err != nil {
		return fail(err)
	}
	a.router = srv.Router()
	return a, nil
}

// logTransitions logs every session change and, at debug level, every prediction state
// change until ctx ends.
func logTransitions(ctx context.Context, logger *zap.Logger, sessions *auth.Store, pipeline *prediction.Pipeline) {
	sessCh, stopSess := sessions.Subscribe()
	defer stopSess()
	predCh, stopPred := pipeline.Subscribe()
	defer stopPred()

	for sessCh != nil || predCh != nil {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-sessCh:
			if !ok {
				sessCh = nil
				continue
			}
			userID := ""
			if st.Session != nil {
				userID = st.Session.UserID
			}
			logger.Info("session state", zap.String("status", string(st.Status)), zap.String("user_id", userID))
		case snap, ok := <-predCh:
			if !ok {
				predCh = nil
				continue
			}
			fields := []zap.Field{zap.String("state", string(snap.State)), zap.Uint64("generation", snap.Generation)}
			if snap.Err != nil {
				fields = append(fields, zap.Error(snap.Err))
			}
			logger.Debug("prediction state", fields...)
		}
	}
}

func openLocalStore(path string) (kv.Store, error) {
	if path == "" {
		return kv.NewMemory(), nil
	}
	s, err := kv.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func waitForShutdown(srv *http.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
