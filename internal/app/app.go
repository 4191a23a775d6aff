// Package app wires configuration, storage, services and transport into a
// running HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/openscholar/preprintd/internal/adapter/pdftext"
	"github.com/openscholar/preprintd/internal/adapter/postgres"
	preprintrepo "github.com/openscholar/preprintd/internal/adapter/postgres/preprint"
	tokenrepo "github.com/openscholar/preprintd/internal/adapter/postgres/token"
	userrepo "github.com/openscholar/preprintd/internal/adapter/postgres/user"
	"github.com/openscholar/preprintd/internal/adapter/storage/local"
	"github.com/openscholar/preprintd/internal/adapter/storage/s3"
	"github.com/openscholar/preprintd/internal/auth"
	"github.com/openscholar/preprintd/internal/config"
	authsvc "github.com/openscholar/preprintd/internal/service/auth"
	"github.com/openscholar/preprintd/internal/service/catalog"
	"github.com/openscholar/preprintd/internal/service/submission"
	"github.com/openscholar/preprintd/internal/transport/middleware"
	"github.com/openscholar/preprintd/internal/transport/rest"
)

// fileStore is the document store contract shared by both backends.
type fileStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Run is the application entry point. It loads configuration, connects to
// the database, wires services and serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("storage_backend", cfg.Storage.Backend),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	files, err := newFileStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	users := userrepo.New(pool)
	tokens := tokenrepo.New(pool)
	preprints := preprintrepo.New(pool)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	authService := authsvc.NewService(logger, users, tokens, postgres.NewTxManager(pool), jwtManager, cfg.Auth)
	submissionService := submission.NewService(
		logger,
		files,
		pdftext.New(),
		preprints,
		submission.NewIdentifierMinter(rand.New(rand.NewSource(time.Now().UnixNano()))),
	)
	catalogService := catalog.NewService(logger, preprints, cfg.Search.MaxQueryLen)

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()

	router := rest.NewRouter(
		logger,
		rest.NewAuthHandler(authService, logger),
		rest.NewPreprintHandler(submissionService, catalogService, cfg.Upload.MaxSizeBytes, logger),
		rest.NewHealthHandler(pool, BuildVersion()),
		authService,
		cfg.CORS,
		limiter,
	)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (fileStore, error) {
	switch cfg.Backend {
	case "s3":
		return s3.New(ctx, cfg)
	default:
		return local.New(cfg.LocalDir)
	}
}
