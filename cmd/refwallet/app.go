package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/refermate/refwallet/internal/db"
	"github.com/refermate/refwallet/internal/handlers"
	"github.com/refermate/refwallet/internal/logger"
	"github.com/refermate/refwallet/internal/repository/postgres"
	"github.com/refermate/refwallet/internal/service/settlement"
	"github.com/refermate/refwallet/internal/service/wallet"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	scheduler *settlement.Scheduler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	var platformUserID uuid.UUID
	if c.PlatformUserID != "" {
		platformUserID, err = uuid.Parse(c.PlatformUserID)
		if err != nil {
			return nil, fmt.Errorf("invalid platform user id: %w", err)
		}
	}

	// Initialize services
	walletService := wallet.NewService(wallet.Config{MinWithdrawal: c.MinWithdrawal}, storage, logger)
	settlementService := settlement.NewService(settlement.Config{
		ConfirmAfter:     c.ConfirmAfter,
		ExpireAfter:      c.ExpireAfter,
		ReviewerSharePct: c.ReviewerSharePct,
		PlatformUserID:   platformUserID,
	}, storage, walletService, nil, logger)
	scheduler := settlement.NewScheduler(settlement.SchedulerConfig{
		ConfirmInterval: c.ConfirmInterval,
		ExpireInterval:  c.ExpireInterval,
	}, settlementService, logger)

	mux := handlers.NewRouter(walletService, c.SecretKey, c.AllowedOrigins, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		scheduler:  scheduler,
	}, nil
}

// Run starts the settlement sweeps and the http server, and closes both
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweepsStopped := s.scheduler.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweepsStopped

	return err
}
