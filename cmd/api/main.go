package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safar/go-pos-register/internal/backend"
	"github.com/safar/go-pos-register/internal/checkout"
	"github.com/safar/go-pos-register/internal/config"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/sale"
	"github.com/safar/go-pos-register/internal/session"
	"github.com/safar/go-pos-register/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	srv, err := newRegister(ctx, cfg, logger, registerDeps{
		Tokens:        store.NewSessionStore(db, cfg.Session.TerminalID),
		Journal:       store.NewJournal(db, cfg.Session.TerminalID),
		CustomerCache: store.NewCustomerCache(db),
	})
	if err != nil {
		logger.Fatal("start register", zap.Error(err))
	}

	go srv.refresher.Run(ctx)

	if srv.api.Gateway().Session().Authenticated() {
		if err := srv.warmUp(ctx); err != nil {
			logger.Warn("warm-up incomplete", zap.Error(err))
		}
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("register listening",
			zap.String("port", cfg.Server.Port),
			zap.String("terminal_id", cfg.Session.TerminalID),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("register stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// registerDeps are the locally persisted pieces. Journal and CustomerCache
// may be nil.
type registerDeps struct {
	Tokens        session.Store
	Journal       salesJournal
	CustomerCache backend.CustomerCache
}

func newRegister(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps registerDeps) (*server, error) {
	sess := session.New(deps.Tokens, logger.Named("session"))
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:       cfg.Backend.URL,
		Timeout:       cfg.Backend.Timeout,
		AuthTimeout:   cfg.Backend.AuthTimeout,
		SlowThreshold: cfg.Backend.SlowRequestThreshold,
		Logger:        logger.Named("gateway"),
		OnAuthLost: func(cause error) {
			logger.Warn("session expired, sign in required", zap.Error(cause))
		},
	}, sess)
	if err != nil {
		return nil, err
	}

	api := backend.New(gw, backend.Timeouts{
		Catalog: cfg.Backend.CatalogTimeout,
		Order:   cfg.Backend.OrderTimeout,
		Auth:    cfg.Backend.AuthTimeout,
	})

	policy, err := checkout.ParseClearPolicy(cfg.Sale.ClearPolicy)
	if err != nil {
		return nil, err
	}

	srv := &server{
		api:        api,
		variations: backend.NewVariationCache(api, cfg.Catalog.VariationCacheTTL, logger.Named("variations")),
		sale:       sale.New(sale.Options{DefaultOrderType: cfg.Sale.DefaultOrderType}),
		logger:     logger.Named("http"),
	}

	srv.customers = backend.NewCustomerDirectory(api, deps.CustomerCache, logger.Named("customers"))

	composerCfg := checkout.Config{
		TerminalID:  cfg.Session.TerminalID,
		ClearPolicy: policy,
		Logger:      logger.Named("checkout"),
	}
	if deps.Journal != nil {
		srv.journal = deps.Journal
		composerCfg.Journal = deps.Journal
	}
	srv.composer = checkout.NewComposer(api, composerCfg)
	srv.refresher = gateway.NewRefresher(gw, cfg.Session.RefreshInterval)

	return srv, nil
}

// warmUp loads categories and customers concurrently so the first screen
// does not wait on them.
func (s *server) warmUp(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		categories, err := s.loadCategories(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("categories loaded", zap.Int("count", len(categories)))
		return nil
	})
	g.Go(func() error {
		list, err := s.customers.List(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("customers loaded", zap.Int("count", len(list.Customers)), zap.Bool("stale", list.Stale))
		return nil
	})

	return g.Wait()
}
