// Package main is the uyjoy entry point and wire-up.
//
// serve (the default command) runs, in order:
//  1. config and site profile
//  2. logger
//  3. dictionaries
//  4. database and migrations
//  5. repositories, property API client, services, handlers
//  6. routes
//  7. HTTP server and the lead redelivery worker
//  8. graceful shutdown
//
// There are no globals: everything is built here and passed down.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/database"
	"github.com/uyjoy/site/pkg/crypto"
	"github.com/uyjoy/site/pkg/i18n"
	"github.com/uyjoy/site/pkg/logger"
	"github.com/uyjoy/site/pkg/propertyapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root := &cobra.Command{
		Use:          "uyjoy",
		Short:        "UyJoy real-estate catalog server",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate()
			},
		},
		&cobra.Command{
			Use:   "sitemap",
			Short: "Print sitemap.xml to stdout",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSitemap(cmd.Context(), cmd.OutOrStdout())
			},
		},
	)
	return root
}

// app is the part every command needs.
type app struct {
	cfg     *config.Config
	profile *config.SiteProfile
	log     *zap.Logger
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Server.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	profile, err := config.LoadSiteProfile(cfg.SiteProfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load site profile: %w", err)
	}

	if err := i18n.LoadEmbedded(); err != nil {
		return nil, fmt.Errorf("failed to load dictionaries: %w", err)
	}

	return &app{cfg: cfg, profile: profile, log: log}, nil
}

func (a *app) openDatabase() (*database.DB, error) {
	db, err := database.New(a.cfg.Database.Path, database.Migrations(), a.log.Named("database"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func (a *app) propertyClient() *propertyapi.Client {
	api := a.cfg.PropertyAPI
	return propertyapi.New(propertyapi.Options{
		BaseURL:   api.BaseURL,
		Timeout:   api.Timeout,
		ListTTL:   api.ListTTL,
		DetailTTL: api.DetailTTL,
		StaticTTL: api.StaticTTL,
	}, a.log.Named("property-api"))
}

func runServe(ctx context.Context) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	log := a.log.Named("main")
	defer func() { _ = a.log.Sync() }()

	log.Info("uyjoy server starting", zap.String("env", a.cfg.Server.Env), zap.String("site_url", a.cfg.Server.SiteURL))

	db, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	var encryptionKey []byte
	if a.cfg.Security.EncryptionKey != "" {
		if encryptionKey, err = crypto.DeriveKey(a.cfg.Security.EncryptionKey); err != nil {
			return fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
	} else {
		log.Warn("ENCRYPTION_KEY not set, lead phones are stored in plaintext")
	}

	client := a.propertyClient()
	defer client.Close()

	repos := initRepositories(db.Conn, encryptionKey)
	svcs, limiters := initServices(repos, client, a.cfg, a.profile, a.log)
	defer limiters.Stop()

	h, err := initHandlers(svcs, repos, limiters, client, a.cfg, a.profile, a.log)
	if err != nil {
		return err
	}

	routes, err := initRoutes(h, svcs, a.cfg, a.log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      routes,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	svcs.Redelivery.Start()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			svcs.Redelivery.Stop()
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Stop taking requests first, then let an in-flight redelivery pass
	// finish; limiters, client caches and the database close via defers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	svcs.Redelivery.Stop()

	log.Info("server stopped gracefully")
	return nil
}

func runMigrate() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	db, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.AppliedMigrations()
	if err != nil {
		return err
	}
	a.log.Info("migrations up to date", zap.Strings("applied", applied))
	return nil
}

func runSitemap(ctx context.Context, out io.Writer) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	client := a.propertyClient()
	defer client.Close()

	body, err := initCatalogServices(client, a.cfg, a.profile, a.log).Sitemap.Sitemap(ctx)
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}
