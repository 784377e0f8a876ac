package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"surveydash/internal/config"
	"surveydash/internal/events"
	"surveydash/internal/httpapi"
	"surveydash/internal/metrics"
	"surveydash/internal/pipeline"
	"surveydash/internal/secrets"
	"surveydash/internal/store"
)

func serveCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard on 127.0.0.1:<app.port>",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(opts.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), opts, log)
		},
	}
}

func serve(ctx context.Context, opts *globalOpts, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
		return err
	}

	// One server per data dir: two would race on the store and the port.
	lock := flock.New(filepath.Join(opts.dataDir, appName+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("another %s is already running on %s", appName, opts.dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	userCfgPath, err := opts.userConfigPath()
	if err != nil {
		return fmt.Errorf("config bootstrap failed: %w", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, _, err := opts.loadConfig(userCfgPath)
		return cfg, err
	}
	cfg, vr, err := opts.loadConfig(userCfgPath)
	if err != nil {
		return err
	}
	for _, w := range vr.Warnings {
		log.Warn("config", zap.String("warning", w))
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(opts.dataDir, appName+".db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	hub := events.NewHub()
	met := metrics.New()

	svc := pipeline.New(pipeline.Deps{
		DB:      db.Pool,
		Hub:     hub,
		Metrics: met,
		Log:     log,
		TTL:     cfg.CacheTTL(),
	})

	// apply rebuilds the upstream client from cfg and the current token.
	apply := func(c config.Config) {
		tok, err := secrets.APIToken(c)
		if err != nil {
			log.Warn("no API token; requests will be rejected upstream", zap.Error(err))
		}
		svc.SetTTL(c.CacheTTL())
		svc.SetFetcher(pipeline.NewAirtableFetcher(c, tok))
	}
	apply(cfg)

	watcher, err := config.NewWatcher(userCfgPath, log, func(c config.Config) {
		cfgVal.Store(c)
		apply(c)
		hub.Emit("", events.TypeConfigReloaded, nil)
	})
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	mux := httpapi.NewMux(httpapi.Deps{
		DB:          db.Pool,
		Hub:         hub,
		Pipeline:    svc,
		Metrics:     met,
		Log:         log,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Apply:       apply,
		Version:     version,
	})

	srv := &http.Server{
		Handler:           httpapi.Handler(mux, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(32)
	if err != nil {
		return err
	}
	tokenPath := filepath.Join(opts.dataDir, "shutdown.token")
	if err := os.WriteFile(tokenPath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write shutdown token: %w", err)
	}
	defer os.Remove(tokenPath)
	mux.HandleFunc("/shutdown", shutdownHandler(&token, srv))

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return err
	}
	log.Info("listening",
		zap.String("url", "http://"+cfg.Addr()),
		zap.String("db", dbPath),
		zap.String("config", userCfgPath),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Debug("shutdown", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	if every := cfg.RefreshInterval(); every > 0 {
		g.Go(func() error {
			svc.RunRefresher(gctx, every)
			return nil
		})
	}

	err = g.Wait()
	log.Info("stopped")
	return err
}
