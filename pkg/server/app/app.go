// Package app wires the Recontor server: storage, runner, dispatcher,
// and the HTTP API, with a single lifecycle around all of them.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/recontor/recontor/pkg/config"
	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/scans"
	"github.com/recontor/recontor/pkg/server/api"
	"github.com/recontor/recontor/pkg/server/httpx"
	"github.com/recontor/recontor/pkg/server/jobs"
	"github.com/recontor/recontor/pkg/storage"
)

// App is the assembled Recontor server.
type App struct {
	cfg        config.Config
	backend    storage.Backend
	dispatcher jobs.Manager
	httpServer *http.Server
	ready      *atomic.Bool
}

// New assembles an App from configuration. Nothing starts yet; call Run.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	storageCfg, err := storage.DefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	if cfg.Server.WorkspaceDir != "" {
		storageCfg.WorkspaceRoot = cfg.Server.WorkspaceDir
	}

	backend, err := storage.NewLocalBackend(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("create storage backend: %w", err)
	}
	if err := backend.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	outputRoot := cfg.Engine.OutputRoot
	if outputRoot == "" {
		outputRoot = filepath.Join(storageCfg.WorkspaceRoot, "scans")
	}

	runner := scanexec.NewRunner(backend, scanexec.Options{
		EngineBinary: cfg.Engine.Binary,
		SettleDelay:  cfg.Engine.SettleDelay,
		StopGrace:    cfg.Engine.StopGrace,
	})

	dispatcher := jobs.NewDispatcher(backend, runner, jobs.DispatcherConfig{
		Concurrency:  cfg.Engine.Concurrency,
		PollInterval: cfg.Engine.PollInterval,
		OutputRoot:   outputRoot,
	})

	ready := &atomic.Bool{}
	deps := &api.Deps{
		Scans:  scans.NewService(backend, runner),
		Config: api.DefaultConfig(),
		Ready:  ready,
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Addr, strconv.Itoa(cfg.Server.Port)),
		Handler:      httpx.NewRouter(cfg.Server, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		cfg:        cfg,
		backend:    backend,
		dispatcher: dispatcher,
		httpServer: httpServer,
		ready:      ready,
	}, nil
}

// Run starts the dispatcher and HTTP server and blocks until the context
// is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	// Best-effort crash recovery: a record still marked running refers
	// to a process a previous instance owned. Fail it so the slot frees
	// and the operator can restart the scan explicitly.
	reset, err := a.backend.Scans().ResetStuckRunning(ctx, "scan interrupted by server restart")
	if err != nil {
		return fmt.Errorf("reset stuck scans: %w", err)
	}
	if len(reset) > 0 {
		log.Warn().Str("component", "app").Strs("scan_ids", reset).
			Msg("reset scans stuck in running state from a previous instance")
	}

	if a.cfg.Server.JobsEnabled {
		if err := a.dispatcher.Start(ctx); err != nil {
			return fmt.Errorf("start dispatcher: %w", err)
		}
	}

	a.ready.Store(true)
	log.Info().Str("component", "app").Str("addr", a.httpServer.Addr).
		Msg("server listening")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.ready.Store(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if a.cfg.Server.JobsEnabled {
			if err := a.dispatcher.Stop(shutdownCtx); err != nil {
				log.Warn().Str("component", "app").Err(err).Msg("dispatcher shutdown error")
			}
		}
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Str("component", "app").Err(err).Msg("http shutdown error")
		}
		return a.backend.Close()
	})

	return g.Wait()
}
