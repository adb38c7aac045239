package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/five82/giftlist/internal/config"
	"github.com/five82/giftlist/internal/flow"
	"github.com/five82/giftlist/internal/live"
	"github.com/five82/giftlist/internal/metrics"
	"github.com/five82/giftlist/internal/order"
	"github.com/five82/giftlist/internal/prefs"
	"github.com/five82/giftlist/internal/state"
	"github.com/five82/giftlist/internal/ui"
)

// Options configure the giftlist application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/giftlist/prefs.toml
	PollEvery  int    // seconds; zero uses the config value
	SeedPath   string // when set, insert this catalog and exit
}

// Run boots giftlist until the visitor quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}

	logger, closeLog, err := openLog(cfg.LogPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	logger.Info("giftlist starting", "backend", cfg.Backend)

	gifts, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	if opts.SeedPath != "" {
		return seedCatalog(ctx, gifts, opts.SeedPath, logger)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	st := &state.Store{}
	reader := live.NewReader(gifts, st, live.WithLogger(logger), live.WithMetrics(m))
	defer reader.Stop()

	writer := order.NewWriter(gifts,
		order.WithLogger(logger),
		order.WithMetrics(m),
		order.WithOverwrite(cfg.AllowOverwrite),
	)
	controller := flow.NewController(writer,
		flow.WithCommitTimeout(cfg.CommitTimeout),
		flow.WithLogger(logger),
	)

	userPrefs := prefs.Load(opts.PrefsPath)
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	g, gctx := errgroup.WithContext(ctx)
	uiCtx, stopUI := context.WithCancel(gctx)
	defer stopUI()

	if cfg.MetricsBind != "" {
		g.Go(func() error {
			return serveMetrics(uiCtx, cfg.MetricsBind, reg, logger)
		})
	}

	g.Go(func() error {
		// The metrics server follows the UI down.
		defer stopUI()
		err := ui.Run(ui.Options{
			Context:   uiCtx,
			Flow:      controller,
			Reader:    reader,
			State:     st,
			Event:     cfg.Event,
			ThemeName: userPrefs.Theme,
			PrefsPath: prefsPath,
			Logger:    logger,
		})
		if errors.Is(err, context.Canceled) || errors.Is(uiCtx.Err(), context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	logger.Info("giftlist stopped", "error", err)
	return err
}
