package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/config"
	"github.com/BaSui01/companion/flow"
	"github.com/BaSui01/companion/internal/bridge"
	"github.com/BaSui01/companion/internal/server"
	"github.com/BaSui01/companion/internal/telemetry"
	"github.com/BaSui01/companion/types"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation to WebSocket clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, loader, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logger, level := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting companion",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("backend", cfg.Backend.Mode),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.configPath != "" {
		watcher, err := config.NewWatcher(loader, config.WithWatcherLogger(logger))
		if err != nil {
			return err
		}
		watchLogLevel(watcher, level, logger)
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ws := bridge.NewHandler(a.orch, bridge.Config{
		OriginPatterns: cfg.Server.AllowedOrigins,
	}, a.collector, logger)

	routes := server.Routes{
		Bridge:        ws,
		SessionStatus: func() string { return a.orch.Status().String() },
	}
	if cfg.Metrics.Enabled {
		routes.Gatherer = a.registry
		routes.MetricsPath = cfg.Metrics.Path
	}

	mgr := server.NewManager(server.NewRouter(routes, a.collector, logger), server.FromServerConfig(cfg.Server), logger)
	mgr.OnShutdown(ws.CloseAll)
	if err := mgr.Start(); err != nil {
		return err
	}

	// 预先初始化，首个客户端连接时即可拿到快照
	if err := a.orch.Initialize(ctx, flow.InitOptions{}); err != nil && !types.IsErrorCode(err, types.ErrTurnInProgress) {
		logger.Warn("initial conversation load failed; clients will retry", zap.Error(err))
	}

	err = mgr.Wait(ctx)
	ws.Wait()
	logger.Info("companion stopped")
	return err
}
