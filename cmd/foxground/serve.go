package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dkrasnov/foxground/internal/auth"
	"github.com/dkrasnov/foxground/internal/config"
	"github.com/dkrasnov/foxground/internal/control"
	"github.com/dkrasnov/foxground/internal/logger"
	"github.com/dkrasnov/foxground/internal/roster"
	"github.com/dkrasnov/foxground/internal/server"
	"github.com/dkrasnov/foxground/internal/stream"
	"github.com/dkrasnov/foxground/internal/telemetry"
	"github.com/dkrasnov/foxground/internal/tools"
	"github.com/dkrasnov/foxground/internal/upgrade"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ground-station HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "foxground.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	reader := telemetry.NewReader(cfg.TelemetryDBPath, log)
	defer reader.Close()

	runner := tools.NewRunner(cfg.ToolsDir, log)
	streamMgr := stream.NewManager(cfg.MediaMTX, runner, log)

	deps := server.Deps{
		Config:  cfg,
		Reader:  reader,
		Roster:  roster.NewStore(cfg.ProfilesPath, log),
		Control: control.New(cfg.ActiveDronePath, cfg.ELRSStatusPath, log),
		Tools:   runner,
		Stream:  streamMgr,
		Auth:    auth.NewGate(cfg.OTPPath, log),
		Upgrade: upgrade.NewManager(cfg.Upgrade.Unit, cfg.Upgrade.LogPath, log),
		Log:     log,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Media daemon watchdog: periodically re-resolve the daemon PID and
	// log when it has gone missing between operator actions.
	if cfg.WatchdogSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.WatchdogSchedule, func() {
			if st := streamMgr.Status(); !st.Running {
				log.Warn("media daemon not running", zap.String("binary", cfg.MediaMTX.Binary))
			}
		})
		if err != nil {
			return fmt.Errorf("watchdog schedule %q: %w", cfg.WatchdogSchedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	log.Info("foxground starting",
		zap.String("db", cfg.TelemetryDBPath),
		zap.Int("port", cfg.ServerPort),
		zap.String("corsOrigin", cfg.CORSOrigin))

	return server.Start(ctx, deps)
}
