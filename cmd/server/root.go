package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/store/sqlite"
	"github.com/warp/leave-engine/timeoff"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leave-engine",
	Short: "Leave request lifecycle server",
	Long: `Leave Engine runs the leave request lifecycle: employees apply,
managers approve or reject within a short window, and requests nobody
decided in time are approved automatically.`,
	SilenceUsage: true,
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./config.yaml)")
}

// app is the process-wide wiring shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *sqlite.Store
	service *timeoff.Service
	metrics *metrics.Collector
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := api.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	collector := metrics.NewCollector()

	svc := timeoff.NewService(store, store, store)
	svc.Policy = cfg.Leave.Policy()
	svc.Log = log
	svc.Observer = collector

	log.WithFields(logrus.Fields{
		"database":            cfg.Database.Path,
		"auto_approve_window": cfg.Leave.AutoApproveWindow.String(),
		"allow_overlap":       cfg.Leave.AllowOverlap,
	}).Debug("initialized")

	return &app{cfg: cfg, log: log, store: store, service: svc, metrics: collector}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
