// Package main provides the entry point for ordkv-server.
//
// ordkv-server is a clustered deployment of the embedded ordkv engine:
// it replicates writes via a hand-rolled Raft node (C14) and exposes a
// 2PC coordinator (C15) for transactions that span multiple nodes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ordkv/ordkv/internal/infra/buildinfo"
	"github.com/ordkv/ordkv/internal/infra/confloader"
	"github.com/ordkv/ordkv/internal/infra/shutdown"
	"github.com/ordkv/ordkv/internal/kv/compaction"
	"github.com/ordkv/ordkv/internal/kv/engine"
	"github.com/ordkv/ordkv/internal/server/clusterserver"
	"github.com/ordkv/ordkv/internal/server/config"
	"github.com/ordkv/ordkv/internal/telemetry/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting ordkv-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	eng, err := initEngine(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	raftCfg, err := config.ToRaftConfig(cfg, filepath.Join(cfg.Storage.DataDir, "raft"), slogLogger)
	if err != nil {
		return fmt.Errorf("build raft config: %w", err)
	}
	twopcCfg, err := config.ToTwoPCConfig(cfg)
	if err != nil {
		return fmt.Errorf("build 2pc config: %w", err)
	}

	cluster, err := clusterserver.New(clusterserver.Config{
		Raft:   raftCfg,
		TwoPC:  twopcCfg,
		Engine: eng,
		Logger: slogLogger,
	})
	if err != nil {
		return fmt.Errorf("init cluster server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down cluster server")
		cancel()
		return cluster.Close()
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down engine")
		return eng.Close()
	})

	go func() {
		if err := cluster.ListenAndServe(ctx, cfg.Cluster.RaftAddr); err != nil {
			log.Error("cluster server error", "error", err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop", "raft_addr", cfg.Cluster.RaftAddr)
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, slog.Default(), nil
}

// initEngine initializes the embedded KV engine.
func initEngine(cfg *config.ServerConfig, log *slog.Logger) (*engine.Engine, error) {
	engineCfg := engine.DefaultConfig(cfg.Storage.DataDir)
	engineCfg.Logger = log

	strategy, err := compactionStrategy(cfg.Storage.Compaction)
	if err != nil {
		return nil, err
	}
	engineCfg.CompactionStrategy = strategy

	return engine.Open(engineCfg)
}

func compactionStrategy(name string) (compaction.Strategy, error) {
	switch name {
	case "LEVELED", "":
		return compaction.Leveled{}, nil
	case "TIERED":
		return compaction.NewTiered(), nil
	case "SIZE_TIERED":
		return compaction.NewSizeTiered(), nil
	case "TIME_WINDOW":
		return compaction.NewTimeWindow(), nil
	default:
		return nil, fmt.Errorf("unknown compaction strategy %q", name)
	}
}
