package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliraz-refael/go-imposters/internal/api"
	"github.com/eliraz-refael/go-imposters/internal/config"
	"github.com/eliraz-refael/go-imposters/internal/imposter"
	"github.com/eliraz-refael/go-imposters/internal/ports"
	"github.com/eliraz-refael/go-imposters/internal/repository"
	"github.com/eliraz-refael/go-imposters/internal/requestlog"
	"github.com/eliraz-refael/go-imposters/internal/stats"
	"github.com/eliraz-refael/go-imposters/pkg/version"
)

func main() {
	app := kingpin.New("imposters", "Programmable HTTP mocking service.")
	app.Version(version.Version)

	startCmd := app.Command("start", "Start the admin server.").Default()
	adminPort := startCmd.Flag("port", "Admin API port (overrides ADMIN_PORT).").Short('p').Int()
	configPath := startCmd.Flag("config", "Config file with imposters to pre-create.").Short('c').String()

	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case startCmd.FullCommand():
		if err := runStart(*adminPort, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "imposters: %v\n", err)
			os.Exit(1)
		}
	}
}

func runStart(adminPort int, configPath string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	var file *config.File
	if configPath != "" {
		file, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = file.Apply(cfg)
	}
	if adminPort != 0 {
		cfg.AdminPort = adminPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Composition root: every service is a plain value handed to its
	// consumers; no globals beyond the Prometheus registry.
	allocator := ports.NewAllocator(cfg.PortRangeMin, cfg.PortRangeMax)
	repo := repository.NewInMemory()
	logs := requestlog.NewLogger()
	agg := stats.NewAggregator()
	rt := imposter.NewRuntime(repo, logs, agg, logger)
	srv := api.NewServer(cfg, repo, allocator, logs, agg, rt, logger)

	if file != nil && len(file.Imposters) > 0 {
		if err := srv.LoadImposters(file.Imposters); err != nil {
			return err
		}
		logger.Info("imposters loaded from config",
			zap.Int("count", len(file.Imposters)), zap.String("file", configPath))
	}

	var g run.Group
	g.Add(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("shutting down", zap.String("signal", sig.Signal.String()))
		return nil
	}
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
