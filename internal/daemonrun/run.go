package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/conversion"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/daemon"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/evaluation"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/ipc"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/notifications"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/preflight"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/publishing"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/quantization"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/schedule"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/serving"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/training"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	SocketPath  string
	Development bool
}

// Run starts the scorecard daemon runtime loop: the training workflow, the
// IPC control socket, the scoring HTTP server, the registry watcher, and the
// retraining scheduler. It blocks until the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("scorecard-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update scorecard.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "scorecard-*.log", Exclude: []string{logPath}},
	)

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldImpact, "daemon features depending on this check may not work"))
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "scorecard.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := pipeline.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	registerStages(manager, cfg, store, logger, notifier)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and run database access"),
			logging.String(logging.FieldImpact, "daemon may not process pipeline runs"),
		)
	}

	loader := serving.NewLoader(cfg, logger)
	if err := loader.Reload(signalCtx); err != nil {
		logger.Warn("initial model load failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "model_load_failed"),
			logging.String(logging.FieldErrorHint, "run a training pipeline to publish a first model"),
			logging.String(logging.FieldImpact, "scoring API reports degraded until a model is promoted"),
		)
	}
	server := serving.NewServer(cfg, loader, logger)
	d.SetDriftObserver(server.ObserveDrift)
	scheduler := schedule.New(cfg, d, logger)

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(server.Start)
	group.Go(func() error {
		return ignoreCanceled(loader.Watch(groupCtx))
	})
	group.Go(func() error {
		return ignoreCanceled(scheduler.Run(groupCtx))
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return server.Shutdown(context.Background())
	})

	err = group.Wait()
	logger.Info("scorecard daemon shutting down")
	return err
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *pipeline.Store, logger *slog.Logger, notifier notifications.Service) {
	if mgr == nil || cfg == nil {
		return
	}
	mgr.ConfigureStages(workflow.StageSet{
		Trainer:   training.NewTrainer(cfg, store, logger),
		Converter: conversion.NewConverter(cfg, logger),
		Quantizer: quantization.NewQuantizer(cfg, logger),
		Evaluator: evaluation.NewEvaluator(cfg, logger),
		Publisher: publishing.NewPublisherWithNotifier(cfg, logger, notifier),
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "scorecard.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
