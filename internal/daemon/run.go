package daemon

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

	"fieldpress/internal/config"
	"fieldpress/internal/ingest"
	"fieldpress/internal/lesson"
	"fieldpress/internal/logging"
	"fieldpress/internal/preflight"
	"fieldpress/internal/queue"
	"fieldpress/internal/workbook"
	"fieldpress/internal/workflow"
)

// Options carries start command overrides for a daemon run.
type Options struct {
	LogLevel string
}

// Run wires up and starts a fieldpress daemon, then blocks until the context
// is cancelled or the process receives SIGINT or SIGTERM. Each run writes its
// own timestamped log file under the configured log directory.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancelSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancelSignals()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, "fieldpress-"+runID+".log")
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		logger.Warn("update current log pointer", logging.Error(err))
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "fieldpress.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logStartupChecks(logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	lessonStage, err := lesson.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("build lesson stage: %w", err)
	}
	workbookStage, err := workbook.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("build workbook stage: %w", err)
	}

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{Lesson: lessonStage, Workbook: workbookStage})

	d, err := New(cfg, store, logger, manager, ingest.New(cfg, store, logger))
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	logger.Info("fieldpress daemon ready",
		logging.String("run_id", runID),
		logging.String("inbox", cfg.Paths.InboxDir),
		logging.String("log_file", logPath),
	)

	<-signalCtx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// logStartupChecks runs the offline preflight checks and reports failures
// without aborting: a missing binary or unreachable gallery remote surfaces
// as failed jobs with actionable errors, which is easier to debug from the
// queue than from a refused start.
func logStartupChecks(logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failure"),
		)
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		if dep.Available {
			continue
		}
		logger.Warn("external binary missing",
			logging.String("binary", dep.Name),
			logging.String("command", dep.Command),
			logging.String(logging.FieldErrorHint, dep.Description),
		)
	}
}

// ensureCurrentLogPointer keeps LogDir/fieldpress.log pointing at the newest
// run log so operators can tail a stable path. Falls back to a hard link on
// filesystems without symlink support.
func ensureCurrentLogPointer(logDir, target string) error {
	pointer := filepath.Join(logDir, "fieldpress.log")
	if err := os.Remove(pointer); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(filepath.Base(target), pointer); err == nil {
		return nil
	}
	return os.Link(target, pointer)
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
