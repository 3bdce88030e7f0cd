// Package organizer relocates handled photographs out of the inbox. A move
// into the processed area is the pipeline's durable idempotency marker: once
// the source is gone from the inbox, no rescan or retry will enqueue it
// again.
package organizer

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"fieldpress/internal/config"
	"fieldpress/internal/fileutil"
	"fieldpress/internal/logging"
)

// Organizer moves sources into the processed and duplicates areas.
type Organizer struct {
	processedDir  string
	duplicatesDir string
	logger        *slog.Logger
}

// New constructs an organizer from the configured paths.
func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Organizer{
		processedDir:  cfg.Paths.ProcessedDir,
		duplicatesDir: cfg.Paths.DuplicatesDir,
		logger:        logging.NewComponentLogger(logger, "organizer"),
	}
}

// MoveProcessed relocates a fully published source into the processed area,
// filed under its category. It returns the final path.
func (o *Organizer) MoveProcessed(sourcePath, category string) (string, error) {
	return o.move(sourcePath, category, o.processedDir, "processed")
}

// MoveDuplicate relocates a duplicate upload into the duplicates area.
func (o *Organizer) MoveDuplicate(sourcePath, category string) (string, error) {
	return o.move(sourcePath, category, o.duplicatesDir, "duplicates")
}

func (o *Organizer) move(sourcePath, category, baseDir, label string) (string, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return "", errors.New("source path required")
	}
	if strings.TrimSpace(baseDir) == "" {
		return "", fmt.Errorf("%s directory not configured", label)
	}
	targetDir := baseDir
	if category = strings.TrimSpace(category); category != "" {
		targetDir = filepath.Join(baseDir, category)
	}
	target := fileutil.UniquePath(filepath.Join(targetDir, filepath.Base(sourcePath)))
	if err := fileutil.MoveFile(sourcePath, target); err != nil {
		return "", fmt.Errorf("move source to %s area: %w", label, err)
	}
	o.logger.Info("relocated source",
		logging.String("area", label),
		logging.String("source", sourcePath),
		logging.String("target", target))
	return target, nil
}
