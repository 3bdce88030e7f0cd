package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"fieldpress/internal/logging"
)

// runRescan walks the inbox on a fixed cadence. The first pass runs
// immediately so photographs that arrived while the daemon was down are
// enqueued at startup.
func (s *Service) runRescan(ctx context.Context) {
	defer s.wg.Done()

	s.rescan(ctx)

	ticker := time.NewTicker(s.rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rescan(ctx)
		}
	}
}

func (s *Service) rescan(ctx context.Context) {
	err := filepath.WalkDir(s.cfg.Paths.InboxDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		s.enqueue(ctx, path)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("inbox rescan failed", logging.Error(err))
	}
}
