package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"fieldpress/internal/logging"
)

// startWatcher registers the inbox tree with fsnotify and launches the event
// loop. Category subdirectories existing at startup are watched individually
// since inotify does not recurse.
func (s *Service) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create inbox watcher: %w", err)
	}
	if err := addWatchTree(watcher, s.cfg.Paths.InboxDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch inbox: %w", err)
	}
	s.wg.Add(1)
	go s.runWatcher(ctx, watcher)
	return nil
}

// runWatcher consumes filesystem events until the context ends. Write events
// for a file are coalesced behind the settle delay so a photograph still
// being copied is enqueued once, after its last write.
func (s *Service) runWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	defer watcher.Close()

	settle := time.NewTimer(s.settleDelay)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				s.watchNewDir(watcher, event.Name)
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !eligibleSource(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if !settle.Stop() {
				select {
				case <-settle.C:
				default:
				}
			}
			settle.Reset(s.settleDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("inbox watcher error", logging.Error(err))
		case <-settle.C:
			for path := range pending {
				delete(pending, path)
				s.enqueue(ctx, path)
			}
		}
	}
}

// watchNewDir registers a directory created after startup, typically a
// category subdirectory the operator added.
func (s *Service) watchNewDir(watcher *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := watcher.Add(path); err != nil {
		s.logger.Warn("failed to watch inbox subdirectory", logging.Error(err), logging.String("path", path))
	}
}

func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
