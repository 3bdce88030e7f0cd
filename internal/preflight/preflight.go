package preflight

import (
	"fieldpress/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the offline checks for the given config: directory access,
// free disk space, and publish remote configuration. Binary availability is
// covered by CheckSystemDeps and content service connectivity by CheckLLM;
// both are separate so callers choose what a render is worth.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	return []Result{
		CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir),
		CheckDirectoryAccess("Processed directory", cfg.Paths.ProcessedDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDiskSpace("Work filesystem", cfg.Paths.WorkDir, MinFreeBytes),
		CheckGalleryRemote(cfg),
	}
}
