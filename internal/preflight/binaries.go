package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"fieldpress/internal/config"
)

// Requirement defines an external binary the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a required binary.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this so the requirements list
// lives in one place.
func CheckSystemDeps(cfg *config.Config) []Status {
	requirements := []Requirement{
		{
			Name:        "git",
			Command:     cfg.Gallery.GitBinary,
			Description: "Required for publishing to the asset library",
		},
		{
			Name:        "ImageMagick",
			Command:     cfg.Optimizer.Binary,
			Description: "Required for image variant generation",
		},
		{
			Name:        "pandoc",
			Command:     cfg.Renderer.Binary,
			Description: "Required for PDF rendering",
		},
		{
			Name:        "PDF engine",
			Command:     cfg.Renderer.PDFEngine,
			Description: "LaTeX engine pandoc renders PDFs with",
		},
	}
	return CheckBinaries(requirements)
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
