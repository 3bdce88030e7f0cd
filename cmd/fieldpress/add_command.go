package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fieldpress/internal/queue"
	"fieldpress/internal/standards"
)

var manualPhotoExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var category string
	var reprocess bool

	cmd := &cobra.Command{
		Use:   "add <photo> [photo...]",
		Short: "Add photographs to the processing queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			resolved := strings.TrimSpace(category)
			if resolved == "" {
				resolved = cfg.Ingest.DefaultCategory
			}
			if !standards.IsCategory(resolved) {
				return fmt.Errorf("unknown category %q (valid: %s)", resolved, strings.Join(standards.Categories(), ", "))
			}

			paths := make([]string, 0, len(args))
			for _, arg := range args {
				absPath, err := validatePhotoPath(arg)
				if err != nil {
					return err
				}
				paths = append(paths, absPath)
			}

			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, absPath := range paths {
					if !reprocess {
						existing, err := store.FindUnresolvedBySource(cmd.Context(), absPath)
						if err != nil {
							return err
						}
						if existing != nil {
							fmt.Fprintf(out, "%s is already queued as job #%d\n", filepath.Base(absPath), existing.ID)
							continue
						}
					}
					job, err := store.NewPrimary(cmd.Context(), absPath, resolved, filepath.Base(absPath), reprocess)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued %s as job #%d\n", filepath.Base(absPath), job.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Science category for the photographs (default from config)")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "Queue even when the photo already has an unresolved job")
	return cmd
}

func validatePhotoPath(arg string) (string, error) {
	absPath, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file does not exist: %s", absPath)
		}
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", absPath)
	}

	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := manualPhotoExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}
	return absPath, nil
}
