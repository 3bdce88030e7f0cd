package stage

import (
	"fmt"
	"os"

	"fieldpress/internal/services"
)

// CheckSource verifies that a source photograph exists and fits within the
// size cap, returning its size in bytes. Failures come back as
// services.ErrValidation so stages fail the job without consuming an attempt.
func CheckSource(path string, maxBytes int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, services.Wrap(
			services.ErrValidation, "stage", "check source",
			"Source photo missing or unreadable; re-upload it", err)
	}
	if info.IsDir() {
		return 0, services.Wrap(
			services.ErrValidation, "stage", "check source",
			fmt.Sprintf("Source path %s is a directory", path), nil)
	}
	size := info.Size()
	if size == 0 {
		return 0, services.Wrap(
			services.ErrValidation, "stage", "check source",
			"Source photo is empty; re-upload it", nil)
	}
	if maxBytes > 0 && size > maxBytes {
		return 0, services.Wrap(
			services.ErrValidation, "stage", "check source",
			fmt.Sprintf("Source photo is %d bytes, above the %d byte cap", size, maxBytes), nil)
	}
	return size, nil
}
