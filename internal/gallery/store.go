package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const assetsRelPath = "data/assets.json"

// LoadAssets reads the asset records under root. A missing file is an empty
// library, not an error.
func LoadAssets(root string) ([]Asset, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(assetsRelPath)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read asset records: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var assets []Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("parse asset records: %w", err)
	}
	return assets, nil
}

// SaveAssets writes the asset records under root, sorted by id so the file
// diffs cleanly between publishes. The write is atomic via a temp file.
func SaveAssets(root string, assets []Asset) error {
	sorted := make([]Asset, len(assets))
	copy(sorted, assets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal asset records: %w", err)
	}
	data = append(data, '\n')

	target := filepath.Join(root, filepath.FromSlash(assetsRelPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
