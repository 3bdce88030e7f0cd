// Package coverage derives the library-wide coverage index from the asset
// records. The index is never patched in place: every publish rebuilds it
// from the full snapshot and commits it alongside the mutation that
// triggered it, so data/coverage.json always reflects data/assets.json
// exactly.
package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fieldpress/internal/gallery"
	"fieldpress/internal/standards"
)

const indexRelPath = "data/coverage.json"

// GradeCoverage counts the assets and distinct standards recorded for one
// grade band.
type GradeCoverage struct {
	AssetCount    int `json:"asset_count"`
	StandardCount int `json:"standard_count"`
}

// CategoryCoverage counts the assets filed under one category and lists the
// standards they collectively cover.
type CategoryCoverage struct {
	AssetCount int      `json:"asset_count"`
	Standards  []string `json:"standards,omitempty"`
}

// Index is the derived coverage summary stored at data/coverage.json.
type Index struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	AssetCount  int                         `json:"asset_count"`
	Standards   map[string][]int64          `json:"standards,omitempty"`
	Grades      map[string]GradeCoverage    `json:"grades"`
	Categories  map[string]CategoryCoverage `json:"categories"`
}

// Build computes the index from the asset records. Known grade bands and
// categories always appear, including those with no coverage yet; id lists
// and standard lists come back sorted so repeated builds of the same
// snapshot produce identical output.
func Build(assets []gallery.Asset, now time.Time) Index {
	idx := Index{
		GeneratedAt: now.UTC(),
		AssetCount:  len(assets),
		Standards:   make(map[string][]int64),
		Grades:      make(map[string]GradeCoverage),
		Categories:  make(map[string]CategoryCoverage),
	}

	codeAssets := make(map[string]map[int64]struct{})
	bandAssets := make(map[string]map[int64]struct{})
	bandCodes := make(map[string]map[string]struct{})
	categoryCodes := make(map[string]map[string]struct{})
	categoryAssets := make(map[string]int)

	for _, asset := range assets {
		categoryAssets[asset.Category]++
		for band := range asset.Lessons {
			if bandAssets[band] == nil {
				bandAssets[band] = make(map[int64]struct{})
			}
			bandAssets[band][asset.ID] = struct{}{}
		}
		for band, codes := range asset.NGSSStandards {
			for _, code := range codes {
				if codeAssets[code] == nil {
					codeAssets[code] = make(map[int64]struct{})
				}
				codeAssets[code][asset.ID] = struct{}{}
				if bandCodes[band] == nil {
					bandCodes[band] = make(map[string]struct{})
				}
				bandCodes[band][code] = struct{}{}
				if categoryCodes[asset.Category] == nil {
					categoryCodes[asset.Category] = make(map[string]struct{})
				}
				categoryCodes[asset.Category][code] = struct{}{}
			}
		}
	}

	for code, ids := range codeAssets {
		idx.Standards[code] = sortedIDs(ids)
	}
	for _, band := range standards.GradeBands() {
		idx.Grades[band] = GradeCoverage{
			AssetCount:    len(bandAssets[band]),
			StandardCount: len(bandCodes[band]),
		}
	}
	for _, category := range standards.Categories() {
		idx.Categories[category] = CategoryCoverage{
			AssetCount: categoryAssets[category],
			Standards:  sortedCodes(categoryCodes[category]),
		}
	}
	return idx
}

// Write renders the index into root/data/coverage.json atomically.
func Write(root string, idx Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal coverage index: %w", err)
	}
	data = append(data, '\n')

	target := filepath.Join(root, filepath.FromSlash(indexRelPath))
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

// Rebuild loads the asset records under root, derives a fresh index, and
// writes it back. It returns the index it wrote.
func Rebuild(root string, now time.Time) (Index, error) {
	assets, err := gallery.LoadAssets(root)
	if err != nil {
		return Index{}, err
	}
	idx := Build(assets, now)
	if err := Write(root, idx); err != nil {
		return Index{}, err
	}
	return idx, nil
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedCodes(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
