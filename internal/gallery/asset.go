package gallery

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Lesson references the generated teaching material for one grade band.
// Paths are relative to the repository root.
type Lesson struct {
	MarkdownPath string `json:"markdown_path"`
	PDFPath      string `json:"pdf_path,omitempty"`
}

// Asset is one published photograph plus everything generated from it. The
// records live in data/assets.json and are mutated only through the
// pipeline's read-modify-write-commit cycle; queue serialization guarantees a
// single writer per id.
type Asset struct {
	ID              int64               `json:"id"`
	Filename        string              `json:"filename"`
	Category        string              `json:"category"`
	Title           string              `json:"title,omitempty"`
	Slug            string              `json:"slug,omitempty"`
	PhotoPath       string              `json:"photo_path,omitempty"`
	ThumbPath       string              `json:"thumb_path,omitempty"`
	PlaceholderPath string              `json:"placeholder_path,omitempty"`
	HasContent      bool                `json:"has_content"`
	NGSSStandards   map[string][]string `json:"ngss_standards,omitempty"`
	Keywords        []string            `json:"keywords,omitempty"`
	Lessons         map[string]Lesson   `json:"lessons,omitempty"`
	Workbooks       map[string]string   `json:"workbooks,omitempty"`
	ProcessingCost  float64             `json:"processing_cost"`
	ProcessingTime  float64             `json:"processing_time"`
	ProcessedAt     *time.Time          `json:"processed_at,omitempty"`
}

// Dir returns the asset's directory relative to the repository root, e.g.
// assets/life-science/12-pond-frog.
func (a Asset) Dir() string {
	return path.Join("assets", a.Category, fmt.Sprintf("%d-%s", a.ID, a.Slug))
}

// SparsePaths returns the sparse-checkout paths a publish of this asset needs.
func (a Asset) SparsePaths() []string {
	return []string{"data", a.Dir()}
}

// NextID returns the id the next new asset should take.
func NextID(assets []Asset) int64 {
	var max int64
	for _, asset := range assets {
		if asset.ID > max {
			max = asset.ID
		}
	}
	return max + 1
}

// FindByID returns a pointer into assets for the record with the given id.
func FindByID(assets []Asset, id int64) *Asset {
	for i := range assets {
		if assets[i].ID == id {
			return &assets[i]
		}
	}
	return nil
}

// FindBySource returns a pointer into assets for the record matching the
// uploaded filename within a category. This is the duplicate check the
// primary stage runs before generating anything.
func FindBySource(assets []Asset, filename, category string) *Asset {
	filename = strings.TrimSpace(filename)
	category = strings.TrimSpace(category)
	for i := range assets {
		if assets[i].Filename == filename && assets[i].Category == category {
			return &assets[i]
		}
	}
	return nil
}
