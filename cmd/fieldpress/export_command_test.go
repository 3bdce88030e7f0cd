package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"fieldpress/internal/coverage"
	"fieldpress/internal/gallery"
)

func TestBuildAssetReport(t *testing.T) {
	processed := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	assets := []gallery.Asset{
		{
			ID:       2,
			Filename: "tidepool.jpg",
			Category: "life-science",
			Title:    "Tidepool Anemones",
			Slug:     "tidepool-anemones",
			NGSSStandards: map[string][]string{
				"K-2": {"2-LS4-1"},
				"3-5": {"3-LS4-3", "2-LS4-1"},
			},
			Keywords:       []string{"tidepool", "anemone"},
			Lessons:        map[string]gallery.Lesson{"K-2": {MarkdownPath: "assets/life-science/2-tidepool-anemones/lesson-k-2.md"}},
			Workbooks:      map[string]string{"K-2": "assets/life-science/2-tidepool-anemones/workbook-k-2.pdf"},
			ProcessingCost: 0.25,
			ProcessedAt:    &processed,
		},
		{
			ID:       1,
			Filename: "granite.jpg",
			Category: "earth-space",
			Title:    "Granite Outcrop",
			Slug:     "granite-outcrop",
		},
	}
	idx := coverage.Build(assets, processed)

	report, err := buildAssetReport(assets, idx)
	if err != nil {
		t.Fatalf("buildAssetReport: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(report))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Assets" && sheets[1] != "Assets" {
		t.Fatalf("unexpected sheet list: %v", sheets)
	}
	for _, sheet := range sheets {
		if sheet == "Sheet1" {
			t.Fatalf("default sheet should be removed, got %v", sheets)
		}
	}

	mustCell := func(sheet, cell string) string {
		value, err := f.GetCellValue(sheet, cell)
		if err != nil {
			t.Fatalf("read %s!%s: %v", sheet, cell, err)
		}
		return value
	}

	if got := mustCell("Assets", "A1"); got != "ID" {
		t.Fatalf("expected ID header, got %q", got)
	}
	// Rows come back sorted by id regardless of input order.
	if got := mustCell("Assets", "B2"); got != "Granite Outcrop" {
		t.Fatalf("expected granite first, got %q", got)
	}
	if got := mustCell("Assets", "B3"); got != "Tidepool Anemones" {
		t.Fatalf("expected tidepool second, got %q", got)
	}
	if got := mustCell("Assets", "E3"); got != "2-LS4-1, 3-LS4-3" {
		t.Fatalf("expected deduplicated sorted standards, got %q", got)
	}
	if got := mustCell("Assets", "F3"); got != "tidepool, anemone" {
		t.Fatalf("unexpected keywords cell: %q", got)
	}
	if got := mustCell("Assets", "G3"); got != "K-2" {
		t.Fatalf("unexpected lessons cell: %q", got)
	}
	if got := mustCell("Assets", "J3"); got != "2026-03-14" {
		t.Fatalf("unexpected processed cell: %q", got)
	}

	if got := mustCell("Coverage", "A2"); got != "Grade band" {
		t.Fatalf("expected grade band scope first, got %q", got)
	}
	if got := mustCell("Coverage", "B2"); got != "K-2" {
		t.Fatalf("expected K-2 first, got %q", got)
	}
	if got := mustCell("Coverage", "C2"); got != "1" {
		t.Fatalf("expected one K-2 asset, got %q", got)
	}
	// Grade band rows precede the category rows.
	if got := mustCell("Coverage", "A5"); got != "Category" {
		t.Fatalf("expected category scope after grade bands, got %q", got)
	}
	if got := mustCell("Coverage", "B5"); got != "life-science" {
		t.Fatalf("expected life-science first category, got %q", got)
	}
}

func TestBuildAssetReportEmptyLibrary(t *testing.T) {
	idx := coverage.Build(nil, time.Now())
	report, err := buildAssetReport(nil, idx)
	if err != nil {
		t.Fatalf("buildAssetReport: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(report))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got, err := f.GetCellValue("Assets", "A1"); err != nil || got != "ID" {
		t.Fatalf("expected header row in empty report, got %q (%v)", got, err)
	}
	rows, err := f.GetRows("Coverage")
	if err != nil {
		t.Fatalf("read coverage rows: %v", err)
	}
	// Header plus three grade bands plus four categories.
	if len(rows) != 8 {
		t.Fatalf("expected 8 coverage rows, got %d", len(rows))
	}
}
