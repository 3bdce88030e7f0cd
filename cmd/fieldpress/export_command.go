package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"fieldpress/internal/coverage"
	"fieldpress/internal/gallery"
	"fieldpress/internal/services/gitcli"
	"fieldpress/internal/standards"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the asset library as an XLSX report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			git, err := gitcli.New(gitcli.Config{
				Binary:         cfg.Gallery.GitBinary,
				RemoteURL:      cfg.Gallery.RemoteURL,
				Branch:         cfg.Gallery.Branch,
				AuthorName:     cfg.Gallery.AuthorName,
				AuthorEmail:    cfg.Gallery.AuthorEmail,
				TimeoutSeconds: cfg.Gallery.TimeoutSeconds,
			})
			if err != nil {
				return fmt.Errorf("configure gallery git client: %w", err)
			}
			publisher, err := gallery.NewPublisher(git, cfg.Paths.WorkDir)
			if err != nil {
				return fmt.Errorf("configure gallery publisher: %w", err)
			}

			wc, err := publisher.Acquire(cmd.Context(), []string{"data"})
			if err != nil {
				return fmt.Errorf("fetch asset library: %w", err)
			}
			defer wc.Close()

			assets, err := wc.Assets()
			if err != nil {
				return fmt.Errorf("read asset records: %w", err)
			}

			report, err := buildAssetReport(assets, coverage.Build(assets, time.Now()))
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, report, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d assets to %s\n", len(assets), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "assets.xlsx", "Destination for the XLSX report")
	return cmd
}

// buildAssetReport renders the library snapshot as an XLSX workbook with an
// Assets sheet (one row per published asset) and a Coverage sheet summarizing
// the derived index.
func buildAssetReport(assets []gallery.Asset, idx coverage.Index) ([]byte, error) {
	f := excelize.NewFile()

	if err := writeAssetSheet(f, assets); err != nil {
		return nil, err
	}
	if err := writeCoverageSheet(f, idx); err != nil {
		return nil, err
	}
	// Drop the default sheet so the report opens on Assets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if index, err := f.GetSheetIndex("Assets"); err == nil && index >= 0 {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAssetSheet(f *excelize.File, assets []gallery.Asset) error {
	const sheet = "Assets"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{
		"ID",
		"Title",
		"Category",
		"Filename",
		"Standards",
		"Keywords",
		"Lessons",
		"Workbooks",
		"Cost (USD)",
		"Processed",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	sorted := make([]gallery.Asset, len(assets))
	copy(sorted, assets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	row := 2
	for _, asset := range sorted {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, asset.ID)
		write(2, asset.Title)
		write(3, asset.Category)
		write(4, asset.Filename)
		write(5, flattenStandards(asset.NGSSStandards))
		write(6, strings.Join(asset.Keywords, ", "))
		write(7, strings.Join(gradeBandKeys(asset.Lessons), ", "))
		write(8, strings.Join(workbookBands(asset.Workbooks), ", "))
		write(9, asset.ProcessingCost)
		if asset.ProcessedAt != nil {
			write(10, asset.ProcessedAt.UTC().Format("2006-01-02"))
		}

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 6)
	_ = f.SetColWidth(sheet, "B", "B", 32)
	_ = f.SetColWidth(sheet, "C", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 24)
	_ = f.SetColWidth(sheet, "E", "F", 40)
	_ = f.SetColWidth(sheet, "G", "H", 16)
	_ = f.SetColWidth(sheet, "I", "J", 12)
	return nil
}

func writeCoverageSheet(f *excelize.File, idx coverage.Index) error {
	const sheet = "Coverage"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Scope", "Name", "Assets", "Standards"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	row := 2
	write := func(scope, name string, assetCount, standardCount int) {
		values := []any{scope, name, assetCount, standardCount}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	for _, band := range standards.GradeBands() {
		grade := idx.Grades[band]
		write("Grade band", band, grade.AssetCount, grade.StandardCount)
	}
	for _, category := range standards.Categories() {
		cat := idx.Categories[category]
		write("Category", category, cat.AssetCount, len(cat.Standards))
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 24)
	_ = f.SetColWidth(sheet, "C", "D", 12)
	return nil
}

// flattenStandards joins the per-band NGSS codes into one deduplicated list.
func flattenStandards(byBand map[string][]string) string {
	seen := make(map[string]struct{})
	codes := make([]string, 0, len(byBand)*3)
	for _, bandCodes := range byBand {
		for _, code := range bandCodes {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return strings.Join(codes, ", ")
}

func gradeBandKeys(lessons map[string]gallery.Lesson) []string {
	bands := make([]string, 0, len(lessons))
	for _, band := range standards.GradeBands() {
		if _, ok := lessons[band]; ok {
			bands = append(bands, band)
		}
	}
	return bands
}

func workbookBands(workbooks map[string]string) []string {
	bands := make([]string, 0, len(workbooks))
	for _, band := range standards.GradeBands() {
		if _, ok := workbooks[band]; ok {
			bands = append(bands, band)
		}
	}
	return bands
}
