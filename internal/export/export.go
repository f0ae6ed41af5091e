// Package export serializes stored records to CSV and Excel files.
// It consumes the store's read API; it is not part of the pipeline core.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
)

var columns = []string{
	"identity_key",
	"name",
	"address",
	"postal_code",
	"phone",
	"email",
	"website",
	"category",
	"corporate_number",
	"representative",
	"established_date",
	"employee_count",
	"annual_sales",
	"notes",
	"source_url",
	"first_seen_at",
	"last_seen_at",
}

const timestampLayout = "2006-01-02T15:04:05Z07:00"

// Exporter writes record exports under a base directory.
type Exporter struct {
	store listing.Store
	dir   string
	clock listing.Clock
}

// New creates an Exporter rooted at dir.
func New(store listing.Store, dir string, clock listing.Clock) *Exporter {
	return &Exporter{store: store, dir: dir, clock: clock}
}

// ExportCSV writes matching records to a timestamped CSV file and
// returns its path.
func (e *Exporter) ExportCSV(ctx context.Context, filter listing.ListFilter) (string, error) {
	records, err := e.store.List(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("list records: %w", err)
	}
	path, err := e.outputPath("business_records", "csv")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}

// ExportExcel writes matching records to a timestamped xlsx workbook
// and returns its path.
func (e *Exporter) ExportExcel(ctx context.Context, filter listing.ListFilter) (string, error) {
	records, err := e.store.List(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("list records: %w", err)
	}
	path, err := e.outputPath("business_records", "xlsx")
	if err != nil {
		return "", err
	}

	wb := excelize.NewFile()
	defer wb.Close()
	const sheet = "Records"
	if err := wb.SetSheetName(wb.GetSheetName(0), sheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRecordsSheet(wb, sheet, records); err != nil {
		return "", err
	}
	if err := wb.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// ExportReport writes a two-sheet workbook: aggregate figures over the
// whole store, then the full record detail.
func (e *Exporter) ExportReport(ctx context.Context) (string, error) {
	records, err := e.store.List(ctx, listing.ListFilter{})
	if err != nil {
		return "", fmt.Errorf("list records: %w", err)
	}
	path, err := e.outputPath("business_records_report", "xlsx")
	if err != nil {
		return "", err
	}

	wb := excelize.NewFile()
	defer wb.Close()
	const summarySheet = "Summary"
	const detailSheet = "Records"
	if err := wb.SetSheetName(wb.GetSheetName(0), summarySheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := wb.NewSheet(detailSheet); err != nil {
		return "", fmt.Errorf("add detail sheet: %w", err)
	}

	for i, line := range summarize(records) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", fmt.Errorf("cell name: %w", err)
		}
		cells := []any{line.metric, line.value}
		if err := wb.SetSheetRow(summarySheet, cell, &cells); err != nil {
			return "", fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := writeRecordsSheet(wb, detailSheet, records); err != nil {
		return "", err
	}
	if err := wb.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

type reportLine struct {
	metric string
	value  any
}

// summarize computes the aggregate figures for the report's first
// sheet. Employee counts and sales are canonical digit strings; rows
// where parsing fails are left out of the aggregates.
func summarize(records []listing.BusinessRecord) []reportLine {
	var (
		withWebsite   int
		withEmail     int
		employeeSum   int
		employeeCount int
		salesSum      int
	)
	for _, rec := range records {
		if rec.Website != "" {
			withWebsite++
		}
		if rec.Email != "" {
			withEmail++
		}
		if n, err := strconv.Atoi(rec.EmployeeCount); err == nil {
			employeeSum += n
			employeeCount++
		}
		if n, err := strconv.Atoi(rec.AnnualSales); err == nil {
			salesSum += n
		}
	}
	avgEmployees := 0
	if employeeCount > 0 {
		avgEmployees = employeeSum / employeeCount
	}
	return []reportLine{
		{"metric", "value"},
		{"total_records", len(records)},
		{"with_website", withWebsite},
		{"with_email", withEmail},
		{"average_employee_count", avgEmployees},
		{"total_annual_sales", salesSum},
	}
}

func writeRecordsSheet(wb *excelize.File, sheet string, records []listing.BusinessRecord) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	for i, rec := range records {
		values := row(rec)
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := wb.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

func (e *Exporter) outputPath(prefix, ext string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.%s", prefix, e.clock.Now().Format("20060102_150405"), ext)
	return filepath.Join(e.dir, name), nil
}

func row(rec listing.BusinessRecord) []string {
	return []string{
		rec.IdentityKey,
		rec.Name,
		rec.Address,
		rec.PostalCode,
		rec.Phone,
		rec.Email,
		rec.Website,
		rec.Category,
		rec.CorporateNumber,
		rec.Representative,
		rec.EstablishedDate,
		rec.EmployeeCount,
		rec.AnnualSales,
		rec.Notes,
		rec.SourceURL,
		rec.FirstSeenAt.Format(timestampLayout),
		rec.LastSeenAt.Format(timestampLayout),
	}
}
