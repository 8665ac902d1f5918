// Package export projects analysis records onto selected fields and writes
// them as CSV or human-readable text.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"dicomroi/internal/models"
)

// bom is the UTF-8 byte order mark written before the header row
const bom = "\ufeff"

// DefaultColumns is the export selection used when none is configured
var DefaultColumns = []string{
	"PatientName", "PatientID", models.FieldFileName, models.FieldROIID,
	models.FieldROIMean, models.FieldROINoiseSD, models.FieldFullImageMean, models.FieldFullImageSD,
	"ExposureIndex", "KVP",
}

// Project returns one row per record with the values of fields in order.
// Absent values are empty strings.
func Project(records []*models.AnalysisRecord, fields []string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(fields))
		for i, f := range fields {
			if v, ok := rec.Get(f); ok {
				row[i] = v.Format()
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// quote wraps s in double quotes when it contains a comma or a quote
func quote(s string) string {
	if !strings.ContainsAny(s, ",\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeRow(w *bufio.Writer, row []string) error {
	for i, cell := range row {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(cell)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// WriteCSV writes a UTF-8 BOM, a header row of field names and one row per
// record
func WriteCSV(w io.Writer, records []*models.AnalysisRecord, fields []string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	if err := writeRow(bw, fields); err != nil {
		return err
	}
	for _, row := range Project(records, fields) {
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCSVFile writes the CSV export to path
func WriteCSVFile(path string, records []*models.AnalysisRecord, fields []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteCSV(f, records, fields); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// DefaultFileName returns the dated export file name for t
func DefaultFileName(t time.Time) string {
	return "dicom_roi_analysis_" + t.UTC().Format("2006-01-02") + ".csv"
}

// DefaultSelection returns the default columns present in available, in
// default order
func DefaultSelection(available *models.FieldSet) []string {
	var out []string
	for _, f := range DefaultColumns {
		if available.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// SortFields orders available fields for a selection list: the computed
// fields first in record order, then metadata fields alphabetically
func SortFields(available *models.FieldSet) []string {
	var core, rest []string
	for _, f := range models.CoreFields {
		if available.Has(f) {
			core = append(core, f)
		}
	}
	isCore := make(map[string]bool, len(models.CoreFields))
	for _, f := range models.CoreFields {
		isCore[f] = true
	}
	for _, f := range available.List() {
		if !isCore[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(core, rest...)
}
