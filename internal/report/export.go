package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"github.com/btraven00/linkscan/internal/verifier"
)

// ErrorCode defines error types for report output
type ErrorCode string

const (
	// ErrUnsupportedExport is returned for export paths with an unknown extension
	ErrUnsupportedExport ErrorCode = "UnsupportedExport"
	// ErrExportFailed is returned when an export file cannot be written
	ErrExportFailed ErrorCode = "ExportFailed"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// utf8BOM lets spreadsheet applications detect the encoding of CSV exports.
const utf8BOM = "\ufeff"

// Record is the flat, exported form of a verification result.
type Record struct {
	URL          string  `json:"url"`
	OriginalURL  string  `json:"original_url"`
	Status       string  `json:"status"`
	Label        string  `json:"label"`
	StatusCode   int     `json:"status_code"`
	ResponseTime float64 `json:"response_time"`
	ErrorKind    string  `json:"error_kind,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Source       string  `json:"source"`
}

var recordHeader = []string{
	"URL", "Original URL", "Status", "Status Code", "Response Time (s)", "Error", "Source",
}

// NewRecord flattens a result.
func NewRecord(r verifier.Result) Record {
	return Record{
		URL:          r.Normalized,
		OriginalURL:  r.Original,
		Status:       string(r.Category),
		Label:        r.Category.Label(),
		StatusCode:   r.StatusCode,
		ResponseTime: r.Seconds(),
		ErrorKind:    string(r.ErrorKind),
		ErrorMessage: r.ErrorMessage,
		Source:       r.SourceID,
	}
}

// NewRecords flattens results, keeping their order.
func NewRecords(results []verifier.Result) []Record {
	return lo.Map(results, func(r verifier.Result, _ int) Record {
		return NewRecord(r)
	})
}

func (r Record) row() []string {
	return []string{
		r.URL,
		r.OriginalURL,
		r.Label,
		strconv.Itoa(r.StatusCode),
		strconv.FormatFloat(r.ResponseTime, 'f', 4, 64),
		r.ErrorMessage,
		r.Source,
	}
}

// WriteCSV writes results as CSV with a header row.
func WriteCSV(w io.Writer, results []verifier.Result) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}

	for _, rec := range NewRecords(results) {
		if err := cw.Write(rec.row()); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// Document is the JSON export layout.
type Document struct {
	Summary Summary  `json:"summary"`
	Results []Record `json:"results"`
}

// WriteJSON writes the summary and results as one indented JSON document.
func WriteJSON(w io.Writer, results []verifier.Result, summary Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(Document{
		Summary: summary,
		Results: NewRecords(results),
	})
}

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

// WriteXLSX writes a workbook with a results sheet and a summary sheet.
func WriteXLSX(w io.Writer, results []verifier.Result, summary Summary) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), resultsSheet); err != nil {
		return err
	}

	if err := setRow(book, resultsSheet, 1, recordHeader); err != nil {
		return err
	}

	for i, rec := range NewRecords(results) {
		values := []any{
			rec.URL, rec.OriginalURL, rec.Label, rec.StatusCode,
			rec.ResponseTime, rec.ErrorMessage, rec.Source,
		}

		if err := setRowValues(book, resultsSheet, i+2, values); err != nil {
			return err
		}
	}

	if err := book.SetColWidth(resultsSheet, "A", "B", 60); err != nil {
		return err
	}

	if _, err := book.NewSheet(summarySheet); err != nil {
		return err
	}

	rows := [][]any{
		{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Files processed", summary.FilesProcessed},
		{"URLs found", summary.URLsFound},
		{"URLs verified", summary.URLsVerified},
		{"Reachable", summary.SuccessCount},
		{"Success rate (%)", summary.SuccessRate},
		{"Elapsed", summary.Elapsed.Round(time.Second).String()},
		{},
		{"Status", "Count"},
	}

	for _, c := range summary.Distribution {
		rows = append(rows, []any{c.Label, c.Count})
	}

	for i, values := range rows {
		if err := setRowValues(book, summarySheet, i+1, values); err != nil {
			return err
		}
	}

	return book.Write(w)
}

func setRow(book *excelize.File, sheet string, row int, values []string) error {
	return setRowValues(book, sheet, row, lo.ToAnySlice(values))
}

func setRowValues(book *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}

	return book.SetSheetRow(sheet, cell, &values)
}

// Export writes results to path, choosing the format from its extension:
// .csv, .xlsx or .json.
func Export(fsys afero.Fs, path string, results []verifier.Result, summary Summary) error {
	var write func(io.Writer) error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = func(w io.Writer) error { return WriteCSV(w, results) }
	case ".xlsx":
		write = func(w io.Writer) error { return WriteXLSX(w, results, summary) }
	case ".json":
		write = func(w io.Writer) error { return WriteJSON(w, results, summary) }
	default:
		return failure.New(ErrUnsupportedExport,
			failure.Message("export path must end in .csv, .xlsx or .json"),
			failure.Context{"path": path},
		)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return failure.Translate(err, ErrExportFailed, failure.Context{"path": path})
	}

	if err := write(f); err != nil {
		f.Close()
		return failure.Translate(err, ErrExportFailed, failure.Context{"path": path})
	}

	if err := f.Close(); err != nil {
		return failure.Translate(err, ErrExportFailed, failure.Context{"path": path})
	}

	return nil
}
