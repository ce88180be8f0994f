// Package workbook reads reference sheets from spreadsheet files.
// Supports xlsx workbooks and directories of per-sheet CSV files.
package workbook

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"parcel-rate/core/reference"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Format is a reference file format
type Format string

const (
	FormatAuto Format = ""
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Workbook is a reference.Source that can also list its sheets
type Workbook interface {
	reference.Source

	// Sheets lists the available sheet names in file order
	Sheets() []string

	// Close releases the underlying file
	Close() error
}

// Open opens path as a workbook. FormatAuto picks CSV for directories and
// .csv files and xlsx for everything else.
func Open(path string, format Format, log *zap.Logger) (Workbook, error) {
	log = logging.OrDefault(log, "workbook")

	info, err := os.Stat(path)
	if err != nil {
		return nil, rerrors.ReferenceData("cannot open reference file", err).WithContext("path", path)
	}

	if format == FormatAuto {
		switch {
		case info.IsDir():
			format = FormatCSV
		case strings.EqualFold(filepath.Ext(path), ".csv"):
			format = FormatCSV
		default:
			format = FormatXLSX
		}
	}

	var wb Workbook
	switch format {
	case FormatXLSX:
		wb, err = OpenXLSX(path, log)
	case FormatCSV:
		if info.IsDir() {
			wb, err = OpenCSVDir(path, log)
		} else {
			wb, err = OpenCSVFile(path, log)
		}
	default:
		return nil, rerrors.Input(fmt.Sprintf("unsupported reference format %q", format))
	}
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// XLSX reads sheets from an Excel workbook
type XLSX struct {
	path string
	file *excelize.File
	log  *zap.Logger
	mu   sync.Mutex
}

// OpenXLSX opens an xlsx workbook
func OpenXLSX(path string, log *zap.Logger) (*XLSX, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, rerrors.ReferenceData("cannot open workbook", err).WithContext("path", path)
	}
	return &XLSX{path: path, file: f, log: logging.OrDefault(log, "workbook")}, nil
}

// Rows returns the raw cell values of sheet. Number formats are ignored so
// currency cells come back as plain decimals.
func (x *XLSX) Rows(sheet string) ([][]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	name, ok := matchSheet(x.file.GetSheetList(), sheet)
	if !ok {
		return nil, rerrors.NotFound("sheet", sheet).WithContext("path", x.path)
	}

	rows, err := x.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, rerrors.ReferenceData("cannot read sheet", err).WithContext("sheet", name)
	}
	x.log.Debug("read sheet", zap.String("sheet", name), zap.Int("rows", len(rows)))
	return rows, nil
}

// Sheets lists the workbook's sheets
func (x *XLSX) Sheets() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.file.GetSheetList()
}

// Close closes the workbook
func (x *XLSX) Close() error {
	return x.file.Close()
}

// CSVDir reads each sheet from "<dir>/<sheet>.csv"
type CSVDir struct {
	dir   string
	files map[string]string
	names []string
	log   *zap.Logger
}

// OpenCSVDir indexes the CSV files in dir
func OpenCSVDir(dir string, log *zap.Logger) (*CSVDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rerrors.ReferenceData("cannot read reference directory", err).WithContext("path", dir)
	}

	d := &CSVDir{dir: dir, files: make(map[string]string), log: logging.OrDefault(log, "workbook")}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		d.files[name] = filepath.Join(dir, e.Name())
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)
	return d, nil
}

// Rows reads the CSV file named after sheet
func (d *CSVDir) Rows(sheet string) ([][]string, error) {
	name, ok := matchSheet(d.names, sheet)
	if !ok {
		return nil, rerrors.NotFound("sheet", sheet).WithContext("path", d.dir)
	}
	rows, err := readCSV(d.files[name])
	if err != nil {
		return nil, err
	}
	d.log.Debug("read sheet", zap.String("sheet", name), zap.Int("rows", len(rows)))
	return rows, nil
}

// Sheets lists the sheet names found in the directory
func (d *CSVDir) Sheets() []string {
	return append([]string(nil), d.names...)
}

// Close is a no-op
func (d *CSVDir) Close() error {
	return nil
}

// CSVFile serves a single CSV file for every sheet name. It is used for a
// standalone zone matrix file.
type CSVFile struct {
	path string
	rows [][]string
}

// OpenCSVFile reads path eagerly
func OpenCSVFile(path string, log *zap.Logger) (*CSVFile, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	logging.OrDefault(log, "workbook").Debug("read csv file", zap.String("path", path), zap.Int("rows", len(rows)))
	return &CSVFile{path: path, rows: rows}, nil
}

// Rows returns the file's rows regardless of sheet
func (f *CSVFile) Rows(string) ([][]string, error) {
	return f.rows, nil
}

// Sheets returns the file's base name
func (f *CSVFile) Sheets() []string {
	base := filepath.Base(f.path)
	return []string{strings.TrimSuffix(base, filepath.Ext(base))}
}

// Close is a no-op
func (f *CSVFile) Close() error {
	return nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, rerrors.ReferenceData("cannot open csv sheet", err).WithContext("path", path)
	}
	defer file.Close()

	rows, err := parseCSV(file)
	if err != nil {
		return nil, rerrors.Parsing("cannot parse csv sheet", err).WithContext("path", path)
	}
	return rows, nil
}

func parseCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// matchSheet finds want in names, exactly first and then ignoring case and
// surrounding spaces
func matchSheet(names []string, want string) (string, bool) {
	for _, n := range names {
		if n == want {
			return n, true
		}
	}
	norm := strings.ToLower(strings.TrimSpace(want))
	for _, n := range names {
		if strings.ToLower(strings.TrimSpace(n)) == norm {
			return n, true
		}
	}
	return "", false
}

var (
	_ Workbook = (*XLSX)(nil)
	_ Workbook = (*CSVDir)(nil)
	_ Workbook = (*CSVFile)(nil)
)
