package output

import (
	"encoding/csv"
	"io"
)

// CSVFormatter writes a single table: the rate table when the report has
// one, otherwise the priced shipments.
type CSVFormatter struct{}

// Format implements Formatter
func (f *CSVFormatter) Format() Format { return FormatCSV }

// Render implements Formatter
func (f *CSVFormatter) Render(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)

	if g := report.RateTable; g != nil {
		if err := cw.Write(rateTableHeader(g, "")); err != nil {
			return err
		}
		if err := cw.WriteAll(rateTableRecords(g)); err != nil {
			return err
		}
		return cw.Error()
	}

	if err := cw.Write(ResultColumns); err != nil {
		return err
	}
	for _, r := range report.Results {
		if err := cw.Write(resultRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
