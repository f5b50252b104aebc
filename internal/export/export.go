// Package export writes stored records as CSV, XLSX or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/spear-sync/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// SheetName is the worksheet written by XLSX exports.
const SheetName = "applications"

// Header is the column order shared by CSV and XLSX exports.
var Header = []string{"council_reference", "address", "description", "info_url", "date_scraped", "date_received"}

// ParseFormat validates a format name. Matching is case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, xlsx or json)", s)
	}
}

// Write encodes records to w in format.
func Write(w io.Writer, format Format, records []model.Record) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, records)
	case FormatXLSX:
		return writeXLSX(w, records)
	case FormatJSON:
		return writeJSON(w, records)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

func row(r model.Record) []string {
	return []string{r.CouncilReference, r.Address, r.Description, r.InfoURL, r.DateScraped, r.DateReceived}
}

func writeCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: csv header")
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return eris.Wrapf(err, "export: csv row %s", r.CouncilReference)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: csv flush")
}

func writeXLSX(w io.Writer, records []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: xlsx add sheet")
	}

	addRow(sheet, Header)
	for _, r := range records {
		addRow(sheet, row(r))
	}

	return eris.Wrap(f.Write(w), "export: xlsx write")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func writeJSON(w io.Writer, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(records), "export: json encode")
}
