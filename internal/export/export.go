// Package export renders query results as downloadable files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/intermernet/sportstats/internal/database"
	"github.com/intermernet/sportstats/internal/stats"
)

// Format is a supported download format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
	XML  Format = "xml"
)

// ParseFormat maps a query value onto a Format. An empty value means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, XLSX, JSON, XML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case JSON:
		return "application/json"
	case XML:
		return "application/xml"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename returns base with the format's extension.
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Write renders t in format f. title names the XLSX worksheet and the
// XML root's title attribute; CSV and JSON ignore it.
func Write(w io.Writer, f Format, title string, t *stats.Table) error {
	switch f {
	case CSV:
		return writeCSV(w, t)
	case XLSX:
		return writeXLSX(w, title, t)
	case JSON:
		return json.NewEncoder(w).Encode(t)
	case XML:
		return writeXML(w, title, t)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeCSV(w io.Writer, t *stats.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeXML emits <table title="..."> with one <row> per result row and one
// child element per column. NULL values become empty elements.
func writeXML(w io.Writer, title string, t *stats.Table) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	names := make([]xml.Name, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = xml.Name{Local: elementName(c)}
	}

	table := xml.StartElement{Name: xml.Name{Local: "table"}}
	if title != "" {
		table.Attr = []xml.Attr{{Name: xml.Name{Local: "title"}, Value: title}}
	}
	if err := enc.EncodeToken(table); err != nil {
		return err
	}
	row := xml.StartElement{Name: xml.Name{Local: "row"}}
	for _, values := range t.Rows {
		if err := enc.EncodeToken(row); err != nil {
			return err
		}
		for i, v := range values {
			if err := enc.EncodeElement(cellString(v), xml.StartElement{Name: names[i]}); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(row.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(table.End()); err != nil {
		return err
	}
	return enc.Close()
}

// elementName turns a column name into a valid XML element name.
func elementName(col string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, col)
	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(r) && r != '_' {
		name = "_" + name
	}
	return name
}

// maxSheetName is Excel's worksheet name limit.
const maxSheetName = 31

func writeXLSX(w io.Writer, sheet string, t *stats.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if len(t.Columns) > 0 {
		last, err := excelize.ColumnNumberToName(len(t.Columns))
		if err != nil {
			return err
		}
		f.SetColWidth(sheet, "A", last, 16)
	}

	return f.Write(w)
}

func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, name)
	if name == "" {
		return "Export"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// PlayersTable lays out players as a table with the Player columns.
func PlayersTable(players []*database.Player) *stats.Table {
	t := &stats.Table{
		Columns: []string{"id", "player_api_id", "player_name", "player_fifa_api_id", "birthday", "height", "weight"},
		Rows:    make([][]any, 0, len(players)),
	}
	for _, p := range players {
		t.Rows = append(t.Rows, []any{
			p.ID, p.PlayerAPIID, p.PlayerName, deref(p.PlayerFifaAPIID), deref(p.Birthday), deref(p.Height), deref(p.Weight),
		})
	}
	return t
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
