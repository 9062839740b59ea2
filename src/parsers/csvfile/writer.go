// backend/src/parsers/csvfile/writer.go
package csvfile

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/username/isincheck/backend/src/models"
)

// classificationHeaders are appended after the original columns on export.
var classificationHeaders = []string{"Category", "SubCategory", "Direction", "Leverage", "Status", "Notes"}

// Writer renders checked rows back to CSV, reproducing the original columns
// in their original order and appending the classification columns.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// WriteSingle writes all rows as one table.
func (w *Writer) WriteSingle(out io.Writer, rows []models.CheckedRow, headers []string) error {
	headers = resolveHeaders(rows, headers)
	cw := csv.NewWriter(out)
	if err := cw.Write(append(append([]string{}, headers...), classificationHeaders...)); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(exportRecord(row, headers)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteByCategory writes one section per top-level category, in first-seen
// order, separated by a marker line.
func (w *Writer) WriteByCategory(out io.Writer, rows []models.CheckedRow, headers []string) error {
	headers = resolveHeaders(rows, headers)

	var order []models.Category
	grouped := make(map[models.Category][]models.CheckedRow)
	for _, row := range rows {
		if _, seen := grouped[row.Category]; !seen {
			order = append(order, row.Category)
		}
		grouped[row.Category] = append(grouped[row.Category], row)
	}

	cw := csv.NewWriter(out)
	headerRecord := append(append([]string{}, headers...), classificationHeaders...)
	for _, category := range order {
		if err := cw.Write([]string{"# " + string(category)}); err != nil {
			return err
		}
		if err := cw.Write(headerRecord); err != nil {
			return err
		}
		for _, row := range grouped[category] {
			if err := cw.Write(exportRecord(row, headers)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// FilterByCategory keeps rows matching a "Category[_SubCategory[_direction]]"
// filter string. The sub-category token matches either the literal
// sub-category or a commodity kind.
func FilterByCategory(rows []models.CheckedRow, filter string) []models.CheckedRow {
	parts := strings.SplitN(filter, "_", 3)
	category := parts[0]
	var subCategory, direction string
	if len(parts) > 1 {
		subCategory = parts[1]
	}
	if len(parts) > 2 {
		direction = parts[2]
	}

	var filtered []models.CheckedRow
	for _, row := range rows {
		if string(row.Category) != category {
			continue
		}
		if subCategory != "" &&
			string(row.SubCategory) != subCategory &&
			string(row.SubCategory.CommodityKind()) != subCategory {
			continue
		}
		if direction != "" && string(row.Direction) != direction {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// resolveHeaders falls back to the first row's original columns (sorted for
// determinism) and then to the bare isin/name/wkn triple.
func resolveHeaders(rows []models.CheckedRow, headers []string) []string {
	if len(headers) > 0 {
		return headers
	}
	if len(rows) > 0 && len(rows[0].OriginalRowData) > 0 {
		keys := make([]string, 0, len(rows[0].OriginalRowData))
		for k := range rows[0].OriginalRowData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	return []string{"ISIN", "Name", "WKN"}
}

func exportRecord(row models.CheckedRow, headers []string) []string {
	record := make([]string, 0, len(headers)+len(classificationHeaders))
	for _, header := range headers {
		record = append(record, cellValue(row, header))
	}
	return append(record,
		string(row.Category),
		string(row.SubCategory),
		string(row.Direction),
		string(row.Leverage),
		string(row.Status),
		row.Notes,
	)
}

// cellValue prefers the preserved original data, falling back to the parsed
// isin/name/wkn fields when a column is missing.
func cellValue(row models.CheckedRow, header string) string {
	if v, ok := row.OriginalRowData[header]; ok {
		return v
	}
	lower := strings.ToLower(header)
	switch {
	case strings.Contains(lower, "isin"):
		return row.ISIN
	case strings.Contains(lower, "name"), strings.Contains(lower, "bezeichnung"):
		return row.Name
	case strings.Contains(lower, "wkn"):
		return row.WKN
	}
	return ""
}
