// backend/src/parsers/csvfile/parser.go
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/utils"
)

// ParseResult is the outcome of parsing one uploaded file.
type ParseResult struct {
	Rows    []models.ParsedRow
	Headers []string
	Errors  []string
}

var (
	isinAliases = []string{"isin", "isincode"}
	nameAliases = []string{
		"name", "bezeichnung", "titel", "instrumentname", "instrument",
		"wertpapiername", "papiername", "securityname", "description", "beschreibung",
	}
	wknAliases = []string{"wkn", "wertpapierkennnummer"}
)

// Parser reads instrument lists from CSV files. The first row is the header;
// the ISIN column is required, name and WKN are optional. All original
// columns are preserved per row for later export.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(file io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv parser: failed to read records: %w", err)
	}

	result := &ParseResult{}
	if len(records) == 0 {
		result.Errors = append(result.Errors, "the file is empty")
		return result, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	result.Headers = headers

	isinIdx, nameIdx, wknIdx := findColumns(headers)
	if isinIdx < 0 {
		result.Errors = append(result.Errors,
			"ISIN column not found. Expected column names: ISIN, ISIN Code, ISINCode")
		return result, nil
	}

	for i, record := range records[1:] {
		isinRaw := fieldAt(record, isinIdx)
		nameRaw := fieldAt(record, nameIdx)
		wknRaw := fieldAt(record, wknIdx)
		if isinRaw == "" && nameRaw == "" && wknRaw == "" {
			continue
		}

		original := make(map[string]string, len(headers))
		for col, header := range headers {
			original[header] = fieldAt(record, col)
		}

		isin := utils.NormalizeISIN(isinRaw)
		result.Rows = append(result.Rows, models.ParsedRow{
			// 1-based line number including the header row, so row 2 is the
			// first data row, matching what users see in a spreadsheet.
			RowIndex:        i + 2,
			ISIN:            isin,
			Name:            nameRaw,
			WKN:             wknRaw,
			ValidISIN:       utils.ValidateISIN(isin),
			OriginalRowData: original,
		})
	}
	return result, nil
}

// findColumns locates the isin/name/wkn columns by case-insensitive alias
// matching. Returns -1 for columns that are not present.
func findColumns(headers []string) (isinIdx, nameIdx, wknIdx int) {
	isinIdx, nameIdx, wknIdx = -1, -1, -1
	for i, header := range headers {
		normalized := normalizeHeader(header)
		if isinIdx < 0 && matchesAlias(normalized, isinAliases) {
			isinIdx = i
		}
		if nameIdx < 0 && matchesAlias(normalized, nameAliases) {
			nameIdx = i
		}
		if wknIdx < 0 && matchesAlias(normalized, wknAliases) {
			wknIdx = i
		}
	}
	return isinIdx, nameIdx, wknIdx
}

func normalizeHeader(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(header))
	normalized = strings.ReplaceAll(normalized, " ", "")
	return strings.ReplaceAll(normalized, "_", "")
}

func matchesAlias(normalized string, aliases []string) bool {
	for _, alias := range aliases {
		if strings.Contains(normalized, alias) {
			return true
		}
	}
	return false
}

func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
