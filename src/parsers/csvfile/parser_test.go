package csvfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"ISIN,Bezeichnung,WKN,Depot",
		"US0378331005,Apple Inc,865985,A",
		" de000a0s9gb0 ,Xetra-Gold,A0S9GB,B",
		",,,",
		"NOT-AN-ISIN,Mystery,123456,C",
	}, "\n")

	result, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"ISIN", "Bezeichnung", "WKN", "Depot"}, result.Headers)

	// The fully empty line is skipped and does not shift later row indices.
	require.Len(t, result.Rows, 3)

	first := result.Rows[0]
	assert.Equal(t, 2, first.RowIndex)
	assert.Equal(t, "US0378331005", first.ISIN)
	assert.Equal(t, "Apple Inc", first.Name)
	assert.Equal(t, "865985", first.WKN)
	assert.True(t, first.ValidISIN)
	assert.Equal(t, "A", first.OriginalRowData["Depot"])

	second := result.Rows[1]
	assert.Equal(t, 3, second.RowIndex)
	assert.Equal(t, "DE000A0S9GB0", second.ISIN)
	assert.True(t, second.ValidISIN)

	invalid := result.Rows[2]
	assert.Equal(t, 5, invalid.RowIndex)
	assert.Equal(t, "NOT-AN-ISIN", invalid.ISIN)
	assert.False(t, invalid.ValidISIN)
}

func TestParseHeaderAliases(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"plain", "ISIN,Name,WKN"},
		{"isin code with space", "ISIN Code,Instrument Name,Wertpapierkennnummer"},
		{"underscores and casing", "isin_code,SECURITY_NAME,wkn"},
		{"german description column", "Isin,Beschreibung,Wkn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.header + "\nUS0378331005,Apple Inc,865985\n"
			result, err := NewParser().Parse(strings.NewReader(input))
			require.NoError(t, err)
			require.Len(t, result.Rows, 1)
			assert.Equal(t, "US0378331005", result.Rows[0].ISIN)
			assert.Equal(t, "Apple Inc", result.Rows[0].Name)
			assert.Equal(t, "865985", result.Rows[0].WKN)
		})
	}
}

func TestParseMissingISINColumn(t *testing.T) {
	result, err := NewParser().Parse(strings.NewReader("Name,WKN\nApple Inc,865985\n"))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ISIN column not found")
	assert.Empty(t, result.Rows)
}

func TestParseEmptyFile(t *testing.T) {
	result, err := NewParser().Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "empty")
}

func TestParseRaggedRecords(t *testing.T) {
	input := "ISIN,Name,WKN\nUS0378331005,Apple Inc\n"
	result, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "US0378331005", result.Rows[0].ISIN)
	assert.Equal(t, "", result.Rows[0].WKN)
}
