package xlsx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gcload/internal/records"
)

// workbook builds an in-memory workbook with the given sheets.
func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParse_NamedSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Sheet1": {
			{"patient_id", "patient_name", "age", "measurement_value", "measurement_date"},
			{101, "Ann", 40, 72.5, "2024-01-02"},
			{},
			{102, "Bob", nil, 40, "2024-01-03"},
		},
	})

	rows, err := NewParser(Options{Sheet: "Sheet1"}).Parse(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, records.Row{
		"patient_id":        "101",
		"patient_name":      "Ann",
		"age":               "40",
		"measurement_value": "72.5",
		"measurement_date":  "2024-01-02",
	}, rows[0])
	assert.Nil(t, rows[1]["age"])
	assert.Equal(t, "40", rows[1]["measurement_value"])
}

func TestParse_DefaultsToFirstSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{"Data": {{"a"}, {"x"}}})
	rows, err := NewParser(Options{}).Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, []records.Row{{"a": "x"}}, rows)
}

func TestParse_Errors(t *testing.T) {
	_, err := NewParser(Options{}).Parse(strings.NewReader("not a zip"))
	assert.True(t, records.IsFileError(err))

	buf := workbook(t, map[string][][]any{"Sheet1": {{"a"}}})
	_, err = NewParser(Options{Sheet: "Missing"}).Parse(buf)
	assert.True(t, records.IsFileError(err))
	assert.ErrorContains(t, err, `sheet "Missing" not found`)

	buf = workbook(t, map[string][][]any{"Sheet1": {{"a", "a"}}})
	_, err = NewParser(Options{}).Parse(buf)
	assert.ErrorContains(t, err, "repeated")

	buf = workbook(t, map[string][][]any{"Sheet1": {{"a"}, {"1", "2"}}})
	_, err = NewParser(Options{}).Parse(buf)
	assert.ErrorContains(t, err, "2 cells but 1 headers")
}
