package artifact

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mailmend/mailmend/model/correction"
)

// csvTable adapts CSV content to the Table contract. A1-style cell references
// map onto (record, field) positions; the sheet component of a locator is
// ignored.
type csvTable struct {
	records [][]string
}

func decodeCSV(data []byte) (Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return &csvTable{records: records}, nil
}

// coordinates converts an A1-style reference into zero-based column and row.
func coordinates(loc correction.Locator) (col, row int, err error) {
	col, row, err = excelize.CellNameToCoordinates(loc.Cell)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell reference %q: %w", loc.Cell, err)
	}
	return col - 1, row - 1, nil
}

func (t *csvTable) Value(loc correction.Locator) (string, error) {
	col, row, err := coordinates(loc)
	if err != nil {
		return "", err
	}
	if row >= len(t.records) || col >= len(t.records[row]) {
		return "", nil
	}
	return t.records[row][col], nil
}

func (t *csvTable) Set(loc correction.Locator, value string) error {
	col, row, err := coordinates(loc)
	if err != nil {
		return err
	}
	for row >= len(t.records) {
		t.records = append(t.records, nil)
	}
	for col >= len(t.records[row]) {
		t.records[row] = append(t.records[row], "")
	}
	t.records[row][col] = value
	return nil
}

func (t *csvTable) Encode() ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	if err := writer.WriteAll(t.records); err != nil {
		return nil, fmt.Errorf("failed to encode csv: %w", err)
	}
	return buffer.Bytes(), nil
}

var _ Table = (*csvTable)(nil)
