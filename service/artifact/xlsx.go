package artifact

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/mailmend/mailmend/model/correction"
)

// workbookTable adapts an Excel workbook to the Table contract.
type workbookTable struct {
	file *excelize.File
}

func decodeWorkbook(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &workbookTable{file: f}, nil
}

// sheet resolves the locator's sheet, defaulting to the first sheet of the
// workbook.
func (t *workbookTable) sheet(loc correction.Locator) string {
	if loc.Sheet != "" {
		return loc.Sheet
	}
	return t.file.GetSheetList()[0]
}

func (t *workbookTable) Value(loc correction.Locator) (string, error) {
	value, err := t.file.GetCellValue(t.sheet(loc), loc.Cell)
	if err != nil {
		return "", fmt.Errorf("failed to read cell %s: %w", loc, err)
	}
	return value, nil
}

func (t *workbookTable) Set(loc correction.Locator, value string) error {
	sheet := t.sheet(loc)
	// Preserve the numeric type when the replacement parses as a number.
	if number, err := strconv.ParseFloat(value, 64); err == nil {
		if err := t.file.SetCellValue(sheet, loc.Cell, number); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", loc, err)
		}
		return nil
	}
	if err := t.file.SetCellStr(sheet, loc.Cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", loc, err)
	}
	return nil
}

func (t *workbookTable) Encode() ([]byte, error) {
	buffer, err := t.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

var _ Table = (*workbookTable)(nil)
