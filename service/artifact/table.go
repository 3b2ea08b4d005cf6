package artifact

import (
	"fmt"
	"path"
	"strings"

	"github.com/mailmend/mailmend/model/correction"
)

// Table is cell-addressable tabular content decoded from an artifact.
// Locators use A1-style references; CSV content ignores the sheet component.
type Table interface {
	// Value returns the current content of the addressed cell. An empty cell
	// yields "".
	Value(loc correction.Locator) (string, error)

	// Set replaces the content of the addressed cell.
	Set(loc correction.Locator, value string) error

	// Encode serialises the table back into the artifact's format.
	Encode() ([]byte, error)
}

// Decode parses artifact content into a Table based on the resource
// extension. Supported formats: .xlsx/.xlsm and .csv.
func Decode(resource string, data []byte) (Table, error) {
	switch strings.ToLower(path.Ext(resource)) {
	case ".xlsx", ".xlsm":
		return decodeWorkbook(data)
	case ".csv":
		return decodeCSV(data)
	}
	return nil, fmt.Errorf("unsupported artifact format %q", path.Ext(resource))
}
