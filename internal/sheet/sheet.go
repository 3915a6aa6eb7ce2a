// Package sheet parses registrant spreadsheets into rows.
package sheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

// Required column headers, matched exactly against the first row of the
// first sheet. SessionName is optional.
var requiredColumns = []string{
	"FullName", "DOB_Day", "DOB_Month", "DOB_Year", "Phone", "Email", "IDNumber",
}

const optionalSessionColumn = "SessionName"

// Parse reads an .xlsx document and returns registrant rows with stable
// indices. Numeric cells may come back as "5" or "5.0" depending on how the
// sheet was authored; both parse.
func Parse(data []byte) ([]registration.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("sheet: workbook has no sheets")
	}
	cells, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("sheet: read rows: %w", err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("sheet: missing header row")
	}

	columns, err := headerIndex(cells[0])
	if err != nil {
		return nil, err
	}

	var rows []registration.Row
	for _, record := range cells[1:] {
		if isEmpty(record) {
			continue
		}
		row, err := buildRow(len(rows), record, columns)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet: no registrant rows")
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("sheet: missing required column %q", name)
		}
	}
	return columns, nil
}

func buildRow(index int, record []string, columns map[string]int) (registration.Row, error) {
	day, err := numericCell(record, columns, "DOB_Day", index)
	if err != nil {
		return registration.Row{}, err
	}
	month, err := numericCell(record, columns, "DOB_Month", index)
	if err != nil {
		return registration.Row{}, err
	}
	year, err := numericCell(record, columns, "DOB_Year", index)
	if err != nil {
		return registration.Row{}, err
	}
	return registration.Row{
		Index:       index,
		FullName:    cell(record, columns, "FullName"),
		DOBDay:      day,
		DOBMonth:    month,
		DOBYear:     year,
		Phone:       cell(record, columns, "Phone"),
		Email:       cell(record, columns, "Email"),
		IDNumber:    cell(record, columns, "IDNumber"),
		SessionName: cell(record, columns, optionalSessionColumn),
	}, nil
}

func cell(record []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func numericCell(record []string, columns map[string]int, name string, rowIndex int) (float64, error) {
	raw := cell(record, columns, name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("sheet: row %d: column %q: %q is not numeric", rowIndex+1, name, raw)
	}
	return v, nil
}

func isEmpty(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
