package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// WorkbookFile is the name of the combined BI workbook.
const WorkbookFile = "quickpay_bi.xlsx"

// WriteWorkbook writes every table to its own sheet of dir/quickpay_bi.xlsx.
// The header row is bold and frozen.
func WriteWorkbook(dir string, tables []Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return "", fmt.Errorf("create date style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, table := range tables {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, table.Name); err != nil {
				return "", fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(table.Name); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", table.Name, err)
		}
		if err := writeSheet(f, table, bold, dateStyle); err != nil {
			return "", fmt.Errorf("write sheet %s: %w", table.Name, err)
		}
	}

	path := filepath.Join(dir, WorkbookFile)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, table Table, headerStyle, dateStyle int) error {
	header := make([]any, len(table.Headers))
	for i, h := range table.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(table.Name, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(table.Name, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(table.Name, cell, &row); err != nil {
			return err
		}
	}

	for col, v := range firstRow(table) {
		if _, ok := v.(time.Time); !ok {
			continue
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColStyle(table.Name, name, dateStyle); err != nil {
			return err
		}
	}

	return f.SetPanes(table.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func firstRow(table Table) []any {
	if len(table.Rows) == 0 {
		return nil
	}
	return table.Rows[0]
}
