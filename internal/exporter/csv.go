package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes table to dir/<name>.csv with a UTF-8 BOM so spreadsheet
// tools detect the encoding.
func WriteCSV(dir string, table Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(dir, table.Name+".csv")

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(utf8BOM); err != nil {
		return "", fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(table.Headers); err != nil {
		return "", fmt.Errorf("failed to write headers: %w", err)
	}
	record := make([]string, len(table.Headers))
	for i, row := range table.Rows {
		for j, cell := range row {
			record[j] = cellString(cell)
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, file.Close()
}
