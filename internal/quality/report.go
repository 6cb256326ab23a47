package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// ErrNoReport is returned when a report directory holds no reports.
var ErrNoReport = errors.New("no quality report found")

const reportPattern = "quality_report_*.json"

// SaveReport writes report as quality_report_YYYYMMDD_HHMMSS.json under dir
// and returns the path.
func SaveReport(dir string, report Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	name := fmt.Sprintf("quality_report_%s.json", report.RunTimestamp.UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// LatestReport loads the most recent report in dir. File names sort
// chronologically.
func LatestReport(dir string) (Report, string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, reportPattern))
	if err != nil {
		return Report{}, "", err
	}
	if len(matches) == 0 {
		return Report{}, "", ErrNoReport
	}
	sort.Strings(matches)
	path := matches[len(matches)-1]

	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, "", fmt.Errorf("read report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, "", fmt.Errorf("decode report %s: %w", path, err)
	}
	return report, path, nil
}

// RenderTable prints the per-check results and a summary line.
func RenderTable(w io.Writer, report Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Check", "Severity", "Result", "Details"})
	table.SetAutoWrapText(false)
	for _, res := range report.Results {
		result := "PASS"
		if !res.Passed {
			result = "FAIL"
		}
		table.Append([]string{res.CheckName, string(res.Severity), result, res.Details})
	}
	table.SetFooter([]string{
		"score " + strconv.FormatFloat(report.QualityScore, 'f', 1, 64) + "%",
		string(Escalate(report.QualityScore)),
		fmt.Sprintf("%d/%d", report.Passed, report.TotalChecks),
		"",
	})
	table.Render()
}
