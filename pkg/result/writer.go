// Package result writes measurement output files for a batch of scan runs.
package result

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"freshkeeper/pkg/config"
	"freshkeeper/pkg/metrics"
)

// Writer is responsible for creating and writing result files.
type Writer struct {
	resultsPath string
	system      config.SystemType
	hwName      string
	runs        uint64
}

// NewWriter creates a new writer for result files.
func NewWriter(resultsPath string, system config.SystemType, hwName string, runs uint64) *Writer {
	return &Writer{
		resultsPath: resultsPath,
		system:      system,
		hwName:      hwName,
		runs:        runs,
	}
}

// WriteAllResults generates and writes the raw and statistical result files
// for an analyzed batch of runs.
func (w *Writer) WriteAllResults(result metrics.AnalysisResult) error {
	if err := os.MkdirAll(w.resultsPath, 0755); err != nil {
		return fmt.Errorf("could not create results directory %s: %w", w.resultsPath, err)
	}

	if err := w.writeRawResults(result); err != nil {
		return fmt.Errorf("failed to write raw results: %w", err)
	}
	if err := w.writeStatResults(result); err != nil {
		return fmt.Errorf("failed to write statistical results: %w", err)
	}
	return nil
}

// generateFilename creates a standardized filename for a result file.
// Example: RAW_SMac_CDisk_R100_T2026-01-02-15-04-05.csv
func (w *Writer) generateFilename(fileType string) string {
	timestamp := time.Now().Format("2006-01-02-15-04-05")
	base := fmt.Sprintf("%s_S%s_C%s_R%d_T%s.csv",
		fileType,
		w.system,
		w.hwName,
		w.runs,
		timestamp,
	)
	return filepath.Join(w.resultsPath, base)
}

// writeRawResults saves every measurement node of every run, one row per
// node, so the tree can be re-aggregated offline.
func (w *Writer) writeRawResults(result metrics.AnalysisResult) error {
	filePath := w.generateFilename("RAW")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("could not create raw results file %s: %w", filePath, err)
	}
	defer file.Close()

	csvWriter := csv.NewWriter(file)
	defer csvWriter.Flush()

	header := []string{"Run", "Component", "MetricType", "WallClock_us", "UserTime_us", "SystemTime_us"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header to %s: %w", filePath, err)
	}

	for run, rec := range result.Recorders {
		for _, root := range rec.RootMeasurements() {
			if err := writeRawNode(csvWriter, run, root); err != nil {
				return fmt.Errorf("failed to write row to %s: %w", filePath, err)
			}
		}
	}
	fmt.Printf("Raw results written to %s\n", filePath)
	return nil
}

func writeRawNode(csvWriter *csv.Writer, run int, m *metrics.Measurement) error {
	row := []string{
		strconv.Itoa(run),
		m.UniqueName,
		m.Type.String(),
		strconv.FormatInt(m.Inclusive.WallClock.Microseconds(), 10),
		strconv.FormatInt(m.Inclusive.UserTime.Microseconds(), 10),
		strconv.FormatInt(m.Inclusive.SystemTime.Microseconds(), 10),
	}
	if err := csvWriter.Write(row); err != nil {
		return err
	}
	for _, child := range m.Children {
		if err := writeRawNode(csvWriter, run, child); err != nil {
			return err
		}
	}
	return nil
}

// writeStatResults saves the per-component summary statistics.
func (w *Writer) writeStatResults(result metrics.AnalysisResult) error {
	filePath := w.generateFilename("STATS")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("could not create stats file %s: %w", filePath, err)
	}
	defer file.Close()

	csvWriter := csv.NewWriter(file)
	defer csvWriter.Flush()

	header := []string{"Component", "Metric", "TimeType", "Count", "Mean_us", "Median_us", "P95_us", "Min_us", "Max_us"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header to %s: %w", filePath, err)
	}

	for _, componentName := range sortedComponents(result) {
		comp := result.Components[componentName]

		derived := make([]string, 0, len(comp.Summaries))
		for name := range comp.Summaries {
			derived = append(derived, name)
		}
		sort.Strings(derived)

		for _, metricName := range derived {
			stats := comp.Summaries[metricName]
			if err := writeStatsRow(csvWriter, componentName, metricName, "WallClock", stats.WallClock); err != nil {
				return err
			}
			if err := writeStatsRow(csvWriter, componentName, metricName, "UserTime", stats.User); err != nil {
				return err
			}
			if err := writeStatsRow(csvWriter, componentName, metricName, "SystemTime", stats.System); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Statistical results written to %s\n", filePath)
	return nil
}

// writeStatsRow writes one summary to a CSV row. Empty summaries are skipped.
func writeStatsRow(writer *csv.Writer, component, metricName, timeType string, s metrics.StatSummary) error {
	if s.Count == 0 {
		return nil
	}

	row := []string{
		component,
		metricName,
		timeType,
		strconv.Itoa(s.Count),
		strconv.FormatInt(s.Mean.Microseconds(), 10),
		strconv.FormatInt(s.P50.Microseconds(), 10),
		strconv.FormatInt(s.P95.Microseconds(), 10),
		strconv.FormatInt(s.Min.Microseconds(), 10),
		strconv.FormatInt(s.Max.Microseconds(), 10),
	}

	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write stats row for %s (%s/%s): %w", component, metricName, timeType, err)
	}
	return nil
}

// sortedComponents extracts component names sorted alphabetically.
func sortedComponents(result metrics.AnalysisResult) []string {
	keys := make([]string, 0, len(result.Components))
	for k := range result.Components {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
