package main

import (
	"encoding/json"
	"os"

	"github.com/proctriage/triage/validation"
)

// writeValidationReport computes a validation.Report over store's full ledger at threshold and
// writes it as JSON to path, giving an operator a calibration/bias snapshot on demand without
// needing a separate long-running reporting service.
func writeValidationReport(store *validation.Store, threshold float64, path string) error {
	report, err := validation.NewEngine(store, threshold).ComputeReport()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
