/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package suite

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// InteropProfileType identifies the report format.
const InteropProfileType = "Aries Test Suite Interop Profile v1"

// Report is the machine-readable outcome of a suite run.
type Report struct {
	Type             string         `json:"@type"`
	UnderTestName    string         `json:"under_test_name"`
	UnderTestVersion string         `json:"under_test_version"`
	TestTime         time.Time      `json:"test_time"`
	Results          []ReportResult `json:"results"`
}

// ReportResult is one test in the interop profile.
type ReportResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Pass        bool   `json:"pass"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
}

// NewReport builds the interop profile for a run against the given
// subject.
func NewReport(subject Subject, results []Result) *Report {
	report := &Report{
		Type:             InteropProfileType,
		UnderTestName:    subject.Name,
		UnderTestVersion: subject.Version,
		TestTime:         time.Now().UTC(),
		Results:          make([]ReportResult, 0, len(results)),
	}

	for _, res := range results {
		report.Results = append(report.Results, ReportResult{
			Name:        res.Descriptor.FlatName(),
			Description: res.Descriptor.Description,
			Pass:        res.Pass(),
			Outcome:     string(res.Outcome),
			Reason:      res.Reason,
		})
	}

	return report
}

// AllPassed reports whether the run was fully conformant.
func (r *Report) AllPassed() bool {
	for _, res := range r.Results {
		if !res.Pass {
			return false
		}
	}

	return true
}

// Write renders the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return errors.Wrap(enc.Encode(r), "write report")
}

// WriteFile writes the report JSON to the given path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create report file %q", path)
	}

	defer func() {
		_ = f.Close()
	}()

	return r.Write(f)
}

// Summary renders a short human-readable tally for the terminal.
func (r *Report) Summary() string {
	counts := map[string]int{}
	for _, res := range r.Results {
		counts[res.Outcome]++
	}

	return fmt.Sprintf("%d tests: %d passed, %d failed, %d error, %d skipped",
		len(r.Results), counts[string(Passed)], counts[string(Failed)],
		counts[string(Errored)], counts[string(Skipped)])
}
