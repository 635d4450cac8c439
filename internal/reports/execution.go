// Package reports parses the junit-style execution report and the
// cobertura-style coverage report an external test runner produces.
package reports

import (
	"encoding/xml"
	"fmt"
	"os"
)

// ExecutionSummary is the parsed top-level testsuite counters plus
// per-category case counts aggregated from each testcase's categories
// property.
type ExecutionSummary struct {
	Errors   int     `json:"errors"`
	Failures int     `json:"failures"`
	Skipped  int     `json:"skipped"`
	Tests    int     `json:"tests_total"`
	Time     float64 `json:"exec_time"`

	Unit        int `json:"unit"`
	Integration int `json:"integration"`
	System      int `json:"system"`
}

// junitSuite mirrors the subset of junit XML attributes LIFT reads.
type junitSuite struct {
	XMLName   xml.Name    `xml:"testsuite"`
	Errors    int         `xml:"errors,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Tests     int         `xml:"tests,attr"`
	Time      float64     `xml:"time,attr"`
	TestCases []junitCase `xml:"testcase"`
}

type junitCase struct {
	Properties []junitProperty `xml:"properties>property"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ParseExecutionReport reads and parses a junit-style execution report
// from path. A missing file is reported distinctly from a malformed or
// attribute-sparse one: missing attributes decode to their zero value
// per encoding/xml's normal behavior, which matches the "missing
// attributes yield zero" rule.
func ParseExecutionReport(path string) (ExecutionSummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ExecutionSummary{}, fmt.Errorf("reports: execution report not found: %s: %w", path, err)
		}
		return ExecutionSummary{}, fmt.Errorf("reports: execution report: %w", err)
	}

	var suite junitSuite
	if err := xml.Unmarshal(raw, &suite); err != nil {
		return ExecutionSummary{}, fmt.Errorf("reports: execution report: parse %s: %w", path, err)
	}

	summary := ExecutionSummary{
		Errors:   suite.Errors,
		Failures: suite.Failures,
		Skipped:  suite.Skipped,
		Tests:    suite.Tests,
		Time:     suite.Time,
	}

	for _, tc := range suite.TestCases {
		for _, prop := range tc.Properties {
			if prop.Name != "categories" {
				continue
			}
			for _, cat := range parseCategoryList(prop.Value) {
				switch cat {
				case "unit":
					summary.Unit++
				case "integration":
					summary.Integration++
				case "system":
					summary.System++
				}
			}
		}
	}

	return summary, nil
}

// parseCategoryList parses a property value of the form "['unit',
// 'integration']" into its constituent category tokens. The categories
// property is a literal list-of-strings rendered as text, not nested
// XML, so this is a small ad hoc scanner rather than a second XML pass.
func parseCategoryList(value string) []string {
	var out []string
	var cur []rune
	inToken := false
	for _, r := range value {
		switch r {
		case '\'', '"', '[', ']', ' ', ',':
			if inToken {
				out = append(out, string(cur))
				cur = cur[:0]
				inToken = false
			}
		default:
			inToken = true
			cur = append(cur, r)
		}
	}
	if inToken {
		out = append(out, string(cur))
	}
	return out
}
