package reports

import (
	"encoding/xml"
	"fmt"
	"os"
)

// CoverageSummary is the parsed root-element attributes of a
// cobertura-style coverage report. Fields are pointers because a
// missing attribute must be distinguishable from an explicit zero.
type CoverageSummary struct {
	LinesCovered    *int     `json:"line_covered"`
	LinesValid      *int     `json:"line_valid"`
	LineRate        *float64 `json:"line_rate"`
	BranchesCovered *int     `json:"branch_covered"`
	BranchesValid   *int     `json:"branch_valid"`
	BranchRate      *float64 `json:"branch_rate"`
}

// coberturaRoot captures the root element's attributes as raw strings
// so that an absent attribute can be distinguished from a present one
// that happens to parse to zero.
type coberturaRoot struct {
	XMLName         xml.Name `xml:"coverage"`
	LinesCovered    string   `xml:"lines-covered,attr"`
	LinesValid      string   `xml:"lines-valid,attr"`
	LineRate        string   `xml:"line-rate,attr"`
	BranchesCovered string   `xml:"branches-covered,attr"`
	BranchesValid   string   `xml:"branches-valid,attr"`
	BranchRate      string   `xml:"branch-rate,attr"`
}

// ParseCoverageReport reads and parses a cobertura-style coverage
// report from path. A missing report file is a distinct error from a
// parseable-but-attribute-sparse one.
func ParseCoverageReport(path string) (CoverageSummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CoverageSummary{}, fmt.Errorf("reports: coverage report not found: %s: %w", path, err)
		}
		return CoverageSummary{}, fmt.Errorf("reports: coverage report: %w", err)
	}

	var root coberturaRoot
	if err := xml.Unmarshal(raw, &root); err != nil {
		return CoverageSummary{}, fmt.Errorf("reports: coverage report: parse %s: %w", path, err)
	}

	return CoverageSummary{
		LinesCovered:    parseIntAttr(root.LinesCovered),
		LinesValid:      parseIntAttr(root.LinesValid),
		LineRate:        parseFloatAttr(root.LineRate),
		BranchesCovered: parseIntAttr(root.BranchesCovered),
		BranchesValid:   parseIntAttr(root.BranchesValid),
		BranchRate:      parseFloatAttr(root.BranchRate),
	}, nil
}

func parseIntAttr(s string) *int {
	if s == "" {
		return nil
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return nil
	}
	return &v
}

func parseFloatAttr(s string) *float64 {
	if s == "" {
		return nil
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return nil
	}
	return &v
}
