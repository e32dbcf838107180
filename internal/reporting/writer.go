package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReportPath returns the deterministic report location for a network.
func ReportPath(dir, network string) string {
	return filepath.Join(dir, strings.ToLower(network)+"-comparison.json")
}

// WriteFile encodes r and writes it to ReportPath(dir, network), replacing
// any previous report for that network. Returns the written path.
func WriteFile(dir string, r *ComparisonReport) (string, error) {
	data, err := Encode(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := ReportPath(dir, r.Metadata.Network)
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}

// ReadFile loads and decodes a persisted report.
func ReadFile(path string) (*ComparisonReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return Decode(data)
}
