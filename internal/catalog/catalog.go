// Package catalog reads the category list that drives a collection run.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Load reads category labels from a CSV file.
//
// If the first row looks like a header (a cell equal to "category" or
// "categories", or containing "cat" or "name", case-insensitive) the
// matching column supplies the labels; otherwise every row is data and
// the first column is used. Values are trimmed, blanks dropped, and
// duplicates removed keeping the first occurrence.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories: %w", err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("categories file %s is empty", path)
	}

	col, skipHeader := detectHeader(records[0])

	seen := make(map[string]struct{})
	var categories []string
	for i, row := range records {
		if i == 0 && skipHeader {
			continue
		}
		if col >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[col])
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		categories = append(categories, value)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("categories file %s has no usable rows", path)
	}
	return categories, nil
}

// detectHeader returns the column to read and whether the first row is
// a header to skip.
func detectHeader(first []string) (int, bool) {
	for i, cell := range first {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "category" || c == "categories" {
			return i, true
		}
	}
	for i, cell := range first {
		c := strings.ToLower(strings.TrimSpace(cell))
		if strings.Contains(c, "cat") || strings.Contains(c, "name") {
			return i, true
		}
	}
	return 0, false
}
