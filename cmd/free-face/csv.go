package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func readCSV(file string) ([][]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("could not open '%s': %w", file, err)
	}
	defer f.Close()
	return parseCSV(f)
}

// parseCSV reads all records, skipping a header line that does not start with a number.
func parseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not read csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
			records = records[1:]
		}
	}
	return records, nil
}

// pairs parses label,distance records.
func pairs(records [][]string) ([]int, []float64, error) {
	labels := make([]int, len(records))
	distances := make([]float64, len(records))
	for i, r := range records {
		if len(r) != 2 {
			return nil, nil, fmt.Errorf("line %d: expected label,distance but got %d fields", i+1, len(r))
		}
		l, err := strconv.Atoi(strings.TrimSpace(r[0]))
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: invalid label '%s': %w", i+1, r[0], err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(r[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: invalid distance '%s': %w", i+1, r[1], err)
		}
		labels[i] = l
		distances[i] = d
	}
	return labels, distances, nil
}

// samples parses records of features.
func samples(records [][]string) ([][]float64, error) {
	x := make([][]float64, len(records))
	for i, r := range records {
		x[i] = make([]float64, len(r))
		for j, v := range r {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: invalid value '%s': %w", i+1, j+1, v, err)
			}
			x[i][j] = f
		}
	}
	return x, nil
}

func formatRow(row []float64) string {
	s := make([]string, len(row))
	for i, v := range row {
		s[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(s, ",")
}
