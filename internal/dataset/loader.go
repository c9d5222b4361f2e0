// Package dataset loads labelled feature tables from CSV files.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rulesearch/internal/model"
)

// Options control how a CSV file maps onto a feature table. The label column
// is selected by name when LabelColumn is set, otherwise the last column is
// used. Every remaining column must parse as a float feature.
type Options struct {
	HasHeader   bool
	LabelColumn string
}

// Load reads a labelled table from r. Returned labels are the raw string
// values of the label column.
func Load(r io.Reader, opts Options) (*model.Table, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var columns []string
	labelIdx := -1
	row := 0

	if opts.HasHeader {
		header, err := reader.Read()
		if err == io.EOF {
			return nil, nil, fmt.Errorf("csv has no rows")
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read header: %w", err)
		}
		row++
		for i, name := range header {
			header[i] = strings.TrimSpace(name)
		}
		if opts.LabelColumn != "" {
			for i, name := range header {
				if name == opts.LabelColumn {
					labelIdx = i
					break
				}
			}
			if labelIdx < 0 {
				return nil, nil, fmt.Errorf("label column %q not found in header", opts.LabelColumn)
			}
		} else {
			labelIdx = len(header) - 1
		}
		for i, name := range header {
			if i != labelIdx {
				columns = append(columns, name)
			}
		}
	} else if opts.LabelColumn != "" {
		return nil, nil, fmt.Errorf("label column by name requires a header row")
	}

	var rows [][]float64
	var labels []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", row, err)
		}
		row++

		if labelIdx < 0 {
			labelIdx = len(record) - 1
			for i := 0; i < len(record)-1; i++ {
				columns = append(columns, fmt.Sprintf("feature_%d", i))
			}
		}
		if len(record) != len(columns)+1 {
			return nil, nil, fmt.Errorf("row %d has %d fields, want %d", row, len(record), len(columns)+1)
		}

		features := make([]float64, 0, len(columns))
		for i, field := range record {
			if i == labelIdx {
				continue
			}
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", row, i, err)
			}
			features = append(features, value)
		}
		rows = append(rows, features)
		labels = append(labels, strings.TrimSpace(record[labelIdx]))
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("csv has no data rows")
	}
	return &model.Table{Columns: columns, Rows: rows}, labels, nil
}

// LoadFile opens path and delegates to Load.
func LoadFile(path string, opts Options) (*model.Table, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Load(f, opts)
}
