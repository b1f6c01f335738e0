package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/models"
)

// Values treated as missing when inferring types and counting nulls.
var missingValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

// Frame is a column-oriented view over parsed CSV data. Cells are kept as the
// raw strings from the file; dtypes are inferred per column.
type Frame struct {
	Columns []string
	DTypes  []models.DType
	Cells   [][]string // row-major, len(Columns) cells per row
}

// ParseCSV reads CSV data with a header row and infers column types.
func ParseCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV data")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var cells [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV: %w", err)
		}
		cells = append(cells, record)
	}

	frame := &Frame{
		Columns: header,
		Cells:   cells,
	}
	frame.DTypes = inferDTypes(frame)

	return frame, nil
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int {
	return len(f.Cells)
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, col := range f.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// IsMissing reports whether a raw cell value counts as missing.
func IsMissing(value string) bool {
	return missingValues[value]
}

// MissingCounts counts missing cells per column.
func (f *Frame) MissingCounts() map[string]int {
	counts := make(map[string]int, len(f.Columns))
	for i, col := range f.Columns {
		counts[col] = 0
		for _, row := range f.Cells {
			if IsMissing(row[i]) {
				counts[col]++
			}
		}
	}
	return counts
}

// Summary builds the upload-response description of the frame: shape, dtypes,
// a five-row preview, and per-column missing counts.
func (f *Frame) Summary(filename string) *models.DatasetSummary {
	dtypes := make(map[string]string, len(f.Columns))
	for i, col := range f.Columns {
		dtypes[col] = string(f.DTypes[i])
	}

	previewRows := len(f.Cells)
	if previewRows > 5 {
		previewRows = 5
	}
	preview := make([]map[string]any, 0, previewRows)
	for _, row := range f.Cells[:previewRows] {
		record := make(map[string]any, len(f.Columns))
		for i, col := range f.Columns {
			record[col] = typedCell(row[i], f.DTypes[i])
		}
		preview = append(preview, record)
	}

	return &models.DatasetSummary{
		Filename:      filename,
		Shape:         [2]int{len(f.Cells), len(f.Columns)},
		Columns:       f.Columns,
		DTypes:        dtypes,
		Preview:       preview,
		MissingValues: f.MissingCounts(),
	}
}

// Drop returns a copy of the frame without the named columns. Unknown names
// are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	dropped := make(map[string]bool, len(names))
	for _, name := range names {
		dropped[name] = true
	}

	var keep []int
	for i, col := range f.Columns {
		if !dropped[col] {
			keep = append(keep, i)
		}
	}

	out := &Frame{
		Columns: make([]string, len(keep)),
		DTypes:  make([]models.DType, len(keep)),
		Cells:   make([][]string, len(f.Cells)),
	}
	for j, i := range keep {
		out.Columns[j] = f.Columns[i]
		out.DTypes[j] = f.DTypes[i]
	}
	for r, row := range f.Cells {
		newRow := make([]string, len(keep))
		for j, i := range keep {
			newRow[j] = row[i]
		}
		out.Cells[r] = newRow
	}

	return out
}

// NumericMatrix extracts the numeric columns into a dense matrix, imputing
// missing values with the column median. Returns the kept column names.
func (f *Frame) NumericMatrix() (*mat.Dense, []string, error) {
	var idx []int
	var names []string
	for i, dtype := range f.DTypes {
		if dtype == models.DTypeInt || dtype == models.DTypeFloat {
			idx = append(idx, i)
			names = append(names, f.Columns[i])
		}
	}

	if len(idx) == 0 {
		return nil, nil, fmt.Errorf("no numeric feature columns in dataset")
	}
	if len(f.Cells) == 0 {
		return nil, nil, fmt.Errorf("dataset has no rows")
	}

	data := mat.NewDense(len(f.Cells), len(idx), nil)
	for j, col := range idx {
		values, median := columnValues(f, col)
		for r := range f.Cells {
			v := values[r]
			if v == nil {
				data.Set(r, j, median)
			} else {
				data.Set(r, j, *v)
			}
		}
	}

	return data, names, nil
}

// columnValues parses one numeric column, returning per-row values (nil when
// missing) and the median of the present values.
func columnValues(f *Frame, col int) ([]*float64, float64) {
	values := make([]*float64, len(f.Cells))
	var present []float64
	for r, row := range f.Cells {
		if IsMissing(row[col]) {
			continue
		}
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			continue
		}
		values[r] = &v
		present = append(present, v)
	}
	return values, median(present)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func typedCell(value string, dtype models.DType) any {
	if IsMissing(value) {
		return nil
	}
	switch dtype {
	case models.DTypeInt:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case models.DTypeFloat:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case models.DTypeBool:
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

func inferDTypes(f *Frame) []models.DType {
	dtypes := make([]models.DType, len(f.Columns))
	for i := range f.Columns {
		dtypes[i] = inferColumnDType(f, i)
	}
	return dtypes
}

func inferColumnDType(f *Frame, col int) models.DType {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, row := range f.Cells {
		value := row[col]
		if IsMissing(value) {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			isFloat = false
		}
		if _, err := strconv.ParseBool(value); err != nil {
			isBool = false
		}
	}

	switch {
	case !seen:
		return models.DTypeString
	case isInt:
		return models.DTypeInt
	case isFloat:
		return models.DTypeFloat
	case isBool:
		return models.DTypeBool
	default:
		return models.DTypeString
	}
}
