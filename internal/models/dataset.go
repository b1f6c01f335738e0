package models

// DType is the inferred type of a dataset column.
type DType string

const (
	DTypeInt    DType = "int64"
	DTypeFloat  DType = "float64"
	DTypeBool   DType = "bool"
	DTypeString DType = "object"
)

// DatasetSummary describes an uploaded CSV file.
type DatasetSummary struct {
	Filename      string            `json:"filename"`
	Shape         [2]int            `json:"shape"`
	Columns       []string          `json:"columns"`
	DTypes        map[string]string `json:"dtypes"`
	Preview       []map[string]any  `json:"preview"`
	MissingValues map[string]int    `json:"missing_values"`
}
