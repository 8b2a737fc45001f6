package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ezoic/firearea/pkg/errors"
)

// missingTokens are the spellings treated as an absent value.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
	"?":    true,
}

func isMissing(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

// LoadCSV reads observations from a file. See ReadCSV.
func LoadCSV(path string) ([]Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f)
}

// ReadCSV parses a header-led, comma-delimited forest-fires table.
//
// Column order is free but every column in Columns must be present. Missing
// cells fail the whole read with a DataError wrapping ErrMissingValue that lists
// every affected row/column; unparsable numbers fail with ErrInvalidValue.
// Rows are numbered from 0, excluding the header.
func ReadCSV(r io.Reader) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewModelError("dataset.ReadCSV", "no header", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var absent []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			absent = append(absent, col)
		}
	}
	if len(absent) > 0 {
		return nil, errors.NewValueError("dataset.ReadCSV", fmt.Sprintf("missing columns %v", absent))
	}

	var (
		obs     []Observation
		missing []errors.Cell
		invalid []errors.Cell
	)
	for row := 0; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", row)
		}

		var o Observation
		for _, col := range Columns {
			i := index[col]
			raw := ""
			if i < len(rec) {
				raw = strings.TrimSpace(rec[i])
			}
			if isMissing(raw) {
				missing = append(missing, errors.Cell{Row: row, Column: col, Value: raw})
				continue
			}
			switch col {
			case ColMonth:
				o.Month = strings.ToLower(raw)
			case ColDay:
				o.Day = strings.ToLower(raw)
			default:
				v, perr := strconv.ParseFloat(raw, 64)
				if perr != nil {
					invalid = append(invalid, errors.Cell{Row: row, Column: col, Value: raw})
					continue
				}
				o.setNumeric(col, v)
			}
		}
		obs = append(obs, o)
	}

	if len(missing) > 0 {
		return nil, errors.NewDataError("dataset.ReadCSV", "missing value", missing, errors.ErrMissingValue)
	}
	if len(invalid) > 0 {
		return nil, errors.NewDataError("dataset.ReadCSV", "unparsable number", invalid, errors.ErrInvalidValue)
	}
	if len(obs) == 0 {
		return nil, errors.NewModelError("dataset.ReadCSV", "no rows", errors.ErrEmptyData)
	}
	return obs, nil
}

// WriteCSV writes observations with the canonical header.
func WriteCSV(w io.Writer, obs []Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	rec := make([]string, len(Columns))
	for _, o := range obs {
		for i, col := range Columns {
			if s, ok := o.Category(col); ok {
				rec[i] = s
				continue
			}
			v, _ := o.Numeric(col)
			rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
