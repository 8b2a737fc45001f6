// Package dataset holds the forest-fire observation type and the table-level
// operations that precede modelling: CSV ingestion with missing-value
// detection, duplicate removal, named-column frames and seeded splits.
package dataset

import (
	"fmt"
	"strconv"
)

// Column names of the forest-fires table.
const (
	ColX     = "X"
	ColY     = "Y"
	ColMonth = "month"
	ColDay   = "day"
	ColFFMC  = "FFMC"
	ColDMC   = "DMC"
	ColDC    = "DC"
	ColISI   = "ISI"
	ColTemp  = "temp"
	ColRH    = "RH"
	ColWind  = "wind"
	ColRain  = "rain"
	ColArea  = "area"

	// ColAreaLog is the derived ln(area+1) target.
	ColAreaLog = "area_log"
)

// Columns lists the input columns in canonical order.
var Columns = []string{
	ColX, ColY, ColMonth, ColDay, ColFFMC, ColDMC, ColDC, ColISI,
	ColTemp, ColRH, ColWind, ColRain, ColArea,
}

// FeatureColumns are all input columns except the target.
var FeatureColumns = []string{
	ColX, ColY, ColMonth, ColDay, ColFFMC, ColDMC, ColDC, ColISI,
	ColTemp, ColRH, ColWind, ColRain,
}

// CategoricalColumns are encoded to integer codes.
var CategoricalColumns = []string{ColMonth, ColDay}

// NumericFeatureColumns are min/max scaled. The target is not among them.
var NumericFeatureColumns = []string{
	ColX, ColY, ColFFMC, ColDMC, ColDC, ColISI, ColTemp, ColRH, ColWind, ColRain,
}

// Observation is one forest-fire record.
type Observation struct {
	X, Y  float64 // spatial grid coordinates
	Month string
	Day   string
	FFMC  float64
	DMC   float64
	DC    float64
	ISI   float64
	Temp  float64 // degrees Celsius
	RH    float64 // relative humidity, %
	Wind  float64 // km/h
	Rain  float64 // mm/m2
	Area  float64 // burned area, ha
}

// Numeric returns the value of a numeric column.
func (o Observation) Numeric(col string) (float64, bool) {
	switch col {
	case ColX:
		return o.X, true
	case ColY:
		return o.Y, true
	case ColFFMC:
		return o.FFMC, true
	case ColDMC:
		return o.DMC, true
	case ColDC:
		return o.DC, true
	case ColISI:
		return o.ISI, true
	case ColTemp:
		return o.Temp, true
	case ColRH:
		return o.RH, true
	case ColWind:
		return o.Wind, true
	case ColRain:
		return o.Rain, true
	case ColArea:
		return o.Area, true
	}
	return 0, false
}

// Category returns the value of a categorical column.
func (o Observation) Category(col string) (string, bool) {
	switch col {
	case ColMonth:
		return o.Month, true
	case ColDay:
		return o.Day, true
	}
	return "", false
}

// setNumeric assigns a numeric column; it reports false for unknown columns.
func (o *Observation) setNumeric(col string, v float64) bool {
	switch col {
	case ColX:
		o.X = v
	case ColY:
		o.Y = v
	case ColFFMC:
		o.FFMC = v
	case ColDMC:
		o.DMC = v
	case ColDC:
		o.DC = v
	case ColISI:
		o.ISI = v
	case ColTemp:
		o.Temp = v
	case ColRH:
		o.RH = v
	case ColWind:
		o.Wind = v
	case ColRain:
		o.Rain = v
	case ColArea:
		o.Area = v
	default:
		return false
	}
	return true
}

// key is the full-row identity used for duplicate detection.
func (o Observation) key() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		f(o.X), f(o.Y), o.Month, o.Day, f(o.FFMC), f(o.DMC), f(o.DC), f(o.ISI),
		f(o.Temp), f(o.RH), f(o.Wind), f(o.Rain), f(o.Area))
}
