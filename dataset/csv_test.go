package dataset_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/firearea/dataset"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

const sampleCSV = `X,Y,month,day,FFMC,DMC,DC,ISI,temp,RH,wind,rain,area
7,5,mar,fri,86.2,26.2,94.3,5.1,8.2,51,6.7,0,0
7,4,oct,tue,90.6,35.4,669.1,6.7,18,33,0.9,0,0
7,4,oct,sat,90.6,43.7,686.9,6.7,14.6,33,1.3,0,0
8,6,mar,fri,91.7,33.3,77.5,9,8.3,97,4,0.2,0
8,6,mar,sun,89.3,51.3,102.2,9.6,11.4,99,1.8,0,0
`

func TestReadCSV_Parses(t *testing.T) {
	obs, err := dataset.ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, obs, 5)

	assert.Equal(t, 7.0, obs[0].X)
	assert.Equal(t, "mar", obs[0].Month)
	assert.Equal(t, "fri", obs[0].Day)
	assert.Equal(t, 8.2, obs[0].Temp)
	assert.Equal(t, 51.0, obs[0].RH)
	assert.Equal(t, 0.2, obs[3].Rain)
}

func TestReadCSV_ColumnOrderIsFree(t *testing.T) {
	in := "area,temp,RH,X,Y,month,day,FFMC,DMC,DC,ISI,wind,rain\n" +
		"1.5,20,40,1,2,AUG,Mon,90,100,500,8,3,0\n"
	obs, err := dataset.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 1.5, obs[0].Area)
	assert.Equal(t, 20.0, obs[0].Temp)
	assert.Equal(t, "aug", obs[0].Month)
	assert.Equal(t, "mon", obs[0].Day)
}

func TestReadCSV_ReportsMissingCells(t *testing.T) {
	in := `X,Y,month,day,FFMC,DMC,DC,ISI,temp,RH,wind,rain,area
7,5,mar,fri,86.2,26.2,94.3,5.1,,51,6.7,0,0
7,4,oct,tue,90.6,35.4,669.1,6.7,18,33,0.9,0,0
7,4,NA,sat,90.6,43.7,686.9,6.7,14.6,NaN,1.3,0,0
`
	_, err := dataset.ReadCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fireErrors.ErrMissingValue))

	var dataErr *fireErrors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, []int{0, 2}, dataErr.Rows())
	assert.Equal(t, []string{"temp", "month", "RH"}, dataErr.Columns())
}

func TestReadCSV_ShortRowIsMissing(t *testing.T) {
	in := "X,Y,month,day,FFMC,DMC,DC,ISI,temp,RH,wind,rain,area\n7,5,mar,fri,86.2,26.2,94.3,5.1,8.2,51,6.7,0\n"
	_, err := dataset.ReadCSV(strings.NewReader(in))
	var dataErr *fireErrors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, []string{"area"}, dataErr.Columns())
}

func TestReadCSV_InvalidNumber(t *testing.T) {
	in := "X,Y,month,day,FFMC,DMC,DC,ISI,temp,RH,wind,rain,area\n7,5,mar,fri,86.2,26.2,94.3,5.1,hot,51,6.7,0,0\n"
	_, err := dataset.ReadCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fireErrors.ErrInvalidValue))
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := dataset.ReadCSV(strings.NewReader("X,Y,month\n1,2,mar\n"))
	var valErr *fireErrors.ValueError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Message, "day")
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := dataset.ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, fireErrors.ErrEmptyData))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	obs := dataset.Synthetic(40, 3)
	var buf bytes.Buffer
	require.NoError(t, dataset.WriteCSV(&buf, obs))

	back, err := dataset.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, obs, back)
}
