package preprocessing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/firearea/dataset"
	"github.com/ezoic/firearea/preprocessing"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

func TestPreprocessor_FitTransform(t *testing.T) {
	obs := dataset.Synthetic(120, 1)
	obs = append(obs, obs[3], obs[10])

	p := preprocessing.NewPreprocessor()
	frame, removed, err := p.FitTransform(obs)
	require.NoError(t, err)

	assert.Equal(t, 2, removed)
	assert.Equal(t, 120, frame.Len())
	assert.Equal(t, preprocessing.OutputColumns, frame.Columns())

	for _, col := range dataset.NumericFeatureColumns {
		v, err := frame.Column(col)
		require.NoError(t, err)
		for i := 0; i < v.Len(); i++ {
			x := v.AtVec(i)
			assert.GreaterOrEqual(t, x, 0.0, col)
			assert.LessOrEqual(t, x, 1.0, col)
		}
	}

	area, err := frame.Column(dataset.ColArea)
	require.NoError(t, err)
	areaLog, err := frame.Column(dataset.ColAreaLog)
	require.NoError(t, err)
	for i := 0; i < area.Len(); i++ {
		assert.Equal(t, obs[i].Area, area.AtVec(i))
		assert.InDelta(t, math.Log(obs[i].Area+1), areaLog.AtVec(i), 1e-12)
		assert.InDelta(t, area.AtVec(i), preprocessing.Expm1(areaLog.AtVec(i)), 1e-9*math.Max(1, area.AtVec(i)))
	}

	months, err := frame.Column(dataset.ColMonth)
	require.NoError(t, err)
	enc, ok := p.Encoder(dataset.ColMonth)
	require.True(t, ok)
	for i := 0; i < months.Len(); i++ {
		want, err := enc.Code(obs[i].Month)
		require.NoError(t, err)
		assert.Equal(t, float64(want), months.AtVec(i))
	}
}

func TestPreprocessor_ConstantRainColumn(t *testing.T) {
	obs := dataset.Synthetic(40, 2)
	for i := range obs {
		obs[i].Rain = 0
	}

	frame, _, err := preprocessing.NewPreprocessor().FitTransform(obs)
	require.NoError(t, err)

	rain, err := frame.Column(dataset.ColRain)
	require.NoError(t, err)
	for i := 0; i < rain.Len(); i++ {
		assert.Equal(t, 0.0, rain.AtVec(i))
	}
}

func TestPreprocessor_RefitRequiresReset(t *testing.T) {
	first := dataset.Synthetic(30, 3)
	second := dataset.Synthetic(30, 4)

	p := preprocessing.NewPreprocessor()
	require.NoError(t, p.Fit(first))
	before := append([]float64(nil), p.MinMax.DataMax...)

	err := p.Fit(second)
	require.ErrorIs(t, err, fireErrors.ErrAlreadyFitted)
	assert.Equal(t, before, p.MinMax.DataMax)

	p.Reset()
	assert.False(t, p.IsFitted())
	require.NoError(t, p.Fit(second))
}

func TestPreprocessor_ValidationReportsCells(t *testing.T) {
	obs := dataset.Synthetic(10, 5)
	obs[2].Area = -1
	obs[6].Temp = math.NaN()

	err := preprocessing.NewPreprocessor().Fit(obs)
	require.ErrorIs(t, err, fireErrors.ErrInvalidValue)

	var de *fireErrors.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []int{2, 6}, de.Rows())
	assert.ElementsMatch(t, []string{dataset.ColArea, dataset.ColTemp}, de.Columns())
}

func TestPreprocessor_EmptyCategoryIsMissing(t *testing.T) {
	obs := dataset.Synthetic(10, 6)
	obs[4].Day = ""

	err := preprocessing.NewPreprocessor().Fit(obs)
	require.ErrorIs(t, err, fireErrors.ErrMissingValue)
}

func TestPreprocessor_UnknownCategoryAtTransform(t *testing.T) {
	obs := dataset.Synthetic(50, 7)
	for i := range obs {
		obs[i].Month = "aug"
	}
	p := preprocessing.NewPreprocessor()
	require.NoError(t, p.Fit(obs))

	other := dataset.Synthetic(5, 8)
	other[0].Month = "jan"
	for i := 1; i < len(other); i++ {
		other[i].Month = "aug"
	}
	_, err := p.Transform(other)
	assert.ErrorIs(t, err, fireErrors.ErrInvalidValue)
}

func TestPreprocessor_StandardScaling(t *testing.T) {
	obs := dataset.Synthetic(60, 9)
	p := preprocessing.NewPreprocessor(preprocessing.WithScaling(preprocessing.ScalingStandard))
	frame, _, err := p.FitTransform(obs)
	require.NoError(t, err)
	require.NotNil(t, p.Standard)
	assert.Nil(t, p.MinMax)

	temp, err := frame.Column(dataset.ColTemp)
	require.NoError(t, err)
	sum := 0.0
	for i := 0; i < temp.Len(); i++ {
		sum += temp.AtVec(i)
	}
	assert.InDelta(t, 0.0, sum/float64(temp.Len()), 1e-9)
}

func TestPreprocessor_UnknownScaling(t *testing.T) {
	p := preprocessing.NewPreprocessor(preprocessing.WithScaling("robust"))
	err := p.Fit(dataset.Synthetic(10, 10))
	assert.ErrorIs(t, err, fireErrors.ErrInvalidConfig)
}

func TestPreprocessor_TransformBeforeFit(t *testing.T) {
	_, err := preprocessing.NewPreprocessor().Transform(dataset.Synthetic(3, 11))
	var nf *fireErrors.NotFittedError
	assert.ErrorAs(t, err, &nf)
}
