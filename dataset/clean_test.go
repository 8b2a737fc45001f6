package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/firearea/dataset"
)

func TestDropDuplicates_RemovesExactlyK(t *testing.T) {
	base := dataset.Synthetic(60, 11)
	_, pre := dataset.DropDuplicates(base)
	require.Zero(t, pre, "synthetic rows should be unique")

	for _, k := range []int{0, 1, 4, 9} {
		withDups := append([]dataset.Observation(nil), base...)
		for i := 0; i < k; i++ {
			withDups = append(withDups, base[(i*7)%len(base)])
		}

		cleaned, removed := dataset.DropDuplicates(withDups)
		assert.Equal(t, k, removed)
		assert.Len(t, cleaned, len(withDups)-k)
		// every original row survives, in order
		assert.Equal(t, base, cleaned)
	}
}

func TestDropDuplicates_KeepsFirstOccurrenceOrder(t *testing.T) {
	obs := dataset.Synthetic(3, 5)
	in := []dataset.Observation{obs[1], obs[0], obs[1], obs[2], obs[0]}

	cleaned, removed := dataset.DropDuplicates(in)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []dataset.Observation{obs[1], obs[0], obs[2]}, cleaned)
	assert.Len(t, in, 5, "input must not be modified")
}

func TestDropDuplicates_NearDuplicatesKept(t *testing.T) {
	obs := dataset.Synthetic(1, 9)
	other := obs[0]
	other.Area += 0.01

	cleaned, removed := dataset.DropDuplicates([]dataset.Observation{obs[0], other})
	assert.Zero(t, removed)
	assert.Len(t, cleaned, 2)
}
