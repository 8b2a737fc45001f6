package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ezoic/firearea/pkg/errors"
)

// TrainTestSplit shuffles row indices [0, n) with a seeded PCG source and
// splits them. The test part holds ceil(testSize*n) rows; both parts must be
// non-empty.
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValueError("dataset.TrainTestSplit",
			fmt.Sprintf("test size must be in (0, 1), got %g", testSize))
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, errors.NewValueError("dataset.TrainTestSplit",
			fmt.Sprintf("cannot split %d rows with test size %g", n, testSize))
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Splits holds train/validation/test row indices.
type Splits struct {
	Train      []int
	Validation []int
	Test       []int
}

// ThreeWaySplit first holds out holdout of the rows, then halves the holdout
// into validation and test, both with the same seed.
func ThreeWaySplit(n int, holdout float64, seed uint64) (*Splits, error) {
	train, rest, err := TrainTestSplit(n, holdout, seed)
	if err != nil {
		return nil, err
	}
	valPos, testPos, err := TrainTestSplit(len(rest), 0.5, seed)
	if err != nil {
		return nil, errors.Wrap(err, "splitting holdout")
	}
	s := &Splits{Train: train}
	for _, p := range valPos {
		s.Validation = append(s.Validation, rest[p])
	}
	for _, p := range testPos {
		s.Test = append(s.Test, rest[p])
	}
	return s, nil
}
