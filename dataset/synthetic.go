package dataset

import (
	"math"
	"math/rand/v2"
)

var (
	months = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
	days   = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
)

// Synthetic generates n plausible observations from a seeded source. Roughly
// half have zero burned area and the rest follow a heavy right tail that grows
// with temperature and falls with humidity. Used by tests and the CLI demo mode.
func Synthetic(n int, seed uint64) []Observation {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	obs := make([]Observation, n)
	for i := range obs {
		temp := 2 + rng.Float64()*31
		rh := 15 + rng.Float64()*85
		o := Observation{
			X:     float64(1 + rng.IntN(9)),
			Y:     float64(2 + rng.IntN(8)),
			Month: months[rng.IntN(len(months))],
			Day:   days[rng.IntN(len(days))],
			FFMC:  80 + rng.Float64()*16,
			DMC:   1 + rng.Float64()*290,
			DC:    7 + rng.Float64()*850,
			ISI:   rng.Float64() * 56,
			Temp:  math.Round(temp*10) / 10,
			RH:    math.Round(rh),
			Wind:  math.Round((0.4+rng.Float64()*9)*10) / 10,
			Rain:  0,
		}
		if rng.Float64() < 0.05 {
			o.Rain = math.Round(rng.Float64()*64) / 10
		}
		if rng.Float64() < 0.5 {
			scale := math.Exp(0.06*temp - 0.02*rh)
			o.Area = math.Round(rng.ExpFloat64()*scale*800) / 100
		}
		obs[i] = o
	}
	return obs
}
