package dataset

// DropDuplicates removes exact full-row duplicates, keeping the first
// occurrence and preserving the order of the remaining rows. It returns the
// cleaned slice and the number of rows removed. The input is not modified.
func DropDuplicates(obs []Observation) ([]Observation, int) {
	seen := make(map[string]struct{}, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		k := o.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out, len(obs) - len(out)
}
