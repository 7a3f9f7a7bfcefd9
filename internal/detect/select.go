package detect

// Select returns the candidate with the strictly largest radius. Equal radii
// keep the earliest candidate, so callers must pass candidates in a fixed
// color and algorithm order. The second result is false for empty input.
//
// This assumes one ball of interest per frame: the largest colored circular
// region is taken to be the target.
func Select(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Radius > best.Radius {
			best = c
		}
	}
	return best, true
}

// FilterMinRadius returns the candidates whose radius is at least minRadius.
func FilterMinRadius(candidates []Candidate, minRadius float64) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Radius >= minRadius {
			out = append(out, c)
		}
	}
	return out
}

// BySource returns the candidates produced by one algorithm, in order.
func BySource(candidates []Candidate, algo Algorithm) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Source == algo {
			out = append(out, c)
		}
	}
	return out
}
