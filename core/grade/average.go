package grade

import "github.com/trezcool/eskwela/core"

// SubjectAverage returns the mean of the four quarters, missing quarters counting as 0,
// rounded to 2 decimals.
func SubjectAverage(g Grade) float64 {
	var sum float64
	for q := Quarter(1); q <= 4; q++ {
		if s := g.Quarter(q); s.Valid {
			sum += s.Float64
		}
	}
	return core.Round2(sum / 4)
}

// FinalAverage returns the mean of the subject averages rounded to 2 decimals, or 0 without subjects.
func FinalAverage(grades []Grade) float64 {
	if len(grades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range grades {
		sum += SubjectAverage(g)
	}
	return core.Round2(sum / float64(len(grades)))
}
