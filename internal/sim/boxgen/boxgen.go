// Package boxgen produces boxes the way the vision system would see
// them: a random item count and randomized, non-overlapping item
// coordinates inside the box footprint. Pure function of parameters and
// a random source.
package boxgen

import (
	"math"
	"math/rand"

	"mangoline.dev/internal/sim/belt"
	"mangoline.dev/internal/sim/params"
)

// maxPlacementAttempts caps the rejection sampling per item. Past the
// cap the last sample is kept even if it sits too close to a neighbor;
// the caller sees that as a degradation count, not an error.
const maxPlacementAttempts = 100

// Generate builds one box. Margin and minimum separation are fixed
// fractions of the box size (Z/10 and Z/15). The degraded return counts
// items placed past the attempt cap.
func Generate(boxID int, p params.Params, rng *rand.Rand) (*belt.Box, int) {
	numItems := p.NMin + rng.Intn(p.NMax-p.NMin+1)

	half := p.BoxSize / 2.0
	margin := p.BoxSize / 10.0
	minSep := p.BoxSize / 15.0
	lo, hi := -half+margin, half-margin

	items := make([]belt.Item, numItems)
	degraded := 0
	for i := range items {
		placed := false
		for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
			x := lo + rng.Float64()*(hi-lo)
			y := lo + rng.Float64()*(hi-lo)
			items[i].X, items[i].Y = x, y
			if clearOf(items[:i], x, y, minSep) {
				placed = true
				break
			}
		}
		if !placed {
			degraded++
		}
	}
	return belt.NewBox(boxID, items), degraded
}

func clearOf(placed []belt.Item, x, y, minSep float64) bool {
	for i := range placed {
		if math.Hypot(x-placed[i].X, y-placed[i].Y) < minSep {
			return false
		}
	}
	return true
}
