package belt

import (
	"math"

	"mangoline.dev/internal/sim/params"
)

// AxisPositions places n robots evenly along the belt, each centered in
// its segment: axis(i) = (i + 0.5) * (W / n).
func AxisPositions(n int, beltLength float64) []float64 {
	spacing := beltLength / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = (float64(i) + 0.5) * spacing
	}
	return out
}

// Window is the dwell time a box spends in the zone starting at axis:
// the stretch to the next axis downstream, clipped at the belt end, over
// the belt speed. The last zone runs to the far end of the belt.
func Window(axis, spacing, beltLength, beltSpeed float64) float64 {
	next := axis + spacing
	if next > beltLength {
		next = beltLength
	}
	return (next - axis) / beltSpeed
}

// AvgReachDist is the average arm travel to an item, approximated as a
// third of the box size.
func AvgReachDist(p params.Params) float64 { return p.BoxSize / 3.0 }

// ItemsPerRobot is the capacity heuristic: how many items one robot can
// label inside its zone window, never less than one.
func ItemsPerRobot(p params.Params) int {
	window := p.RobotSpacing() / p.BeltSpeed
	timePerLabel := AvgReachDist(p) / p.RobotSpeed()
	n := int(window / timePerLabel)
	if n < 1 {
		n = 1
	}
	return n
}

// RequiredRobots estimates how many robots an incoming box needs. It is
// a capacity-planning heuristic, not an exact bound: skewed item
// placement can under- or over-provision.
func RequiredRobots(p params.Params, numItems int) int {
	per := ItemsPerRobot(p)
	return int(math.Ceil(float64(numItems) / float64(per)))
}

// ItemsPerStation is the batch-model capacity: the zone window over the
// round-trip label time (reach out plus return), never less than one.
func ItemsPerStation(p params.Params) int {
	window := p.RobotSpacing() / p.BeltSpeed
	roundTrip := 2 * AvgReachDist(p) / p.RobotSpeed()
	n := int(window / roundTrip)
	if n < 1 {
		n = 1
	}
	return n
}
