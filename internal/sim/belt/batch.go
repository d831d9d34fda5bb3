package belt

import (
	"math/rand"

	"mangoline.dev/internal/sim/params"
)

// Generator produces one box from a random source; the second return is
// the number of placement degradations (attempt cap exhausted).
// internal/sim/boxgen provides the production implementation; keeping it
// a function type keeps this package free of a generator dependency.
type Generator func(boxID int, p params.Params, rng *rand.Rand) (*Box, int)

// BatchResult is the outcome of one sequential estimator run.
type BatchResult struct {
	Boxes             int
	TotalItems        int
	Labeled           int
	Missed            int
	Failures          int
	BackupActivations int
	Degradations      int
	LabelsPerRobot    []int
}

func (r BatchResult) Efficiency() float64 {
	if r.TotalItems == 0 {
		return 0
	}
	return 100.0 * float64(r.Labeled) / float64(r.TotalItems)
}

// RunBatch is the single-pass approximation of the live policy, used for
// parameter sweeps. No goroutines and no timed delays: failures are
// drawn once up front, then every box is allocated sequentially. Each
// active robot, in axis order, labels up to its station capacity in
// array order. Deterministic given a seeded rng.
func RunBatch(p params.Params, gen Generator, rng *rand.Rand) BatchResult {
	roster := NewRoster(p)
	res := BatchResult{LabelsPerRobot: make([]int, roster.Size())}

	// Up-front failure draws for the primaries, backups binding as they go.
	if p.FailureProb > 0 {
		for id := 0; id < roster.NumPrimary(); id++ {
			if rng.Float64() < p.FailureProb {
				if roster.Fail(id) {
					res.BackupActivations++
				}
				res.Failures++
			}
		}
	}

	capacity := ItemsPerStation(p)
	order := ArrayOrder{}

	for boxID := 0; boxID < p.NumBoxes; boxID++ {
		box, degraded := gen(boxID, p, rng)
		res.Boxes++
		res.Degradations += degraded
		res.TotalItems += box.NumItems()

		for _, rb := range roster.Snapshot() {
			if rb.State == RobotDisabled || rb.HasFailed {
				continue
			}
			for n := 0; n < capacity; n++ {
				itemID, ok := order.SelectNext(box)
				if !ok {
					break
				}
				if !box.TryClaim(itemID, rb.ID) {
					break
				}
				box.MarkLabeled(itemID, rb.ID, 0)
				res.LabelsPerRobot[rb.ID]++
			}
			if box.Completed() {
				break
			}
		}

		res.Labeled += box.LabeledCount()
		res.Missed += box.NumItems() - box.LabeledCount()
	}
	return res
}
