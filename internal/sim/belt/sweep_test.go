package belt_test

import (
	"testing"

	"mangoline.dev/internal/sim/belt"
	"mangoline.dev/internal/sim/boxgen"
	"mangoline.dev/internal/sim/params"
)

func sweepBase() params.Params {
	p := params.Params{NMin: 4, NMax: 4, NumBoxes: 5, Seed: 99}
	p.ApplyDefaults()
	return p
}

func TestSweepRobots_StopsAtOptimum(t *testing.T) {
	// One robot's station already covers all 4 items, so the sweep should
	// find its optimum at the first point and stop.
	points := belt.SweepRobots(sweepBase(), boxgen.Generate)
	if len(points) == 0 {
		t.Fatalf("no sweep points")
	}
	last := points[len(points)-1]
	if !last.Optimal || last.AvgEff < 99.9 {
		t.Fatalf("last point = %+v, want optimal", last)
	}
	for i, pt := range points {
		if pt.NumRobots != i+1 {
			t.Fatalf("point %d robots = %d, want %d", i, pt.NumRobots, i+1)
		}
		if pt.MinEff > pt.AvgEff || pt.AvgEff > pt.MaxEff {
			t.Fatalf("point %d efficiency bounds inverted: %+v", i, pt)
		}
		if i < len(points)-1 && pt.Optimal {
			t.Fatalf("sweep continued past optimal point %d", i)
		}
	}
}

func TestSweepRobots_RespectsSpacingBound(t *testing.T) {
	// Heavy boxes keep efficiency below the optimum, so the sweep runs
	// until robots would stand closer together than one box: W/Z points.
	base := sweepBase()
	base.NMin, base.NMax = 30, 30
	points := belt.SweepRobots(base, boxgen.Generate)

	maxRobots := int(base.BeltLength / base.BoxSize)
	if len(points) > maxRobots {
		t.Fatalf("%d points, spacing bound allows at most %d", len(points), maxRobots)
	}
	for _, pt := range points {
		if base.BeltLength/float64(pt.NumRobots) < base.BoxSize {
			t.Fatalf("point r=%d violates spacing bound", pt.NumRobots)
		}
	}
}

func TestSweepRobots_GridCappedAtFifteen(t *testing.T) {
	// A long, fast belt admits far more than 15 robots by spacing, and
	// heavy boxes keep every configuration below the optimum; the grid
	// cap must end the sweep.
	base := sweepBase()
	base.BeltLength = 3000
	base.BeltSpeed = 100
	base.NMin, base.NMax = 30, 30
	base.NumBoxes = 3

	points := belt.SweepRobots(base, boxgen.Generate)
	if len(points) != 15 {
		t.Fatalf("points = %d, want the full 15-robot grid", len(points))
	}
	last := points[len(points)-1]
	if last.NumRobots != 15 || last.Optimal {
		t.Fatalf("last point = %+v, want non-optimal r=15", last)
	}
}

func TestSweepFailure_SizesBackupPoolFromOptimum(t *testing.T) {
	points := belt.SweepFailure(sweepBase(), boxgen.Generate)
	if len(points) != len(belt.FailureProbs) {
		t.Fatalf("points = %d, want %d", len(points), len(belt.FailureProbs))
	}

	zero := points[0]
	if zero.FailureProb != 0 {
		t.Fatalf("first point prob = %v, want 0", zero.FailureProb)
	}
	if zero.RobotsNoBackup != 1 || zero.EffNoBackup != 100.0 {
		t.Fatalf("prob 0 point = %+v, want 1 robot at 100%%", zero)
	}

	for _, pt := range points {
		want := int(float64(pt.RobotsNoBackup)*pt.FailureProb) + 1
		if pt.BackupCount != want {
			t.Fatalf("prob %.2f backup count = %d, want %d", pt.FailureProb, pt.BackupCount, want)
		}
		if pt.RobotsNoBackup < 1 || pt.RobotsWithBackup < 1 {
			t.Fatalf("prob %.2f robot counts = %d/%d", pt.FailureProb, pt.RobotsNoBackup, pt.RobotsWithBackup)
		}
	}
}
