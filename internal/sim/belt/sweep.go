package belt

import (
	"math/rand"

	"mangoline.dev/internal/sim/params"
)

// RunsPerConfig is how many seeded runs each sweep configuration
// averages over.
const RunsPerConfig = 5

// RobotSweepPoint is one row of the robot-count sweep.
type RobotSweepPoint struct {
	NumRobots    int
	AvgEff       float64
	MinEff       float64
	MaxEff       float64
	AvgMissedBox float64
	Optimal      bool
}

// FailureSweepPoint is one row of the redundancy sweep.
type FailureSweepPoint struct {
	FailureProb      float64
	RobotsNoBackup   int
	EffNoBackup      float64
	RobotsWithBackup int
	BackupCount      int
	EffWithBackup    float64
}

// maxSweepRobots bounds the robot-count grid.
const maxSweepRobots = 15

// SweepRobots grows the robot count until average efficiency reaches
// ~100%, the robots would stand closer together than one box, or the
// grid cap is hit. Each configuration runs RunsPerConfig seeded batch
// simulations.
func SweepRobots(base params.Params, gen Generator) []RobotSweepPoint {
	var out []RobotSweepPoint
	for r := 1; r <= maxSweepRobots; r++ {
		if base.BeltLength/float64(r) < base.BoxSize {
			break
		}
		cfg := base
		cfg.NumRobots = r
		cfg.NumBackups = 0
		cfg.FailureProb = 0

		pt := RobotSweepPoint{NumRobots: r, MinEff: 100}
		totalEff, totalMissed := 0.0, 0
		for run := 0; run < RunsPerConfig; run++ {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(r)*1000 + int64(run)))
			res := RunBatch(cfg, gen, rng)
			eff := res.Efficiency()
			totalEff += eff
			totalMissed += res.Missed
			if eff < pt.MinEff {
				pt.MinEff = eff
			}
			if eff > pt.MaxEff {
				pt.MaxEff = eff
			}
		}
		pt.AvgEff = totalEff / RunsPerConfig
		pt.AvgMissedBox = float64(totalMissed) / float64(RunsPerConfig*cfg.NumBoxes)
		pt.Optimal = pt.AvgEff >= 99.9
		out = append(out, pt)
		if pt.Optimal {
			break
		}
	}
	return out
}

// FailureProbs are the sweep points of the redundancy analysis.
var FailureProbs = []float64{0.0, 0.05, 0.10, 0.15, 0.20, 0.25, 0.30}

// SweepFailure finds, for each failure probability, the smallest robot
// count reaching ~100% efficiency without backups, then repeats with a
// backup pool sized floor(optimal*prob)+1.
func SweepFailure(base params.Params, gen Generator) []FailureSweepPoint {
	out := make([]FailureSweepPoint, 0, len(FailureProbs))
	for _, prob := range FailureProbs {
		pt := FailureSweepPoint{FailureProb: prob}
		pt.RobotsNoBackup, pt.EffNoBackup = bestRobotCount(base, gen, prob, 0)

		pt.BackupCount = int(float64(pt.RobotsNoBackup)*prob) + 1
		pt.RobotsWithBackup, pt.EffWithBackup = bestRobotCount(base, gen, prob, pt.BackupCount)
		out = append(out, pt)
	}
	return out
}

func bestRobotCount(base params.Params, gen Generator, prob float64, backups int) (int, float64) {
	best, bestEff := 1, 0.0
	for r := 1; r <= 12; r++ {
		cfg := base
		cfg.NumRobots = r
		cfg.NumBackups = backups
		cfg.FailureProb = prob
		rng := rand.New(rand.NewSource(cfg.Seed + int64(r)*1000 + int64(backups)*100 + int64(prob*100)))
		res := RunBatch(cfg, gen, rng)
		if eff := res.Efficiency(); eff > bestEff {
			bestEff = eff
			best = r
		}
		if bestEff >= 99.5 {
			break
		}
	}
	return best, bestEff
}
