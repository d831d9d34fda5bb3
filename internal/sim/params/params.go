package params

import "fmt"

// System limits carried over from the plant controller.
const (
	MaxRobots      = 32
	MaxItemsPerBox = 100
)

// Params are the operating parameters of one labeling-line run.
// Read-only after Validate; every component receives a copy.
type Params struct {
	BeltSpeed  float64 // X, cm/s
	BoxSize    float64 // Z, cm (square footprint)
	BeltLength float64 // W, working length of the belt, cm

	NMin int // minimum items per box
	NMax int // maximum items per box

	NumRobots   int     // primary robots installed along the belt
	NumBackups  int     // dormant backup robots
	FailureProb float64 // B, per-cycle failure probability, 0..1

	NumBoxes int   // boxes per run
	Seed     int64 // master seed; per-robot streams derive from it

	// TimeScale compresses simulated seconds into wall time for the live
	// engine: a sleep of d sim-seconds lasts d/TimeScale wall-seconds.
	// 1.0 runs in real time.
	TimeScale float64
}

func (p *Params) ApplyDefaults() {
	if p.BeltSpeed == 0 {
		p.BeltSpeed = 10.0
	}
	if p.BoxSize == 0 {
		p.BoxSize = 50.0
	}
	if p.BeltLength == 0 {
		p.BeltLength = 300.0
	}
	if p.NMin == 0 {
		p.NMin = 10
	}
	if p.NMax == 0 {
		p.NMax = int(float64(p.NMin) * 1.2)
	}
	if p.NumRobots == 0 {
		p.NumRobots = 4
	}
	if p.NumBoxes == 0 {
		p.NumBoxes = 20
	}
	if p.Seed == 0 {
		p.Seed = 1337
	}
	if p.TimeScale == 0 {
		p.TimeScale = 1.0
	}
}

// RobotSpeed is the arm speed, fixed at a tenth of the box size.
func (p Params) RobotSpeed() float64 { return p.BoxSize / 10.0 }

// BoxSpacing is the distance between consecutive boxes on the belt.
func (p Params) BoxSpacing() float64 { return p.BoxSize * 1.5 }

// RobotSpacing is the distance between adjacent primary robot axes.
func (p Params) RobotSpacing() float64 { return p.BeltLength / float64(p.NumRobots) }

// TransitTime is the time one box takes to traverse the working belt.
func (p Params) TransitTime() float64 { return p.BeltLength / p.BeltSpeed }

func (p Params) Validate() error {
	if p.BeltSpeed <= 0 {
		return fmt.Errorf("belt speed must be positive (got %g)", p.BeltSpeed)
	}
	if p.BoxSize <= 0 {
		return fmt.Errorf("box size must be positive (got %g)", p.BoxSize)
	}
	if p.BeltLength <= 0 {
		return fmt.Errorf("belt length must be positive (got %g)", p.BeltLength)
	}
	if p.NumRobots < 1 || p.NumRobots > MaxRobots {
		return fmt.Errorf("robot count must be in [1,%d] (got %d)", MaxRobots, p.NumRobots)
	}
	if p.NumBackups < 0 {
		return fmt.Errorf("backup count must be non-negative (got %d)", p.NumBackups)
	}
	if p.NumRobots+p.NumBackups > MaxRobots {
		return fmt.Errorf("robots+backups exceed %d (got %d)", MaxRobots, p.NumRobots+p.NumBackups)
	}
	if p.NMin < 1 {
		return fmt.Errorf("minimum items per box must be at least 1 (got %d)", p.NMin)
	}
	if p.NMax < p.NMin {
		return fmt.Errorf("item range inverted: [%d,%d]", p.NMin, p.NMax)
	}
	if p.NMax > MaxItemsPerBox {
		return fmt.Errorf("maximum items per box exceeds %d (got %d)", MaxItemsPerBox, p.NMax)
	}
	if p.FailureProb < 0 || p.FailureProb > 1 {
		return fmt.Errorf("failure probability must be in [0,1] (got %g)", p.FailureProb)
	}
	if p.NumBoxes < 1 {
		return fmt.Errorf("box count must be at least 1 (got %d)", p.NumBoxes)
	}
	if p.TimeScale <= 0 {
		return fmt.Errorf("time scale must be positive (got %g)", p.TimeScale)
	}
	return nil
}
