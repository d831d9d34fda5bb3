package belt

import (
	"math"
	"testing"

	"mangoline.dev/internal/sim/params"
)

func defaultParams() params.Params {
	var p params.Params
	p.ApplyDefaults()
	return p
}

func TestAxisPositions_CenteredSegments(t *testing.T) {
	got := AxisPositions(6, 300)
	want := []float64{25, 75, 125, 175, 225, 275}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("axis[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWindow_LastZoneClippedAtBeltEnd(t *testing.T) {
	const spacing, beltLength, beltSpeed = 50.0, 300.0, 10.0

	if got := Window(25, spacing, beltLength, beltSpeed); math.Abs(got-5.0) > 1e-9 {
		t.Fatalf("interior window = %v, want 5", got)
	}
	// The last axis sits half a spacing from the belt end.
	if got := Window(275, spacing, beltLength, beltSpeed); math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("last window = %v, want 2.5", got)
	}
}

func TestCapacityHeuristics_Defaults(t *testing.T) {
	p := defaultParams() // X=10, Z=50, W=300, 4 robots

	// window 7.5s, one label every (50/3)/5 s.
	if got := ItemsPerRobot(p); got != 2 {
		t.Fatalf("items per robot = %d, want 2", got)
	}
	if got := RequiredRobots(p, 10); got != 5 {
		t.Fatalf("required robots for 10 items = %d, want 5", got)
	}
	if got := RequiredRobots(p, 1); got != 1 {
		t.Fatalf("required robots for 1 item = %d, want 1", got)
	}
	// Round-trip label time 2*(50/3)/5 s against a 7.5s window.
	if got := ItemsPerStation(p); got != 1 {
		t.Fatalf("items per station = %d, want 1", got)
	}
}

func TestItemsPerRobot_NeverBelowOne(t *testing.T) {
	p := defaultParams()
	p.NumRobots = params.MaxRobots // tiny zones
	if got := ItemsPerRobot(p); got != 1 {
		t.Fatalf("items per robot = %d, want floor of 1", got)
	}
	if got := ItemsPerStation(p); got != 1 {
		t.Fatalf("items per station = %d, want floor of 1", got)
	}
}
