package belt

import (
	"sync"

	"mangoline.dev/internal/sim/params"
)

// Roster owns every robot in a run: primaries first, backups after.
// All robot mutation (state changes, the failure latch, backup binding,
// activation control) goes through the roster mutex.
type Roster struct {
	mu         sync.Mutex
	robots     []*Robot
	numPrimary int
	spacing    float64

	failures          int
	backupActivations int
	backupExhausted   int
}

func NewRoster(p params.Params) *Roster {
	total := p.NumRobots + p.NumBackups
	r := &Roster{
		robots:     make([]*Robot, total),
		numPrimary: p.NumRobots,
		spacing:    p.RobotSpacing(),
	}
	axes := AxisPositions(p.NumRobots, p.BeltLength)
	for i := 0; i < total; i++ {
		rb := &Robot{ID: i, CurrentItem: -1, Replacing: -1}
		if i < p.NumRobots {
			rb.AxisPosition = axes[i]
			rb.State = RobotIdle
		} else {
			rb.IsBackup = true
			rb.State = RobotDisabled
		}
		r.robots[i] = rb
	}
	return r
}

func (r *Roster) Size() int       { return len(r.robots) }
func (r *Roster) NumPrimary() int { return r.numPrimary }
func (r *Roster) Spacing() float64 { return r.spacing }

// Get returns a copy of one robot.
func (r *Roster) Get(id int) Robot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.robots[id]
}

func (r *Roster) StateOf(id int) RobotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.robots[id].State
}

func (r *Roster) AxisOf(id int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.robots[id].AxisPosition
}

func (r *Roster) SetState(id int, st RobotState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.robots[id].State = st
	if st != RobotLabeling {
		r.robots[id].CurrentItem = -1
	}
}

func (r *Roster) SetLabeling(id, itemID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.robots[id].State = RobotLabeling
	r.robots[id].CurrentItem = itemID
}

func (r *Roster) IncrLabels(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.robots[id].LabelsPlaced++
	return r.robots[id].LabelsPlaced
}

func (r *Roster) LabelsOf(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.robots[id].LabelsPlaced
}

// Fail latches the failure for a robot and binds the first disabled
// backup (ascending id) to the failed robot's axis. Returns whether a
// backup was activated; without one, coverage for that zone stays
// degraded for the rest of the run.
func (r *Roster) Fail(id int) (activated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rb := r.robots[id]
	if rb.HasFailed {
		return false
	}
	rb.HasFailed = true
	rb.State = RobotFailed
	rb.CurrentItem = -1
	r.failures++

	for _, bk := range r.robots[r.numPrimary:] {
		if !bk.IsBackup || bk.State != RobotDisabled {
			continue
		}
		bk.State = RobotBackup
		bk.Replacing = id
		bk.AxisPosition = rb.AxisPosition
		r.backupActivations++
		return true
	}
	r.backupExhausted++
	return false
}

// Adjust activates or parks primary robots so that `required` of them
// are working the incoming box. Deactivation walks from the high end,
// touches only Idle non-backup robots, and never parks a robot that is
// labeling or a backup standing in for a failure.
func (r *Roster) Adjust(required int) {
	if required < 1 {
		required = 1
	}
	if required > r.numPrimary {
		required = r.numPrimary
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, rb := range r.robots[:r.numPrimary] {
		if !rb.HasFailed && rb.State != RobotDisabled {
			active++
		}
	}

	// Wake parked primaries from the low end until demand is met.
	for _, rb := range r.robots[:r.numPrimary] {
		if active >= required {
			break
		}
		if rb.State == RobotDisabled && !rb.HasFailed {
			rb.State = RobotIdle
			active++
		}
	}
	// Park surplus idle primaries from the high end.
	for i := r.numPrimary - 1; i >= 0 && active > required; i-- {
		rb := r.robots[i]
		if rb.State == RobotIdle && !rb.IsBackup {
			rb.State = RobotDisabled
			active--
		}
	}
}

// Counters returns the failure-domain counters.
func (r *Roster) Counters() (failures, backupActivations, backupExhausted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures, r.backupActivations, r.backupExhausted
}

// Snapshot copies every robot for reporting.
func (r *Roster) Snapshot() []Robot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Robot, len(r.robots))
	for i, rb := range r.robots {
		out[i] = *rb
	}
	return out
}
