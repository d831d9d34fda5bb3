package belt

import "sync"

// StatsDelta is one box worth of counter movement, published to the
// status sink as the box retires.
type StatsDelta struct {
	Boxes             int `json:"boxes"`
	Items             int `json:"items"`
	Labeled           int `json:"labeled"`
	Missed            int `json:"missed"`
	Failures          int `json:"failures"`
	BackupActivations int `json:"backup_activations"`
}

// StatsSnapshot is the aggregate view of a run.
type StatsSnapshot struct {
	Boxes             int   `json:"boxes"`
	Items             int   `json:"items"`
	Labeled           int   `json:"labeled"`
	Missed            int   `json:"missed"`
	Failures          int   `json:"failures"`
	BackupActivations int   `json:"backup_activations"`
	BackupExhausted   int   `json:"backup_exhausted"`
	Degradations      int   `json:"placement_degradations"`
	LabelsPerRobot    []int `json:"labels_per_robot"`
}

// Efficiency is the labeled percentage of all items presented.
func (s StatsSnapshot) Efficiency() float64 {
	if s.Items == 0 {
		return 0
	}
	return 100.0 * float64(s.Labeled) / float64(s.Items)
}

// Stats accumulates run counters. Write-once-per-event, guarded by its
// own mutex; never on the claim path.
type Stats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

func NewStats(totalRobots int) *Stats {
	return &Stats{s: StatsSnapshot{LabelsPerRobot: make([]int, totalRobots)}}
}

func (st *Stats) AddBox(labeled, total int) StatsDelta {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Boxes++
	st.s.Items += total
	st.s.Labeled += labeled
	st.s.Missed += total - labeled
	return StatsDelta{Boxes: 1, Items: total, Labeled: labeled, Missed: total - labeled}
}

func (st *Stats) OnFailure(backupActivated bool) StatsDelta {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Failures++
	d := StatsDelta{Failures: 1}
	if backupActivated {
		st.s.BackupActivations++
		d.BackupActivations = 1
	} else {
		st.s.BackupExhausted++
	}
	return d
}

func (st *Stats) AddDegradations(n int) {
	if n == 0 {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Degradations += n
}

func (st *Stats) SetRobotLabels(robotID, labels int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if robotID >= 0 && robotID < len(st.s.LabelsPerRobot) {
		st.s.LabelsPerRobot[robotID] = labels
	}
}

func (st *Stats) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.s
	out.LabelsPerRobot = make([]int, len(st.s.LabelsPerRobot))
	copy(out.LabelsPerRobot, st.s.LabelsPerRobot)
	return out
}
