package belt

type RobotState int

const (
	RobotIdle RobotState = iota
	RobotActive
	RobotLabeling
	RobotReturning
	RobotDisabled
	RobotFailed
	RobotBackup
)

func (s RobotState) String() string {
	switch s {
	case RobotIdle:
		return "IDLE"
	case RobotActive:
		return "ACTIVE"
	case RobotLabeling:
		return "LABELING"
	case RobotReturning:
		return "RETURNING"
	case RobotDisabled:
		return "DISABLED"
	case RobotFailed:
		return "FAILED"
	case RobotBackup:
		return "BACKUP"
	}
	return "UNKNOWN"
}

// Robot is one fixed-position labeler. A primary robot's axis position
// is fixed at roster construction; a backup's axis is unset until it is
// bound to a failed robot, and never changes afterwards. HasFailed is a
// one-way latch. All fields are guarded by the owning Roster.
type Robot struct {
	ID           int
	AxisPosition float64
	State        RobotState
	CurrentItem  int // item id being labeled, -1 when none
	LabelsPlaced int
	IsBackup     bool
	Replacing    int // failed robot id this backup stands in for, -1 if none
	HasFailed    bool
}
