// Package protocol defines the wire records that cross the process
// boundary: box handoffs from the generator, robot status and counter
// updates to observers. JSON on the wire; schemas under schemas/ pin
// the shapes.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeBox    = "BOX"
	TypeStatus = "ROBOT_STATUS"
	TypeStats  = "STATS"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// ItemRecord is one item inside a BoxMsg. Coordinates are relative to
// the box centroid, in cm.
type ItemRecord struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// BoxMsg carries one detected box from the generator to the engine.
type BoxMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	BoxID           int          `json:"box_id"`
	NumItems        int          `json:"num_items"`
	Items           []ItemRecord `json:"items"`
}

// StatusMsg reports one robot's state transition.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RobotID         int    `json:"robot_id"`
	State           string `json:"state"`
	LabelsPlaced    int    `json:"labels_placed"`
}

// StatsMsg carries counter deltas: boxes, items, labeled, missed,
// failures, backup activations.
type StatsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Boxes             int `json:"boxes"`
	Items             int `json:"items"`
	Labeled           int `json:"labeled"`
	Missed            int `json:"missed"`
	Failures          int `json:"failures"`
	BackupActivations int `json:"backup_activations"`
}
