package belt

import (
	"math"
	"sync"
)

type ItemState int

const (
	ItemUnclaimed ItemState = iota
	ItemClaimed
	ItemLabeled
)

func (s ItemState) String() string {
	switch s {
	case ItemUnclaimed:
		return "UNCLAIMED"
	case ItemClaimed:
		return "CLAIMED"
	case ItemLabeled:
		return "LABELED"
	}
	return "UNKNOWN"
}

// Item is one label target inside a box. Coordinates are relative to
// the box centroid. An item moves Unclaimed -> Claimed -> Labeled and
// never backward.
type Item struct {
	ID        int
	X, Y      float64
	State     ItemState
	ClaimedBy int     // robot id, -1 while unclaimed
	LabelTime float64 // sim-seconds since run start
}

// Dist is the reach distance from the robot axis origin (0,0).
func (it Item) Dist() float64 {
	return math.Hypot(it.X, it.Y)
}

// Box carries a batch of items down the belt. Item count and coordinates
// are immutable after generation; item states and the labeled counter
// mutate only through the claim protocol below. One coarse mutex guards
// all item state for the box.
type Box struct {
	ID        int
	Position  float64
	EntryTime float64

	mu      sync.Mutex
	items   []Item
	labeled int
}

func NewBox(id int, items []Item) *Box {
	for i := range items {
		items[i].ID = i
		items[i].State = ItemUnclaimed
		items[i].ClaimedBy = -1
	}
	return &Box{ID: id, items: items}
}

func (b *Box) NumItems() int { return len(b.items) }

func (b *Box) LabeledCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.labeled
}

func (b *Box) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.labeled == len(b.items)
}

// TryClaim atomically claims an unclaimed item for a robot. It fails
// with no side effect when the item is already claimed or labeled.
func (b *Box) TryClaim(itemID, robotID int) bool {
	if itemID < 0 || itemID >= len(b.items) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it := &b.items[itemID]
	if it.State != ItemUnclaimed {
		return false
	}
	it.State = ItemClaimed
	it.ClaimedBy = robotID
	return true
}

// MarkLabeled completes a claim. Only the claiming robot may label, and
// only from the Claimed state; anything else is ignored so the
// Unclaimed -> Claimed -> Labeled order can never be violated.
func (b *Box) MarkLabeled(itemID, robotID int, at float64) bool {
	if itemID < 0 || itemID >= len(b.items) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it := &b.items[itemID]
	if it.State != ItemClaimed || it.ClaimedBy != robotID {
		return false
	}
	it.State = ItemLabeled
	it.LabelTime = at
	b.labeled++
	return true
}

// NearestUnclaimed scans for the unclaimed item closest to the robot
// axis origin. Ties break toward the lowest item id by scan order.
func (b *Box) NearestUnclaimed() (itemID int, dist float64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	itemID = -1
	dist = math.Inf(1)
	for i := range b.items {
		if b.items[i].State != ItemUnclaimed {
			continue
		}
		if d := b.items[i].Dist(); d < dist {
			dist = d
			itemID = i
		}
	}
	return itemID, dist, itemID >= 0
}

// FirstUnclaimed returns the lowest-id unclaimed item (array order).
func (b *Box) FirstUnclaimed() (itemID int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].State == ItemUnclaimed {
			return i, true
		}
	}
	return -1, false
}

// Item returns a copy of one item.
func (b *Box) Item(itemID int) Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[itemID]
}

// Items returns a copy of the item array for reporting and tests.
func (b *Box) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}
