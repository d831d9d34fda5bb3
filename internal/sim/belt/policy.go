package belt

// SelectionPolicy picks the next item a robot should go for. The live
// engine and the batch estimator share this interface so their
// selection semantics stay explicit: the live model works nearest-first,
// the batch model in array order. The batch pass has no racing agents,
// so ordering there only affects which robot gets credited.
type SelectionPolicy interface {
	SelectNext(b *Box) (itemID int, ok bool)
}

// NearestFirst scans all unclaimed items and picks the one closest to
// the robot axis origin, ties broken by lowest item id.
type NearestFirst struct{}

func (NearestFirst) SelectNext(b *Box) (int, bool) {
	id, _, ok := b.NearestUnclaimed()
	return id, ok
}

// ArrayOrder picks the lowest-id unclaimed item.
type ArrayOrder struct{}

func (ArrayOrder) SelectNext(b *Box) (int, bool) {
	return b.FirstUnclaimed()
}
