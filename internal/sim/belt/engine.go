package belt

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"mangoline.dev/internal/sim/params"
)

// ErrStreamClosed reports an exhausted box stream; the engine treats it
// as a clean end of run. Transports wrap or reuse it.
var ErrStreamClosed = errors.New("belt: box stream closed")

// BoxLogEntry is one retired box in the run log.
type BoxLogEntry struct {
	BoxID    int     `json:"box_id"`
	NumItems int     `json:"num_items"`
	Labeled  int     `json:"labeled"`
	Missed   int     `json:"missed"`
	SimTime  float64 `json:"sim_time_s"`
}

// RunLogger persists per-box results. Implemented in
// internal/persistence/runlog; may be nil.
type RunLogger interface {
	WriteBox(entry BoxLogEntry) error
}

// StatusSink mirrors feed.StatusSink without importing it, so the belt
// package stays transport-free.
type StatusSink interface {
	PublishRobotStatus(robotID int, state RobotState, labelsPlaced int)
	PublishStats(delta StatsDelta)
}

// BoxSource mirrors feed.BoxSource.
type BoxSource interface {
	Next(ctx context.Context) (*Box, error)
}

// Engine is the live coordination model: one goroutine per robot racing
// on the claim protocol, plus the conveyor loop that paces boxes through
// the system. Robots block on a condition broadcast for box arrivals and
// on timed delays while reaching and returning; a cooperative done flag
// is checked at every suspension point.
type Engine struct {
	p      params.Params
	roster *Roster
	stats  *Stats
	source BoxSource
	sink   StatusSink
	policy SelectionPolicy
	logger *log.Logger
	runlog RunLogger

	mu       sync.Mutex
	cond     *sync.Cond
	cur      *Box
	boxSeq   uint64
	boxReady bool
	done     bool

	stop  chan struct{}
	start time.Time
	wg    sync.WaitGroup
}

type EngineOption func(*Engine)

func WithPolicy(p SelectionPolicy) EngineOption { return func(e *Engine) { e.policy = p } }
func WithRunLogger(l RunLogger) EngineOption    { return func(e *Engine) { e.runlog = l } }
func WithLogger(l *log.Logger) EngineOption     { return func(e *Engine) { e.logger = l } }

func NewEngine(p params.Params, source BoxSource, sink StatusSink, opts ...EngineOption) *Engine {
	e := &Engine{
		p:      p,
		roster: NewRoster(p),
		stats:  NewStats(p.NumRobots + p.NumBackups),
		source: source,
		sink:   sink,
		policy: NearestFirst{},
		stop:   make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddDegradations folds generator-side placement degradations into the
// run counters; the generator runs outside the engine.
func (e *Engine) AddDegradations(n int) { e.stats.AddDegradations(n) }

// Run drives the conveyor until the box stream ends or ctx is canceled,
// then waits for every robot goroutine to observe shutdown. Returns the
// aggregate run statistics.
func (e *Engine) Run(ctx context.Context) (StatsSnapshot, error) {
	e.start = time.Now()

	// Rendezvous: every robot reports ready, then all begin their first
	// cycle the instant the conveyor releases the first box.
	release := make(chan struct{})
	var ready sync.WaitGroup
	for i := 0; i < e.roster.Size(); i++ {
		i := i
		ready.Add(1)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			rng := rand.New(rand.NewSource(e.p.Seed + int64(i) + 1))
			ready.Done()
			<-release
			e.robotLoop(i, rng)
		}()
	}
	ready.Wait()
	close(release)

	var runErr error
	for {
		box, err := e.source.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrStreamClosed) {
				break
			}
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			// A single failed handoff does not abort the run.
			e.logf("box handoff failed: %v", err)
			continue
		}

		e.roster.Adjust(RequiredRobots(e.p, box.NumItems()))

		box.EntryTime = e.simNow()
		box.Position = 0

		e.mu.Lock()
		e.cur = box
		e.boxReady = true
		e.boxSeq++
		e.cond.Broadcast()
		e.mu.Unlock()

		// The box is workable while it transits the belt.
		e.sleepSim(e.p.TransitTime())

		e.mu.Lock()
		e.boxReady = false
		e.mu.Unlock()
		box.Position = e.p.BeltLength

		labeled, total := box.LabeledCount(), box.NumItems()
		delta := e.stats.AddBox(labeled, total)
		e.sink.PublishStats(delta)
		if e.runlog != nil {
			entry := BoxLogEntry{
				BoxID:    box.ID,
				NumItems: total,
				Labeled:  labeled,
				Missed:   total - labeled,
				SimTime:  e.simNow(),
			}
			if err := e.runlog.WriteBox(entry); err != nil {
				e.logf("run log write: %v", err)
			}
		}
		if labeled < total {
			e.logf("box %d: %d/%d labeled (%d missed)", box.ID, labeled, total, total-labeled)
		}

		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
	}

	e.shutdown()
	e.wg.Wait()

	for _, rb := range e.roster.Snapshot() {
		e.stats.SetRobotLabels(rb.ID, rb.LabelsPlaced)
	}
	return e.stats.Snapshot(), runErr
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	if !e.done {
		e.done = true
		close(e.stop)
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// robotLoop is the per-robot state machine. One cycle per box arrival:
// failure draw, then claim-and-label until the zone window closes or the
// box runs dry, then return to center and go idle.
func (e *Engine) robotLoop(id int, rng *rand.Rand) {
	lastSeq := uint64(0)
	for {
		box, seq, ok := e.waitForBox(lastSeq)
		if !ok {
			return
		}
		lastSeq = seq

		switch e.roster.StateOf(id) {
		case RobotDisabled, RobotFailed:
			continue
		}

		rb := e.roster.Get(id)
		if !rb.IsBackup && !rb.HasFailed && e.p.FailureProb > 0 {
			if rng.Float64() < e.p.FailureProb {
				activated := e.roster.Fail(id)
				e.sink.PublishStats(e.stats.OnFailure(activated))
				e.sink.PublishRobotStatus(id, RobotFailed, rb.LabelsPlaced)
				if activated {
					e.logf("robot %d failed; backup bound to axis %.1f", id, rb.AxisPosition)
				} else {
					e.logf("robot %d failed; no backup available, zone coverage degraded", id)
				}
				return
			}
		}

		e.roster.SetState(id, RobotActive)
		axis := e.roster.AxisOf(id)
		budget := Window(axis, e.roster.Spacing(), e.p.BeltLength, e.p.BeltSpeed)
		cycleStart := time.Now()

		for {
			if e.canceled() {
				break
			}
			if e.simSince(cycleStart) >= budget {
				break
			}
			itemID, found := e.policy.SelectNext(box)
			if !found {
				break
			}
			if !box.TryClaim(itemID, id) {
				// Raced by a neighbor; re-scan.
				continue
			}
			e.roster.SetLabeling(id, itemID)
			it := box.Item(itemID)
			reach := it.Dist() / e.p.RobotSpeed()
			e.sleepSim(reach)
			// A claimed item is always labeled, even during shutdown.
			box.MarkLabeled(itemID, id, e.simNow())
			labels := e.roster.IncrLabels(id)
			e.sink.PublishRobotStatus(id, RobotLabeling, labels)
			e.sleepSim(reach / 2)
			e.roster.SetState(id, RobotActive)
		}

		e.roster.SetState(id, RobotReturning)
		e.sleepSim(settleDelay)
		e.roster.SetState(id, RobotIdle)
		e.sink.PublishRobotStatus(id, RobotIdle, e.roster.LabelsOf(id))
	}
}

// settleDelay is the fixed return-to-center settle time, in sim-seconds.
const settleDelay = 0.05

// waitForBox blocks until a box newer than lastSeq is available or the
// engine shuts down.
func (e *Engine) waitForBox(lastSeq uint64) (*Box, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.done && !(e.boxReady && e.boxSeq != lastSeq) {
		e.cond.Wait()
	}
	if e.done {
		return nil, 0, false
	}
	return e.cur, e.boxSeq, true
}

func (e *Engine) canceled() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

// sleepSim blocks for d sim-seconds, compressed by the time scale.
// Cut short by shutdown; callers finish in-flight work regardless.
func (e *Engine) sleepSim(d float64) {
	if d <= 0 {
		return
	}
	wall := time.Duration(d / e.p.TimeScale * float64(time.Second))
	t := time.NewTimer(wall)
	defer t.Stop()
	select {
	case <-t.C:
	case <-e.stop:
	}
}

// simNow is the sim-time elapsed since Run started.
func (e *Engine) simNow() float64 { return e.simSince(e.start) }

func (e *Engine) simSince(t time.Time) float64 {
	return time.Since(t).Seconds() * e.p.TimeScale
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Metrics is a point-in-time view for HTTP handlers and observers.
type Metrics struct {
	Stats  StatsSnapshot `json:"stats"`
	Robots []Robot       `json:"robots"`
}

func (e *Engine) Metrics() Metrics {
	for _, rb := range e.roster.Snapshot() {
		e.stats.SetRobotLabels(rb.ID, rb.LabelsPlaced)
	}
	return Metrics{Stats: e.stats.Snapshot(), Robots: e.roster.Snapshot()}
}
