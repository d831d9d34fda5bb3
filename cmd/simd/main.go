// simd runs the live labeling line: a box generator feeding the
// concurrent engine, with status published over WebSocket and per-box
// results persisted to a compressed run log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mangoline.dev/internal/persistence/runlog"
	"mangoline.dev/internal/sim/belt"
	"mangoline.dev/internal/sim/boxgen"
	"mangoline.dev/internal/sim/params"
	"mangoline.dev/internal/transport/feed"
	"mangoline.dev/internal/transport/ws"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "http listen address")
		scenario = flag.String("scenario", "", "path to scenario yaml (flags override its values)")

		beltSpeed  = flag.Float64("belt_speed", 0, "belt speed, cm/s")
		boxSize    = flag.Float64("box_size", 0, "box side length, cm")
		beltLength = flag.Float64("belt_length", 0, "working belt length, cm")
		itemsMin   = flag.Int("items_min", 0, "minimum items per box")
		itemsMax   = flag.Int("items_max", 0, "maximum items per box")
		robots     = flag.Int("robots", 0, "primary robot count")
		backups    = flag.Int("backups", 0, "backup robot count")
		failure    = flag.Float64("failure", 0, "per-cycle failure probability")
		boxes      = flag.Int("boxes", 0, "boxes per run")
		seed       = flag.Int64("seed", 0, "master seed")
		timeScale  = flag.Float64("time_scale", 0, "sim seconds per wall second")

		runlogPath = flag.String("runlog", "", "per-box run log path (jsonl.zst, empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simd] ", log.LstdFlags|log.Lmicroseconds)

	var p params.Params
	if strings.TrimSpace(*scenario) != "" {
		loaded, err := params.Load(*scenario)
		if err != nil {
			logger.Fatalf("load scenario: %v", err)
		}
		p = loaded
	}

	// Explicitly set flags win over the scenario file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "belt_speed":
			p.BeltSpeed = *beltSpeed
		case "box_size":
			p.BoxSize = *boxSize
		case "belt_length":
			p.BeltLength = *beltLength
		case "items_min":
			p.NMin = *itemsMin
		case "items_max":
			p.NMax = *itemsMax
		case "robots":
			p.NumRobots = *robots
		case "backups":
			p.NumBackups = *backups
		case "failure":
			p.FailureProb = *failure
		case "boxes":
			p.NumBoxes = *boxes
		case "seed":
			p.Seed = *seed
		case "time_scale":
			p.TimeScale = *timeScale
		}
	})
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		logger.Fatalf("invalid parameters: %v", err)
	}
	logger.Printf("line: X=%.1f cm/s Z=%.1f cm W=%.1f cm, items [%d,%d], robots %d (+%d backup), B=%.2f, %d boxes, seed %d",
		p.BeltSpeed, p.BoxSize, p.BeltLength, p.NMin, p.NMax,
		p.NumRobots, p.NumBackups, p.FailureProb, p.NumBoxes, p.Seed)

	ctx, cancel := signalContext()
	defer cancel()

	hub := ws.NewHub(logger)

	opts := []belt.EngineOption{belt.WithLogger(logger)}
	if strings.TrimSpace(*runlogPath) != "" {
		w, err := runlog.NewWriter(*runlogPath)
		if err != nil {
			logger.Fatalf("open run log: %v", err)
		}
		defer w.Close()
		opts = append(opts, belt.WithRunLogger(w))
		logger.Printf("run log: %s", *runlogPath)
	}

	stream := feed.NewChannelFeed(1)
	eng := belt.NewEngine(p, stream, hub, opts...)

	// Generator: one seeded stream produces every box in belt order.
	go func() {
		rng := rand.New(rand.NewSource(p.Seed))
		degraded := 0
		for i := 0; i < p.NumBoxes; i++ {
			box, d := boxgen.Generate(i, p, rng)
			if d > 0 {
				degraded += d
				eng.AddDegradations(d)
			}
			hub.PublishBox(box)
			if !stream.Send(ctx, box) {
				return
			}
		}
		stream.Close()
		if degraded > 0 {
			logger.Printf("placement degraded on %d item(s): minimum separation not met", degraded)
		}
	}()

	runDone := make(chan struct{})
	var snap belt.StatsSnapshot
	go func() {
		defer close(runDone)
		s, err := eng.Run(ctx)
		snap = s
		if err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := eng.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP mangoline_boxes_total Boxes retired from the belt.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_boxes_total counter\n")
		fmt.Fprintf(rw, "mangoline_boxes_total %d\n", m.Stats.Boxes)

		fmt.Fprintf(rw, "# HELP mangoline_items_total Items presented, labeled and missed.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_items_total counter\n")
		fmt.Fprintf(rw, "mangoline_items_total{result=%q} %d\n", "labeled", m.Stats.Labeled)
		fmt.Fprintf(rw, "mangoline_items_total{result=%q} %d\n", "missed", m.Stats.Missed)

		fmt.Fprintf(rw, "# HELP mangoline_efficiency_percent Labeled share of presented items.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_efficiency_percent gauge\n")
		fmt.Fprintf(rw, "mangoline_efficiency_percent %.3f\n", m.Stats.Efficiency())

		fmt.Fprintf(rw, "# HELP mangoline_robot_failures_total Robots lost to failure draws.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_robot_failures_total counter\n")
		fmt.Fprintf(rw, "mangoline_robot_failures_total %d\n", m.Stats.Failures)

		fmt.Fprintf(rw, "# HELP mangoline_backup_activations_total Backups bound to failed axes.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_backup_activations_total counter\n")
		fmt.Fprintf(rw, "mangoline_backup_activations_total %d\n", m.Stats.BackupActivations)

		fmt.Fprintf(rw, "# HELP mangoline_robot_labels Labels placed per robot.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_robot_labels gauge\n")
		for _, rb := range m.Robots {
			fmt.Fprintf(rw, "mangoline_robot_labels{robot=\"%d\",state=%q} %d\n", rb.ID, rb.State.String(), rb.LabelsPlaced)
		}

		fmt.Fprintf(rw, "# HELP mangoline_ws_clients Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE mangoline_ws_clients gauge\n")
		fmt.Fprintf(rw, "mangoline_ws_clients %d\n", hub.ClientCount())
	})
	mux.HandleFunc("/v1/ws", hub.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	<-runDone
	logger.Printf("run complete: %d boxes, %d/%d items labeled (%.2f%%), %d missed",
		snap.Boxes, snap.Labeled, snap.Items, snap.Efficiency(), snap.Missed)
	if snap.Failures > 0 {
		logger.Printf("failures: %d (%d covered by backups, %d uncovered)",
			snap.Failures, snap.BackupActivations, snap.BackupExhausted)
	}
	for id, n := range snap.LabelsPerRobot {
		logger.Printf("robot %d: %d labels", id, n)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
