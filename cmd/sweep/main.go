// sweep runs the deterministic batch estimator across parameter grids:
// robot count versus efficiency, and failure probability versus the
// redundancy needed to hold ~100%. Results go to gnuplot .dat files,
// a SQLite store, and a printed summary.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"mangoline.dev/internal/persistence/sweepdb"
	"mangoline.dev/internal/sim/belt"
	"mangoline.dev/internal/sim/boxgen"
	"mangoline.dev/internal/sim/params"
)

func main() {
	var (
		scenario = flag.String("scenario", "", "path to scenario yaml for the base configuration")
		seed     = flag.Int64("seed", 0, "master seed (overrides scenario)")
		boxes    = flag.Int("boxes", 0, "boxes per run (overrides scenario)")
		outDir   = flag.String("out", "./sweeps", "output directory for .dat files")
		dbPath   = flag.String("db", "", "sqlite results db (default: <out>/sweeps.db, empty string keeps default)")
		kind     = flag.String("kind", "all", "which sweep to run: robots, failure, all")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[sweep] ", log.LstdFlags|log.Lmicroseconds)

	var base params.Params
	if strings.TrimSpace(*scenario) != "" {
		loaded, err := params.Load(*scenario)
		if err != nil {
			logger.Fatalf("load scenario: %v", err)
		}
		base = loaded
	}
	if *seed != 0 {
		base.Seed = *seed
	}
	if *boxes != 0 {
		base.NumBoxes = *boxes
	}
	base.ApplyDefaults()
	if err := base.Validate(); err != nil {
		logger.Fatalf("invalid base parameters: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatalf("create output dir: %v", err)
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*outDir, "sweeps.db")
	}
	store, err := sweepdb.Open(path)
	if err != nil {
		logger.Fatalf("open sweep db: %v", err)
	}
	defer store.Close()

	switch *kind {
	case "robots":
		runRobotSweep(logger, store, base, *outDir)
	case "failure":
		runFailureSweep(logger, store, base, *outDir)
	case "all":
		runRobotSweep(logger, store, base, *outDir)
		runFailureSweep(logger, store, base, *outDir)
	default:
		logger.Fatalf("unknown sweep kind %q", *kind)
	}
}

func runRobotSweep(logger *log.Logger, store *sweepdb.Store, base params.Params, outDir string) {
	logger.Printf("robot sweep: %d runs per point, %d boxes each, seed %d",
		belt.RunsPerConfig, base.NumBoxes, base.Seed)

	points := belt.SweepRobots(base, boxgen.Generate)

	id, err := store.BeginSweep("robots", base.Seed)
	if err != nil {
		logger.Fatalf("begin sweep: %v", err)
	}
	for _, pt := range points {
		if err := store.InsertRobotPoint(id, pt); err != nil {
			logger.Fatalf("store point r=%d: %v", pt.NumRobots, err)
		}
	}

	datPath := filepath.Join(outDir, "robots_vs_efficiency.dat")
	f, err := os.Create(datPath)
	if err != nil {
		logger.Fatalf("create %s: %v", datPath, err)
	}
	fmt.Fprintf(f, "# robots avg_eff min_eff max_eff avg_missed_per_box\n")
	for _, pt := range points {
		fmt.Fprintf(f, "%d %.3f %.3f %.3f %.4f\n",
			pt.NumRobots, pt.AvgEff, pt.MinEff, pt.MaxEff, pt.AvgMissedBox)
	}
	_ = f.Close()

	fmt.Println()
	fmt.Println("robots  avg eff   min eff   max eff   missed/box")
	for _, pt := range points {
		mark := ""
		if pt.Optimal {
			mark = "  <- optimal"
		}
		fmt.Printf("%6d  %7.2f%%  %7.2f%%  %7.2f%%  %10.3f%s\n",
			pt.NumRobots, pt.AvgEff, pt.MinEff, pt.MaxEff, pt.AvgMissedBox, mark)
	}
	logger.Printf("robot sweep: %d points, data in %s (sweep id %d)", len(points), datPath, id)
}

func runFailureSweep(logger *log.Logger, store *sweepdb.Store, base params.Params, outDir string) {
	logger.Printf("failure sweep: probabilities %v, seed %d", belt.FailureProbs, base.Seed)

	points := belt.SweepFailure(base, boxgen.Generate)

	id, err := store.BeginSweep("failure", base.Seed)
	if err != nil {
		logger.Fatalf("begin sweep: %v", err)
	}
	for _, pt := range points {
		if err := store.InsertFailurePoint(id, pt); err != nil {
			logger.Fatalf("store point B=%.2f: %v", pt.FailureProb, err)
		}
	}

	datPath := filepath.Join(outDir, "failure_vs_redundancy.dat")
	f, err := os.Create(datPath)
	if err != nil {
		logger.Fatalf("create %s: %v", datPath, err)
	}
	fmt.Fprintf(f, "# failure_prob robots_no_backup eff_no_backup robots_with_backup backups eff_with_backup\n")
	for _, pt := range points {
		fmt.Fprintf(f, "%.2f %d %.3f %d %d %.3f\n",
			pt.FailureProb, pt.RobotsNoBackup, pt.EffNoBackup,
			pt.RobotsWithBackup, pt.BackupCount, pt.EffWithBackup)
	}
	_ = f.Close()

	fmt.Println()
	fmt.Println("B       no backup        with backup pool")
	fmt.Println("        robots  eff      robots  backups  eff")
	for _, pt := range points {
		fmt.Printf("%.2f    %6d  %6.2f%%  %6d  %7d  %6.2f%%\n",
			pt.FailureProb, pt.RobotsNoBackup, pt.EffNoBackup,
			pt.RobotsWithBackup, pt.BackupCount, pt.EffWithBackup)
	}
	logger.Printf("failure sweep: %d points, data in %s (sweep id %d)", len(points), datPath, id)
}
