package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/pointtrack/internal/config"
	"github.com/banshee-data/pointtrack/internal/kitti"
	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot/l8track"
	"github.com/banshee-data/pointtrack/internal/sot/pipeline"
	"github.com/banshee-data/pointtrack/internal/trackdb"
	"github.com/banshee-data/pointtrack/internal/version"
)

var (
	dataset        = flag.String("dataset", "", "KITTI tracking split root (label_02/, calib/, velodyne/)")
	category       = flag.String("category", "", "KITTI object category to track (default Car)")
	synth          = flag.Bool("synth", false, "Track the built-in synthetic scenes instead of a dataset")
	configPath     = flag.String("config", "", "Tuning config JSON (defaults apply for omitted fields)")
	checkpointPath = flag.String("checkpoint", "", "Parameter checkpoint JSON (default: seeded initialization)")
	dbFile         = flag.String("db", "", "Results SQLite database path (default: results are not persisted)")
	workers        = flag.Int("workers", 4, "Concurrent sequence workers")
	limit          = flag.Int("limit", 0, "Max sequences to track (0 = all)")
	verbose        = flag.Bool("verbose", false, "Enable diagnostic and per-frame trace logging")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("pointtrack %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	// Quiet by default: operational warnings only. -verbose adds the
	// per-sequence diagnostics and per-frame trace streams.
	if *verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, nil, nil)
	}

	// Load tuning configuration
	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", *configPath)
	}
	cfg := l8track.ConfigFromTuning(tuning)

	// Build the layer stack. Registration pins every parameter shape, so the
	// checkpoint is loaded afterwards and overlays the seeded values.
	params := nnet.NewParamSet(uint64(tuning.GetParamSeed()))
	layers, err := l8track.BuildLayers(params, cfg)
	if err != nil {
		log.Fatalf("Failed to build layer stack: %v", err)
	}
	if *checkpointPath != "" {
		src, err := nnet.LoadCheckpoint(*checkpointPath)
		if err != nil {
			log.Fatalf("Failed to load checkpoint: %v", err)
		}
		if err := params.Load(src, true); err != nil {
			log.Fatalf("Failed to apply checkpoint: %v", err)
		}
		log.Printf("Loaded checkpoint %s", *checkpointPath)
	} else {
		log.Printf("No checkpoint given; tracking with seeded initial parameters (seed %d)", tuning.GetParamSeed())
	}

	// Pick the sequence source
	var source pipeline.SequenceSource
	switch {
	case *synth:
		source = pipeline.NewSyntheticSource(pipeline.DefaultSyntheticConfig())
		log.Printf("Tracking %d built-in synthetic sequences", source.Sequences())
	case *dataset != "":
		kittiSource, err := kitti.New(kitti.Config{Root: *dataset, Category: *category})
		if err != nil {
			log.Fatalf("Failed to index KITTI split: %v", err)
		}
		source = kittiSource
		log.Printf("Indexed %d sequences under %s", source.Sequences(), *dataset)
	default:
		log.Fatal("Either -dataset or -synth is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional results database
	var sink pipeline.ResultSink
	if *dbFile != "" {
		store, err := trackdb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open results database: %v", err)
		}
		defer store.Close()

		run, err := store.CreateRun(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to create run: %v", err)
		}
		sink = run
		log.Printf("Recording run %s to %s", run.ID(), *dbFile)
	}

	runner := &pipeline.Runner{
		Source:  source,
		Sink:    sink,
		Layers:  layers,
		Config:  cfg,
		Workers: *workers,
		Limit:   *limit,
	}

	stats, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Tracking run failed: %v", err)
	}

	fmt.Printf("sequences tracked:  %d\n", stats.Sequences)
	fmt.Printf("sequences skipped:  %d\n", stats.Skipped)
	fmt.Printf("frames processed:   %d\n", stats.Frames)
	fmt.Printf("tracks lost:        %d\n", stats.LostTracks)
	fmt.Printf("mean confidence:    %.3f\n", stats.MeanConfidence)
}
