// Package main is the sonido-mix command: analyse two stem directories and
// plan the transition between them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/store"
	"github.com/RyanBlaney/sonido-mix/transcode"
	"github.com/RyanBlaney/sonido-mix/transition"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file (default: ./sonido-mix.toml or ~/.config/sonido-mix/config.toml)")
	dbPath := flag.String("db", "", "SQLite file for persisted analyses (overrides cache.database_path)")
	styleName := flag.String("style", "", "force a transition style instead of the decision table")
	simulate := flag.Bool("simulate", false, "play the transition against a simulated clock and log mixer")
	speed := flag.Float64("speed", 8, "simulation speed multiplier")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Println("Usage: sonido-mix [flags] <stemsDirA> <stemsDirB>")
		fmt.Println("Each directory holds vocals, drums, bass and other as .wav, .flac or .mp3.")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		return 1
	}

	path := *configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logging.Error(err, "failed to load config", logging.Fields{"path": path})
		return 1
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if *dbPath != "" {
		cfg.Cache.DatabasePath = *dbPath
	}

	var style transition.Style
	if *styleName != "" {
		if style, err = transition.ParseStyle(*styleName); err != nil {
			logging.Error(err, "invalid -style")
			return 1
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var st analysis.Store
	if cfg.Cache.DatabasePath != "" {
		db, err := store.Open(cfg.Cache.DatabasePath)
		if err != nil {
			logging.Error(err, "failed to open analysis database")
			return 1
		}
		defer db.Close()
		st = db
	}
	cache, err := analysis.NewCache(cfg.Cache.Size, st)
	if err != nil {
		logging.Error(err, "failed to create cache")
		return 1
	}

	a, b, err := analyzePair(ctx, cfg, cache, args[0], args[1])
	if err != nil {
		logging.Error(err, "analysis failed")
		return 1
	}

	planner := transition.NewPlanner(cfg.Planner)
	var plan *transition.Plan
	if style == "" {
		plan = planner.Plan(a, b)
	} else if plan, err = planner.PlanWithStyle(a, b, style); err != nil {
		logging.Error(err, "planning failed")
		return 1
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(report{TrackA: summarize(a), TrackB: summarize(b), Plan: plan}); err != nil {
		logging.Error(err, "failed to write plan")
		return 1
	}

	if *simulate {
		if err := simulateTransition(ctx, path, cfg, cache, planner, a, b, *speed); err != nil {
			logging.Error(err, "simulation failed")
			return 1
		}
	}
	return 0
}

// analyzePair loads and analyses both directories concurrently, reusing
// cached or stored analyses.
func analyzePair(ctx context.Context, cfg config.Config, cache *analysis.Cache, dirA, dirB string) (*analysis.TrackAnalysis, *analysis.TrackAnalysis, error) {
	analyzer := analysis.NewAnalyzer(&cfg.Analysis)
	decoder := transcode.NewDecoder(nil)
	if err := decoder.Available(); err != nil {
		logging.Warn("ffmpeg unavailable, only stored analyses can be used", logging.Fields{"error": err.Error()})
	}

	results := make([]*analysis.TrackAnalysis, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, dir := range []string{dirA, dirB} {
		g.Go(func() error {
			if a, ok := cache.Get(gctx, transcode.TrackID(dir)); ok {
				results[i] = a
				return nil
			}
			track, err := decoder.LoadStemDir(gctx, dir)
			if err != nil {
				return err
			}
			a, err := cache.GetOrAnalyze(gctx, track, analyzer)
			if err != nil {
				return fmt.Errorf("analyse %s: %w", dir, err)
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results[0], results[1], nil
}

type trackSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Duration    float64  `json:"duration"`
	BPM         float64  `json:"bpm"`
	Key         string   `json:"key"`
	Camelot     string   `json:"camelot"`
	MixableKeys []string `json:"mixable_keys,omitempty"`
	MixIn       float64  `json:"mix_in"`
	MixOut      float64  `json:"mix_out"`
	Energy      float64  `json:"energy"`
	Cues        int      `json:"cues"`
	Confidence  float64  `json:"confidence"`
	TempoReason string   `json:"tempo_reason,omitempty"`
}

type report struct {
	TrackA trackSummary     `json:"track_a"`
	TrackB trackSummary     `json:"track_b"`
	Plan   *transition.Plan `json:"plan"`
}

func summarize(a *analysis.TrackAnalysis) trackSummary {
	return trackSummary{
		ID:          a.TrackID,
		Title:       a.Title,
		Duration:    a.Duration,
		BPM:         a.BPM(),
		Key:         a.Key.Name,
		Camelot:     a.Key.Camelot,
		MixableKeys: a.Key.MixableKeys(),
		MixIn:       a.MixInPoint,
		MixOut:      a.MixOutPoint,
		Energy:      a.Energy.MeanEnergy,
		Cues:        len(a.Cues),
		Confidence:  a.Confidence,
		TempoReason: a.Tempo.Reason,
	}
}
