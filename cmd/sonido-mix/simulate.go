package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
	"github.com/RyanBlaney/sonido-mix/transition"
)

// leadIn is how far before the transition window the simulation starts.
const leadIn = 10.0

// simClock plays deck A from a start position at speed times real time.
type simClock struct {
	start    time.Time
	from     float64
	speed    float64
	duration float64
	current  string
	next     string
}

func (c *simClock) Playback() transition.Playback {
	pos := c.from + time.Since(c.start).Seconds()*c.speed
	return transition.Playback{
		Position:  min(pos, c.duration),
		Duration:  c.duration,
		CurrentID: c.current,
		NextID:    c.next,
	}
}

// logMixer stands in for the audio engine and logs every change.
type logMixer struct {
	mu     sync.Mutex
	gains  map[string]float64
	logger logging.Logger
}

func newLogMixer() *logMixer {
	return &logMixer{
		gains:  make(map[string]float64),
		logger: logging.WithFields(logging.Fields{"component": "sim_mixer"}),
	}
}

func (m *logMixer) StartDeck(deck transition.Deck, position float64) error {
	m.logger.Info("deck started", logging.Fields{"deck": deck, "position": position})
	return nil
}

func (m *logMixer) SetGain(deck transition.Deck, stem stems.Name, gain float64) {
	key := fmt.Sprintf("%s/%s", deck, stem)
	m.mu.Lock()
	prev, seen := m.gains[key]
	m.gains[key] = gain
	m.mu.Unlock()
	if !seen || prev != gain {
		m.logger.Debug("gain", logging.Fields{"deck": deck, "stem": stem, "gain": gain})
	}
}

func (m *logMixer) SetFilter(deck transition.Deck, stem stems.Name, f *transition.Filter) {
	if f == nil {
		return
	}
	m.logger.Info("filter", logging.Fields{"deck": deck, "stem": stem, "type": f.Type, "cutoff_hz": f.CutoffHz})
}

// simulateTransition runs the monitor from just before the transition
// window until the transition completes. The config file is watched so log
// level changes apply while it runs.
func simulateTransition(ctx context.Context, configPath string, cfg config.Config, cache *analysis.Cache,
	planner *transition.Planner, a, b *analysis.TrackAnalysis, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be positive")
	}

	// monitor timing follows the simulated clock
	mc := cfg.Monitor
	mc.TickInterval /= speed
	mc.ScanInterval /= speed

	monitor := transition.NewMonitor(mc, planner, cache, newLogMixer(), nil)
	events := monitor.Events().Subscribe(16)
	defer monitor.Events().Unsubscribe(events)

	clock := &simClock{
		start:    time.Now(),
		from:     max(0, a.Duration-cfg.Monitor.TransitionWindow-leadIn),
		speed:    speed,
		duration: a.Duration,
		current:  a.TrackID,
		next:     b.TrackID,
	}
	budget := time.Duration((a.Duration-clock.from)/speed*float64(time.Second)) + 5*time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	logger := logging.WithFields(logging.Fields{"component": "simulation"})
	completed := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(c config.Config, err error) {
			if err != nil {
				logger.Warn("config reload failed", logging.Fields{"error": err.Error()})
				return
			}
			logging.SetLevel(logging.ParseLevel(c.LogLevel))
			logger.Info("config reloaded", logging.Fields{"log_level": c.LogLevel})
		})
		if err != nil {
			// no config directory to watch; keep simulating
			logger.Debug("config watch unavailable", logging.Fields{"error": err.Error()})
		}
		return nil
	})
	g.Go(func() error {
		return monitor.Run(gctx, clock)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case e := <-events.C:
				logger.Info("transition event", logging.Fields{
					"type":     e.Type,
					"style":    e.Style,
					"position": e.Position,
					"target":   e.Target,
					"reason":   e.Reason,
				})
				if e.Type == transition.EventCompleted {
					close(completed)
					cancel()
					return nil
				}
			}
		}
	})

	err := g.Wait()
	select {
	case <-completed:
		return nil
	default:
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("transition did not complete before track end")
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("simulation interrupted")
		return nil
	}
	return err
}
