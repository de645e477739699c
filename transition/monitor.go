package transition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// State is the monitor's position in the transition lifecycle.
type State string

const (
	StateIdle               State = "idle"
	StateScanning           State = "scanning"
	StateArmed              State = "armed"
	StateExecuting          State = "executing"
	StateEmergencyExecuting State = "emergency_executing"
)

// Busy reports whether a transition is armed or running.
func (s State) Busy() bool {
	return s == StateArmed || s == StateExecuting || s == StateEmergencyExecuting
}

// rampInterval is the tick period used by Run while a transition is armed or
// executing, so the arm tolerance and gain ramps are not stepped over.
const rampInterval = 50 * time.Millisecond

const beatsPerBar = 4

// Playback is one sample of the playback collaborator's position feed.
// Position and Duration refer to the outgoing deck A.
type Playback struct {
	Position  float64
	Duration  float64
	CurrentID string
	NextID    string
}

// Remaining is the time left on deck A.
func (p Playback) Remaining() float64 {
	return p.Duration - p.Position
}

// PlaybackSource supplies the current playback position.
type PlaybackSource interface {
	Playback() Playback
}

// AnalysisSource returns a finished analysis without blocking.
// *analysis.Cache satisfies it.
type AnalysisSource interface {
	Peek(trackID string) (*analysis.TrackAnalysis, bool)
}

// Mixer is the audio collaborator. Gains and filters are set per deck and
// per stem exactly as plan actions describe them.
type Mixer interface {
	StartDeck(deck Deck, position float64) error
	SetGain(deck Deck, stem stems.Name, gain float64)
	SetFilter(deck Deck, stem stems.Name, f *Filter)
}

type gainKey struct {
	deck Deck
	stem stems.Name
}

// Monitor watches the playback clock, picks a transition point near the end
// of the current track and executes the plan against the mixer. At most one
// transition is in flight at any time.
type Monitor struct {
	cfg      config.MonitorConfig
	planner  *Planner
	analyses AnalysisSource
	mixer    Mixer
	events   *EventBus
	now      func() time.Time
	logger   logging.Logger

	mu        sync.Mutex
	state     State
	lastScan  time.Time
	requested bool
	quick     bool

	// candidate for the current pair
	pairA, pairB string
	plan         *Plan
	points       []analysis.TransitionPoint
	target       float64

	// track already handed over; ticks for it are ignored until the
	// feed moves on
	handedOver string

	// execution
	execStart float64
	phase     int
	gains     map[gainKey]float64
	from      map[gainKey]float64
}

// NewMonitor wires a monitor to its collaborators. A nil bus gets a private
// one, reachable through Events.
func NewMonitor(cfg config.MonitorConfig, planner *Planner, analyses AnalysisSource, mixer Mixer, bus *EventBus) *Monitor {
	if bus == nil {
		bus = NewEventBus()
	}
	return &Monitor{
		cfg:      cfg,
		planner:  planner,
		analyses: analyses,
		mixer:    mixer,
		events:   bus,
		now:      time.Now,
		logger:   logging.WithFields(logging.Fields{"component": "transition_monitor"}),
		state:    StateIdle,
	}
}

// Events returns the lifecycle event bus.
func (m *Monitor) Events() *EventBus {
	return m.events
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Plan returns the armed or executing plan, if any.
func (m *Monitor) Plan() *Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan
}

// RequestNext signals that the next track was asked for. Scanning starts
// on the next tick regardless of the transition window; quick shortens the
// look-ahead and starts immediately when no point is close.
func (m *Monitor) RequestNext(quick bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Busy() {
		return
	}
	m.requested = true
	m.quick = quick
}

// Run ticks the monitor until ctx is done.
func (m *Monitor) Run(ctx context.Context, source PlaybackSource) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	m.logger.Info("monitor started", logging.Fields{"tick_interval": m.cfg.TickInterval})
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case now := <-timer.C:
			state := m.Tick(now, source.Playback())
			timer.Reset(m.interval(state))
		}
	}
}

func (m *Monitor) interval(s State) time.Duration {
	if s.Busy() {
		return rampInterval
	}
	return time.Duration(m.cfg.TickInterval * float64(time.Second))
}

// Tick performs one scheduler step and returns the resulting state.
func (m *Monitor) Tick(now time.Time, pb Playback) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateExecuting, StateEmergencyExecuting:
		m.advance(now, pb)
	case StateArmed:
		m.checkArmed(now, pb)
	default:
		if m.handedOver != "" {
			if pb.CurrentID == m.handedOver {
				return m.state
			}
			m.handedOver = ""
		}
		m.scan(now, pb)
	}
	return m.state
}

// StartTransition executes plan immediately from the current position.
// It returns analysis.ErrConcurrencyViolation when a transition is already
// armed or running.
func (m *Monitor) StartTransition(pb Playback, plan *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Busy() {
		return fmt.Errorf("start %s: %w", plan.Style, analysis.ErrConcurrencyViolation)
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	m.pairA, m.pairB = pb.CurrentID, pb.NextID
	m.plan = plan
	return m.execute(m.now(), pb, StateExecuting)
}

func (m *Monitor) scan(now time.Time, pb Playback) {
	remaining := pb.Remaining()
	if !m.requested && remaining > m.cfg.TransitionWindow {
		if m.state != StateIdle {
			m.reset()
		}
		return
	}
	if m.state == StateIdle {
		m.state = StateScanning
		m.lastScan = time.Time{}
		m.publish(Event{Type: EventScanning, Position: pb.Position, At: now})
	}
	if !m.lastScan.IsZero() && now.Sub(m.lastScan).Seconds() < m.cfg.ScanInterval {
		return
	}
	m.lastScan = now

	cur, curOK := m.analyses.Peek(pb.CurrentID)
	next, nextOK := m.analyses.Peek(pb.NextID)
	if !curOK || !nextOK {
		if remaining <= m.cfg.EmergencyRemaining {
			m.emergency(now, pb, cur, next, fmt.Errorf("analysis for %q not ready", missingID(pb, curOK)))
		}
		return
	}

	if m.plan == nil || m.pairA != pb.CurrentID || m.pairB != pb.NextID {
		m.pairA, m.pairB = pb.CurrentID, pb.NextID
		m.plan = m.planner.Plan(cur, next)
		m.points = analysis.PhrasePoints(cur)
		if m.plan.Fallback {
			m.publish(Event{Type: EventFallback, PlanID: m.plan.ID, Style: m.plan.Style, Position: pb.Position, Reason: m.plan.Reason, At: now})
		}
	}

	lookahead := m.cfg.LookAhead
	if m.quick {
		lookahead = m.cfg.QuickLookAhead
	}
	if t, ok := pickPoint(cur, m.points, pb, lookahead, m.plan.Duration); ok {
		m.target = t
		m.state = StateArmed
		m.logger.Info("transition armed", logging.Fields{
			"track":  pb.CurrentID,
			"next":   pb.NextID,
			"target": t,
			"style":  m.plan.Style,
		})
		m.publish(Event{Type: EventArmed, PlanID: m.plan.ID, Style: m.plan.Style, Position: pb.Position, Target: t, At: now})
		return
	}

	switch {
	case remaining <= m.cfg.EmergencyRemaining:
		m.emergency(now, pb, cur, next, fmt.Errorf("no transition point with %.1fs left", remaining))
	case m.quick:
		if err := m.execute(now, pb, StateExecuting); err != nil {
			m.logger.Error(err, "quick transition failed")
		}
	}
}

func (m *Monitor) checkArmed(now time.Time, pb Playback) {
	if pb.CurrentID != m.pairA || pb.NextID != m.pairB {
		m.logger.Warn("playlist changed while armed, rescanning")
		m.state = StateScanning
		m.plan = nil
		m.points = nil
		m.lastScan = time.Time{}
		return
	}
	switch {
	case pb.Position > m.target+m.cfg.ArmLate:
		m.logger.Warn("armed point missed, rescanning", logging.Fields{"target": m.target, "position": pb.Position})
		m.state = StateScanning
		m.lastScan = time.Time{}
		m.scan(now, pb)
	case pb.Position >= m.target-m.cfg.ArmEarly:
		if err := m.execute(now, pb, StateExecuting); err != nil {
			m.logger.Error(err, "transition failed to start")
		}
	}
}

func (m *Monitor) emergency(now time.Time, pb Playback, cur, next *analysis.TrackAnalysis, reason error) {
	if cur == nil {
		cur = &analysis.TrackAnalysis{TrackID: pb.CurrentID, Duration: pb.Duration}
	}
	if next == nil {
		next = &analysis.TrackAnalysis{TrackID: pb.NextID}
	}
	m.pairA, m.pairB = pb.CurrentID, pb.NextID
	m.plan = m.planner.Fallback(cur, next, reason)
	m.logger.Warn("emergency transition", logging.Fields{"remaining": pb.Remaining(), "reason": reason.Error()})
	m.publish(Event{Type: EventFallback, PlanID: m.plan.ID, Style: m.plan.Style, Position: pb.Position, Reason: m.plan.Reason, At: now})
	if err := m.execute(now, pb, StateEmergencyExecuting); err != nil {
		m.logger.Error(err, "emergency transition failed to start")
	}
}

// execute primes deck A at full gain and deck B silent, starts B so its
// entry point lands at the end of the plan and applies the first phase.
func (m *Monitor) execute(now time.Time, pb Playback, state State) error {
	plan := m.plan
	next, _ := m.analyses.Peek(pb.NextID)
	startB := m.deckBStart(next, plan)

	m.gains = make(map[gainKey]float64, 8)
	for _, s := range stems.All() {
		m.gains[gainKey{DeckA, s}] = 1
		m.gains[gainKey{DeckB, s}] = 0
		m.mixer.SetGain(DeckA, s, 1)
		m.mixer.SetGain(DeckB, s, 0)
		m.mixer.SetFilter(DeckB, s, nil)
	}
	if err := m.mixer.StartDeck(DeckB, startB); err != nil {
		m.reset()
		return fmt.Errorf("start deck B at %.2f: %w", startB, err)
	}

	plan.StartTime = pb.Position
	m.execStart = pb.Position
	m.phase = 0
	m.state = state
	m.requested, m.quick = false, false
	m.beginPhase()

	m.logger.Info("transition executing", logging.Fields{
		"plan_id":  plan.ID,
		"style":    plan.Style,
		"position": pb.Position,
		"deck_b":   startB,
	})
	m.publish(Event{Type: EventExecuting, PlanID: plan.ID, Style: plan.Style, Position: pb.Position, Target: startB, At: now})
	m.advance(now, pb)
	return nil
}

// advance applies the plan at the elapsed position in deck A. Phases a
// coarse tick skipped over are finished in order.
func (m *Monitor) advance(now time.Time, pb Playback) {
	plan := m.plan
	elapsed := pb.Position - m.execStart
	if pb.CurrentID != m.pairA {
		// the host already moved on to deck B
		elapsed = plan.Duration
	}

	for m.phase < len(plan.Phases) && elapsed >= plan.Phases[m.phase].End() {
		m.applyPhase(1)
		m.phase++
		if m.phase < len(plan.Phases) {
			m.beginPhase()
		}
	}
	if m.phase >= len(plan.Phases) {
		m.complete(now, pb)
		return
	}

	ph := plan.Phases[m.phase]
	m.applyPhase((elapsed - ph.Offset) / ph.Duration)
}

func (m *Monitor) beginPhase() {
	m.from = make(map[gainKey]float64, len(m.gains))
	for k, v := range m.gains {
		m.from[k] = v
	}
	for _, a := range m.plan.Phases[m.phase].Actions {
		m.mixer.SetFilter(a.Deck, a.Stem, a.Filter)
	}
}

func (m *Monitor) applyPhase(progress float64) {
	for _, a := range m.plan.Phases[m.phase].Actions {
		k := gainKey{a.Deck, a.Stem}
		g := a.Volume
		if progress < 1 {
			g = common.Lerp(m.from[k], a.Volume, a.Curve.At(progress))
		}
		m.gains[k] = g
		m.mixer.SetGain(a.Deck, a.Stem, g)
	}
}

func (m *Monitor) complete(now time.Time, pb Playback) {
	plan := m.plan
	m.logger.Info("transition completed", logging.Fields{"plan_id": plan.ID, "style": plan.Style})
	m.publish(Event{Type: EventCompleted, PlanID: plan.ID, Style: plan.Style, Position: pb.Position, At: now})
	handedOver := m.pairA
	m.reset()
	m.handedOver = handedOver
}

func (m *Monitor) reset() {
	m.state = StateIdle
	m.plan = nil
	m.points = nil
	m.target = 0
	m.pairA, m.pairB = "", ""
	m.requested, m.quick = false, false
	m.gains, m.from = nil, nil
	m.phase = 0
}

func (m *Monitor) publish(e Event) {
	m.events.Publish(e)
}

// deckBStart is where deck B must start so that the plan's entry point is
// reached when the plan ends, snapped to a downbeat of B when B is known.
func (m *Monitor) deckBStart(next *analysis.TrackAnalysis, plan *Plan) float64 {
	start := plan.EntryPoint - plan.Duration
	if next != nil {
		if db, ok := next.NearestDownbeat(start); ok {
			start = db
		}
	}
	return max(0, start)
}

// EntryPoint is the musically aligned position in b to reach at the end of
// a transition: the first beat of the vocals, the first vocal section, or
// an estimated entry fallbackBars bars in.
func EntryPoint(b *analysis.TrackAnalysis, fallbackBars int) float64 {
	if first, ok := b.Vocals.FirstStart(); ok {
		if beat, ok := b.FirstBeatAtOrAfter(first); ok {
			return beat.Time
		}
		return first
	}
	beats := fallbackBars * beatsPerBar
	if beats < len(b.Tempo.BeatGrid) {
		return b.Tempo.BeatGrid[beats].Time
	}
	if b.BPM() > 0 {
		return float64(beats) * 60 / b.BPM()
	}
	return 0
}

type candidate struct {
	time float64
	rank float64
}

// pickPoint chooses the best transition point ahead of the playhead within
// lookahead seconds that leaves room for the plan. Phrase points, the ranked
// transition points and exit cues all compete; they are ranked by score,
// discounted by distance.
func pickPoint(a *analysis.TrackAnalysis, phrases []analysis.TransitionPoint, pb Playback, lookahead, duration float64) (float64, bool) {
	var cands []candidate
	consider := func(t, score float64) {
		dist := t - pb.Position
		if dist < 0 || dist > lookahead || t+duration > pb.Duration {
			return
		}
		cands = append(cands, candidate{time: t, rank: score * (1 - 0.5*dist/lookahead)})
	}
	for _, p := range phrases {
		consider(p.Time, p.Score)
	}
	for _, p := range a.TransitionPoints {
		consider(p.Time, p.Score)
	}
	for _, c := range a.Cues {
		switch c.Type {
		case analysis.CueVocalOut, analysis.CueOutro, analysis.CueBreakdown, analysis.CueEnergyDown:
			consider(c.Time, float64(c.Priority)/10)
		}
	}
	if len(cands) == 0 {
		return 0, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank > cands[j].rank
		}
		return cands[i].time < cands[j].time
	})
	return cands[0].time, true
}

func missingID(pb Playback, curOK bool) string {
	if !curOK {
		return pb.CurrentID
	}
	return pb.NextID
}

// IsConcurrencyViolation reports whether err came from starting a second
// transition.
func IsConcurrencyViolation(err error) bool {
	return errors.Is(err, analysis.ErrConcurrencyViolation)
}
