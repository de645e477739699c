package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
)

// envelopeRate is the target frame rate of tempo envelopes (frames/s).
const envelopeRate = 86.0

// TempoBand is a BPM search range.
type TempoBand struct {
	MinBPM float64 `json:"min_bpm" toml:"min_bpm"`
	MaxBPM float64 `json:"max_bpm" toml:"max_bpm"`
}

// DefaultTempoBands are the overlapping ranges searched independently.
func DefaultTempoBands() []TempoBand {
	return []TempoBand{
		{MinBPM: 60, MaxBPM: 90},
		{MinBPM: 85, MaxBPM: 115},
		{MinBPM: 110, MaxBPM: 140},
		{MinBPM: 135, MaxBPM: 180},
	}
}

// TempoCandidate is one tempo hypothesis.
type TempoCandidate struct {
	BPM        float64 `json:"bpm"`
	Confidence float64 `json:"confidence"`
	Band       int     `json:"band"`
}

// TempoEstimation estimates tempo by autocorrelating an onset envelope
// separately inside each BPM band.
type TempoEstimation struct {
	envelopeExtractor *Envelope

	Bands []TempoBand
	// Candidates related by an octave resolve toward this range.
	PreferredMinBPM float64
	PreferredMaxBPM float64
	// An octave candidate replaces the winner only when its confidence is at
	// least this fraction of the winner's.
	OctaveConfidenceRatio float64
	// Two estimates within this many BPM count as agreeing.
	AgreementTolerance float64
	// Relative tolerance when testing for a 2:1 ratio.
	OctaveTolerance float64
}

// NewTempoEstimation creates a tempo estimator with default bands
func NewTempoEstimation() *TempoEstimation {
	return &TempoEstimation{
		envelopeExtractor:     NewEnvelope(),
		Bands:                 DefaultTempoBands(),
		PreferredMinBPM:       85,
		PreferredMaxBPM:       150,
		OctaveConfidenceRatio: 0.5,
		AgreementTolerance:    2.0,
		OctaveTolerance:       0.03,
	}
}

// EnvelopeHop returns the hop in samples used for tempo envelopes.
func EnvelopeHop(sampleRate int) int {
	return max(1, int(math.Round(float64(sampleRate)/envelopeRate)))
}

// ImpulseEnvelope averages an already transient-emphasised signal into
// ~86 frames/s and lightly smooths it. Returns the envelope and its rate.
func (te *TempoEstimation) ImpulseEnvelope(signal []float64, sampleRate int) ([]float64, float64) {
	if len(signal) == 0 || sampleRate <= 0 {
		return []float64{}, 0
	}
	hop := EnvelopeHop(sampleRate)
	env := te.envelopeExtractor.ComputeMeanAbs(signal, hop, hop)
	return te.envelopeExtractor.ComputeSmoothed(env, 3), float64(sampleRate) / float64(hop)
}

// NoveltyEnvelope is the half-wave rectified difference of a short-time RMS
// envelope, for stems without sharp transients.
func (te *TempoEstimation) NoveltyEnvelope(signal []float64, sampleRate int) ([]float64, float64) {
	if len(signal) == 0 || sampleRate <= 0 {
		return []float64{}, 0
	}
	hop := EnvelopeHop(sampleRate)
	rms := te.envelopeExtractor.ComputeRMS(signal, hop*2, hop)
	if len(rms) < 2 {
		return []float64{}, 0
	}
	novelty := make([]float64, len(rms))
	for i := 1; i < len(rms); i++ {
		if d := rms[i] - rms[i-1]; d > 0 {
			novelty[i] = d
		}
	}
	return te.envelopeExtractor.ComputeSmoothed(novelty, 3), float64(sampleRate) / float64(hop)
}

// EstimateBand searches one band. Confidence is the normalized
// autocorrelation at the chosen lag, clamped to [0, 1]; it is 0 when no
// local maximum exists inside the band.
func (te *TempoEstimation) EstimateBand(envelope []float64, frameRate float64, band TempoBand) TempoCandidate {
	if len(envelope) < 4 || frameRate <= 0 || band.MinBPM <= 0 || band.MaxBPM <= band.MinBPM {
		return TempoCandidate{}
	}

	minLag := max(1, int(math.Floor(60*frameRate/band.MaxBPM)))
	maxLag := int(math.Ceil(60 * frameRate / band.MinBPM))
	if maxLag+1 >= len(envelope)-2 {
		return TempoCandidate{}
	}

	// one extra lag on each side so edge lags can be tested as maxima
	acf := make([]float64, maxLag+2)
	for lag := max(1, minLag-1); lag <= maxLag+1; lag++ {
		acf[lag] = common.Correlation(envelope[:len(envelope)-lag], envelope[lag:])
	}

	bestLag := -1
	for lag := max(2, minLag); lag <= maxLag; lag++ {
		if acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] {
			if bestLag < 0 || acf[lag] > acf[bestLag] {
				bestLag = lag
			}
		}
	}
	if bestLag < 0 || acf[bestLag] <= 0 {
		return TempoCandidate{}
	}

	refined := float64(bestLag) + common.ParabolicPeak(acf, bestLag)
	bpm := common.Clamp(60*frameRate/refined, band.MinBPM, band.MaxBPM)
	return TempoCandidate{
		BPM:        bpm,
		Confidence: common.Clamp01(acf[bestLag]),
	}
}

// Estimate runs every band and resolves the winner. ok is false when no
// band produced a positive correlation.
func (te *TempoEstimation) Estimate(envelope []float64, frameRate float64) (TempoCandidate, []TempoCandidate, bool) {
	candidates := make([]TempoCandidate, 0, len(te.Bands))
	for i, band := range te.Bands {
		c := te.EstimateBand(envelope, frameRate, band)
		c.Band = i
		candidates = append(candidates, c)
	}

	best := -1
	for i, c := range candidates {
		if c.Confidence > 0 && (best < 0 || c.Confidence > candidates[best].Confidence) {
			best = i
		}
	}
	if best < 0 {
		return TempoCandidate{}, candidates, false
	}

	winner := candidates[best]
	if !te.preferred(winner.BPM) {
		for _, c := range candidates {
			if c.Confidence >= te.OctaveConfidenceRatio*winner.Confidence &&
				te.IsOctave(c.BPM, winner.BPM) && te.preferred(c.BPM) {
				winner = c
				break
			}
		}
	}
	return winner, candidates, true
}

// CrossValidate merges a primary and a secondary estimate.
//   - half/double relation: the one in the preferred range wins
//   - agreement within tolerance: BPMs averaged, confidences combined
//   - otherwise the more confident estimate
func (te *TempoEstimation) CrossValidate(primary, secondary TempoCandidate) TempoCandidate {
	if secondary.Confidence <= 0 || secondary.BPM <= 0 {
		return primary
	}
	if primary.Confidence <= 0 || primary.BPM <= 0 {
		return secondary
	}

	if math.Abs(primary.BPM-secondary.BPM) <= te.AgreementTolerance {
		return TempoCandidate{
			BPM:        (primary.BPM + secondary.BPM) / 2,
			Confidence: 1 - (1-primary.Confidence)*(1-secondary.Confidence),
			Band:       primary.Band,
		}
	}

	if te.IsOctave(primary.BPM, secondary.BPM) {
		conf := max(primary.Confidence, secondary.Confidence)
		pick := primary
		if te.preferred(secondary.BPM) && !te.preferred(primary.BPM) {
			pick = secondary
		}
		pick.Confidence = conf
		return pick
	}

	if secondary.Confidence > primary.Confidence {
		return secondary
	}
	return primary
}

// IsOctave reports whether a and b are in a 2:1 ratio within tolerance.
func (te *TempoEstimation) IsOctave(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	ratio := max(a, b) / min(a, b)
	return math.Abs(ratio-2) <= 2*te.OctaveTolerance
}

func (te *TempoEstimation) preferred(bpm float64) bool {
	return bpm >= te.PreferredMinBPM && bpm <= te.PreferredMaxBPM
}
