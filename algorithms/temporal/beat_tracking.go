package temporal

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
)

// Beat is one tracked beat.
type Beat struct {
	Time       float64 `json:"time"`
	Confidence float64 `json:"confidence"`
	Snapped    bool    `json:"snapped"`
}

// BeatTracker lays a fixed-interval grid over a signal and pulls each
// predicted beat onto the nearest detected onset.
type BeatTracker struct {
	// SnapTolerance is the fraction of the beat interval within which an
	// onset may move a predicted beat.
	SnapTolerance float64
	// UnsnappedConfidence is assigned to beats with no nearby onset.
	UnsnappedConfidence float64
}

// NewBeatTracker creates a beat tracker with a 30% snap window
func NewBeatTracker() *BeatTracker {
	return &BeatTracker{
		SnapTolerance:       0.3,
		UnsnappedConfidence: 0.4,
	}
}

// Track returns beats from the first onset's phase to duration. onsets must
// be ascending. Beat times are strictly increasing.
func (bt *BeatTracker) Track(bpm float64, onsets []float64, duration float64) []Beat {
	if bpm <= 0 || duration <= 0 {
		return []Beat{}
	}
	interval := 60.0 / bpm
	tolerance := bt.SnapTolerance * interval

	phase := 0.0
	if len(onsets) > 0 {
		phase = math.Mod(onsets[0], interval)
	}

	beats := make([]Beat, 0, int(duration/interval)+1)
	for k := 0; ; k++ {
		predicted := phase + float64(k)*interval
		if predicted >= duration {
			break
		}

		beat := Beat{Time: predicted, Confidence: bt.UnsnappedConfidence}
		if onset, ok := nearest(onsets, predicted); ok {
			if d := math.Abs(onset - predicted); d <= tolerance {
				beat.Time = onset
				beat.Snapped = true
				if tolerance > 0 {
					beat.Confidence = 1 - 0.5*d/tolerance
				} else {
					beat.Confidence = 1
				}
			}
		}
		if n := len(beats); n > 0 && beat.Time <= beats[n-1].Time {
			continue
		}
		if beat.Time < 0 || beat.Time >= duration {
			continue
		}
		beats = append(beats, beat)
	}
	return beats
}

// nearest returns the element of sorted closest to t.
func nearest(sorted []float64, t float64) (float64, bool) {
	if len(sorted) == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(sorted, t)
	switch {
	case i == 0:
		return sorted[0], true
	case i == len(sorted):
		return sorted[len(sorted)-1], true
	}
	if t-sorted[i-1] <= sorted[i]-t {
		return sorted[i-1], true
	}
	return sorted[i], true
}

// TempoStability is 1 - (std/mean) of inter-beat intervals, clamped to [0,1].
func TempoStability(beats []Beat) float64 {
	if len(beats) < 3 {
		return 0
	}
	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = beats[i].Time - beats[i-1].Time
	}
	mean := common.Mean(intervals)
	if mean <= 0 {
		return 0
	}
	return common.Clamp01(1 - common.StandardDeviation(intervals)/mean)
}
