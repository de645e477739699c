package temporal

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-mix/algorithms/filters"
)

// clickTrain places a short decaying 1 kHz burst on every beat starting at offset.
func clickTrain(bpm float64, sampleRate int, seconds, offset float64) ([]float64, []float64) {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	interval := 60.0 / bpm
	var times []float64
	for t := offset; t < seconds; t += interval {
		times = append(times, t)
		start := int(t * float64(sampleRate))
		for i := 0; i < 200 && start+i < n; i++ {
			tt := float64(i) / float64(sampleRate)
			out[start+i] += 0.8 * math.Sin(2*math.Pi*1000*tt) * math.Exp(-tt/0.005)
		}
	}
	return out, times
}

func TestComputeBlocksCoversSignal(t *testing.T) {
	signal := make([]float64, 1000) // 10 s at 100 Hz
	blocks := NewEnvelope().ComputeBlocks(signal, 100, 4, func(x []float64) float64 { return float64(len(x)) })
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	if blocks[2].Start != 8 || blocks[2].End != 10 || blocks[2].Value != 200 {
		t.Errorf("last block = %+v", blocks[2])
	}
}

func TestDetectActivity(t *testing.T) {
	const sr = 8000
	signal := make([]float64, 8*sr)
	for i := 2 * sr; i < 5*sr; i++ {
		signal[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/sr)
	}
	// 200 ms blip, too short to survive
	for i := 6 * sr; i < 6*sr+sr/5; i++ {
		signal[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/sr)
	}

	regions := NewActivityDetection().DetectActivity(signal, sr, 0.5, 0.25, 0.02, 1.0)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1: %+v", len(regions), regions)
	}
	r := regions[0]
	if r.Start < 1.5 || r.Start > 2.0 {
		t.Errorf("Start = %v, want ~1.75", r.Start)
	}
	if r.End < 5.0 || r.End > 5.6 {
		t.Errorf("End = %v, want ~5.5", r.End)
	}
	if math.Abs(r.PeakRMS-0.3/math.Sqrt2) > 0.02 {
		t.Errorf("PeakRMS = %v, want ~0.212", r.PeakRMS)
	}
}

func TestDetectActivitySilence(t *testing.T) {
	regions := NewActivityDetection().DetectActivity(make([]float64, 8000), 8000, 0.5, 0.25, 0.02, 1.0)
	if len(regions) != 0 {
		t.Errorf("silence produced %d regions", len(regions))
	}
}

func TestTempoEstimateClickTrain(t *testing.T) {
	const sr = 11025
	clicks, _ := clickTrain(120, sr, 30, 0.1)
	emphasised := filters.TransientEmphasis(clicks, sr, 100, 0.001)

	te := NewTempoEstimation()
	env, rate := te.ImpulseEnvelope(emphasised, sr)
	got, candidates, ok := te.Estimate(env, rate)
	if !ok {
		t.Fatalf("no tempo found, candidates %+v", candidates)
	}
	if math.Abs(got.BPM-120) > 4 {
		t.Errorf("BPM = %v, want ~120 (candidates %+v)", got.BPM, candidates)
	}
	if got.Confidence < 0 || got.Confidence > 1 {
		t.Errorf("Confidence = %v, want within [0,1]", got.Confidence)
	}
}

func TestTempoEstimateSilence(t *testing.T) {
	te := NewTempoEstimation()
	env, rate := te.ImpulseEnvelope(make([]float64, 11025*10), 11025)
	if _, _, ok := te.Estimate(env, rate); ok {
		t.Errorf("silence produced a tempo")
	}
}

func TestCrossValidate(t *testing.T) {
	te := NewTempoEstimation()
	tests := []struct {
		name      string
		primary   TempoCandidate
		secondary TempoCandidate
		wantBPM   float64
	}{
		{"agree averages", TempoCandidate{BPM: 124, Confidence: 0.6}, TempoCandidate{BPM: 125, Confidence: 0.5}, 124.5},
		{"double resolves to base", TempoCandidate{BPM: 64, Confidence: 0.8}, TempoCandidate{BPM: 128, Confidence: 0.4}, 128},
		{"half keeps base", TempoCandidate{BPM: 128, Confidence: 0.4}, TempoCandidate{BPM: 64, Confidence: 0.9}, 128},
		{"disagree picks confident", TempoCandidate{BPM: 100, Confidence: 0.3}, TempoCandidate{BPM: 140, Confidence: 0.7}, 140},
		{"missing secondary", TempoCandidate{BPM: 100, Confidence: 0.3}, TempoCandidate{}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := te.CrossValidate(tt.primary, tt.secondary)
			if math.Abs(got.BPM-tt.wantBPM) > 1e-9 {
				t.Errorf("BPM = %v, want %v", got.BPM, tt.wantBPM)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %v out of range", got.Confidence)
			}
		})
	}
}

func TestOnsetTimesFollowClicks(t *testing.T) {
	const sr = 11025
	clicks, times := clickTrain(120, sr, 6, 0.25)
	onsets := NewOnsetDetection().OnsetTimes(clicks, sr)
	if len(onsets) == 0 {
		t.Fatal("no onsets detected")
	}
	for _, want := range times[1 : len(times)-1] {
		found := false
		for _, o := range onsets {
			if math.Abs(o-want) <= 0.05 {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no onset near click at %.3f (onsets %v)", want, onsets)
		}
	}
}

func TestBeatTrackerSnapsAndOrders(t *testing.T) {
	bt := NewBeatTracker()
	onsets := []float64{0.2, 0.71, 1.19, 1.72}
	beats := bt.Track(120, onsets, 3.0)
	if len(beats) != 6 {
		t.Fatalf("got %d beats, want 6", len(beats))
	}
	if beats[1].Time != 0.71 || !beats[1].Snapped {
		t.Errorf("beat 1 = %+v, want snapped to 0.71", beats[1])
	}
	if beats[4].Snapped {
		t.Errorf("beat 4 = %+v, want unsnapped", beats[4])
	}
	for i := 1; i < len(beats); i++ {
		if beats[i].Time <= beats[i-1].Time {
			t.Fatalf("beats not increasing at %d", i)
		}
	}
}

func TestTempoStability(t *testing.T) {
	steady := []Beat{{Time: 0}, {Time: 0.5}, {Time: 1.0}, {Time: 1.5}}
	if got := TempoStability(steady); math.Abs(got-1) > 1e-9 {
		t.Errorf("steady stability = %v, want 1", got)
	}

	// intervals alternate 0.4 / 0.6: sample std 0.11547 over mean 0.5
	jittered := []Beat{{Time: 0}, {Time: 0.4}, {Time: 1.0}, {Time: 1.4}, {Time: 2.0}}
	if got := TempoStability(jittered); math.Abs(got-0.769059) > 1e-5 {
		t.Errorf("jittered stability = %v, want 0.769059", got)
	}

	if got := TempoStability(steady[:2]); got != 0 {
		t.Errorf("two-beat stability = %v, want 0", got)
	}
}
