package analysis

import (
	"fmt"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/algorithms/spectral"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// WaveformGenerator builds the three-band overview shown by track displays.
type WaveformGenerator struct {
	cfg    config.WaveformConfig
	stft   *spectral.STFT
	logger logging.Logger
}

// NewWaveformGenerator creates a generator from the waveform settings.
func NewWaveformGenerator(cfg config.WaveformConfig) *WaveformGenerator {
	return &WaveformGenerator{
		cfg:    cfg,
		stft:   spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{"component": "waveform_generator"}),
	}
}

// Generate mixes the analysable stems down and returns about Points frames
// of bass, mid and treble magnitude. Without a usable mix the waveform is
// empty and Reason says why.
func (wg *WaveformGenerator) Generate(set *stems.StemSet) Waveform {
	mix, sampleRate := mixdown(set)
	if len(mix) == 0 {
		return emptyWaveform(fmt.Errorf("waveform: %w", ErrMissingInput))
	}

	hop := max(1, len(mix)/max(1, wg.cfg.Points))
	r, err := wg.stft.Compute(mix, wg.cfg.FFTSize, hop, sampleRate)
	if err != nil {
		return emptyWaveform(fmt.Errorf("waveform: %v: %w", err, ErrDegenerateSignal))
	}

	bassEnd := min(r.FreqBins, int(wg.cfg.BassMaxHz/r.FreqResolution)+1)
	midEnd := min(r.FreqBins, int(wg.cfg.MidMaxHz/r.FreqResolution)+1)

	w := Waveform{
		Times:  make([]float64, r.TimeFrames),
		Bass:   make([]float64, r.TimeFrames),
		Mid:    make([]float64, r.TimeFrames),
		Treble: make([]float64, r.TimeFrames),
	}
	peak := 0.0
	for i, spectrum := range r.Magnitude {
		w.Times[i] = r.FrameTime(i)
		w.Bass[i] = bandMean(spectrum, 0, bassEnd)
		w.Mid[i] = bandMean(spectrum, bassEnd, midEnd)
		w.Treble[i] = bandMean(spectrum, midEnd, len(spectrum))
		peak = max(peak, w.Bass[i], w.Mid[i], w.Treble[i])
	}
	if peak > 0 {
		for i := range w.Times {
			w.Bass[i] /= peak
			w.Mid[i] /= peak
			w.Treble[i] /= peak
		}
	}

	wg.logger.Debug("waveform generated", logging.Fields{"points": len(w.Times), "hop": hop})
	return w
}

func bandMean(spectrum []float64, lo, hi int) float64 {
	hi = min(hi, len(spectrum))
	if lo >= hi {
		return 0
	}
	return common.Mean(spectrum[lo:hi])
}

// mixdown sums the analysable stems that share the first stem's sample rate.
func mixdown(set *stems.StemSet) ([]float64, int) {
	var mix []float64
	sampleRate := 0
	for _, name := range set.Present() {
		s, _ := set.Get(name)
		if sampleRate == 0 {
			sampleRate = s.SampleRate
		}
		if s.SampleRate != sampleRate {
			continue
		}
		if len(s.Samples) > len(mix) {
			mix = append(mix, make([]float64, len(s.Samples)-len(mix))...)
		}
		for i, v := range s.Samples {
			mix[i] += v
		}
	}
	return mix, sampleRate
}

func emptyWaveform(err error) Waveform {
	return Waveform{
		Times:  []float64{},
		Bass:   []float64{},
		Mid:    []float64{},
		Treble: []float64{},
		Reason: reason(err),
	}
}
