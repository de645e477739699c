// Package config holds every tunable threshold of the analysis, planning
// and monitoring stages, loaded from TOML with defaults as fallback.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Band is a BPM search range.
type Band struct {
	MinBPM float64 `toml:"min_bpm" json:"min_bpm"`
	MaxBPM float64 `toml:"max_bpm" json:"max_bpm"`
}

// TempoConfig tunes beat and tempo analysis.
type TempoConfig struct {
	Bands                 []Band  `toml:"bands" json:"bands"`
	DefaultBPM            float64 `toml:"default_bpm" json:"default_bpm"`
	FallbackConfidence    float64 `toml:"fallback_confidence" json:"fallback_confidence"`
	PreferredMinBPM       float64 `toml:"preferred_min_bpm" json:"preferred_min_bpm"`
	PreferredMaxBPM       float64 `toml:"preferred_max_bpm" json:"preferred_max_bpm"`
	OctaveConfidenceRatio float64 `toml:"octave_confidence_ratio" json:"octave_confidence_ratio"`
	AgreementTolerance    float64 `toml:"agreement_tolerance" json:"agreement_tolerance"`
	SnapTolerance         float64 `toml:"snap_tolerance" json:"snap_tolerance"` // fraction of a beat
	TransientCutoffHz     float64 `toml:"transient_cutoff_hz" json:"transient_cutoff_hz"`
	TransientNoiseFloor   float64 `toml:"transient_noise_floor" json:"transient_noise_floor"`
	OnsetSensitivity      float64 `toml:"onset_sensitivity" json:"onset_sensitivity"`
	BeatsPerBar           int     `toml:"beats_per_bar" json:"beats_per_bar"`
	BeatsPerPhrase        int     `toml:"beats_per_phrase" json:"beats_per_phrase"`
	BeatsPerSection       int     `toml:"beats_per_section" json:"beats_per_section"`
}

// KeyConfig tunes chroma extraction and key detection.
type KeyConfig struct {
	TuningFreq         float64 `toml:"tuning_freq" json:"tuning_freq"`
	MinFreq            float64 `toml:"min_freq" json:"min_freq"`
	MaxFreq            float64 `toml:"max_freq" json:"max_freq"`
	MaxFrames          int     `toml:"max_frames" json:"max_frames"`
	FifthBoost         float64 `toml:"fifth_boost" json:"fifth_boost"`
	ThirdBoost         float64 `toml:"third_boost" json:"third_boost"`
	FallbackConfidence float64 `toml:"fallback_confidence" json:"fallback_confidence"`
}

// StructureConfig tunes section segmentation.
type StructureConfig struct {
	EnergyWindow      float64 `toml:"energy_window" json:"energy_window"` // seconds
	VocalWindow       float64 `toml:"vocal_window" json:"vocal_window"`   // seconds
	BoundaryThreshold float64 `toml:"boundary_threshold" json:"boundary_threshold"`
	MinSectionSeconds float64 `toml:"min_section_seconds" json:"min_section_seconds"`
	SnapWindow        float64 `toml:"snap_window" json:"snap_window"` // seconds
	HighEnergy        float64 `toml:"high_energy" json:"high_energy"`
	LowEnergy         float64 `toml:"low_energy" json:"low_energy"`
	VocalActivity     float64 `toml:"vocal_activity" json:"vocal_activity"`
}

// VocalConfig tunes vocal activity detection.
type VocalConfig struct {
	Window      float64 `toml:"window" json:"window"`
	Hop         float64 `toml:"hop" json:"hop"`
	Threshold   float64 `toml:"threshold" json:"threshold"`
	MinDuration float64 `toml:"min_duration" json:"min_duration"`
	LeadPeak    float64 `toml:"lead_peak" json:"lead_peak"`
	BackingPeak float64 `toml:"backing_peak" json:"backing_peak"`
}

// EnergyConfig tunes the energy profile.
type EnergyConfig struct {
	Window       float64 `toml:"window" json:"window"`
	MinimalMax   float64 `toml:"minimal_max" json:"minimal_max"`
	LowMax       float64 `toml:"low_max" json:"low_max"`
	MediumMax    float64 `toml:"medium_max" json:"medium_max"`
	ReferenceRMS float64 `toml:"reference_rms" json:"reference_rms"`
}

// WaveformConfig shapes the three-band overview waveform.
type WaveformConfig struct {
	Points    int     `toml:"points" json:"points"`
	FFTSize   int     `toml:"fft_size" json:"fft_size"`
	BassMaxHz float64 `toml:"bass_max_hz" json:"bass_max_hz"`
	MidMaxHz  float64 `toml:"mid_max_hz" json:"mid_max_hz"`
}

// CueConfig tunes cue synthesis and mix points.
type CueConfig struct {
	MinSpacing            float64 `toml:"min_spacing" json:"min_spacing"`
	VeryHighPriority      int     `toml:"very_high_priority" json:"very_high_priority"`
	MinTail               float64 `toml:"min_tail" json:"min_tail"`
	FallbackOutroOffset   float64 `toml:"fallback_outro_offset" json:"fallback_outro_offset"`
	EnergyChangeThreshold float64 `toml:"energy_change_threshold" json:"energy_change_threshold"`
	MaxTransitionPoints   int     `toml:"max_transition_points" json:"max_transition_points"`
}

// AnalysisConfig groups the per-stage settings.
type AnalysisConfig struct {
	Tempo     TempoConfig     `toml:"tempo" json:"tempo"`
	Key       KeyConfig       `toml:"key" json:"key"`
	Structure StructureConfig `toml:"structure" json:"structure"`
	Vocal     VocalConfig     `toml:"vocal" json:"vocal"`
	Energy    EnergyConfig    `toml:"energy" json:"energy"`
	Cues      CueConfig       `toml:"cues" json:"cues"`
	Waveform  WaveformConfig  `toml:"waveform" json:"waveform"`
}

// PlannerConfig holds the style decision table and plan acceptance rules.
type PlannerConfig struct {
	QuickCutBPMDelta        float64 `toml:"quick_cut_bpm_delta" json:"quick_cut_bpm_delta"`
	MinKeyCompatibility     float64 `toml:"min_key_compatibility" json:"min_key_compatibility"`
	HighEnergyDelta         float64 `toml:"high_energy_delta" json:"high_energy_delta"`
	RollingBPMDelta         float64 `toml:"rolling_bpm_delta" json:"rolling_bpm_delta"`
	RollingKeyCompatibility float64 `toml:"rolling_key_compatibility" json:"rolling_key_compatibility"`
	VocalLookahead          float64 `toml:"vocal_lookahead" json:"vocal_lookahead"`
	MinSuccessProbability   float64 `toml:"min_success_probability" json:"min_success_probability"`
	FallbackDuration        float64 `toml:"fallback_duration" json:"fallback_duration"`
	NaturalSyncBPM          float64 `toml:"natural_sync_bpm" json:"natural_sync_bpm"`
	StretchSyncBPM          float64 `toml:"stretch_sync_bpm" json:"stretch_sync_bpm"`
	MaxStretch              float64 `toml:"max_stretch" json:"max_stretch"`
	// EntryFallbackBars is how far into B the entry lands when B has no
	// vocals to line up with.
	EntryFallbackBars int `toml:"entry_fallback_bars" json:"entry_fallback_bars"`
}

// MonitorConfig holds the playback monitor timing, in seconds.
type MonitorConfig struct {
	TickInterval       float64 `toml:"tick_interval" json:"tick_interval"`
	ScanInterval       float64 `toml:"scan_interval" json:"scan_interval"`
	TransitionWindow   float64 `toml:"transition_window" json:"transition_window"`
	LookAhead          float64 `toml:"look_ahead" json:"look_ahead"`
	QuickLookAhead     float64 `toml:"quick_look_ahead" json:"quick_look_ahead"`
	ArmEarly           float64 `toml:"arm_early" json:"arm_early"`
	ArmLate            float64 `toml:"arm_late" json:"arm_late"`
	EmergencyRemaining float64 `toml:"emergency_remaining" json:"emergency_remaining"`
}

// CacheConfig sizes the analysis cache and its optional database.
type CacheConfig struct {
	Size         int    `toml:"size" json:"size"`
	DatabasePath string `toml:"database_path" json:"database_path"`
}

// Config is the whole engine configuration.
type Config struct {
	LogLevel string         `toml:"log_level" json:"log_level"`
	Analysis AnalysisConfig `toml:"analysis" json:"analysis"`
	Planner  PlannerConfig  `toml:"planner" json:"planner"`
	Monitor  MonitorConfig  `toml:"monitor" json:"monitor"`
	Cache    CacheConfig    `toml:"cache" json:"cache"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Analysis: AnalysisConfig{
			Tempo: TempoConfig{
				Bands: []Band{
					{MinBPM: 60, MaxBPM: 90},
					{MinBPM: 85, MaxBPM: 115},
					{MinBPM: 110, MaxBPM: 140},
					{MinBPM: 135, MaxBPM: 180},
				},
				DefaultBPM:            120,
				FallbackConfidence:    0.3,
				PreferredMinBPM:       85,
				PreferredMaxBPM:       150,
				OctaveConfidenceRatio: 0.5,
				AgreementTolerance:    2,
				SnapTolerance:         0.3,
				TransientCutoffHz:     100,
				TransientNoiseFloor:   0.001,
				OnsetSensitivity:      0.5,
				BeatsPerBar:           4,
				BeatsPerPhrase:        32,
				BeatsPerSection:       128,
			},
			Key: KeyConfig{
				TuningFreq:         440,
				MinFreq:            55,
				MaxFreq:            4000,
				MaxFrames:          256,
				FifthBoost:         0.3,
				ThirdBoost:         0.15,
				FallbackConfidence: 0.2,
			},
			Structure: StructureConfig{
				EnergyWindow:      4,
				VocalWindow:       2,
				BoundaryThreshold: 0.25,
				MinSectionSeconds: 8,
				SnapWindow:        4,
				HighEnergy:        0.6,
				LowEnergy:         0.35,
				VocalActivity:     0.01,
			},
			Vocal: VocalConfig{
				Window:      0.5,
				Hop:         0.25,
				Threshold:   0.02,
				MinDuration: 1.0,
				LeadPeak:    0.1,
				BackingPeak: 0.05,
			},
			Energy: EnergyConfig{
				Window:       2,
				MinimalMax:   0.02,
				LowMax:       0.05,
				MediumMax:    0.12,
				ReferenceRMS: 0.25,
			},
			Cues: CueConfig{
				MinSpacing:            4,
				VeryHighPriority:      10,
				MinTail:               12,
				FallbackOutroOffset:   30,
				EnergyChangeThreshold: 0.3,
				MaxTransitionPoints:   8,
			},
			Waveform: WaveformConfig{
				Points:    2000,
				FFTSize:   2048,
				BassMaxHz: 250,
				MidMaxHz:  4000,
			},
		},
		Planner: PlannerConfig{
			QuickCutBPMDelta:        15,
			MinKeyCompatibility:     0.3,
			HighEnergyDelta:         0.4,
			RollingBPMDelta:         3,
			RollingKeyCompatibility: 0.8,
			VocalLookahead:          30,
			MinSuccessProbability:   0.3,
			FallbackDuration:        8,
			NaturalSyncBPM:          2,
			StretchSyncBPM:          6,
			MaxStretch:              0.06,
			EntryFallbackBars:       8,
		},
		Monitor: MonitorConfig{
			TickInterval:       1.0,
			ScanInterval:       0.5,
			TransitionWindow:   60,
			LookAhead:          16,
			QuickLookAhead:     4,
			ArmEarly:           0.5,
			ArmLate:            0.1,
			EmergencyRemaining: 8,
		},
		Cache: CacheConfig{
			Size: 256,
		},
	}
}

// GetConfigPath returns the default config file path.
// First tries the current directory, then ~/.config/sonido-mix/config.toml
func GetConfigPath() string {
	if _, err := os.Stat("./sonido-mix.toml"); err == nil {
		return "./sonido-mix.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./sonido-mix.toml"
	}
	return filepath.Join(home, ".config", "sonido-mix", "config.toml")
}

// LoadConfig loads configuration from a TOML file. Keys present in the file
// override the defaults; a missing file yields the defaults without error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as TOML, creating the directory.
func SaveConfig(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects values the analysers cannot work with.
func (c Config) Validate() error {
	t := c.Analysis.Tempo
	if len(t.Bands) == 0 {
		return fmt.Errorf("tempo: at least one band required")
	}
	for i, b := range t.Bands {
		if b.MinBPM <= 0 || b.MaxBPM <= b.MinBPM {
			return fmt.Errorf("tempo: band %d has invalid range %.1f-%.1f", i, b.MinBPM, b.MaxBPM)
		}
	}
	if t.DefaultBPM <= 0 {
		return fmt.Errorf("tempo: default_bpm must be positive")
	}
	if t.BeatsPerBar <= 0 || t.BeatsPerPhrase <= 0 || t.BeatsPerSection <= 0 {
		return fmt.Errorf("tempo: beat grouping must be positive")
	}
	if !unit(t.SnapTolerance) || !unit(t.FallbackConfidence) {
		return fmt.Errorf("tempo: snap_tolerance and fallback_confidence must be in [0,1]")
	}

	k := c.Analysis.Key
	if k.MinFreq <= 0 || k.MaxFreq <= k.MinFreq || k.TuningFreq <= 0 {
		return fmt.Errorf("key: invalid frequency range")
	}

	s := c.Analysis.Structure
	if s.EnergyWindow <= 0 || s.VocalWindow <= 0 {
		return fmt.Errorf("structure: windows must be positive")
	}
	if s.LowEnergy > s.HighEnergy {
		return fmt.Errorf("structure: low_energy above high_energy")
	}

	v := c.Analysis.Vocal
	if v.Window <= 0 || v.Hop <= 0 || v.Hop > v.Window {
		return fmt.Errorf("vocal: need 0 < hop <= window")
	}

	e := c.Analysis.Energy
	if e.Window <= 0 || e.ReferenceRMS <= 0 {
		return fmt.Errorf("energy: window and reference_rms must be positive")
	}
	if !(e.MinimalMax <= e.LowMax && e.LowMax <= e.MediumMax) {
		return fmt.Errorf("energy: level thresholds must be ascending")
	}

	w := c.Analysis.Waveform
	if w.Points <= 0 || w.FFTSize <= 0 {
		return fmt.Errorf("waveform: points and fft_size must be positive")
	}
	if w.BassMaxHz <= 0 || w.MidMaxHz <= w.BassMaxHz {
		return fmt.Errorf("waveform: need 0 < bass_max_hz < mid_max_hz")
	}

	p := c.Planner
	if !unit(p.MinSuccessProbability) || !unit(p.MinKeyCompatibility) || !unit(p.RollingKeyCompatibility) {
		return fmt.Errorf("planner: probability thresholds must be in [0,1]")
	}
	if p.FallbackDuration <= 0 {
		return fmt.Errorf("planner: fallback_duration must be positive")
	}
	if p.EntryFallbackBars < 0 {
		return fmt.Errorf("planner: entry_fallback_bars must not be negative")
	}

	m := c.Monitor
	if m.TickInterval <= 0 || m.ScanInterval < 0 || m.LookAhead <= 0 || m.QuickLookAhead <= 0 {
		return fmt.Errorf("monitor: intervals must be positive")
	}
	if m.ArmEarly < 0 || m.ArmLate < 0 {
		return fmt.Errorf("monitor: arm tolerances must not be negative")
	}

	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache: size must be positive")
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
