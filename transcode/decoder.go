// Package transcode turns audio files on disk into mono PCM stems using
// ffmpeg.
package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// AudioMetadata is what ffprobe reports about the first audio stream.
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	SampleRate      int           `json:"sample_rate"`
	ResampleQuality string        `json:"resample_quality"` // "fast", "medium", "high"
	MaxDuration     time.Duration `json:"max_duration"`
	FFmpegPath      string        `json:"ffmpeg_path"`
	FFprobePath     string        `json:"ffprobe_path"`
	Timeout         time.Duration `json:"timeout"` // per file
}

// DefaultDecoderConfig decodes at 22050 Hz, enough for every analysis stage.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		SampleRate:      22050,
		ResampleQuality: "medium",
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		Timeout:         2 * time.Minute,
	}
}

// Decoder runs ffprobe and ffmpeg to produce mono float64 stems. Stems are
// never loudness-normalised: their relative levels carry the energy
// profile.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a decoder. A nil config uses the defaults.
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// DecodeFile decodes one audio file into a mono stem.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*stems.Stem, error) {
	logger := d.logger.WithFields(logging.Fields{"filename": filename})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	metadata, err := d.Probe(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}
	logger.Debug("Audio metadata detected", logging.Fields{
		"sample_rate": metadata.SampleRate,
		"channels":    metadata.Channels,
		"codec":       metadata.Codec,
		"duration":    metadata.Duration,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	logger.Debug("Running ffmpeg command", logging.Fields{"args": strings.Join(args, " ")})

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{"stderr": string(exitError.Stderr)})
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w", filename, err)
	}

	samples, err := bytesToFloat64(output)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	stem := &stems.Stem{Samples: samples, SampleRate: d.config.SampleRate}

	logger.Debug("Decode completed", logging.Fields{
		"samples":  len(samples),
		"duration": stem.Duration(),
	})
	return stem, nil
}

// Probe reads stream information with ffprobe.
func (d *Decoder) Probe(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}
	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// unparsable optional fields stay zero
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs asks for mono float64 little-endian at the target rate.
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.SampleRate),
	}

	if metadata != nil && metadata.SampleRate != d.config.SampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			args = append(args, "-af", "aresample=resampler=soxr:precision=16")
		case "medium":
			args = append(args, "-af", "aresample=resampler=soxr:precision=20")
		case "high":
			args = append(args, "-af", "aresample=resampler=soxr:precision=28")
		}
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error")
}

func bytesToFloat64(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("pcm length %d is not a multiple of 8", len(data))
	}
	samples := make([]float64, len(data)/8)
	for i := range samples {
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		samples[i] = v
	}
	return samples, nil
}

// Available checks that ffmpeg and ffprobe can be executed.
func (d *Decoder) Available() error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}
