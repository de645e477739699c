package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// StemExtensions are tried in order for each stem name.
var StemExtensions = []string{".wav", ".flac", ".mp3"}

// Tags are the descriptive fields read from a file's metadata.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
}

// ReadTrackTags reads ID3/Vorbis/MP4 tags from an audio file.
func ReadTrackTags(path string) (Tags, error) {
	file, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return Tags{
		Title:  metadata.Title(),
		Artist: metadata.Artist(),
		Album:  metadata.Album(),
		Genre:  metadata.Genre(),
	}, nil
}

// FindStemFiles maps each stem name to the first matching file in dir.
// Stems without a file are absent from the result.
func FindStemFiles(dir string) (map[stems.Name]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	found := make(map[stems.Name]string, 4)
	for _, name := range stems.All() {
		for _, ext := range StemExtensions {
			path := filepath.Join(dir, string(name)+ext)
			if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
				found[name] = path
				break
			}
		}
	}
	return found, nil
}

// LoadStemDir decodes vocals, drums, bass and other from dir concurrently.
// Missing stem files are tolerated; analysis falls back for them. The track
// id is the directory name and title/artist come from the first tagged
// stem file.
func (d *Decoder) LoadStemDir(ctx context.Context, dir string) (*stems.Track, error) {
	files, err := FindStemFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("stem directory: %w", err)
	}

	logger := d.logger.WithFields(logging.Fields{"dir": dir})
	if len(files) == 0 {
		logger.Warn("no stem files found")
	}

	var mu sync.Mutex
	decoded := make(map[stems.Name]*stems.Stem, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for name, path := range files {
		g.Go(func() error {
			stem, err := d.DecodeFile(gctx, path)
			if err != nil {
				return fmt.Errorf("%s stem: %w", name, err)
			}
			mu.Lock()
			decoded[name] = stem
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := stems.NewStemSet(decoded)
	track := &stems.Track{
		ID:       TrackID(dir),
		Duration: set.Duration(),
		Stems:    set,
	}
	for _, name := range stems.All() {
		path, ok := files[name]
		if !ok {
			continue
		}
		if tags, err := ReadTrackTags(path); err == nil && (tags.Title != "" || tags.Artist != "") {
			track.Title, track.Artist = tags.Title, tags.Artist
			break
		}
	}
	if track.Title == "" {
		track.Title = track.ID
	}

	logger.Info("stems loaded", logging.Fields{
		"track_id": track.ID,
		"stems":    len(decoded),
		"duration": track.Duration,
	})
	return track, nil
}

// TrackID is the id LoadStemDir gives the track in dir.
func TrackID(dir string) string {
	return strings.TrimSpace(filepath.Base(filepath.Clean(dir)))
}
