// Package library indexes the on-disk music collection and serves it as
// ordered track lists per browse category.
package library

import (
	"context"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".dsf":  true,
}

// Repository is the file-backed track index. Scans replace the index
// atomically; readers always see a complete snapshot.
type Repository struct {
	logger *zap.Logger
	root   string

	mutex  sync.RWMutex
	tracks map[int64]core.Track
}

var _ core.TrackRepository = (*Repository)(nil)

func NewRepository(root string, logger *zap.Logger) *Repository {
	return &Repository{
		logger: logger.Named("library"),
		root:   root,
		tracks: make(map[int64]core.Track),
	}
}

// trackID derives a stable id from the file path, so rescans and restarts
// keep ids intact as long as the file does not move.
func trackID(path string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	// Clear the sign bit; ids are exposed as positive numbers.
	return int64(h.Sum64() &^ (1 << 63))
}

// Scan walks the library root and rebuilds the index. Files that cannot be
// read or tagged are indexed with filename-derived metadata rather than
// dropped.
func (r *Repository) Scan(ctx context.Context) error {
	tracks := make(map[int64]core.Track)
	count := 0

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		track := r.readTrack(path)
		tracks[track.ID] = track
		count++
		return nil
	})
	if err != nil {
		return err
	}

	r.mutex.Lock()
	r.tracks = tracks
	r.mutex.Unlock()

	r.logger.Info("Library scan finished",
		zap.String("root", r.root),
		zap.Int("tracks", count))
	return nil
}

func (r *Repository) readTrack(path string) core.Track {
	track := core.Track{
		ID:     trackID(path),
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:   path,
		Folder: filepath.Dir(path),
	}

	f, err := os.Open(path)
	if err != nil {
		r.logger.Debug("Failed to open file for tagging",
			zap.String("path", path), zap.Error(err))
		return r.classify(track)
	}
	defer func() { _ = f.Close() }()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		r.logger.Debug("Failed to read tags",
			zap.String("path", path), zap.Error(err))
		return r.classify(track)
	}

	if title := meta.Title(); title != "" {
		track.Title = title
	}
	track.Artist = meta.Artist()
	track.Album = meta.Album()
	track.Genre = meta.Genre()
	return r.classify(track)
}

// classify flags podcasts by genre tag or by living under a podcasts folder.
func (r *Repository) classify(track core.Track) core.Track {
	if strings.EqualFold(track.Genre, "podcast") {
		track.IsPodcast = true
		return track
	}
	rel, err := filepath.Rel(r.root, track.Path)
	if err == nil {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if strings.EqualFold(part, "podcasts") {
				track.IsPodcast = true
				break
			}
		}
	}
	return track
}

// GetByParam resolves a collection media id into an ordered track list.
func (r *Repository) GetByParam(ctx context.Context, id core.MediaID, order core.SortOrder) ([]core.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	var out []core.Track
	for _, track := range r.tracks {
		if r.matches(track, id) {
			out = append(out, track)
		}
	}
	r.mutex.RUnlock()

	sortTracks(out, order)
	return out, nil
}

func (r *Repository) matches(track core.Track, id core.MediaID) bool {
	if id.IsPodcast() != track.IsPodcast {
		return false
	}
	switch id.Category {
	case core.CategorySongs, core.CategoryPodcasts:
		return true
	case core.CategoryAlbums, core.CategoryPodcastAlbums:
		return track.Album == id.CategoryValue
	case core.CategoryArtists, core.CategoryPodcastArtists:
		return track.Artist == id.CategoryValue
	case core.CategoryGenres:
		return strings.EqualFold(track.Genre, id.CategoryValue)
	case core.CategoryFolders:
		return track.Folder == id.CategoryValue
	case core.CategoryPlaylists, core.CategoryPodcastPlaylist:
		// Playlists resolve by folder until a playlist format lands.
		return track.Folder == id.CategoryValue
	}
	return false
}

// GetAll returns every indexed track.
func (r *Repository) GetAll(ctx context.Context) ([]core.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	out := make([]core.Track, 0, len(r.tracks))
	for _, track := range r.tracks {
		out = append(out, track)
	}
	r.mutex.RUnlock()

	sortTracks(out, core.SortByTitle)
	return out, nil
}

// GetByID resolves a single track.
func (r *Repository) GetByID(_ context.Context, songID int64) (core.Track, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	track, ok := r.tracks[songID]
	return track, ok
}

// Size returns the number of indexed tracks.
func (r *Repository) Size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.tracks)
}

func sortTracks(tracks []core.Track, order core.SortOrder) {
	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		switch order {
		case core.SortByArtist:
			if a.Artist != b.Artist {
				return a.Artist < b.Artist
			}
		case core.SortByAlbum:
			if a.Album != b.Album {
				return a.Album < b.Album
			}
		case core.SortByDuration:
			if a.Duration != b.Duration {
				return a.Duration < b.Duration
			}
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}
