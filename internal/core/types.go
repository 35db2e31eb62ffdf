package core

import (
	"context"
	"time"
)

// Track is the resolved metadata of a playable item, produced by the track
// repository. ID is stable across rescans for the same file path.
type Track struct {
	ID        int64
	Title     string
	Artist    string
	Album     string
	Genre     string
	Duration  time.Duration
	Path      string
	Folder    string
	IsPodcast bool
}

// QueueEntry is the persisted form of one queue slot. IDInPlaylist is the
// stable 0-based ordering key assigned when the queue is rebuilt; it survives
// swaps and shuffles so the original order can be restored.
type QueueEntry struct {
	IDInPlaylist  int
	SongID        int64
	Category      Category
	CategoryValue string
}

// ParentMediaID reconstructs the collection the entry was queued from.
func (e QueueEntry) ParentMediaID() MediaID {
	return CategoryID(e.Category, e.CategoryValue)
}

// PlayingItem joins a QueueEntry with its resolved track metadata. It is
// derived, never stored; entries whose track no longer resolves are dropped
// when the queue is materialized.
type PlayingItem struct {
	Entry QueueEntry
	Track Track
}

// MediaID returns the leaf media id addressing this item inside its source
// collection.
func (p PlayingItem) MediaID() MediaID {
	return PlayableItem(p.Entry.ParentMediaID(), p.Track.ID)
}

// SkipType tags a now-playing transition with its cause.
type SkipType int

const (
	// SkipNone covers initial load, seek and queue-edit transitions.
	SkipNone SkipType = iota
	SkipNext
	SkipPrevious
)

func (s SkipType) String() string {
	switch s {
	case SkipNext:
		return "next"
	case SkipPrevious:
		return "previous"
	default:
		return "none"
	}
}

// MetadataEvent is produced once per now-playing transition.
type MetadataEvent struct {
	Item PlayingItem
	Skip SkipType
}

// PlaybackStatus is the coarse engine state.
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusPlaying
	StatusPaused
	StatusBuffering
	StatusError
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusBuffering:
		return "buffering"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// PlaybackState is the externally observable engine state, published to
// session observers as an owned value.
type PlaybackState struct {
	Status   PlaybackStatus
	Position time.Duration
	Skip     SkipType
}

// RepeatMode cycles OFF -> ONE -> ALL -> OFF.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// Next advances to the following mode in the cycle.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff:
		return RepeatOne
	case RepeatOne:
		return RepeatAll
	default:
		return RepeatOff
	}
}

func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// ShuffleMode toggles OFF -> ON -> OFF.
type ShuffleMode int

const (
	ShuffleOff ShuffleMode = iota
	ShuffleOn
)

// Next advances to the following mode in the cycle.
func (s ShuffleMode) Next() ShuffleMode {
	if s == ShuffleOff {
		return ShuffleOn
	}
	return ShuffleOff
}

func (s ShuffleMode) String() string {
	if s == ShuffleOn {
		return "on"
	}
	return "off"
}

// FavoriteType distinguishes the two favorite namespaces.
type FavoriteType int

const (
	FavoriteTrack FavoriteType = iota
	FavoritePodcast
)

func (t FavoriteType) String() string {
	if t == FavoritePodcast {
		return "podcast"
	}
	return "track"
}

// FavoriteTypeFor picks the namespace matching an item's podcast flag.
func FavoriteTypeFor(isPodcast bool) FavoriteType {
	if isPodcast {
		return FavoritePodcast
	}
	return FavoriteTrack
}

// FavoriteState is the published favorite status of a single song.
type FavoriteState struct {
	SongID   int64
	Favorite bool
	Type     FavoriteType
}

// LastMetadata is the minimal now-playing summary persisted across restarts.
type LastMetadata struct {
	Title  string
	Artist string
	SongID int64
}

// SortOrder selects how a resolved collection is ordered before queueing.
type SortOrder string

const (
	SortByTitle    SortOrder = "title"
	SortByArtist   SortOrder = "artist"
	SortByAlbum    SortOrder = "album"
	SortByDuration SortOrder = "duration"
)

// TrackRepository resolves media ids to ordered track lists. Implementations
// must drop tracks that no longer exist rather than failing the lookup.
type TrackRepository interface {
	// GetByParam resolves the collection addressed by id, ordered by sort.
	// An empty sort means the persisted default for the category.
	GetByParam(ctx context.Context, id MediaID, sort SortOrder) ([]Track, error)
	// GetAll returns every known track in default order.
	GetAll(ctx context.Context) ([]Track, error)
	// GetByID resolves a single track.
	GetByID(ctx context.Context, songID int64) (Track, bool)
}

// SortGateway persists the preferred sort order per category.
type SortGateway interface {
	SortOrderFor(ctx context.Context, category Category) SortOrder
	SetSortOrder(ctx context.Context, category Category, order SortOrder) error
}

// FavoriteGateway is the favorite persistence boundary consumed by the
// controller and the side-effect tracker.
type FavoriteGateway interface {
	IsFavorite(ctx context.Context, favType FavoriteType, songID int64) (bool, error)
	Toggle(ctx context.Context, favType FavoriteType, songID int64) (bool, error)
}
