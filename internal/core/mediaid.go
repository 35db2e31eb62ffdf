// Package core holds the shared domain types of the playback service: media
// ids, tracks, queue entries, playback state and the gateway interfaces the
// components are wired through.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Category names a browse root. Media ids are rooted in exactly one category.
type Category string

const (
	CategoryFolders         Category = "folders"
	CategoryPlaylists       Category = "playlists"
	CategorySongs           Category = "songs"
	CategoryAlbums          Category = "albums"
	CategoryArtists         Category = "artists"
	CategoryGenres          Category = "genres"
	CategoryPodcasts        Category = "podcasts"
	CategoryPodcastPlaylist Category = "podcasts_playlist"
	CategoryPodcastAlbums   Category = "podcasts_albums"
	CategoryPodcastArtists  Category = "podcasts_artists"
)

// NoLeaf marks a media id that addresses a whole collection rather than a
// single playable item.
const NoLeaf int64 = -1

// MediaID addresses either a collection (a category plus a value, such as one
// album) or a single playable item inside it. The wire form is
// "category/categoryValue" for collections and "category/categoryValue|leafID"
// for items.
type MediaID struct {
	Category      Category
	CategoryValue string
	LeafID        int64
}

// CategoryID builds a collection media id.
func CategoryID(category Category, value string) MediaID {
	return MediaID{Category: category, CategoryValue: value, LeafID: NoLeaf}
}

// PlayableItem builds the media id of songID inside parent.
func PlayableItem(parent MediaID, songID int64) MediaID {
	return MediaID{Category: parent.Category, CategoryValue: parent.CategoryValue, LeafID: songID}
}

// SongID is a convenience for a standalone song outside any collection.
func SongID(songID int64) MediaID {
	return MediaID{Category: CategorySongs, CategoryValue: "", LeafID: songID}
}

// ParseMediaID parses the wire form produced by String.
func ParseMediaID(raw string) (MediaID, error) {
	category, rest, found := strings.Cut(raw, "/")
	if !found || category == "" {
		return MediaID{}, fmt.Errorf("malformed media id %q", raw)
	}

	value, leaf, hasLeaf := strings.Cut(rest, "|")
	id := MediaID{Category: Category(category), CategoryValue: value, LeafID: NoLeaf}
	if !hasLeaf {
		return id, nil
	}

	leafID, err := strconv.ParseInt(leaf, 10, 64)
	if err != nil {
		return MediaID{}, fmt.Errorf("malformed leaf id in %q: %w", raw, err)
	}
	id.LeafID = leafID
	return id, nil
}

func (m MediaID) String() string {
	if m.LeafID == NoLeaf {
		return string(m.Category) + "/" + m.CategoryValue
	}
	return string(m.Category) + "/" + m.CategoryValue + "|" + strconv.FormatInt(m.LeafID, 10)
}

// Parent strips the leaf, returning the collection id.
func (m MediaID) Parent() MediaID {
	return MediaID{Category: m.Category, CategoryValue: m.CategoryValue, LeafID: NoLeaf}
}

// IsLeaf reports whether the id addresses a single playable item.
func (m MediaID) IsLeaf() bool {
	return m.LeafID != NoLeaf
}

// IsPodcast reports whether the id lives under one of the podcast roots.
func (m MediaID) IsPodcast() bool {
	switch m.Category {
	case CategoryPodcasts, CategoryPodcastPlaylist, CategoryPodcastAlbums, CategoryPodcastArtists:
		return true
	}
	return false
}

// IsArtistRooted reports whether the id browses by artist.
func (m MediaID) IsArtistRooted() bool {
	return m.Category == CategoryArtists || m.Category == CategoryPodcastArtists
}

// IsAlbumRooted reports whether the id browses by album.
func (m MediaID) IsAlbumRooted() bool {
	return m.Category == CategoryAlbums || m.Category == CategoryPodcastAlbums
}
