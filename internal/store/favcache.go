package store

import (
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"jukeboxd/internal/core"
)

// FavoriteCache answers "is this song a favorite" without touching the
// database on the hot path. A bloom filter front-rejects the common case of
// non-favorites, an LRU bounds memory and the backing set keeps the answer
// exact for everything the bloom lets through.
type FavoriteCache struct {
	keys              map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	maxEntries        int
	falsePositiveRate float64
}

func NewFavoriteCache(maxEntries int, falsePositiveRate float64) *FavoriteCache {
	lruCache, _ := lru.New[string, struct{}](maxEntries)

	if maxEntries < 0 || maxEntries > int(^uint(0)>>1) {
		panic("maxEntries value out of range for uint conversion")
	}
	bloomFilter := bloom.NewWithEstimates(uint(maxEntries), falsePositiveRate)

	return &FavoriteCache{
		keys:              make(map[string]struct{}),
		bloom:             bloomFilter,
		lru:               lruCache,
		maxEntries:        maxEntries,
		falsePositiveRate: falsePositiveRate,
	}
}

func favKey(songID int64, favType core.FavoriteType) string {
	return strconv.FormatInt(songID, 10) + ":" + favType.String()
}

// Has reports whether the song is a cached favorite of the given type.
func (fc *FavoriteCache) Has(songID int64, favType core.FavoriteType) bool {
	key := favKey(songID, favType)

	fc.mutex.RLock()
	defer fc.mutex.RUnlock()

	if !fc.bloom.TestString(key) {
		return false
	}

	_, exists := fc.keys[key]
	return exists
}

// Add marks the song as a favorite of the given type.
func (fc *FavoriteCache) Add(songID int64, favType core.FavoriteType) {
	key := favKey(songID, favType)

	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if _, exists := fc.keys[key]; exists {
		return
	}

	fc.keys[key] = struct{}{}
	fc.bloom.AddString(key)
	fc.lru.Add(key, struct{}{})

	if len(fc.keys) > fc.maxEntries {
		fc.evictOldest()
	}
}

// Remove drops the song from the cache. The bloom filter cannot forget, so a
// removed key may still pass the filter and fall through to the exact set.
func (fc *FavoriteCache) Remove(songID int64, favType core.FavoriteType) {
	key := favKey(songID, favType)

	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if _, exists := fc.keys[key]; !exists {
		return
	}

	delete(fc.keys, key)
	fc.lru.Remove(key)
}

// Load clears the cache and seeds it from the persisted favorite states.
func (fc *FavoriteCache) Load(states []core.FavoriteState) {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	fc.clear()

	for _, st := range states {
		if !st.Favorite {
			continue
		}
		key := favKey(st.SongID, st.Type)
		fc.keys[key] = struct{}{}
		fc.bloom.AddString(key)
		fc.lru.Add(key, struct{}{})
	}

	for len(fc.keys) > fc.maxEntries {
		fc.evictOldest()
	}
}

// Size returns the number of cached favorites.
func (fc *FavoriteCache) Size() int {
	fc.mutex.RLock()
	defer fc.mutex.RUnlock()
	return len(fc.keys)
}

// Clear removes all cached favorites.
func (fc *FavoriteCache) Clear() {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	fc.clear()
}

func (fc *FavoriteCache) clear() {
	fc.keys = make(map[string]struct{})
	if fc.maxEntries < 0 || fc.maxEntries > int(^uint(0)>>1) {
		panic("maxEntries value out of range for uint conversion")
	}
	fc.bloom = bloom.NewWithEstimates(uint(fc.maxEntries), fc.falsePositiveRate)
	fc.lru.Purge()
}

func (fc *FavoriteCache) evictOldest() {
	if fc.lru.Len() == 0 {
		return
	}

	oldestKey, _, ok := fc.lru.GetOldest()
	if !ok {
		return
	}

	delete(fc.keys, oldestKey)
	fc.lru.Remove(oldestKey)
}
