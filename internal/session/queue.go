// Package session owns the live playback state: the in-memory queue, the
// controller serializing all playback commands and the bridge publishing
// state to observers.
package session

import (
	"math/rand"
	"sort"

	"jukeboxd/internal/core"
)

// Queue is the in-memory playing queue. It is owned by the controller
// goroutine and is not safe for concurrent use; all access goes through
// controller commands.
//
// The current pointer tracks an item, not a position: swaps, removals and
// shuffle reorder the slice while the pointer keeps following the item that
// was current.
type Queue struct {
	items   []core.PlayingItem
	current int
	shuffle core.ShuffleMode
	rng     *rand.Rand
}

func NewQueue(rng *rand.Rand) *Queue {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Queue{current: -1, rng: rng}
}

// Load replaces the queue contents and points at startIndex. An out-of-range
// startIndex clamps to the first item. Shuffle mode is preserved and applied
// to the new contents.
func (q *Queue) Load(items []core.PlayingItem, startIndex int) {
	q.items = items
	if len(items) == 0 {
		q.current = -1
		return
	}
	if startIndex < 0 || startIndex >= len(items) {
		startIndex = 0
	}
	q.current = startIndex
	if q.shuffle == core.ShuffleOn {
		q.shuffleTail()
	}
}

// LoadShuffled replaces the queue with a uniform random permutation of items
// and points at the first slot. Every item is equally likely to land in any
// position, including the one that plays first.
func (q *Queue) LoadShuffled(items []core.PlayingItem) {
	q.shuffle = core.ShuffleOn
	q.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	q.items = items
	q.current = 0
	if len(items) == 0 {
		q.current = -1
	}
}

// Adopt replaces the queue state verbatim: no clamping beyond bounds checks
// and no shuffle reapplication. Used to restore a persisted play order and to
// roll back after a failed persist.
func (q *Queue) Adopt(items []core.PlayingItem, current int, shuffle core.ShuffleMode) {
	q.items = items
	q.shuffle = shuffle
	if len(items) == 0 {
		q.current = -1
		return
	}
	if current < 0 || current >= len(items) {
		current = 0
	}
	q.current = current
}

// Current returns the item under the pointer.
func (q *Queue) Current() (core.PlayingItem, bool) {
	if q.current < 0 || q.current >= len(q.items) {
		return core.PlayingItem{}, false
	}
	return q.items[q.current], true
}

// Items returns a copy of the queue in play order.
func (q *Queue) Items() []core.PlayingItem {
	out := make([]core.PlayingItem, len(q.items))
	copy(out, q.items)
	return out
}

// Index returns the pointer position, -1 when empty.
func (q *Queue) Index() int {
	if len(q.items) == 0 {
		return -1
	}
	return q.current
}

func (q *Queue) Len() int {
	return len(q.items)
}

// Entries returns the persistable form of the queue in play order.
func (q *Queue) Entries() []core.QueueEntry {
	entries := make([]core.QueueEntry, len(q.items))
	for i, item := range q.items {
		entries[i] = item.Entry
	}
	return entries
}

// Advance moves the pointer forward. A manual skip past the last item wraps
// only under RepeatAll; auto-advance additionally replays the current item
// under RepeatOne. Returns false when the pointer did not move and playback
// should stop or stay.
func (q *Queue) Advance(repeat core.RepeatMode, manual bool) bool {
	if len(q.items) == 0 {
		return false
	}
	if !manual && repeat == core.RepeatOne {
		// Auto-advance replays the same item.
		return true
	}
	if q.current < len(q.items)-1 {
		q.current++
		return true
	}
	if repeat == core.RepeatAll {
		q.current = 0
		return true
	}
	return false
}

// Retreat moves the pointer back one item. At the first item it stays put and
// returns false; the caller restarts the current item instead.
func (q *Queue) Retreat() bool {
	if len(q.items) == 0 || q.current <= 0 {
		return false
	}
	q.current--
	return true
}

// JumpTo points at the given position.
func (q *Queue) JumpTo(index int) bool {
	if index < 0 || index >= len(q.items) {
		return false
	}
	q.current = index
	return true
}

// JumpToSong points at the first item resolving songID.
func (q *Queue) JumpToSong(songID int64) bool {
	for i, item := range q.items {
		if item.Track.ID == songID {
			q.current = i
			return true
		}
	}
	return false
}

// Swap exchanges two positions. The pointer follows the item it was on.
func (q *Queue) Swap(i, j int) bool {
	if i < 0 || j < 0 || i >= len(q.items) || j >= len(q.items) || i == j {
		return false
	}
	q.items[i], q.items[j] = q.items[j], q.items[i]
	switch q.current {
	case i:
		q.current = j
	case j:
		q.current = i
	}
	return true
}

// Remove deletes the item at index. Removing the current item keeps the
// pointer at the same position, which now addresses the next item; removing
// the last item while current clamps the pointer back.
func (q *Queue) Remove(index int) bool {
	if index < 0 || index >= len(q.items) {
		return false
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	if index < q.current {
		q.current--
	}
	if q.current >= len(q.items) {
		q.current = len(q.items) - 1
	}
	return true
}

// SwapRelative exchanges the items offset i and j positions after the
// pointer.
func (q *Queue) SwapRelative(i, j int) bool {
	return q.Swap(q.current+1+i, q.current+1+j)
}

// RemoveRelative deletes the item offset positions after the pointer.
func (q *Queue) RemoveRelative(offset int) bool {
	return q.Remove(q.current + 1 + offset)
}

// AddToPlayNext inserts an item directly after the pointer. On an empty
// queue the item becomes the current one.
func (q *Queue) AddToPlayNext(item core.PlayingItem) {
	if len(q.items) == 0 {
		q.items = []core.PlayingItem{item}
		q.current = 0
		return
	}
	at := q.current + 1
	q.items = append(q.items, core.PlayingItem{})
	copy(q.items[at+1:], q.items[at:])
	q.items[at] = item
}

// MoveToPlayNext moves an existing item directly after the pointer. Moving
// the current item is a no-op.
func (q *Queue) MoveToPlayNext(index int) bool {
	if index < 0 || index >= len(q.items) || index == q.current {
		return false
	}
	item := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	if index < q.current {
		q.current--
	}
	at := q.current + 1
	q.items = append(q.items, core.PlayingItem{})
	copy(q.items[at+1:], q.items[at:])
	q.items[at] = item
	return true
}

// NextFreeIDInPlaylist returns an ordering key past every existing one, for
// items appended to an already materialized queue.
func (q *Queue) NextFreeIDInPlaylist() int {
	max := -1
	for _, item := range q.items {
		if item.Entry.IDInPlaylist > max {
			max = item.Entry.IDInPlaylist
		}
	}
	return max + 1
}

// ShuffleMode returns the active shuffle mode.
func (q *Queue) ShuffleMode() core.ShuffleMode {
	return q.shuffle
}

// SetShuffle switches shuffle on or off. Turning it on permutes the items
// after the pointer, leaving the played prefix and the current item alone.
// Turning it off restores the original queue order and the pointer follows
// the current item to its restored position.
func (q *Queue) SetShuffle(mode core.ShuffleMode) {
	if mode == q.shuffle {
		return
	}
	q.shuffle = mode
	if len(q.items) == 0 {
		return
	}
	if mode == core.ShuffleOn {
		q.shuffleTail()
		return
	}
	q.restoreOrder()
}

func (q *Queue) shuffleTail() {
	tail := q.items[q.current+1:]
	q.rng.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
}

func (q *Queue) restoreOrder() {
	currentItem, hasCurrent := q.Current()
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Entry.IDInPlaylist < q.items[j].Entry.IDInPlaylist
	})
	if !hasCurrent {
		return
	}
	for i, item := range q.items {
		if item.Entry.IDInPlaylist == currentItem.Entry.IDInPlaylist {
			q.current = i
			return
		}
	}
}
