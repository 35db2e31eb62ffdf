package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
	"jukeboxd/internal/engine"
	"jukeboxd/internal/lifecycle"
)

// Stores groups the persistence dependencies of the controller.
type Stores interface {
	ReplaceQueue(ctx context.Context, entries []core.QueueEntry) error
	LoadQueue(ctx context.Context) ([]core.QueueEntry, error)
	SavePosition(ctx context.Context, songID int64, offset time.Duration) error
	ResumePosition(ctx context.Context, songID int64, duration time.Duration) (time.Duration, error)
	SaveLastMetadata(ctx context.Context, meta core.LastMetadata) error
	LastMetadata(ctx context.Context) (core.LastMetadata, bool, error)
	SaveModes(ctx context.Context, repeat core.RepeatMode, shuffle core.ShuffleMode) error
	Modes(ctx context.Context) (core.RepeatMode, core.ShuffleMode, error)
}

// Snapshot is the point-in-time controller state served to the bridge and
// the HTTP surface.
type Snapshot struct {
	Items    []core.PlayingItem
	Index    int
	Current  core.PlayingItem
	HasItem  bool
	Status   core.PlaybackStatus
	Position time.Duration
	Duration time.Duration
	Repeat   core.RepeatMode
	Shuffle  core.ShuffleMode
	Favorite bool
}

// Controller serializes all playback commands onto a single goroutine. Public
// methods enqueue and never block; the queue is unbounded so producers cannot
// stall each other. State reads go through Snapshot.
type Controller struct {
	logger    *zap.Logger
	cfg       core.PlaybackConfig
	repo      core.TrackRepository
	sorts     core.SortGateway
	favorites core.FavoriteGateway
	stores    Stores
	engine    engine.Engine
	hub       *lifecycle.Hub

	mutex   sync.Mutex
	cond    *sync.Cond
	pending []func(ctx context.Context)
	stopped bool

	// Loop-owned state, touched only from Run.
	queue      *Queue
	repeat     core.RepeatMode
	sleepTimer *time.Timer

	snapshotMutex sync.RWMutex
	snapshot      Snapshot
}

func NewController(
	cfg core.PlaybackConfig,
	repo core.TrackRepository,
	sorts core.SortGateway,
	favorites core.FavoriteGateway,
	stores Stores,
	eng engine.Engine,
	hub *lifecycle.Hub,
	logger *zap.Logger,
) *Controller {
	c := &Controller{
		logger:    logger.Named("controller"),
		cfg:       cfg,
		repo:      repo,
		sorts:     sorts,
		favorites: favorites,
		stores:    stores,
		engine:    eng,
		hub:       hub,
		queue:     NewQueue(rand.New(rand.NewSource(time.Now().UnixNano()))),
		snapshot:  Snapshot{Index: -1},
	}
	c.cond = sync.NewCond(&c.mutex)
	eng.SetOnComplete(func() {
		c.enqueue("autoAdvance", c.autoAdvance)
	})
	return c
}

// Run executes commands until ctx is cancelled. It restores the persisted
// queue before accepting the first command.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("Starting playback controller")

	c.restore(ctx)

	// The progress ticker persists podcast positions while playing.
	ticker := time.NewTicker(c.cfg.PositionSaveInterval)
	defer ticker.Stop()
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.enqueue("progressTick", c.saveProgress)
			}
		}
	}()

	// Wake the command loop when the context is cancelled.
	go func() {
		<-ctx.Done()
		c.mutex.Lock()
		c.stopped = true
		c.mutex.Unlock()
		c.cond.Broadcast()
	}()

	for {
		c.mutex.Lock()
		for len(c.pending) == 0 && !c.stopped {
			c.cond.Wait()
		}
		if c.stopped {
			c.mutex.Unlock()
			break
		}
		cmd := c.pending[0]
		c.pending = c.pending[1:]
		c.mutex.Unlock()

		cmd(ctx)
	}

	<-tickerDone
	c.shutdown()
	c.logger.Info("Playback controller stopped")
	return nil
}

func (c *Controller) enqueue(name string, fn func(ctx context.Context)) {
	c.mutex.Lock()
	if c.stopped {
		c.mutex.Unlock()
		c.logger.Debug("Dropping command after stop", zap.String("command", name))
		return
	}
	c.pending = append(c.pending, fn)
	c.mutex.Unlock()
	c.cond.Signal()
}

// Public command surface. All methods return immediately.

// PlayFromMediaID resolves id into a fresh queue and starts playing. A leaf
// id starts at that item, a collection id starts at the first item.
func (c *Controller) PlayFromMediaID(id core.MediaID) {
	c.enqueue("playFromMediaID", func(ctx context.Context) {
		c.playFromMediaID(ctx, id, false)
	})
}

// PlayShuffled resolves id like PlayFromMediaID but queues a uniform random
// permutation of the collection, so any track can come first.
func (c *Controller) PlayShuffled(id core.MediaID) {
	c.enqueue("playShuffled", func(ctx context.Context) {
		if err := c.stores.SaveModes(ctx, c.repeat, core.ShuffleOn); err != nil {
			c.logger.Warn("Failed to persist playback modes", zap.Error(err))
		}
		c.playFromMediaID(ctx, id, true)
	})
}

func (c *Controller) Play() {
	c.enqueue("play", func(ctx context.Context) { c.play(ctx) })
}

func (c *Controller) Pause() {
	c.enqueue("pause", func(ctx context.Context) { c.pause(ctx) })
}

func (c *Controller) TogglePlayPause() {
	c.enqueue("togglePlayPause", func(ctx context.Context) {
		if c.engine.Status() == core.StatusPlaying {
			c.pause(ctx)
			return
		}
		c.play(ctx)
	})
}

func (c *Controller) Stop() {
	c.enqueue("stop", func(ctx context.Context) { c.stop(ctx) })
}

func (c *Controller) SkipNext() {
	c.enqueue("skipNext", func(ctx context.Context) { c.skipNext(ctx) })
}

func (c *Controller) SkipPrevious() {
	c.enqueue("skipPrevious", func(ctx context.Context) { c.skipPrevious(ctx) })
}

func (c *Controller) SeekTo(position time.Duration) {
	c.enqueue("seekTo", func(ctx context.Context) { c.seekTo(ctx, position) })
}

// Replay and FastForward jump by the small configured interval; the Long
// variants use the large one.
func (c *Controller) Replay() {
	c.enqueue("replay", func(ctx context.Context) {
		c.seekRelative(ctx, -c.cfg.SkipJumpSmall)
	})
}

func (c *Controller) ReplayLong() {
	c.enqueue("replayLong", func(ctx context.Context) {
		c.seekRelative(ctx, -c.cfg.SkipJumpLarge)
	})
}

func (c *Controller) FastForward() {
	c.enqueue("fastForward", func(ctx context.Context) {
		c.seekRelative(ctx, c.cfg.SkipJumpSmall)
	})
}

func (c *Controller) FastForwardLong() {
	c.enqueue("fastForwardLong", func(ctx context.Context) {
		c.seekRelative(ctx, c.cfg.SkipJumpLarge)
	})
}

func (c *Controller) JumpTo(index int) {
	c.enqueue("jumpTo", func(ctx context.Context) { c.jumpTo(ctx, index) })
}

func (c *Controller) SwapQueueItems(i, j int) {
	c.enqueue("swapQueueItems", func(ctx context.Context) { c.swapQueueItems(ctx, i, j) })
}

func (c *Controller) RemoveQueueItem(index int) {
	c.enqueue("removeQueueItem", func(ctx context.Context) { c.removeQueueItem(ctx, index) })
}

// SwapRelative and RemoveRelative address queue slots by their offset after
// the current item.
func (c *Controller) SwapRelative(i, j int) {
	c.enqueue("swapRelative", func(ctx context.Context) {
		c.swapQueueItems(ctx, c.queue.Index()+1+i, c.queue.Index()+1+j)
	})
}

func (c *Controller) RemoveRelative(offset int) {
	c.enqueue("removeRelative", func(ctx context.Context) {
		c.removeQueueItem(ctx, c.queue.Index()+1+offset)
	})
}

// AddToPlayNext resolves a leaf media id and inserts it right after the
// current item.
func (c *Controller) AddToPlayNext(id core.MediaID) {
	c.enqueue("addToPlayNext", func(ctx context.Context) { c.addToPlayNext(ctx, id) })
}

// MoveToPlayNext moves an existing queue slot right after the current item.
func (c *Controller) MoveToPlayNext(index int) {
	c.enqueue("moveToPlayNext", func(ctx context.Context) {
		prevItems, prevIndex, prevShuffle := c.queue.Items(), c.queue.Index(), c.queue.ShuffleMode()
		if !c.queue.MoveToPlayNext(index) {
			c.logger.Debug("Invalid move to play next ignored", zap.Int("index", index))
			return
		}
		if err := c.persistQueue(ctx); err != nil {
			c.queue.Adopt(prevItems, prevIndex, prevShuffle)
			return
		}
		c.hub.DispatchQueue()
		c.updateSnapshot()
	})
}

func (c *Controller) CycleRepeat() {
	c.enqueue("cycleRepeat", func(ctx context.Context) { c.cycleRepeat(ctx) })
}

func (c *Controller) ToggleShuffle() {
	c.enqueue("toggleShuffle", func(ctx context.Context) { c.toggleShuffle(ctx) })
}

func (c *Controller) ToggleFavorite() {
	c.enqueue("toggleFavorite", func(ctx context.Context) { c.toggleFavorite(ctx) })
}

// SetSleepTimer pauses playback after d. A new timer replaces the pending
// one.
func (c *Controller) SetSleepTimer(d time.Duration) {
	c.enqueue("setSleepTimer", func(ctx context.Context) {
		if c.sleepTimer != nil {
			c.sleepTimer.Stop()
		}
		c.sleepTimer = time.AfterFunc(d, func() {
			c.enqueue("sleepTimerFired", func(ctx context.Context) {
				c.logger.Info("Sleep timer fired, pausing playback")
				c.pause(ctx)
			})
		})
		c.logger.Info("Sleep timer set", zap.Duration("after", d))
	})
}

func (c *Controller) CancelSleepTimer() {
	c.enqueue("cancelSleepTimer", func(ctx context.Context) {
		if c.sleepTimer != nil {
			c.sleepTimer.Stop()
			c.sleepTimer = nil
			c.logger.Info("Sleep timer cancelled")
		}
	})
}

// Snapshot returns the current controller state with a live engine position.
func (c *Controller) Snapshot() Snapshot {
	c.snapshotMutex.RLock()
	snap := c.snapshot
	c.snapshotMutex.RUnlock()
	snap.Status = c.engine.Status()
	snap.Position = c.engine.Position()
	snap.Duration = c.engine.Duration()
	return snap
}

// Loop-side implementations.

func (c *Controller) playFromMediaID(ctx context.Context, id core.MediaID, shuffled bool) {
	order := c.sorts.SortOrderFor(ctx, id.Category)
	tracks, err := c.repo.GetByParam(ctx, id.Parent(), order)
	if err != nil {
		c.logger.Error("Failed to resolve media id",
			zap.String("mediaID", id.String()),
			zap.Error(err))
		return
	}
	if len(tracks) == 0 {
		c.logger.Warn("Media id resolved to an empty collection",
			zap.String("mediaID", id.String()))
		return
	}

	items := make([]core.PlayingItem, len(tracks))
	startIndex := 0
	for i, track := range tracks {
		items[i] = core.PlayingItem{
			Entry: core.QueueEntry{
				IDInPlaylist:  i,
				SongID:        track.ID,
				Category:      id.Category,
				CategoryValue: id.CategoryValue,
			},
			Track: track,
		}
		if id.IsLeaf() && track.ID == id.LeafID {
			startIndex = i
		}
	}

	prevItems, prevIndex, prevShuffle := c.queue.Items(), c.queue.Index(), c.queue.ShuffleMode()
	if shuffled {
		c.queue.LoadShuffled(items)
	} else {
		c.queue.Load(items, startIndex)
	}
	if err := c.persistQueue(ctx); err != nil {
		c.queue.Adopt(prevItems, prevIndex, prevShuffle)
		return
	}
	c.hub.DispatchQueue()
	c.startCurrent(ctx, core.SkipNone, true)

	c.logger.Info("Queue rebuilt from media id",
		zap.String("mediaID", id.String()),
		zap.Int("items", len(items)),
		zap.Int("startIndex", startIndex))
}

func (c *Controller) play(ctx context.Context) {
	if _, ok := c.queue.Current(); !ok {
		c.logger.Debug("Play with empty queue ignored")
		return
	}
	if c.engine.Status() == core.StatusIdle {
		// Engine lost its track (stopped); reload the current item.
		c.startCurrent(ctx, core.SkipNone, true)
		return
	}
	if err := c.engine.Play(); err != nil {
		c.logger.Error("Failed to start playback", zap.Error(err))
		c.publishError()
		return
	}
	c.publishState(core.SkipNone)
}

func (c *Controller) pause(ctx context.Context) {
	c.savePositionNow(ctx)
	if err := c.engine.Pause(); err != nil {
		c.logger.Debug("Pause ignored", zap.Error(err))
		return
	}
	c.publishState(core.SkipNone)
}

func (c *Controller) stop(ctx context.Context) {
	c.savePositionNow(ctx)
	if err := c.engine.Stop(); err != nil {
		c.logger.Debug("Stop ignored", zap.Error(err))
	}
	c.publishState(core.SkipNone)
}

func (c *Controller) skipNext(ctx context.Context) {
	c.savePositionNow(ctx)
	wasPlaying := c.engine.Status() == core.StatusPlaying
	if !c.queue.Advance(c.repeat, true) {
		c.logger.Debug("Skip next at the end of the queue ignored")
		return
	}
	c.startCurrent(ctx, core.SkipNext, wasPlaying)
}

// skipPrevious moves back one item, or restarts the current one when already
// at the head of the queue.
func (c *Controller) skipPrevious(ctx context.Context) {
	c.savePositionNow(ctx)
	wasPlaying := c.engine.Status() == core.StatusPlaying
	if !c.queue.Retreat() {
		c.seekTo(ctx, 0)
		return
	}
	c.startCurrent(ctx, core.SkipPrevious, wasPlaying)
}

func (c *Controller) autoAdvance(ctx context.Context) {
	item, ok := c.queue.Current()
	if ok && item.Track.IsPodcast {
		// A completed podcast restarts from the beginning next time.
		if err := c.stores.SavePosition(ctx, item.Track.ID, item.Track.Duration); err != nil {
			c.logger.Warn("Failed to save completed position", zap.Error(err))
		}
	}
	if !c.queue.Advance(c.repeat, false) {
		c.logger.Info("Queue finished")
		if err := c.engine.Stop(); err != nil {
			c.logger.Debug("Stop after queue end ignored", zap.Error(err))
		}
		c.publishState(core.SkipNone)
		return
	}
	c.startCurrent(ctx, core.SkipNext, true)
}

// seekTo clamps the target into [0, duration] before handing it to the
// engine, so out-of-range requests land on the nearest edge instead of being
// dropped.
func (c *Controller) seekTo(ctx context.Context, position time.Duration) {
	if position < 0 {
		position = 0
	}
	if duration := c.engine.Duration(); duration > 0 && position > duration {
		position = duration
	}
	if err := c.engine.Seek(position); err != nil {
		c.logger.Debug("Seek ignored",
			zap.Duration("position", position),
			zap.Error(err))
		return
	}
	c.savePositionNow(ctx)
	c.hub.DispatchSeek(position)
	c.publishState(core.SkipNone)
}

func (c *Controller) seekRelative(ctx context.Context, delta time.Duration) {
	c.seekTo(ctx, c.engine.Position()+delta)
}

func (c *Controller) jumpTo(ctx context.Context, index int) {
	wasPlaying := c.engine.Status() == core.StatusPlaying
	c.savePositionNow(ctx)
	if !c.queue.JumpTo(index) {
		c.logger.Debug("Jump to invalid queue position ignored", zap.Int("index", index))
		return
	}
	c.startCurrent(ctx, core.SkipNone, wasPlaying)
}

func (c *Controller) swapQueueItems(ctx context.Context, i, j int) {
	prevItems, prevIndex, prevShuffle := c.queue.Items(), c.queue.Index(), c.queue.ShuffleMode()
	if !c.queue.Swap(i, j) {
		c.logger.Debug("Invalid queue swap ignored", zap.Int("i", i), zap.Int("j", j))
		return
	}
	if err := c.persistQueue(ctx); err != nil {
		c.queue.Adopt(prevItems, prevIndex, prevShuffle)
		return
	}
	c.hub.DispatchQueue()
	c.updateSnapshot()
}

func (c *Controller) addToPlayNext(ctx context.Context, id core.MediaID) {
	if !id.IsLeaf() {
		c.logger.Debug("Add to play next needs a leaf media id",
			zap.String("mediaID", id.String()))
		return
	}
	track, ok := c.repo.GetByID(ctx, id.LeafID)
	if !ok {
		c.logger.Warn("Track for play next not found", zap.Int64("songID", id.LeafID))
		return
	}

	prevItems, prevIndex, prevShuffle := c.queue.Items(), c.queue.Index(), c.queue.ShuffleMode()
	c.queue.AddToPlayNext(core.PlayingItem{
		Entry: core.QueueEntry{
			IDInPlaylist:  c.queue.NextFreeIDInPlaylist(),
			SongID:        track.ID,
			Category:      id.Category,
			CategoryValue: id.CategoryValue,
		},
		Track: track,
	})
	if err := c.persistQueue(ctx); err != nil {
		c.queue.Adopt(prevItems, prevIndex, prevShuffle)
		return
	}
	c.hub.DispatchQueue()

	// An empty queue gains its first item; load it without autoplay.
	if c.queue.Len() == 1 {
		c.startCurrent(ctx, core.SkipNone, false)
		return
	}
	c.updateSnapshot()
}

func (c *Controller) removeQueueItem(ctx context.Context, index int) {
	wasCurrent := index == c.queue.Index()
	wasPlaying := c.engine.Status() == core.StatusPlaying
	prevItems, prevIndex, prevShuffle := c.queue.Items(), c.queue.Index(), c.queue.ShuffleMode()
	if !c.queue.Remove(index) {
		c.logger.Debug("Invalid queue removal ignored", zap.Int("index", index))
		return
	}
	if err := c.persistQueue(ctx); err != nil {
		c.queue.Adopt(prevItems, prevIndex, prevShuffle)
		return
	}
	c.hub.DispatchQueue()

	if !wasCurrent {
		c.updateSnapshot()
		return
	}
	if _, ok := c.queue.Current(); !ok {
		c.stop(ctx)
		return
	}
	c.startCurrent(ctx, core.SkipNone, wasPlaying)
}

func (c *Controller) cycleRepeat(ctx context.Context) {
	c.repeat = c.repeat.Next()
	if err := c.stores.SaveModes(ctx, c.repeat, c.queue.ShuffleMode()); err != nil {
		c.logger.Warn("Failed to persist playback modes", zap.Error(err))
	}
	c.logger.Info("Repeat mode changed", zap.String("mode", c.repeat.String()))
	c.updateSnapshot()
}

func (c *Controller) toggleShuffle(ctx context.Context) {
	prevItems, prevIndex, prevShuffle := c.queue.Items(), c.queue.Index(), c.queue.ShuffleMode()
	c.queue.SetShuffle(prevShuffle.Next())
	if err := c.persistQueue(ctx); err != nil {
		c.queue.Adopt(prevItems, prevIndex, prevShuffle)
		return
	}
	if err := c.stores.SaveModes(ctx, c.repeat, c.queue.ShuffleMode()); err != nil {
		c.logger.Warn("Failed to persist playback modes", zap.Error(err))
	}
	c.hub.DispatchQueue()
	c.logger.Info("Shuffle mode changed", zap.String("mode", c.queue.ShuffleMode().String()))
	c.updateSnapshot()
}

func (c *Controller) toggleFavorite(ctx context.Context) {
	item, ok := c.queue.Current()
	if !ok {
		return
	}
	favType := core.FavoriteTypeFor(item.Track.IsPodcast)
	favorite, err := c.favorites.Toggle(ctx, favType, item.Track.ID)
	if err != nil {
		c.logger.Error("Failed to toggle favorite",
			zap.Int64("songID", item.Track.ID),
			zap.Error(err))
		return
	}
	c.logger.Info("Favorite toggled",
		zap.Int64("songID", item.Track.ID),
		zap.Bool("favorite", favorite))
	c.updateSnapshot()
}

// startCurrent loads the queue's current item into the engine, resuming
// podcasts from their saved offset, and publishes the transition.
func (c *Controller) startCurrent(ctx context.Context, skip core.SkipType, autoplay bool) {
	item, ok := c.queue.Current()
	if !ok {
		return
	}

	c.hub.DispatchPrepare()

	if err := c.engine.Load(item.Track); err != nil {
		c.logger.Error("Failed to load track",
			zap.Int64("songID", item.Track.ID),
			zap.String("path", item.Track.Path),
			zap.Error(err))
		c.publishError()
		return
	}

	if item.Track.IsPodcast {
		offset, err := c.stores.ResumePosition(ctx, item.Track.ID, item.Track.Duration)
		if err != nil {
			c.logger.Warn("Failed to load resume position", zap.Error(err))
		} else if offset > 0 {
			if err := c.engine.Seek(offset); err != nil {
				c.logger.Warn("Failed to seek to resume position",
					zap.Duration("offset", offset),
					zap.Error(err))
			}
		}
	}

	meta := core.LastMetadata{
		Title:  item.Track.Title,
		Artist: item.Track.Artist,
		SongID: item.Track.ID,
	}
	if err := c.stores.SaveLastMetadata(ctx, meta); err != nil {
		c.logger.Warn("Failed to persist last metadata", zap.Error(err))
	}

	c.hub.DispatchMetadata(core.MetadataEvent{Item: item, Skip: skip})

	if autoplay {
		if err := c.engine.Play(); err != nil {
			c.logger.Error("Failed to start playback", zap.Error(err))
			c.publishError()
			return
		}
	}
	c.publishState(skip)
}

// persistQueue writes the queue through the store. Callers roll the in-memory
// queue back on error so observers never see a state that was not persisted.
func (c *Controller) persistQueue(ctx context.Context) error {
	if err := c.stores.ReplaceQueue(ctx, c.queue.Entries()); err != nil {
		c.logger.Error("Failed to persist queue", zap.Error(err))
		return err
	}
	return nil
}

func (c *Controller) savePositionNow(ctx context.Context) {
	item, ok := c.queue.Current()
	if !ok || !item.Track.IsPodcast {
		return
	}
	if err := c.stores.SavePosition(ctx, item.Track.ID, c.engine.Position()); err != nil {
		c.logger.Warn("Failed to save playback position", zap.Error(err))
	}
}

func (c *Controller) saveProgress(ctx context.Context) {
	if c.engine.Status() != core.StatusPlaying {
		return
	}
	c.savePositionNow(ctx)
}

func (c *Controller) restore(ctx context.Context) {
	shuffle := core.ShuffleOff
	repeat, persistedShuffle, err := c.stores.Modes(ctx)
	if err != nil {
		c.logger.Warn("Failed to restore playback modes", zap.Error(err))
	} else {
		c.repeat = repeat
		shuffle = persistedShuffle
		c.queue.SetShuffle(shuffle)
	}

	entries, err := c.stores.LoadQueue(ctx)
	if err != nil {
		c.logger.Error("Failed to restore queue", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		c.logger.Info("No persisted queue to restore")
		return
	}

	// Entries whose track no longer resolves are dropped silently.
	items := make([]core.PlayingItem, 0, len(entries))
	for _, entry := range entries {
		track, ok := c.repo.GetByID(ctx, entry.SongID)
		if !ok {
			c.logger.Debug("Dropping unresolvable queue entry",
				zap.Int64("songID", entry.SongID))
			continue
		}
		items = append(items, core.PlayingItem{Entry: entry, Track: track})
	}
	if len(items) == 0 {
		c.logger.Warn("Persisted queue resolved to nothing")
		return
	}

	startIndex := 0
	if meta, ok, err := c.stores.LastMetadata(ctx); err == nil && ok {
		for i, item := range items {
			if item.Track.ID == meta.SongID {
				startIndex = i
				break
			}
		}
	}

	// The persisted rows already hold the play order from the last session,
	// shuffled or not; adopt them as-is so playback continues where it was.
	c.queue.Adopt(items, startIndex, shuffle)
	if len(items) != len(entries) {
		// Dropped entries leave the store ahead of reality; best effort, the
		// next successful mutation rewrites it anyway.
		_ = c.persistQueue(ctx)
	}
	c.startCurrent(ctx, core.SkipNone, false)

	c.logger.Info("Queue restored",
		zap.Int("items", len(items)),
		zap.Int("dropped", len(entries)-len(items)),
		zap.Int("startIndex", startIndex))
}

func (c *Controller) shutdown() {
	if c.sleepTimer != nil {
		c.sleepTimer.Stop()
		c.sleepTimer = nil
	}
	// Final position save on the way out. Run's ctx is already cancelled, so
	// use a short independent one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.savePositionNow(ctx)
	if err := c.engine.Close(); err != nil {
		c.logger.Warn("Failed to close engine", zap.Error(err))
	}
}

// publishError surfaces an engine failure as an error playback state. The
// queue is left as it was.
func (c *Controller) publishError() {
	c.hub.DispatchState(core.PlaybackState{
		Status:   core.StatusError,
		Position: c.engine.Position(),
	})
	c.updateSnapshot()
}

func (c *Controller) publishState(skip core.SkipType) {
	state := core.PlaybackState{
		Status:   c.engine.Status(),
		Position: c.engine.Position(),
		Skip:     skip,
	}
	c.hub.DispatchState(state)
	c.updateSnapshot()
}

func (c *Controller) updateSnapshot() {
	item, hasItem := c.queue.Current()
	favorite := false
	if hasItem {
		favType := core.FavoriteTypeFor(item.Track.IsPodcast)
		fav, err := c.favorites.IsFavorite(context.Background(), favType, item.Track.ID)
		if err == nil {
			favorite = fav
		}
	}

	c.snapshotMutex.Lock()
	c.snapshot = Snapshot{
		Items:    c.queue.Items(),
		Index:    c.queue.Index(),
		Current:  item,
		HasItem:  hasItem,
		Repeat:   c.repeat,
		Shuffle:  c.queue.ShuffleMode(),
		Favorite: favorite,
	}
	c.snapshotMutex.Unlock()
}
