package location

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNoFix      = errors.New("no location fix recorded for user")
	ErrInvalidFix = errors.New("latitude/longitude out of range")
)

// Fixes a watcher hasn't drained yet are dropped once its buffer is full,
// a slow consumer never blocks the reporter.
const watchBufferSize = 8

// Fix is a single point-in-time location reading. Fixes are ephemeral -
// they live in memory only & vanish on restart or logout.
type Fix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Subscription is a live feed of a user's fixes. Cancel must be called when
// the consumer goes away, or the feed leaks.
type Subscription struct {
	C <-chan Fix

	cancelOnce sync.Once
	cancel     func()
}

// Cancel tears down the subscription & closes C. Safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.cancelOnce.Do(sub.cancel)
}

// Tracker keeps the latest fix per user & fans fixes out to watchers.
type Tracker struct {
	mu            sync.RWMutex
	fixes         map[uint]Fix
	watchers      map[uint]map[uint64]chan Fix
	nextWatcherID uint64
}

func NewTracker() *Tracker {
	return &Tracker{
		fixes:    make(map[uint]Fix),
		watchers: make(map[uint]map[uint64]chan Fix),
	}
}

// Record stores the user's latest fix & delivers it to every active watcher.
func (tracker *Tracker) Record(userID uint, fix Fix) error {
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return ErrInvalidFix
	}

	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now()
	}

	tracker.mu.Lock()
	tracker.fixes[userID] = fix
	tracker.mu.Unlock()

	tracker.mu.RLock()
	defer tracker.mu.RUnlock()
	for _, watcher := range tracker.watchers[userID] {
		select {
		case watcher <- fix:
		default:
		}
	}

	return nil
}

// CurrentFix returns ErrNoFix until the user has reported at least once.
func (tracker *Tracker) CurrentFix(userID uint) (Fix, error) {
	tracker.mu.RLock()
	defer tracker.mu.RUnlock()

	fix, ok := tracker.fixes[userID]
	if !ok {
		return Fix{}, ErrNoFix
	}

	return fix, nil
}

// Watch subscribes to the user's future fixes.
func (tracker *Tracker) Watch(userID uint) *Subscription {
	feed := make(chan Fix, watchBufferSize)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	tracker.nextWatcherID++
	watcherID := tracker.nextWatcherID

	if tracker.watchers[userID] == nil {
		tracker.watchers[userID] = make(map[uint64]chan Fix)
	}
	tracker.watchers[userID][watcherID] = feed

	sub := &Subscription{C: feed}
	sub.cancel = func() {
		tracker.mu.Lock()
		defer tracker.mu.Unlock()

		delete(tracker.watchers[userID], watcherID)
		if len(tracker.watchers[userID]) == 0 {
			delete(tracker.watchers, userID)
		}
		close(feed)
	}

	return sub
}

// Forget drops the user's fix, e.g. on logout.
func (tracker *Tracker) Forget(userID uint) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	delete(tracker.fixes, userID)
}
