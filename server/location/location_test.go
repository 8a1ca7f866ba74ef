package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentFix(t *testing.T) {
	tracker := NewTracker()

	_, err := tracker.CurrentFix(1)
	assert.Equal(t, ErrNoFix, err, "Expected ErrNoFix before the first report")

	err = tracker.Record(1, Fix{Latitude: 43.6532, Longitude: -79.3832})
	assert.Nil(t, err)

	fix, err := tracker.CurrentFix(1)
	assert.Nil(t, err)
	assert.Equal(t, 43.6532, fix.Latitude)
	assert.Equal(t, -79.3832, fix.Longitude)
	assert.False(t, fix.RecordedAt.IsZero(), "Expected a timestamp to be stamped on the fix")

	// Latest report wins
	err = tracker.Record(1, Fix{Latitude: 45.4215, Longitude: -75.6972})
	assert.Nil(t, err)

	fix, _ = tracker.CurrentFix(1)
	assert.Equal(t, 45.4215, fix.Latitude)
}

func TestRecordRejectsOutOfRangeFix(t *testing.T) {
	tracker := NewTracker()

	assert.Equal(t, ErrInvalidFix, tracker.Record(1, Fix{Latitude: 91, Longitude: 0}))
	assert.Equal(t, ErrInvalidFix, tracker.Record(1, Fix{Latitude: 0, Longitude: -181}))

	_, err := tracker.CurrentFix(1)
	assert.Equal(t, ErrNoFix, err, "Invalid fix should not be stored")
}

func TestWatch(t *testing.T) {
	tracker := NewTracker()
	sub := tracker.Watch(7)

	err := tracker.Record(7, Fix{Latitude: 6.5244, Longitude: 3.3792})
	assert.Nil(t, err)

	select {
	case fix := <-sub.C:
		assert.Equal(t, 6.5244, fix.Latitude)
	case <-time.After(time.Second):
		t.Fatal("Expected watcher to receive the recorded fix")
	}

	sub.Cancel()
	sub.Cancel() // safe to call again

	_, open := <-sub.C
	assert.False(t, open, "Expected feed channel to be closed after cancel")

	// Fixes after cancellation are not delivered & do not panic
	assert.Nil(t, tracker.Record(7, Fix{Latitude: 1, Longitude: 1}))
}

func TestForget(t *testing.T) {
	tracker := NewTracker()

	assert.Nil(t, tracker.Record(3, Fix{Latitude: 10, Longitude: 10}))
	tracker.Forget(3)

	_, err := tracker.CurrentFix(3)
	assert.Equal(t, ErrNoFix, err)
}
