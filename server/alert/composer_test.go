package alert

import (
	"strings"
	"testing"

	"github.com/sheshield/sheshield/server/location"
	"github.com/stretchr/testify/assert"
)

func TestMapsURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps?q=43.6532,-79.3832",
		MapsURL(43.6532, -79.3832))

	// Whole-number coordinates don't grow trailing zeros
	assert.Equal(t,
		"https://www.google.com/maps?q=0,0",
		MapsURL(0, 0))
}

func TestCompose(t *testing.T) {
	fix := location.Fix{Latitude: 6.5244, Longitude: 3.3792}

	message := Compose(fix)
	assert.Contains(t, message, "🚨 EMERGENCY ALERT: I'm Unsafe! 🚨")
	assert.Contains(t, message, "https://www.google.com/maps?q=6.5244,3.3792")
	assert.Contains(t, message, "Please contact me immediately or call emergency services if needed.")
	assert.Equal(t, 1, strings.Count(message, "https://"), "Expected exactly one map link in the message")

	// Same fix, same message
	assert.Equal(t, message, Compose(fix))
}
