package alert

import (
	"fmt"
	"strconv"

	"github.com/sheshield/sheshield/server/location"
)

const mapsBaseURL = "https://www.google.com/maps"

// emergencyMessageTemplate is the exact phrase the mobile app sends,
// with the map link spliced into the middle.
const emergencyMessageTemplate = "🚨 EMERGENCY ALERT: I'm Unsafe! 🚨\n\n" +
	"This is an emergency alert. My current location is:\n%v\n\n" +
	"Please contact me immediately or call emergency services if needed."

// MapsURL renders a fix as a shareable map link of the form
// https://www.google.com/maps?q=<lat>,<lon>
func MapsURL(latitude, longitude float64) string {
	return fmt.Sprintf("%v?q=%v,%v",
		mapsBaseURL,
		strconv.FormatFloat(latitude, 'f', -1, 64),
		strconv.FormatFloat(longitude, 'f', -1, 64),
	)
}

// Compose builds the emergency SMS body for a fix. Pure - same fix in,
// same message out.
func Compose(fix location.Fix) string {
	return fmt.Sprintf(emergencyMessageTemplate, MapsURL(fix.Latitude, fix.Longitude))
}
