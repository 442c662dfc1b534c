package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// NoReportsLabel is shown for checkpoints without any recent report.
const NoReportsLabel = "no reports yet"

// LastUpdatedLabel renders the age of the latest report relative to the
// package clock.
func LastUpdatedLabel(last time.Time) string {
	if last.IsZero() {
		return NoReportsLabel
	}
	age := clock.Since(last)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%d min ago", int(age/time.Minute))
	default:
		return fmt.Sprintf("%d h ago", int(age/time.Hour))
	}
}

// DistanceLabel renders a distance in kilometers: whole meters below 1 km,
// one decimal kilometer above.
func DistanceLabel(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}

// ShareText renders the plain-text status card users forward to each other.
func ShareText(v CheckpointView) string {
	traffic := v.TrafficDescription
	if traffic == "" {
		traffic = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s live status:\n", v.Name)
	fmt.Fprintf(&b, "Status: %s\n", v.Status.Text())
	fmt.Fprintf(&b, "Strictness: %d/10, expected wait %d min.\n", v.StrictnessScore, v.WaitTimeMinutes)
	fmt.Fprintf(&b, "Nearby roads: %s.", traffic)
	return b.String()
}
