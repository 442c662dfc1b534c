package domain

import "context"

// TrafficOutcome records how a traffic sample was obtained.
type TrafficOutcome string

const (
	TrafficOK           TrafficOutcome = "ok"
	TrafficTimeout      TrafficOutcome = "timeout"
	TrafficError        TrafficOutcome = "error"
	TrafficNoCoordinate TrafficOutcome = "skipped-no-coordinate"
	TrafficDisabled     TrafficOutcome = "skipped-disabled"
)

// Fallback descriptions shown when the traffic service could not answer.
const (
	TrafficUnavailableText = "traffic data unavailable"
	TrafficTimeoutText     = "traffic lookup timed out"
)

// TrafficReading is a normalized answer from a traffic service.
type TrafficReading struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// TrafficSample is the per-cycle traffic result for one checkpoint.
type TrafficSample struct {
	CheckpointID string
	Severity     Severity
	Description  string
	Outcome      TrafficOutcome
}

// TrafficSource looks up road congestion around a coordinate.
type TrafficSource interface {
	Congestion(ctx context.Context, at Coordinate) (TrafficReading, error)
}

// FallbackSample is the GREEN placeholder used for every non-ok outcome.
func FallbackSample(checkpointID string, outcome TrafficOutcome) TrafficSample {
	s := TrafficSample{
		CheckpointID: checkpointID,
		Severity:     SeverityGreen,
		Outcome:      outcome,
	}
	switch outcome {
	case TrafficTimeout:
		s.Description = TrafficTimeoutText
	case TrafficError:
		s.Description = TrafficUnavailableText
	}
	return s
}
