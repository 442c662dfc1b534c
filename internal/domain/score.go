package domain

const (
	MinStrictness  = 1
	MaxStrictness  = 10
	baseStrictness = 5
)

// Strictness scores enforcement intensity from the crowd-reported color and
// the average wait. Missing colors count as GREEN and negative waits as zero.
func Strictness(reported Severity, waitMinutes int) int {
	score := baseStrictness
	switch reported.orGreen() {
	case SeverityRed:
		score += 3
	case SeverityYellow:
		score++
	case SeverityGreen:
		score--
	}
	if waitMinutes > 30 {
		score++
	}
	if waitMinutes > 60 {
		score++
	}
	return min(max(score, MinStrictness), MaxStrictness)
}

// Derive returns the displayed color and the strictness score for one
// checkpoint. A RED traffic sample escalates the color only; the score is
// always computed from the reported color.
func Derive(reported Severity, waitMinutes int, traffic TrafficSample) (Severity, int) {
	final := reported.orGreen()
	strictness := Strictness(final, waitMinutes)
	if traffic.Severity == SeverityRed {
		final = SeverityRed
	}
	return final, strictness
}

// BuildView merges a checkpoint, its aggregate and its traffic sample into the
// published view.
func BuildView(cp Checkpoint, agg ReportAggregate, traffic TrafficSample) CheckpointView {
	wait := max(agg.AvgWaitMinutes, 0)
	final, strictness := Derive(agg.ReportedSeverity, wait, traffic)

	return CheckpointView{
		ID:                 cp.ID,
		Name:               cp.Name,
		Location:           cp.Location,
		Status:             final,
		StrictnessScore:    strictness,
		WaitTimeMinutes:    wait,
		ReportCount:        max(agg.ReportCount, 0),
		LastUpdated:        LastUpdatedLabel(agg.LastReportAt),
		TrafficStatus:      traffic.Severity.orGreen(),
		TrafficDescription: traffic.Description,
		Coordinate:         cp.Coordinate,
	}
}
