// Package domain models border-checkpoint congestion as reported by the crowd
// and as observed on the surrounding road network.
//
// # Sources
//
// Two independent signals feed every checkpoint:
//
//	Crowd reports   stored by the report store, aggregated per checkpoint over a
//	                recent window: most frequent reported color, average wait in
//	                whole minutes, report count, time of the latest report.
//	Road traffic    one probe per refresh cycle against the traffic service for the
//	                checkpoint's coordinate. Never cached across cycles.
//
// # Severity colors
//
//	GREEN   smooth, weight 1
//	YELLOW  moderate, weight 2
//	RED     congested or strict checks, weight 3
//
// Anything else has weight 0 and is never produced by [Derive]. A checkpoint
// with no recent reports is GREEN with a 0 minute wait.
//
// # Scoring
//
// [Derive] combines the reported color, the wait time and the traffic sample:
//
//	strictness = 5
//	  RED +3 | YELLOW +1 | GREEN -1
//	  wait > 30 min +1, wait > 60 min +1
//	  clamped to [1, 10]
//	final color = reported color, escalated to RED when traffic is RED
//
// Strictness is computed from the reported color only. A gridlocked access road
// turns the displayed color red but does not raise the strictness score, since
// road congestion measures access delay rather than enforcement.
//
// # Ordering
//
// Views are ordered by color weight, descending, keeping the previous relative
// order of equal colors so the list does not reshuffle between cycles. Blacklist
// items are ordered by today's confiscation count and re-ranked from 1.
package domain
