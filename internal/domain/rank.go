package domain

import (
	"cmp"
	"slices"
)

// SortBySeverity returns the views ordered RED, YELLOW, GREEN, unknown. Views
// of equal color keep their input order. The input slice is not modified.
func SortBySeverity(views []CheckpointView) []CheckpointView {
	sorted := slices.Clone(views)
	slices.SortStableFunc(sorted, func(a, b CheckpointView) int {
		return cmp.Compare(b.Status.Weight(), a.Status.Weight())
	})
	return sorted
}

// RankBlacklist orders items by today's confiscation count, highest first,
// and renumbers Rank from 1. Ties keep their input order.
func RankBlacklist(items []BlacklistItem) []BlacklistItem {
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, func(a, b BlacklistItem) int {
		return cmp.Compare(b.ConfiscatedToday, a.ConfiscatedToday)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
