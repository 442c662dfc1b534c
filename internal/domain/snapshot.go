package domain

import (
	"slices"
	"time"
)

// OfflineNotice is attached to snapshots built from the offline dataset.
const OfflineNotice = "live data unavailable, showing offline data"

// Snapshot is the published view. A snapshot is never modified after it is
// published; updates produce a new value that replaces it wholesale.
type Snapshot struct {
	Checkpoints []CheckpointView `json:"checkpoints"`
	Blacklist   []BlacklistItem  `json:"blacklist"`
	Loading     bool             `json:"loading"`
	Offline     bool             `json:"offline"`
	Notice      string           `json:"notice,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
	Cycle       uint64           `json:"cycle"`
}

// Checkpoint returns the view with the given id.
func (s Snapshot) Checkpoint(id string) (CheckpointView, bool) {
	for _, v := range s.Checkpoints {
		if v.ID == id {
			return v, true
		}
	}
	return CheckpointView{}, false
}

// BlacklistItem returns the item with the given id.
func (s Snapshot) BlacklistItem(id string) (BlacklistItem, bool) {
	for _, it := range s.Blacklist {
		if it.ID == id {
			return it, true
		}
	}
	return BlacklistItem{}, false
}

// PatchCheckpoint returns a copy with fn applied to the matching view and the
// checkpoints re-sorted. ok is false when no view matches.
func (s Snapshot) PatchCheckpoint(id string, fn func(*CheckpointView)) (Snapshot, bool) {
	i := slices.IndexFunc(s.Checkpoints, func(v CheckpointView) bool { return v.ID == id })
	if i < 0 {
		return s, false
	}
	views := slices.Clone(s.Checkpoints)
	fn(&views[i])
	s.Checkpoints = SortBySeverity(views)
	return s, true
}

// PatchBlacklistItem returns a copy with fn applied to the matching item and
// the blacklist re-ranked. ok is false when no item matches.
func (s Snapshot) PatchBlacklistItem(id string, fn func(*BlacklistItem)) (Snapshot, bool) {
	i := slices.IndexFunc(s.Blacklist, func(it BlacklistItem) bool { return it.ID == id })
	if i < 0 {
		return s, false
	}
	items := slices.Clone(s.Blacklist)
	fn(&items[i])
	s.Blacklist = RankBlacklist(items)
	return s, true
}
