package domain

import (
	"fmt"
	"strings"
)

const (
	defaultBlacklistCategory = "cosmetics"
	defaultBlacklistReason   = "exceeds item limit"
)

// BlacklistItem is a crowd-ranked item commonly confiscated at checkpoints.
// Witness votes increment ConfiscatedToday server-side.
type BlacklistItem struct {
	ID               string `json:"id" yaml:"id"`
	Rank             int    `json:"rank" yaml:"-"`
	Name             string `json:"name" yaml:"name"`
	Category         string `json:"category" yaml:"category"`
	Reason           string `json:"reason" yaml:"reason"`
	ConfiscatedToday int    `json:"confiscated_count_today" yaml:"confiscated_count_today"`
}

// NewBlacklistItem is a user submission for a new blacklist entry.
type NewBlacklistItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Normalize trims the submission and fills default category and reason.
// It fails when the name is blank.
func (n NewBlacklistItem) Normalize() (NewBlacklistItem, error) {
	n.Name = strings.TrimSpace(n.Name)
	n.Category = strings.TrimSpace(n.Category)
	n.Reason = strings.TrimSpace(n.Reason)
	if n.Name == "" {
		return n, fmt.Errorf("%w: item name is required", ErrInvalidReport)
	}
	if n.Category == "" {
		n.Category = defaultBlacklistCategory
	}
	if n.Reason == "" {
		n.Reason = defaultBlacklistReason
	}
	return n, nil
}
