package catalog

import (
	"encoding/json"
	"fmt"
)

// FilterID identifies a toggleable content filter.
type FilterID int

const (
	FilterReels FilterID = iota
	FilterStories
	FilterExplore
	FilterSuggested
	FilterSponsored

	// NumFilters is the size of the closed filter catalog.
	NumFilters = int(FilterSponsored) + 1
)

// FilterInfo describes a filter for display and statistics.
type FilterInfo struct {
	ID                FilterID
	Key               string
	Name              string
	DailyMinutesSaved int
	Color             string
}

var filterInfo = [NumFilters]FilterInfo{
	FilterReels:     {ID: FilterReels, Key: "reels", Name: "Reels", DailyMinutesSaved: 45, Color: "purple"},
	FilterStories:   {ID: FilterStories, Key: "stories", Name: "Stories", DailyMinutesSaved: 20, Color: "orange"},
	FilterExplore:   {ID: FilterExplore, Key: "explore", Name: "Explore", DailyMinutesSaved: 25, Color: "blue"},
	FilterSuggested: {ID: FilterSuggested, Key: "suggested", Name: "Suggested Posts", DailyMinutesSaved: 15, Color: "green"},
	FilterSponsored: {ID: FilterSponsored, Key: "sponsored", Name: "Sponsored Posts", DailyMinutesSaved: 10, Color: "gray"},
}

// Filters returns every filter in definition order. Definition order is the
// tie-break order for streak rankings.
func Filters() []FilterID {
	out := make([]FilterID, NumFilters)
	for i := range out {
		out[i] = FilterID(i)
	}
	return out
}

// Valid reports whether id belongs to the catalog.
func (id FilterID) Valid() bool {
	return id >= 0 && int(id) < NumFilters
}

// Info returns the catalog entry. Invalid ids return a zero FilterInfo.
func (id FilterID) Info() FilterInfo {
	if !id.Valid() {
		return FilterInfo{ID: id}
	}
	return filterInfo[id]
}

// String returns the stable key ("reels", "stories", ...).
func (id FilterID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("filter(%d)", int(id))
	}
	return filterInfo[id].Key
}

// Name returns the display name.
func (id FilterID) Name() string { return id.Info().Name }

// DailyMinutesSaved returns the estimated minutes saved per active day.
func (id FilterID) DailyMinutesSaved() int { return id.Info().DailyMinutesSaved }

// ParseFilterID looks up a filter by key.
func ParseFilterID(key string) (FilterID, bool) {
	for _, info := range filterInfo {
		if info.Key == key {
			return info.ID, true
		}
	}
	return -1, false
}

// MarshalJSON encodes the filter by key.
func (id FilterID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a filter key.
func (id *FilterID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseFilterID(s)
	if !ok {
		return fmt.Errorf("unknown filter: %s", s)
	}
	*id = parsed
	return nil
}
