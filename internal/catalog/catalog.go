package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category identifies the part of the content surface a user is viewing.
type Category int

const (
	CategoryFeed Category = iota
	CategoryReels
	CategoryStories
	CategoryMessages
	CategoryExplore
	CategoryOther

	// NumCategories is the size of the closed category set.
	NumCategories = int(CategoryOther) + 1
)

var categoryNames = [NumCategories]string{
	CategoryFeed:     "feed",
	CategoryReels:    "reels",
	CategoryStories:  "stories",
	CategoryMessages: "messages",
	CategoryExplore:  "explore",
	CategoryOther:    "other",
}

// Categories returns every category in definition order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// String returns the lowercase category name.
func (c Category) String() string {
	if !c.Valid() {
		return categoryNames[CategoryOther]
	}
	return categoryNames[c]
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

// ParseCategory maps a name to a Category. Unknown names map to CategoryOther.
func ParseCategory(name string) Category {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == name {
			return Category(i)
		}
	}
	return CategoryOther
}

// MarshalJSON encodes the category by name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a category name.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseCategory(s)
	return nil
}

// CategorySeconds holds accumulated seconds per category.
type CategorySeconds [NumCategories]int64

// Total sums all categories.
func (cs CategorySeconds) Total() int64 {
	var total int64
	for _, s := range cs {
		total += s
	}
	return total
}

// Add accumulates other into cs.
func (cs *CategorySeconds) Add(other CategorySeconds) {
	for i, s := range other {
		cs[i] += s
	}
}

// Map returns only the categories with a positive count.
func (cs CategorySeconds) Map() map[string]int64 {
	out := make(map[string]int64)
	for i, s := range cs {
		if s > 0 {
			out[Category(i).String()] = s
		}
	}
	return out
}

// MarshalJSON encodes the non-zero entries as an object keyed by category name.
func (cs CategorySeconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.Map())
}

// UnmarshalJSON decodes an object keyed by category name. Negative values are
// rejected so a corrupted record cannot drive totals below zero.
func (cs *CategorySeconds) UnmarshalJSON(data []byte) error {
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out CategorySeconds
	for name, seconds := range raw {
		if seconds < 0 {
			return fmt.Errorf("negative seconds for category %q", name)
		}
		out[ParseCategory(name)] += seconds
	}
	*cs = out
	return nil
}
