package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"feed", CategoryFeed},
		{"Reels", CategoryReels},
		{" stories ", CategoryStories},
		{"messages", CategoryMessages},
		{"explore", CategoryExplore},
		{"shopping", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCategory(tt.in))
		})
	}
}

func TestCategorySecondsJSONOmitsZero(t *testing.T) {
	var cs CategorySeconds
	cs[CategoryReels] = 3600
	cs[CategoryStories] = 60

	data, err := json.Marshal(cs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reels":3600,"stories":60}`, string(data))

	var decoded CategorySeconds
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cs, decoded)
	assert.Equal(t, int64(3660), decoded.Total())
}

func TestCategorySecondsRejectsNegative(t *testing.T) {
	var cs CategorySeconds
	err := json.Unmarshal([]byte(`{"feed":-5}`), &cs)
	assert.Error(t, err)
}

func TestFilterCatalog(t *testing.T) {
	id, ok := ParseFilterID("reels")
	require.True(t, ok)
	assert.Equal(t, FilterReels, id)
	assert.Equal(t, 45, id.DailyMinutesSaved())

	_, ok = ParseFilterID("likes")
	assert.False(t, ok)

	invalid := FilterID(42)
	assert.False(t, invalid.Valid())
	assert.Equal(t, 0, invalid.DailyMinutesSaved())

	assert.Len(t, Filters(), NumFilters)
	for i, f := range Filters() {
		assert.Equal(t, FilterID(i), f)
	}
}
