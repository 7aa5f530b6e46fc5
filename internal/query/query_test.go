package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_KeepsSupportedFields(t *testing.T) {
	now := time.Now()
	q := ReservoirQuery{
		Accounts:    []string{"alice"},
		Locations:   []Location{{Lat: 1, Lon: 2, RadiusKm: 3}},
		SearchTerms: []string{"emotet"},
		TimeFrame:   TimeFrame{Start: now.Add(-time.Hour), End: now},
	}

	got, err := q.Filter(Capabilities{SearchTerms: true, TimeFrame: true})
	require.NoError(t, err)
	assert.Empty(t, got.Accounts)
	assert.Empty(t, got.Locations)
	assert.Equal(t, []string{"emotet"}, got.SearchTerms)
	assert.Equal(t, q.TimeFrame, got.TimeFrame)

	got.SearchTerms[0] = "changed"
	assert.Equal(t, "emotet", q.SearchTerms[0], "filter must copy slices")
}

func TestFilter_NothingUsable(t *testing.T) {
	q := ReservoirQuery{Accounts: []string{"alice"}, TimeFrame: TimeFrame{Start: time.Now()}}
	_, err := q.Filter(Capabilities{SearchTerms: true, TimeFrame: true})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		q       ReservoirQuery
		wantErr bool
	}{
		{"ok", ReservoirQuery{SearchTerms: []string{"x"}}, false},
		{"blank term", ReservoirQuery{SearchTerms: []string{""}}, true},
		{"bad lat", ReservoirQuery{Locations: []Location{{Lat: 91}}}, true},
		{"reversed frame", ReservoirQuery{TimeFrame: TimeFrame{Start: now, End: now.Add(-time.Minute)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
