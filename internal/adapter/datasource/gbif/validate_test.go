// file: internal/adapter/datasource/gbif/validate_test.go
package gbif

import (
	"testing"

	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Normalizes(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		key   string
		want  []string
		limit int
	}{
		{name: "free text becomes q", raw: "Quercus robur", key: "q", want: []string{"Quercus robur"}, limit: defaultLimit},
		{name: "snake case key", raw: "* scientific_name=Puma", key: "scientificName", want: []string{"Puma"}, limit: defaultLimit},
		{name: "closed range", raw: "* elevation=100,2000", key: "elevation", want: []string{"100,2000"}, limit: defaultLimit},
		{name: "open lower bound", raw: "* depth=*,50", key: "depth", want: []string{"*,50"}, limit: defaultLimit},
		{name: "single number", raw: "* year=2001", key: "year", want: []string{"2001"}, limit: defaultLimit},
		{name: "repeated enum", raw: "* continent=EUROPE continent=ASIA", key: "continent", want: []string{"EUROPE", "ASIA"}, limit: defaultLimit},
		{name: "comma bearing value stays whole", raw: "* geoDistance=90,100,5km", key: "geoDistance", want: []string{"90,100,5km"}, limit: defaultLimit},
		{name: "snake case comma bearing value", raw: "* geo_distance=90,100,5km", key: "geoDistance", want: []string{"90,100,5km"}, limit: defaultLimit},
		{name: "explicit limit", raw: "* limit=500", key: "q", limit: 500},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := Validate(querylang.Parse(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, req.Query[tc.key])
			assert.Equal(t, tc.limit, req.Limit)
			assert.False(t, req.Query.Has("limit"), "limit 由分页引擎设置")
		})
	}
}

func TestValidate_UnknownKeySuggests(t *testing.T) {
	_, err := Validate(querylang.Parse("* basis=HUMAN_OBSERVATION"))
	var ue *port.UnknownParameterError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "basis", ue.Name)
	assert.Contains(t, ue.Suggestions, "basisOfRecord")
}

func TestValidate_RangeRules(t *testing.T) {
	testCases := []struct {
		raw      string
		wantRule string
	}{
		{raw: "* year=*", wantRule: "value-or-range"},
		{raw: "* year=*,*", wantRule: "value-or-range"},
		{raw: "* year=abc", wantRule: "numeric"},
		{raw: "* elevation=500,100", wantRule: "lo<=hi"},
		{raw: "* eventDate=2021,2020", wantRule: "lo<=hi"},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			_, err := Validate(querylang.Parse(tc.raw))
			var ve *port.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.wantRule, ve.Rule)
		})
	}
}
