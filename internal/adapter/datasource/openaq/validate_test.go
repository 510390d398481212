// file: internal/adapter/datasource/openaq/validate_test.go
package openaq

import (
	"testing"

	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Accepts(t *testing.T) {
	req, err := Validate(querylang.Parse("no2 bbox=-74.1,40.6,-73.9,40.8 iso=US date_from=2024-01-01 date_to=2024-01-31T23:59:59Z limit=50 locations_limit=10"))
	require.NoError(t, err)
	assert.Equal(t, "no2", req.Parameter)
	assert.Equal(t, []float64{-74.1, 40.6, -73.9, 40.8}, req.BBox)
	assert.Equal(t, "US", req.ISO)
	assert.Equal(t, "2024-01-31T23:59:59Z", req.DateTo)
	assert.Equal(t, 50, req.Limit)
	assert.Equal(t, 10, req.LocationsLimit)

	req, err = Validate(querylang.Parse("*"))
	require.NoError(t, err)
	assert.Empty(t, req.Parameter)
	assert.Equal(t, defaultLocationsLimit, req.LocationsLimit)
	assert.Zero(t, req.Limit)
}

func TestValidate_Rejects(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		wantField string
		wantRule  string
	}{
		{name: "empty", raw: "", wantField: "parameter", wantRule: "required"},
		{name: "two parameters", raw: "pm25 no2", wantField: "parameter", wantRule: "single-parameter"},
		{name: "unknown key", raw: "pm25 city=Paris", wantField: "city", wantRule: "unknown-key"},
		{name: "bbox three numbers", raw: "pm25 bbox=1,2,3", wantField: "bbox", wantRule: "len=4"},
		{name: "bbox not numeric", raw: "pm25 bbox=a,2,3,4", wantField: "bbox", wantRule: "numeric"},
		{name: "bbox latitude out of range", raw: "pm25 bbox=-74,-95,-73,40", wantField: "bbox", wantRule: "gte=-90,lte=90"},
		{name: "bbox inverted longitude", raw: "pm25 bbox=-73,40,-74,41", wantField: "bbox", wantRule: "min_lon<max_lon"},
		{name: "bbox inverted latitude", raw: "pm25 bbox=-74,41,-73,40", wantField: "bbox", wantRule: "min_lat<max_lat"},
		{name: "bbox with coordinates", raw: "pm25 bbox=-74,40,-73,41 coordinates=40.5,-73.5 radius=100", wantField: "coordinates", wantRule: "excluded_with=bbox"},
		{name: "coordinates without radius", raw: "pm25 coordinates=40.5,-73.5", wantField: "radius", wantRule: "required_with=coordinates"},
		{name: "radius without coordinates", raw: "pm25 radius=100", wantField: "radius", wantRule: "requires=coordinates"},
		{name: "radius too large", raw: "pm25 coordinates=40.5,-73.5 radius=25001", wantField: "radius", wantRule: "gte=1,lte=25000"},
		{name: "radius zero", raw: "pm25 coordinates=40.5,-73.5 radius=0", wantField: "radius", wantRule: "gte=1,lte=25000"},
		{name: "latitude out of range", raw: "pm25 coordinates=91,0 radius=10", wantField: "coordinates", wantRule: "gte=-90,lte=90"},
		{name: "bad iso", raw: "pm25 iso=USA", wantField: "iso", wantRule: "iso3166_1_alpha2"},
		{name: "bad date", raw: "pm25 date_from=01/02/2024", wantField: "date_from", wantRule: "YYYY-MM-DD|RFC3339"},
		{name: "inverted dates", raw: "pm25 date_from=2024-02-01 date_to=2024-01-01", wantField: "date_from", wantRule: "date_from<=date_to"},
		{name: "limit too large", raw: "pm25 limit=10001", wantField: "limit", wantRule: "gte=1,lte=10000"},
		{name: "limit not integer", raw: "pm25 limit=ten", wantField: "limit", wantRule: "integer"},
		{name: "locations limit", raw: "pm25 locations_limit=1001", wantField: "locations_limit", wantRule: "gte=1,lte=1000"},
		{name: "limit twice", raw: "pm25 limit=1,2", wantField: "limit", wantRule: "single-value"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(querylang.Parse(tc.raw))
			var ve *port.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.wantField, ve.Field)
			assert.Equal(t, tc.wantRule, ve.Rule)
		})
	}
}

func TestMatch(t *testing.T) {
	params := []Parameter{{ID: 1, Name: "pm10"}, {ID: 2, Name: "pm25"}, {ID: 3, Name: "PM1"}, {ID: 7, Name: "relativehumidity"}}

	testCases := []struct {
		name   string
		wantID int64
		wantOK bool
	}{
		{name: "pm25", wantID: 2, wantOK: true},
		{name: "PM1", wantID: 3, wantOK: true},
		{name: "pm1", wantID: 3, wantOK: true},
		{name: "PM2", wantID: 2, wantOK: true},
		{name: "humid", wantID: 7, wantOK: true},
		{name: "ozone"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := match(params, tc.name)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantID, p.ID)
		})
	}
}
