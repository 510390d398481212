// file: internal/adapter/datasource/gbif/adapter_test.go
package gbif

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"DataAgents/internal/adapter/datasource/remote"
	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"
	"DataAgents/internal/querylang"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//  测试替身：模拟 occurrence/search，共 total 条记录
// ============================================================================

type stubGBIF struct {
	*httptest.Server
	total int
	calls atomic.Int32

	mu      sync.Mutex
	queries []url.Values
	agents  []string
}

func newStubGBIF(t *testing.T, total int) *stubGBIF {
	t.Helper()
	s := &stubGBIF{total: total}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/occurrence/search" {
			http.NotFound(w, r)
			return
		}
		s.calls.Add(1)
		q := r.URL.Query()
		s.mu.Lock()
		s.queries = append(s.queries, q)
		s.agents = append(s.agents, r.Header.Get("User-Agent"))
		s.mu.Unlock()

		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		results := []map[string]any{}
		for i := offset; i < s.total && i < offset+limit; i++ {
			results = append(results, map[string]any{"key": i, "scientificName": "Puma concolor"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"offset":       offset,
			"limit":        limit,
			"endOfRecords": offset+limit >= s.total,
			"count":        s.total,
			"results":      results,
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stubGBIF) query(i int) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[i]
}

func newAdapter(t *testing.T, base string) *Adapter {
	t.Helper()
	a, err := New("gbif", domain.AdapterConfig{Type: domain.TypeGBIF, BaseURL: base},
		remote.WithBackoff(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return a
}

// ============================================================================
//  Query
// ============================================================================

func TestQuery_DefaultLimitSinglePage(t *testing.T) {
	stub := newStubGBIF(t, 1000)
	a := newAdapter(t, stub.URL)

	res, err := a.Query(context.Background(), querylang.Parse("Puma concolor country=US"))
	require.NoError(t, err)

	assert.Equal(t, defaultLimit, res.Len())
	assert.Equal(t, int32(1), stub.calls.Load())
	q := stub.query(0)
	assert.Equal(t, "Puma concolor", q.Get("q"))
	assert.Equal(t, "US", q.Get("country"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.Equal(t, userAgent, stub.agents[0])
	assert.Equal(t, int64(1000), res.Meta["count"])
	assert.Equal(t, false, res.Meta["endOfRecords"])
}

func TestQuery_PaginatesInPagesOf300(t *testing.T) {
	stub := newStubGBIF(t, 1000)
	a := newAdapter(t, stub.URL)

	res, err := a.Query(context.Background(), querylang.Parse("* limit=650"))
	require.NoError(t, err)
	assert.Equal(t, 650, res.Len())
	assert.Equal(t, int32(3), stub.calls.Load())
	assert.Equal(t, "300", stub.query(0).Get("limit"))
	assert.Equal(t, "300", stub.query(1).Get("offset"))
	assert.Equal(t, "50", stub.query(2).Get("limit"))
	assert.False(t, stub.query(0).Has("q"), "`*` 不发送 q")
}

func TestQuery_StopsAtEndOfRecords(t *testing.T) {
	stub := newStubGBIF(t, 310)
	a := newAdapter(t, stub.URL)

	res, err := a.Query(context.Background(), querylang.Parse("* limit=5000 offset=5"))
	require.NoError(t, err)
	assert.Equal(t, 305, res.Len())
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, true, res.Meta["endOfRecords"])
	assert.Equal(t, "5", stub.query(0).Get("offset"))
}

func TestQuery_MultiValuesAndRanges(t *testing.T) {
	stub := newStubGBIF(t, 3)
	a := newAdapter(t, stub.URL)

	_, err := a.Query(context.Background(), querylang.Parse(
		"* basis_of_record=HUMAN_OBSERVATION,PRESERVED_SPECIMEN decimalLatitude=40.5,45 year=1990,* has_coordinate=true eventDate=2020-01,2020-12-31"))
	require.NoError(t, err)

	q := stub.query(0)
	assert.Equal(t, []string{"HUMAN_OBSERVATION", "PRESERVED_SPECIMEN"}, q["basisOfRecord"])
	assert.Equal(t, "40.5,45", q.Get("decimalLatitude"))
	assert.Equal(t, "1990,*", q.Get("year"))
	assert.Equal(t, "true", q.Get("hasCoordinate"))
	assert.Equal(t, "2020-01,2020-12-31", q.Get("eventDate"))
}

func TestQuery_ValidationFailuresSendNothing(t *testing.T) {
	stub := newStubGBIF(t, 3)
	a := newAdapter(t, stub.URL)

	testCases := []struct {
		name      string
		raw       string
		wantErr   error
		wantField string
	}{
		{name: "empty", raw: "", wantErr: port.ErrValidation, wantField: "q"},
		{name: "unknown key", raw: "* colour=red", wantErr: port.ErrUnknownParameter},
		{name: "bad basis", raw: "* basisOfRecord=GUESS", wantErr: port.ErrValidation, wantField: "basisOfRecord"},
		{name: "bad continent", raw: "* continent=ATLANTIS", wantErr: port.ErrValidation, wantField: "continent"},
		{name: "unknown country", raw: "* country=ZZ", wantErr: port.ErrValidation, wantField: "country"},
		{name: "latitude out of range", raw: "* decimalLatitude=95", wantErr: port.ErrValidation, wantField: "decimalLatitude"},
		{name: "inverted range", raw: "* year=2020,1990", wantErr: port.ErrValidation, wantField: "year"},
		{name: "three values", raw: "* month=1,2,3", wantErr: port.ErrValidation, wantField: "month"},
		{name: "month 13", raw: "* month=13", wantErr: port.ErrValidation, wantField: "month"},
		{name: "limit zero", raw: "* limit=0", wantErr: port.ErrValidation, wantField: "limit"},
		{name: "limit too large", raw: "* limit=100001", wantErr: port.ErrValidation, wantField: "limit"},
		{name: "negative offset", raw: "* offset=-1", wantErr: port.ErrValidation, wantField: "offset"},
		{name: "taxon key not numeric", raw: "* taxonKey=puma", wantErr: port.ErrValidation, wantField: "taxonKey"},
		{name: "bad uuid", raw: "* datasetKey=abc", wantErr: port.ErrValidation, wantField: "datasetKey"},
		{name: "bad bool", raw: "* hasCoordinate=yes", wantErr: port.ErrValidation, wantField: "hasCoordinate"},
		{name: "bad date", raw: "* eventDate=2020-13-01", wantErr: port.ErrValidation, wantField: "eventDate"},
		{name: "q twice", raw: "puma q=lion", wantErr: port.ErrValidation, wantField: "q"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Query(context.Background(), querylang.Parse(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			if tc.wantField != "" {
				var ve *port.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tc.wantField, ve.Field)
			}
		})
	}
	assert.Zero(t, stub.calls.Load())
}

func TestCount(t *testing.T) {
	stub := newStubGBIF(t, 4242)
	a := newAdapter(t, stub.URL)

	n, err := a.Count(context.Background(), querylang.Parse("country=US limit=5"))
	require.NoError(t, err)
	assert.Equal(t, int64(4242), n)
	assert.Equal(t, "0", stub.query(0).Get("limit"))

	n, err = a.Count(context.Background(), querylang.Parse(""))
	require.NoError(t, err)
	assert.Equal(t, int64(4242), n)
}

// ============================================================================
//  Discover / GetSchema
// ============================================================================

func TestDiscover(t *testing.T) {
	a := newAdapter(t, "https://example.org/v1")

	d, err := a.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TypeGBIF, d.Type)
	assert.Equal(t, basisOfRecordValues, d.Parameters["basisOfRecord"].Allowed)
	assert.Equal(t, "number_or_range", d.Parameters["decimalLatitude"].Type)
	assert.Equal(t, len(searchParams), d.Details["total_parameters"])
}

func TestGetSchema(t *testing.T) {
	a := newAdapter(t, "https://example.org/v1")

	s, err := a.GetSchema(context.Background())
	require.NoError(t, err)
	fields := s.Tables["occurrence"]
	require.NotEmpty(t, fields)
	for _, f := range fields {
		if f.Name == "country" {
			assert.True(t, f.IsSearchable)
		}
		if f.Name == "locality" {
			assert.False(t, f.IsSearchable)
		}
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	a, err := New("gbif", domain.AdapterConfig{Type: domain.TypeGBIF})
	require.NoError(t, err)
	d, err := a.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, d.Location)
}
