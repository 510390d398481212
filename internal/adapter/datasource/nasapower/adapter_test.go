// file: internal/adapter/datasource/nasapower/adapter_test.go
package nasapower

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
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
//  测试替身：模拟 NASA POWER 服务，分别统计目录请求与数据请求
// ============================================================================

type stubPower struct {
	*httptest.Server
	catalogCalls atomic.Int32
	dataCalls    atomic.Int32

	mu        sync.Mutex
	dataPaths []string
	dataQuery []url.Values
	// failCombos 中的组合返回 500
	failCombos map[string]bool
}

func newStubPower(t *testing.T) *stubPower {
	t.Helper()
	s := &stubPower{failCombos: map[string]bool{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/system/manager/parameters":
			s.catalogCalls.Add(1)
			combo := r.URL.Query().Get("community") + "/" + r.URL.Query().Get("temporal")
			if s.failCombos[combo] {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			writeJSON(w, map[string]any{
				"T2M":         map[string]any{"name": "Temperature at 2 Meters", "definition": "Average air temperature", "units": "C"},
				"PRECTOTCORR": map[string]any{"name": "Precipitation Corrected", "units": "mm/day"},
				"BROKEN":      nil,
			})
		case strings.HasPrefix(r.URL.Path, "/api/temporal/"):
			s.dataCalls.Add(1)
			s.mu.Lock()
			s.dataPaths = append(s.dataPaths, r.URL.Path)
			s.dataQuery = append(s.dataQuery, r.URL.Query())
			s.mu.Unlock()
			writeJSON(w, dailyFeature(r.URL.Query()))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

// dailyFeature 为 start..end 之间的每一天生成一个值
func dailyFeature(q url.Values) map[string]any {
	start, _ := time.Parse("20060102", q.Get("start"))
	end, _ := time.Parse("20060102", q.Get("end"))
	params := map[string]any{}
	for _, code := range strings.Split(q.Get("parameters"), ",") {
		series := map[string]any{}
		for d, i := start, 0; !d.After(end); d, i = d.AddDate(0, 0, 1), i+1 {
			series[d.Format("20060102")] = 1.5 + float64(i)
		}
		params[code] = series
	}
	return map[string]any{
		"type":       "Feature",
		"geometry":   map[string]any{"type": "Point", "coordinates": []float64{-74.006, 40.7128, 10.2}},
		"properties": map[string]any{"parameter": params},
		"messages":   []string{},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newAdapter(t *testing.T, base string) *Adapter {
	t.Helper()
	a, err := New("power", domain.AdapterConfig{Type: domain.TypeNASAPower, BaseURL: base},
		remote.WithBackoff(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return a
}

// ============================================================================
//  Query
// ============================================================================

func TestQuery_DailyPointScenario(t *testing.T) {
	power := newStubPower(t)
	a := newAdapter(t, power.URL)

	res, err := a.Query(context.Background(), querylang.Parse(pointQuery))
	require.NoError(t, err)

	assert.Equal(t, int32(1), power.dataCalls.Load(), "恰好一次数据请求")
	require.Len(t, power.dataQuery, 1)
	assert.Equal(t, "/api/temporal/daily/point", power.dataPaths[0])
	q := power.dataQuery[0]
	for k, want := range map[string]string{
		"parameters": "T2M",
		"latitude":   "40.7128",
		"longitude":  "-74.006",
		"start":      "20240101",
		"end":        "20240107",
		"community":  "AG",
	} {
		assert.Equal(t, want, q.Get(k), "参数 %s", k)
	}

	require.Equal(t, 7, res.Len())
	assert.Equal(t, "20240101", res.Rows[0]["date"])
	assert.Equal(t, "20240107", res.Rows[6]["date"])
	assert.Equal(t, 1.5, res.Rows[0]["value"])
	assert.Equal(t, 40.7128, res.Rows[0]["latitude"])
	assert.Equal(t, -74.006, res.Rows[0]["longitude"])
	assert.Equal(t, "T2M", res.Rows[3]["parameter"])
	assert.Equal(t, resultColumns, res.Columns)
}

func TestQuery_ValidationFailuresSendNothing(t *testing.T) {
	power := newStubPower(t)
	a := newAdapter(t, power.URL)

	for _, raw := range []string{
		"T2M longitude=-74.006 start=20240101 end=20240107 community=AG temporal=daily spatial_type=point",
		"T2M latitude=40.7128 start=20240101 end=20240107 community=AG temporal=daily spatial_type=point",
		"T2M latitude_min=44 latitude_max=40 longitude_min=-76 longitude_max=-72 start=20240101 end=20240107 community=AG temporal=daily spatial_type=regional",
		"T2M latitude_min=40 latitude_max=40 longitude_min=-76 longitude_max=-72 start=20240101 end=20240107 community=AG temporal=daily spatial_type=regional",
	} {
		_, err := a.Query(context.Background(), querylang.Parse(raw))
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, port.ErrValidation)

		var qe *port.QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, raw, qe.Query)
		assert.Equal(t, "power", qe.Adapter)
	}
	assert.Zero(t, power.catalogCalls.Load())
	assert.Zero(t, power.dataCalls.Load())
}

func TestQuery_UnknownParameterCode(t *testing.T) {
	power := newStubPower(t)
	a := newAdapter(t, power.URL)

	raw := strings.Replace(pointQuery, "T2M", "T2MX", 1)
	_, err := a.Query(context.Background(), querylang.Parse(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrUnknownParameter)

	var upe *port.UnknownParameterError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "T2MX", upe.Name)
	assert.Contains(t, upe.Suggestions, "T2M")
	assert.Zero(t, power.dataCalls.Load())
}

func TestQuery_CatalogLoadedOncePerCombination(t *testing.T) {
	power := newStubPower(t)
	a := newAdapter(t, power.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Query(context.Background(), querylang.Parse(pointQuery))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), power.catalogCalls.Load())
	assert.Equal(t, int32(8), power.dataCalls.Load())

	// 另一组合单独加载
	other := strings.Replace(pointQuery, "community=AG", "community=RE", 1)
	_, err := a.Query(context.Background(), querylang.Parse(other))
	require.NoError(t, err)
	assert.Equal(t, int32(2), power.catalogCalls.Load())
}

func TestQuery_CatalogIsPerInstance(t *testing.T) {
	power := newStubPower(t)
	first := newAdapter(t, power.URL)
	second := newAdapter(t, power.URL)

	_, err := first.Query(context.Background(), querylang.Parse(pointQuery))
	require.NoError(t, err)
	_, err = second.Query(context.Background(), querylang.Parse(pointQuery))
	require.NoError(t, err)
	assert.Equal(t, int32(2), power.catalogCalls.Load())
}

// ============================================================================
//  Discover / GetSchema
// ============================================================================

func TestDiscover_SupersetToleratesPartialFailure(t *testing.T) {
	power := newStubPower(t)
	power.failCombos["SB/hourly"] = true
	a := newAdapter(t, power.URL)

	d, err := a.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.Parameters, 2)
	assert.Equal(t, "C", d.Parameters["T2M"].Units)
	assert.Equal(t, "Temperature at 2 Meters - Average air temperature", d.Parameters["T2M"].Description)
	assert.Equal(t, "dimensionless", unitsOf(ParameterMeta{}))
	assert.Equal(t, []string{"SB/hourly"}, d.Details["failed_catalogs"])

	available := d.Details["available_in"].(map[string][]availability)
	assert.Len(t, available["T2M"], len(Communities)*len(Temporals)-1)
}

func TestGetSchema(t *testing.T) {
	power := newStubPower(t)
	a := newAdapter(t, power.URL)

	schema, err := a.GetSchema(context.Background())
	require.NoError(t, err)
	require.Contains(t, schema.Tables, "PRECTOTCORR")
	fields := schema.Tables["PRECTOTCORR"]
	require.Len(t, fields, 5)
	assert.Equal(t, "value", fields[2].Name)
	assert.Equal(t, "单位: mm/day", fields[2].Description)
}

func TestParseResponse_FeatureCollection(t *testing.T) {
	body := []byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"coordinates":[-75,40]},"properties":{"parameter":{"T2M":{"202402":2.0,"202401":1.0}}}},
	  {"type":"Feature","geometry":{"coordinates":[-74,41]},"properties":{"parameter":{"T2M":{"202401":3.0}}}}
	]}`)
	rows, _, err := parseResponse(body, []string{"T2M"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "202401", rows[0]["date"])
	assert.Equal(t, 1.0, rows[0]["value"])
	assert.Equal(t, 41.0, rows[2]["latitude"])
	assert.Equal(t, -74.0, rows[2]["longitude"])
}
