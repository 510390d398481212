// file: internal/pagination/decode_test.go
package pagination

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDecoder_Shapes(t *testing.T) {
	testCases := []struct {
		name        string
		resultsPath string
		body        string
		wantRows    int
		wantDone    bool
		wantMeta    map[string]any
	}{
		{name: "array", body: `[{"a":1},{"a":2}]`, wantRows: 2},
		{name: "array of primitives", body: `[1,2,3]`, wantRows: 3},
		{name: "common list key", body: `{"data":[{"a":1}],"total":7}`, wantRows: 1, wantMeta: map[string]any{"total": json.Number("7")}},
		{name: "results path", resultsPath: "payload.items", body: `{"payload":{"items":[{"a":1},{"a":2}]},"count":2}`, wantRows: 2, wantMeta: map[string]any{"count": json.Number("2")}},
		{name: "results path missing", resultsPath: "hits", body: `{"other":1}`, wantRows: 0, wantMeta: map[string]any{"other": json.Number("1")}},
		{name: "single object", body: `{"id":1}`, wantRows: 1, wantDone: true},
		{name: "primitive", body: `"ok"`, wantRows: 1, wantDone: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := JSONDecoder(tc.resultsPath, "", "")([]byte(tc.body))
			require.NoError(t, err)
			assert.Len(t, page.Rows, tc.wantRows)
			assert.Equal(t, tc.wantDone, page.Done)
			if tc.wantMeta != nil {
				assert.Equal(t, tc.wantMeta, page.Meta)
			}
		})
	}
}

func TestJSONDecoder_CursorAndEnd(t *testing.T) {
	dec := JSONDecoder("results", "meta.next", "meta.last")

	page, err := dec([]byte(`{"results":[{"a":1}],"meta":{"next":"abc","last":false}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", page.NextCursor)
	assert.False(t, page.Done)

	page, err = dec([]byte(`{"results":[],"meta":{"next":null,"last":true}}`))
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	assert.True(t, page.Done)
}

func TestJSONDecoder_InvalidJSON(t *testing.T) {
	_, err := JSONDecoder("", "", "")([]byte(`{nope`))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	v, ok := Lookup(doc, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = Lookup(doc, "a.x")
	assert.False(t, ok)
	_, ok = Lookup(doc, "a.b.c.d")
	assert.False(t, ok)
}
