// file: internal/service/factory_test.go
package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapter_UnknownType(t *testing.T) {
	_, err := NewAdapter(context.Background(), "x", domain.AdapterConfig{Type: "ftp"}, nil)
	assert.ErrorIs(t, err, port.ErrConfiguration)
}

func TestBuildRouter(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "cities.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("city,population\nParis,2100000\nLyon,520000\n"), 0o644))

	cfgs := map[string]domain.AdapterConfig{
		"cities": {Type: domain.TypeTabular, Location: csvPath},
		"power":  {Type: domain.TypeNASAPower},
		"gbif":   {Type: domain.TypeGBIF},
	}
	r, err := BuildRouter(context.Background(), cfgs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, []string{"cities", "gbif", "power"}, r.Names())
	res, err := r.Query(context.Background(), "cities", "*")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len())
}

func TestBuildRouter_FailsOnBadAdapter(t *testing.T) {
	cfgs := map[string]domain.AdapterConfig{
		"power":  {Type: domain.TypeNASAPower},
		"broken": {Type: domain.TypeTabular},
	}
	_, err := BuildRouter(context.Background(), cfgs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrConfiguration)
	assert.Contains(t, err.Error(), "broken")
}

func TestAdapterTypes(t *testing.T) {
	assert.Equal(t, []string{
		domain.TypeGBIF, domain.TypeNASAPower, domain.TypeOpenAQ, domain.TypeREST, domain.TypeTabular,
	}, AdapterTypes())
}
