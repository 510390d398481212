// file: cmd/dataagents/main_test.go

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//  测试辅助
// ============================================================================

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeAdapterConfig 写出一个指向临时 CSV 的 tabular 适配器配置
func writeAdapterConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cities.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("city,country\nParis,FR\nLyon,FR\nBerlin,DE\n"), 0o644))

	cfgPath := filepath.Join(dir, "cities.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("type: tabular\nlocation: "+filepath.ToSlash(csvPath)+"\n"), 0o644))
	return cfgPath
}

func writeRouterConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cities.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("city,country\nParis,FR\nBerlin,DE\n"), 0o644))

	cfg := `log:
  level: ERROR
adapters:
  cities:
    type: tabular
    location: ` + filepath.ToSlash(csvPath) + `
  other:
    type: tabular
    location: ` + filepath.ToSlash(csvPath) + `
`
	cfgPath := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

// ============================================================================
//  命令
// ============================================================================

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dataagents "+version))
}

func TestHashSecretCommand(t *testing.T) {
	out, err := run(t, "hash-secret", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "$2a$"))
}

func TestQueryCommand_JSON(t *testing.T) {
	cfgPath := writeAdapterConfig(t)

	out, err := run(t, "--adapter-config", cfgPath, "query", "cities", "country=FR")
	require.NoError(t, err)

	var res struct {
		Source string           `json:"source"`
		Rows   []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "cities", res.Source)
	assert.Len(t, res.Rows, 2)
}

func TestQueryCommand_NameOverride(t *testing.T) {
	cfgPath := writeAdapterConfig(t)

	out, err := run(t, "--adapter-config", cfgPath, "--name", "towns", "-o", "table", "query", "towns", "*")
	require.NoError(t, err)
	assert.Contains(t, out, "CITY")
	assert.Contains(t, out, "Berlin")
	assert.Contains(t, out, "(3 行)")

	_, err = run(t, "--adapter-config", cfgPath, "--name", "towns", "query", "cities", "*")
	assert.Error(t, err)
}

func TestQueryCommand_YAML(t *testing.T) {
	cfgPath := writeAdapterConfig(t)

	out, err := run(t, "--adapter-config", cfgPath, "-o", "yaml", "query", "cities", "city=Lyon")
	require.NoError(t, err)
	assert.Contains(t, out, "source: cities")
	assert.Contains(t, out, "city: Lyon")
}

func TestQueryCommand_All(t *testing.T) {
	cfgPath := writeRouterConfig(t)

	out, err := run(t, "-c", cfgPath, "query", "--all", "*")
	require.NoError(t, err)

	var res map[string]outcomeView
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 2)
	assert.Len(t, res["cities"].Result.Rows, 2)
	assert.Len(t, res["other"].Result.Rows, 2)
}

func TestQueryCommand_Errors(t *testing.T) {
	_, err := run(t, "query", "cities", "*")
	assert.ErrorContains(t, err, "--config")

	cfgPath := writeAdapterConfig(t)
	_, err = run(t, "--adapter-config", cfgPath, "query")
	assert.Error(t, err)

	_, err = run(t, "--adapter-config", cfgPath, "-o", "xml", "query", "cities", "*")
	assert.ErrorContains(t, err, "xml")

	_, err = run(t, "--adapter-config", cfgPath, "-c", cfgPath, "list-adapters")
	assert.Error(t, err)
}

func TestListAdaptersCommand(t *testing.T) {
	out, err := run(t, "-c", writeRouterConfig(t), "-o", "table", "list-adapters")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.True(t, strings.HasPrefix(lines[1], "cities"))
	assert.Contains(t, lines[1], "tabular")
	assert.True(t, strings.HasPrefix(lines[2], "other"))
}

func TestDiscoverAndSchemaCommands(t *testing.T) {
	cfgPath := writeRouterConfig(t)

	out, err := run(t, "-c", cfgPath, "discover", "cities")
	require.NoError(t, err)
	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "cities", d["adapter"])
	assert.Equal(t, "tabular", d["type"])

	out, err = run(t, "-c", cfgPath, "discover")
	require.NoError(t, err)
	var all map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 2)

	out, err = run(t, "-c", cfgPath, "-o", "table", "schema", "cities")
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "country")

	_, err = run(t, "-c", cfgPath, "schema", "missing")
	assert.Error(t, err)
}

func TestInfoCommand(t *testing.T) {
	out, err := run(t, "info")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version, info["version"])
	assert.Equal(t, ":8080", info["server_addr"])
	assert.Len(t, info["adapter_types"], 5)
}

func TestEnvFileFlag(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("DATAAGENTS_TEST_ENV_FILE=loaded\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("DATAAGENTS_TEST_ENV_FILE") })

	_, err := run(t, "--env-file", envPath, "version")
	require.NoError(t, err)
	assert.Equal(t, "loaded", os.Getenv("DATAAGENTS_TEST_ENV_FILE"))

	_, err = run(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "version")
	assert.Error(t, err)
}
