package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchOutput struct {
	Total   int  `json:"total"`
	Aged    *int `json:"aged"`
	Results []struct {
		ID       int    `json:"id"`
		LastName string `json:"lastName"`
		URL      string `json:"url"`
	} `json:"results"`
}

func writeConfig(t *testing.T, storage string) string {
	t.Helper()

	t.Setenv("PORT", "")
	t.Setenv("ROCKSTARS_BACKEND", "")

	file := path.Join(t.TempDir(), "rockstars.yaml")
	yaml := fmt.Sprintf("addr: \"127.0.0.1:0\"\nmode: test\nviews:\n  source: none\nstorage:\n%s", storage)
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0644))

	return file
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func search(t *testing.T, config string, args ...string) searchOutput {
	t.Helper()

	out, err := run(t, context.Background(), append([]string{"--config", config, "search"}, args...)...)
	require.NoError(t, err)

	var res searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func TestResetAndSearchSQLite(t *testing.T) {
	db := path.Join(t.TempDir(), "rockstars.db")
	config := writeConfig(t, fmt.Sprintf("  backend: sqlite\n  sqlite_path: %q\n", db))

	out, err := run(t, context.Background(), "--config", config, "reset")
	require.NoError(t, err)
	assert.Equal(t, "reset 9 rockstars\n", out)

	res := search(t, config, "--age", "42")
	assert.Equal(t, 9, res.Total)
	require.NotNil(t, res.Aged)
	assert.Equal(t, 42, *res.Aged)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Presley", res.Results[0].LastName)

	res = search(t, config, "--id", "4", "--age", "42")
	require.Len(t, res.Results, 1)
	assert.Equal(t, "/stars/dead/cobain/", res.Results[0].URL)

	res = search(t, config, "--id", "3")
	assert.Equal(t, 9, res.Total)
	assert.Empty(t, res.Results)
}

func TestSearchAgeZeroIsAFilter(t *testing.T) {
	db := path.Join(t.TempDir(), "rockstars.db")
	config := writeConfig(t, fmt.Sprintf("  backend: sqlite\n  sqlite_path: %q\n", db))

	_, err := run(t, context.Background(), "--config", config, "reset")
	require.NoError(t, err)

	res := search(t, config, "--age", "0")
	require.NotNil(t, res.Aged)
	assert.Empty(t, res.Results)

	res = search(t, config)
	assert.Nil(t, res.Aged)
	assert.Len(t, res.Results, 9)
}

func TestServeSeedsJournaledMemory(t *testing.T) {
	dir := t.TempDir()
	config := writeConfig(t, fmt.Sprintf("  backend: memory\n  data_dir: %q\n", dir))

	// an already cancelled context makes serve seed, start and stop at once
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := run(t, ctx, "--config", config, "serve", "--seed")
	require.NoError(t, err)

	res := search(t, config)
	assert.Equal(t, 9, res.Total)

	// the table is not empty anymore, so seeding again changes nothing
	_, err = run(t, ctx, "--config", config, "serve", "--seed")
	require.NoError(t, err)
	assert.Equal(t, 9, search(t, config).Total)
}

func TestInvalidConfig(t *testing.T) {
	config := writeConfig(t, "  backend: redis\n")

	_, err := run(t, context.Background(), "--config", config, "reset")
	assert.ErrorContains(t, err, `unknown storage backend "redis"`)
}

func TestInvalidLogLevel(t *testing.T) {
	config := writeConfig(t, "  backend: memory\n")

	_, err := run(t, context.Background(), "--config", config, "--log-level", "loud", "reset")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}
