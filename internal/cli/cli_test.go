package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brensch/voro/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
database: `+filepath.Join(dir, "voro.db")+`
log:
  level: warn
builder:
  border: 18
  interior: 40
  iterations: 60
  seed: 42
`), 0644))
	return env{dir: dir, config: config}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := Root()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (e env) path(name string) string {
	return filepath.Join(e.dir, name)
}

func TestBoardToArchive(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "build", "-o", e.path("board.json"), "--svg", e.path("board.svg"))
	require.NoError(t, err)
	data, err := os.ReadFile(e.path("board.json"))
	require.NoError(t, err)
	b, err := game.ParseBoard(data)
	require.NoError(t, err)
	assert.Equal(t, 18, b.NumBorder)
	assert.Equal(t, 58, b.Len())
	assert.FileExists(t, e.path("board.svg"))

	out, err := e.run(t, "render", e.path("board.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<?xml"))

	_, err = e.run(t, "initdb")
	require.NoError(t, err)
	assert.FileExists(t, e.path("voro.db"))

	out, err = e.run(t, "addboard", "disk", e.path("board.json"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = e.run(t, "newgame", "1", "--player1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = e.run(t, "verify")
	require.NoError(t, err)
	assert.Equal(t, "1\tplayer 1 to move (1 left)\n", out)

	archives := e.path("archives")
	_, err = e.run(t, "export", filepath.Join(archives, "games.parquet"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(archives, "games.parquet"))

	out, err = e.run(t, "stats", "--archives", archives)
	require.NoError(t, err)
	assert.Contains(t, out, "boards:\t1\ngames:\t1\ntokens:\t0\n")
	assert.Contains(t, out, "archived games:\t1\n")
}

func TestBuildFlagsOverrideConfig(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "build", "--border", "8", "--interior", "5", "--iterations", "3")
	require.NoError(t, err)
	b, err := game.ParseBoard([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 8, b.NumBorder)
	assert.Equal(t, 13, b.Len())
}

func TestErrors(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "newgame", "abc")
	assert.ErrorContains(t, err, "bad board id")

	_, err = e.run(t, "addboard", "x", e.path("missing.json"))
	assert.ErrorContains(t, err, "failed to read board")

	_, err = e.run(t, "newgame", "7")
	assert.Error(t, err, "unknown board")

	_, err = e.run(t, "--log-format", "xml", "initdb")
	assert.ErrorContains(t, err, "logging")

	_, err = e.run(t, "build", "--border", "2")
	assert.Error(t, err)

	_, err = e.run(t, "verify", "nine")
	assert.ErrorContains(t, err, "bad game id")
}

func TestDescribe(t *testing.T) {
	two := 2
	assert.Equal(t, "complete 3:-1", describe(game.Status{GameComplete: true, Score1: 3, Score2: -1}))
	assert.Equal(t, "player 2 to move (1 left), 2 connections remaining",
		describe(game.Status{ToMove: game.Player2, MovesLeft: 1, BorderFull: true, ConnectionsRemaining: &two}))
	assert.Equal(t, "3 games", plural(3, "game"))
	assert.Equal(t, "1 game", plural(1, "game"))
}
