package builder

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/brensch/voro/game"
	"github.com/brensch/voro/geometry"
	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func smallOptions() Options {
	return Options{Border: 18, Interior: 40, Iterations: 60, Seed: 42}
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	assert.ErrorIs(t, Options{Border: 2}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, Options{Border: 6, Interior: -1}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, Options{Border: 6, Iterations: -1}.Validate(), ErrInvalidOptions)
}

func TestRelax_PopulationAndRadius(t *testing.T) {
	opts := smallOptions()
	pts, stats, err := Relax(opts, quietLogger())
	require.NoError(t, err)
	require.Len(t, pts, opts.Interior)
	assert.Equal(t, opts.Iterations, stats.Iterations)
	for i, p := range pts {
		assert.Less(t, p.Norm(), game.BorderRadius, "point %d", i)
	}
}

func TestRelax_Deterministic(t *testing.T) {
	a, _, err := Relax(smallOptions(), quietLogger())
	require.NoError(t, err)
	b, _, err := Relax(smallOptions(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRelax_ZeroIterationsReturnsSeedPoints(t *testing.T) {
	opts := smallOptions()
	opts.Iterations = 0
	pts, stats, err := Relax(opts, quietLogger())
	require.NoError(t, err)
	assert.Len(t, pts, opts.Interior)
	assert.Zero(t, stats.Iterations)
	assert.True(t, stats.Converged())
}

func TestGenerate_BoardInvariants(t *testing.T) {
	opts := smallOptions()
	b, _, err := Generate(opts, quietLogger())
	require.NoError(t, err)

	require.Equal(t, opts.Border, b.NumBorder)
	require.Equal(t, opts.Border+opts.Interior, b.Len())
	require.NoError(t, b.Validate())

	seen := map[game.Edge]bool{}
	for _, e := range b.Edges {
		assert.NotEqual(t, e[0], e[1])
		assert.Less(t, e[0], e[1])
		assert.Less(t, e[1], b.Len())
		assert.False(t, seen[e], "duplicate edge %v", e)
		seen[e] = true
	}

	// consecutive border cells are always adjacent
	for i := 0; i < b.NumBorder; i++ {
		assert.True(t, seen[game.NewEdge(i, (i+1)%b.NumBorder)], "border %d", i)
	}
}

func wheel(spokes int) *game.Board {
	b, err := Build(geometry.Ring(spokes, game.BorderRadius), []r2.Point{{X: 0, Y: 0}})
	if err != nil {
		panic(err)
	}
	return b
}

func TestBuild_Wheel(t *testing.T) {
	b := wheel(6)
	assert.Equal(t, 6, b.NumBorder)
	assert.Len(t, b.Edges, 12)
	adj := b.Neighbors()
	assert.Len(t, adj[6], 6)
	for i := 0; i < 6; i++ {
		assert.Len(t, adj[i], 3)
	}
}

func TestBuild_DegenerateInput(t *testing.T) {
	_, err := Build([]r2.Point{{X: 20, Y: 0}, {X: -20, Y: 0}}, nil)
	assert.ErrorIs(t, err, geometry.ErrDegenerate)
}

func renderDoc(t *testing.T, b *game.Board) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	RenderSVG(&buf, b)
	require.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "<?xml"))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestRenderSVG_Elements(t *testing.T) {
	b := wheel(6)
	doc := renderDoc(t, b)

	assert.Equal(t, 1, doc.Find("svg").Length())
	assert.Equal(t, len(b.Edges), doc.Find("g#edges line").Length())
	assert.Equal(t, b.Len(), doc.Find("circle").Length())
	assert.Equal(t, 0, doc.Find(`circle[fill="red"]`).Length())
	assert.Equal(t, 0, doc.Find(`circle[fill="blue"]`).Length())

	cell := doc.Find("g#cell-6")
	require.Equal(t, 1, cell.Length())
	assert.Equal(t, "cell 6", cell.Find("title").Text())
}

func TestRenderSVG_DegreeColours(t *testing.T) {
	five := renderDoc(t, wheel(5))
	assert.Equal(t, 1, five.Find(`circle[fill="red"]`).Length())

	seven := renderDoc(t, wheel(7))
	assert.Equal(t, 1, seven.Find(`circle[fill="blue"]`).Length())
}
