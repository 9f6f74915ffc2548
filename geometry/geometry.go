// Package geometry holds the planar primitives the board builder needs:
// border rings, Delaunay triangulation, and the Voronoi cells derived from it.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/brensch/voro/game"
	"github.com/fogleman/delaunay"
	"github.com/golang/geo/r2"
)

var ErrDegenerate = errors.New("geometry: degenerate point set")

// Ring returns n points evenly spaced on a circle of radius r around the
// origin, starting on the positive x axis and going counter-clockwise.
func Ring(n int, r float64) []r2.Point {
	pts := make([]r2.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r2.Point{X: math.Cos(a) * r, Y: math.Sin(a) * r}
	}
	return pts
}

// Triangulation is a Delaunay triangulation indexed by input position.
type Triangulation struct {
	Points    []r2.Point
	Triangles [][3]int
	// Hull marks points that lie on the convex hull.
	Hull []bool
}

// Triangulate computes the Delaunay triangulation of points. Duplicate points
// are kept in Points but belong to no triangle.
func Triangulate(points []r2.Point) (*Triangulation, error) {
	in := make([]delaunay.Point, len(points))
	for i, p := range points {
		in[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	dt, err := delaunay.Triangulate(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %d points: %v", ErrDegenerate, len(points), err)
	}

	t := &Triangulation{
		Points:    points,
		Triangles: make([][3]int, 0, len(dt.Triangles)/3),
		Hull:      make([]bool, len(points)),
	}
	for i := 0; i+2 < len(dt.Triangles); i += 3 {
		t.Triangles = append(t.Triangles, [3]int{dt.Triangles[i], dt.Triangles[i+1], dt.Triangles[i+2]})
	}
	for e, opposite := range dt.Halfedges {
		if opposite != -1 {
			continue
		}
		t.Hull[dt.Triangles[e]] = true
		t.Hull[dt.Triangles[nextHalfedge(e)]] = true
	}
	return t, nil
}

func nextHalfedge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}

// Edges returns the distinct triangle sides in canonical form, sorted.
func (t *Triangulation) Edges() []game.Edge {
	seen := make(map[game.Edge]struct{}, len(t.Triangles)*3/2)
	edges := make([]game.Edge, 0, len(t.Triangles)*3/2)
	for _, tri := range t.Triangles {
		for k := 0; k < 3; k++ {
			e := game.NewEdge(tri[k], tri[(k+1)%3])
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a][0] != edges[b][0] {
			return edges[a][0] < edges[b][0]
		}
		return edges[a][1] < edges[b][1]
	})
	return edges
}

// Circumcenter returns the centre of the circle through a, b and c.
// ok is false when the three points are collinear.
func Circumcenter(a, b, c r2.Point) (r2.Point, bool) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	d := 2 * ab.Cross(ac)
	if d == 0 {
		return r2.Point{}, false
	}
	bl := ab.Dot(ab)
	cl := ac.Dot(ac)
	x := (ac.Y*bl - ab.Y*cl) / d
	y := (ab.X*cl - ac.X*bl) / d
	return r2.Point{X: a.X + x, Y: a.Y + y}, true
}

// Centroid returns the area centroid of the polygon whose corners are
// vertices. The corners are ordered by angle around their mean first, so
// the input may come in any order as long as the polygon is convex.
// ok is false for polygons with no area.
func Centroid(vertices []r2.Point) (r2.Point, bool) {
	if len(vertices) < 3 {
		return r2.Point{}, false
	}
	var mean r2.Point
	for _, v := range vertices {
		mean = mean.Add(v)
	}
	mean = mean.Mul(1 / float64(len(vertices)))

	poly := make([]r2.Point, len(vertices))
	copy(poly, vertices)
	angle := func(p r2.Point) float64 { return math.Atan2(p.Y-mean.Y, p.X-mean.X) }
	sort.SliceStable(poly, func(i, j int) bool { return angle(poly[i]) < angle(poly[j]) })

	var area float64
	var acc r2.Point
	for i := range poly {
		x := poly[(i+len(poly)-1)%len(poly)]
		y := poly[i]
		wt := x.Cross(y)
		area += wt
		acc = acc.Add(x.Add(y).Mul(wt))
	}
	if area == 0 || math.IsNaN(area) {
		return r2.Point{}, false
	}
	return acc.Mul(1 / (3 * area)), true
}
