package geometry

import "github.com/golang/geo/r2"

// Cell is the Voronoi region of one site. Vertices are the circumcentres of
// the Delaunay triangles incident to the site, unordered.
type Cell struct {
	Site     int
	Bounded  bool
	Vertices []r2.Point
}

// Voronoi derives the Voronoi diagram of t as the Delaunay dual. A site's
// cell is bounded when the site has incident triangles and is not on the
// convex hull. Cells are returned in site order.
func Voronoi(t *Triangulation) []Cell {
	centres := make([]r2.Point, len(t.Triangles))
	valid := make([]bool, len(t.Triangles))
	for i, tri := range t.Triangles {
		centres[i], valid[i] = Circumcenter(t.Points[tri[0]], t.Points[tri[1]], t.Points[tri[2]])
	}

	incident := make([][]int, len(t.Points))
	for i, tri := range t.Triangles {
		for _, v := range tri {
			incident[v] = append(incident[v], i)
		}
	}

	cells := make([]Cell, len(t.Points))
	for site := range cells {
		cells[site].Site = site
		tris := incident[site]
		if len(tris) == 0 || t.Hull[site] {
			continue
		}
		bounded := true
		verts := make([]r2.Point, 0, len(tris))
		for _, ti := range tris {
			if !valid[ti] {
				bounded = false
				break
			}
			verts = append(verts, centres[ti])
		}
		if !bounded {
			continue
		}
		cells[site].Bounded = true
		cells[site].Vertices = verts
	}
	return cells
}

// BoundedCentroids returns the centroid of every bounded cell, in site order.
// Cells whose centroid is undefined are skipped.
func BoundedCentroids(cells []Cell) []r2.Point {
	out := make([]r2.Point, 0, len(cells))
	for _, c := range cells {
		if !c.Bounded {
			continue
		}
		if p, ok := Centroid(c.Vertices); ok {
			out = append(out, p)
		}
	}
	return out
}
