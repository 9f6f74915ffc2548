// Package builder generates voro boards: it relaxes random interior points
// towards a centroidal Voronoi tessellation of the disk, triangulates them
// together with a fixed border ring and emits the adjacency graph.
package builder

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/geometry"
	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBorder     = 51
	DefaultInterior   = 310
	DefaultIterations = 800

	// ClampRadius is the largest norm an interior point may keep between
	// iterations.
	ClampRadius = 19.75
	// ReseedScale scales the standard-normal sample that replaces a point
	// pushed past ClampRadius.
	ReseedScale = 4.0
	// RepairWarnStreak is the number of consecutive repaired iterations
	// after which a relaxation is reported as not converging.
	RepairWarnStreak = 25
)

var ErrInvalidOptions = errors.New("builder: invalid options")

// Options controls board generation.
type Options struct {
	Border     int
	Interior   int
	Iterations int
	// Seed for the point generator. Zero picks a time based seed.
	Seed int64
}

func DefaultOptions() Options {
	return Options{
		Border:     DefaultBorder,
		Interior:   DefaultInterior,
		Iterations: DefaultIterations,
	}
}

func (o Options) Validate() error {
	if o.Border < 3 {
		return fmt.Errorf("%w: border must be at least 3, got %d", ErrInvalidOptions, o.Border)
	}
	if o.Interior < 0 {
		return fmt.Errorf("%w: interior must not be negative, got %d", ErrInvalidOptions, o.Interior)
	}
	if o.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative, got %d", ErrInvalidOptions, o.Iterations)
	}
	return nil
}

func (o Options) rng() *rand.Rand {
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RelaxStats summarises how well a relaxation behaved.
type RelaxStats struct {
	Iterations int
	// Grown and Truncated count iterations whose centroid count had to be
	// topped up or cut back.
	Grown     int
	Truncated int
	// Clamped counts points replaced for straying past ClampRadius.
	Clamped             int
	TriangulationErrors int
	LongestRepairStreak int
}

// Converged reports whether the relaxation never hit RepairWarnStreak.
func (s RelaxStats) Converged() bool {
	return s.LongestRepairStreak < RepairWarnStreak
}

func normal(rng *rand.Rand) r2.Point {
	return r2.Point{X: rng.NormFloat64(), Y: rng.NormFloat64()}
}

// Relax returns exactly opts.Interior points strictly inside the border
// ring, moved opts.Iterations times to the centroids of their Voronoi cells.
// log may be nil.
func Relax(opts Options, log logrus.FieldLogger) ([]r2.Point, RelaxStats, error) {
	var stats RelaxStats
	if err := opts.Validate(); err != nil {
		return nil, stats, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	rng := opts.rng()
	ring := geometry.Ring(opts.Border, game.BorderRadius)
	n := opts.Interior

	pts := make([]r2.Point, n)
	for i := range pts {
		pts[i] = normal(rng)
	}

	streak := 0
	warned := false
	augmented := make([]r2.Point, 0, n+len(ring))
	for it := 0; it < opts.Iterations; it++ {
		stats.Iterations++

		augmented = append(augmented[:0], pts...)
		augmented = append(augmented, ring...)

		var next []r2.Point
		tr, err := geometry.Triangulate(augmented)
		if err != nil {
			stats.TriangulationErrors++
			log.WithError(err).WithField("iteration", it).Warn("triangulation failed, reseeding")
		} else {
			next = geometry.BoundedCentroids(geometry.Voronoi(tr))
		}

		repaired := false
		switch {
		case len(next) < n:
			stats.Grown++
			repaired = true
			log.WithFields(logrus.Fields{"iteration": it, "centroids": len(next)}).Trace("too few centroids")
			for len(next) < n {
				next = append(next, normal(rng))
			}
		case len(next) > n:
			stats.Truncated++
			repaired = true
			log.WithFields(logrus.Fields{"iteration": it, "centroids": len(next)}).Trace("too many centroids")
			next = next[:n]
		}

		for j := range next {
			if next[j].Norm() > ClampRadius {
				next[j] = normal(rng).Mul(ReseedScale)
				stats.Clamped++
			}
		}
		pts = next

		if repaired {
			streak++
		} else {
			streak = 0
		}
		if streak > stats.LongestRepairStreak {
			stats.LongestRepairStreak = streak
		}
		if streak == RepairWarnStreak && !warned {
			warned = true
			log.WithFields(logrus.Fields{
				"iteration": it,
				"streak":    streak,
				"interior":  n,
				"border":    opts.Border,
			}).Warn("relaxation is not converging")
		}
	}

	log.WithFields(logrus.Fields{
		"iterations": stats.Iterations,
		"grown":      stats.Grown,
		"truncated":  stats.Truncated,
		"clamped":    stats.Clamped,
	}).Debug("relaxation finished")
	return pts, stats, nil
}
