package world

import (
	"math"

	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/vecmath"
)

// Sample measures the current flock for telemetry: population by role,
// speeds, prey polarization and prey nearest-neighbor distances. It reuses
// the tick buffers and rebuilds the grid, so it must not run mid-tick.
func (w *World) Sample() telemetry.Sample {
	w.captureViews()
	views := w.parallel.views
	w.grid.Rebuild(w.parallel.points)

	var s telemetry.Sample
	var heading vecmath.Vec3
	headed := 0
	buf := w.parallel.scratches[0].Neighbors[:0]

	for i := range views {
		v := &views[i]
		p := w.table.Get(v.Species)
		if p == nil {
			s.Orphans++
			continue
		}
		speed := vecmath.Len(v.Vel)
		s.Speeds = append(s.Speeds, speed)
		if p.IsPredator {
			s.PredCount++
			continue
		}
		s.PreyCount++

		if speed > 0 {
			heading = vecmath.Add(heading, vecmath.Scale(v.Vel, 1/speed))
			headed++
		}

		buf = w.grid.QueryRadiusInto(buf[:0], v.Pos, v.Limits.PerceptionRadius, v.ID)
		buf = systems.FilterPrey(buf, views, w.table)
		if nearest, ok := nearestDist(buf); ok {
			s.Nearest = append(s.Nearest, nearest)
		}
	}
	w.parallel.scratches[0].Neighbors = buf

	if headed > 0 {
		s.Polarization = vecmath.Len(heading) / float64(headed)
	}
	return s
}

func nearestDist(neighbors []systems.Neighbor) (float64, bool) {
	if len(neighbors) == 0 {
		return 0, false
	}
	best := math.Inf(1)
	for _, n := range neighbors {
		best = min(best, n.DistSq)
	}
	return math.Sqrt(best), true
}
