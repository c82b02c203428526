package colour

import (
	"cmp"
	"math"
	"slices"

	"github.com/hashicorp/go-hclog"
)

// alphaOpaque is the highest alpha value still treated as fully transparent.
const alphaOpaque = 127

// engine refines a palette against a working buffer. The buffer holds four
// values per pixel (three working space channels and the original alpha) and
// is never written after construction.
type engine struct {
	data    []float64
	palette []Entry
	cfg     Config
	logger  hclog.Logger
}

// nearest returns the index of the palette entry closest to c.
// On equal distances the lowest index wins; -1 means the palette is empty.
func nearest(palette []Entry, c Vec3) int {
	best := math.Inf(1)
	idx := -1
	for i := range palette {
		if r := palette[i].Color.Distance(c); r < best {
			best = r
			idx = i
		}
	}
	return idx
}

func pixelAt(data []float64, i int) Vec3 {
	return Vec3{data[i], data[i+1], data[i+2]}
}

// calcBounds assigns every opaque pixel to its nearest entry and rebuilds
// each entry's population, channel sums and enclosing sphere.
func (e *engine) calcBounds() {
	for i := range e.palette {
		e.palette[i].resetBounds()
	}
	if len(e.palette) == 0 {
		return
	}

	for i := 0; i+3 < len(e.data); i += 4 {
		if e.data[i+3] <= alphaOpaque {
			continue
		}
		p := pixelAt(e.data, i)
		item := &e.palette[nearest(e.palette, p)]
		item.Qty++
		for c := range 3 {
			item.sum[c] += p[c]
		}

		b := &item.bound
		if !b.set {
			b.center = p
			b.radius = 0
			b.set = true
			continue
		}
		r := b.center.Distance(p)
		if r > b.radius {
			for c := range 3 {
				b.center[c] += (p[c] - b.center[c]) * (r - b.radius) / r / 2
				b.vector[c] = p[c] - b.center[c]
			}
			b.radius = (r + b.radius) / 2
		}
	}
}

// reallocatePalette moves every non-fixed entry with more than one pixel to
// the mean of its pixels. It returns the population weighted displacement of
// the first qtyMax entries.
func (e *engine) reallocatePalette() float64 {
	diff := 0.0
	for i := range e.palette {
		item := &e.palette[i]
		prev := item.Color
		if !item.IsFixed && item.Qty > 1 {
			for c := range 3 {
				item.Color[c] = item.sum[c] / float64(item.Qty)
			}
		}
		if i < e.cfg.QtyMax {
			diff += item.Color.Distance(prev) * float64(item.Qty)
		}
	}
	return diff
}

// reorderByQty puts fixed entries first, then sorts each group by descending population.
func (e *engine) reorderByQty() {
	slices.SortStableFunc(e.palette, func(a, b Entry) int {
		if a.IsFixed != b.IsFixed {
			if a.IsFixed {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.Qty, a.Qty)
	})
}

// reorderByDistance greedily picks, for each slot after the fixed prefix, the
// candidate that is both populous and far from everything already placed.
func (e *engine) reorderByDistance() {
	n := len(e.palette)
	dist := make([]float64, n)
	score := make([]float64, n)
	rFactor := e.cfg.RFactor

	for i := 0; i+1 < n; i++ {
		if e.palette[i+1].IsFixed {
			continue
		}

		maxDist := 0.0
		for j := i + 1; j < n; j++ {
			dist[j] = math.Inf(1)
			for k := 0; k <= i; k++ {
				if r := e.palette[k].Color.Distance(e.palette[j].Color); r < dist[j] {
					dist[j] = r
				}
			}
			if dist[j] > maxDist {
				maxDist = dist[j]
			}
		}
		// Every candidate coincides with a placed colour.
		if maxDist == 0 {
			continue
		}

		idx := i + 1
		for j := i + 1; j < n; j++ {
			ratio := math.Min(1, dist[j]/maxDist)
			score[j] = (rFactor + (1-rFactor)*ratio) * float64(e.palette[j].Qty)
			if score[j] > score[idx] {
				idx = j
			}
		}
		if idx != i+1 {
			e.palette[i+1], e.palette[idx] = e.palette[idx], e.palette[i+1]
		}
	}
}

// truncate drops everything past QtyMax.
func (e *engine) truncate() {
	if len(e.palette) > e.cfg.QtyMax {
		e.palette = slices.Clip(e.palette[:e.cfg.QtyMax])
	}
}

// splitPalette seeds a new entry halfway along the last growth vector of
// every cluster with a non-zero radius and returns how many were added.
func (e *engine) splitPalette() int {
	splits := 0
	n := len(e.palette)
	for i := range n {
		b := e.palette[i].bound
		if b.radius <= 0 {
			continue
		}
		var c Vec3
		for k := range 3 {
			c[k] = b.center[k] + b.vector[k]/2
		}
		e.palette = append(e.palette, Entry{Color: c})
		splits++
	}
	return splits
}

// refine runs the clustering loop until the palette stops splitting, the
// displacement keeps growing for StopIncQty iterations, or MaxIterations is hit.
// It returns the number of iterations run.
func (e *engine) refine() int {
	prev := math.Inf(1)
	patience := e.cfg.StopIncQty

	step := 0
	for step < e.cfg.MaxIterations {
		e.calcBounds()
		diff := e.reallocatePalette()
		e.reorderByQty()
		e.reorderByDistance()
		e.truncate()
		step++

		if diff > prev {
			patience--
		}
		if step == e.cfg.MaxIterations || patience <= 0 {
			e.logger.Debug("clustering stopped", "iteration", step, "palette", len(e.palette), "diff", diff, "patience", patience)
			break
		}

		splits := e.splitPalette()
		e.logger.Trace("clustering iteration", "iteration", step, "palette", len(e.palette), "diff", diff, "patience", patience, "splits", splits)
		if splits == 0 {
			e.logger.Debug("clustering converged", "iteration", step, "palette", len(e.palette))
			break
		}
		prev = diff
	}
	return step
}
