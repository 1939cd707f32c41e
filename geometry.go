package main

import (
	"math"
	"strconv"
	"time"

	"gioui.org/f32"
	"golang.org/x/exp/constraints"

	"github.com/helioview/helioview/backend"
)

// plotGeometry is the pixel-space mapping for one rendered frame. It is
// recomputed from the current constraints and data on every layout pass.
type plotGeometry struct {
	originX, originY   float32
	width, height      float32
	rangeMin, rangeMax float64
}

// flatRangeDelta widens a flat series' range so the vertical scale stays
// well defined. rangeMax must always exceed rangeMin.
const flatRangeDelta = 0.5

func ceil[T constraints.Integer | constraints.Float](a T) T {
	return T(math.Ceil(float64(a)))
}

func floor[T constraints.Integer | constraints.Float](a T) T {
	return T(math.Floor(float64(a)))
}

// roundCoord trims path coordinates to two decimals. Sub-hundredth pixel
// positions are invisible but bloat the serialized ops.
func roundCoord(v float32) float32 {
	return float32(math.Round(float64(v)*100) / 100)
}

// valueRange scans every non-gap value across the columns. ok is false
// when nothing finite exists, in which case the placeholder range (0, 1)
// is returned and the caller must render an explicit empty state.
func valueRange(columns []backend.Column) (lo, hi float64, ok bool) {
	for _, col := range columns {
		for _, v := range col.Values {
			if backend.IsGap(v) {
				continue
			}
			if !ok {
				lo, hi = v, v
				ok = true
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if !ok {
		return 0, 1, false
	}
	if lo == hi {
		lo -= flatRangeDelta
		hi += flatRangeDelta
	}
	// Whole-unit bounds keep the axis ticks readable.
	return floor(lo), ceil(hi), true
}

// geometryFor combines a plot rectangle with the columns' shared value
// range. The range portion is valid even for empty data; the caller
// decides whether to draw or show the placeholder.
func geometryFor(originX, originY, width, height float32, columns []backend.Column) (plotGeometry, bool) {
	lo, hi, ok := valueRange(columns)
	return plotGeometry{
		originX:  originX,
		originY:  originY,
		width:    width,
		height:   height,
		rangeMin: lo,
		rangeMax: hi,
	}, ok
}

// xAt maps a sample index to its pixel X. A single sample centers in the
// plot rather than dividing by zero.
func (g plotGeometry) xAt(index, count int) float32 {
	if count <= 1 {
		return roundCoord(g.originX + g.width/2)
	}
	step := g.width / float32(count-1)
	return roundCoord(g.originX + float32(index)*step)
}

// yAt maps a value to its pixel Y with larger values higher on screen.
func (g plotGeometry) yAt(v float64) float32 {
	span := g.rangeMax - g.rangeMin
	if span <= 0 {
		span = 1
	}
	frac := (v - g.rangeMin) / span
	return roundCoord(g.originY + g.height - float32(frac)*g.height)
}

// pathSegments maps one column to drawable polyline segments. A gap ends
// the current segment and the next value starts a new one: the line must
// move without drawing across missing data.
func pathSegments(values []float64, geo plotGeometry) [][]f32.Point {
	var segments [][]f32.Point
	var current []f32.Point
	for i, v := range values {
		if backend.IsGap(v) {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, f32.Pt(geo.xAt(i, len(values)), geo.yAt(v)))
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// yTicks returns count+1 evenly spaced values from rangeMax down to
// rangeMin, top to bottom.
func yTicks(geo plotGeometry, count int) []float64 {
	if count < 1 {
		count = 1
	}
	ticks := make([]float64, count+1)
	span := geo.rangeMax - geo.rangeMin
	for i := range ticks {
		ticks[i] = geo.rangeMax - float64(i)*span/float64(count)
	}
	return ticks
}

// xTicks returns the three time axis labels: first, midpoint, last. A
// degenerate timeline collapses all three to the same timestamp.
func xTicks(timeline []int64) [3]int64 {
	if len(timeline) == 0 {
		return [3]int64{}
	}
	first := timeline[0]
	last := timeline[len(timeline)-1]
	return [3]int64{first, first + (last-first)/2, last}
}

// indexAtX maps a pointer X position to the nearest sample index. Pointer
// positions outside the plot clamp to its edges. Returns -1 only when
// there are no samples at all.
func indexAtX(x float32, geo plotGeometry, count int) int {
	if count < 1 {
		return -1
	}
	if count == 1 {
		return 0
	}
	clamped := min(max(x, geo.originX), geo.originX+geo.width)
	ratio := float32(0)
	if geo.width > 0 {
		ratio = (clamped - geo.originX) / geo.width
	}
	return int(math.Round(float64(ratio) * float64(count-1)))
}

func formatValue(v float64) string {
	if backend.IsGap(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatClock(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05")
}
