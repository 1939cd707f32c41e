package main

import (
	"image"
	"image/color"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/component"
	"golang.org/x/exp/shiny/materialdesign/icons"

	"github.com/helioview/helioview/backend"
)

var pauseIcon = func() *widget.Icon {
	icon, _ := widget.NewIcon(icons.AVPause)
	return icon
}()

var playIcon = func() *widget.Icon {
	icon, _ := widget.NewIcon(icons.AVPlayArrow)
	return icon
}()

const yTickCount = 4

// ChartData holds the state of the interactive line chart. It consumes an
// aggregated frame and owns only transient geometry and cursor state.
type ChartData struct {
	// ClearCursorOnRelease drops the cursor when the pointer lifts.
	// Default keeps the last index active so a glance after a tap still
	// shows the tooltip.
	ClearCursorOnRelease bool

	frame    *backend.Frame
	pending  *backend.Frame
	Enabled  []*widget.Bool
	paused   bool
	pauseBtn widget.Clickable
	keyTable component.GridState

	// cursor state
	pos          f32.Point
	cursorActive bool
	dragging     bool
	cursor       int
}

func NewChart() *ChartData {
	return &ChartData{cursor: -1}
}

// SetFrame swaps in freshly aggregated data. While paused, new data is
// held aside so the visible frame stays stable. The cursor index is
// clamped whenever the timeline shrinks, never left dangling.
func (c *ChartData) SetFrame(frame *backend.Frame) {
	if c.paused {
		c.pending = frame
		return
	}
	c.frame = frame
	c.clampCursor()
}

func (c *ChartData) clampCursor() {
	if c.frame.Empty() {
		c.cursor = -1
		c.cursorActive = false
		return
	}
	if c.cursor >= len(c.frame.TimestampsMS) {
		c.cursor = len(c.frame.TimestampsMS) - 1
	}
}

func rec(gtx C, w layout.Widget) (D, op.CallOp) {
	macro := op.Record(gtx.Ops)
	dims := w(gtx)
	call := macro.Stop()
	return dims, call
}

func (c *ChartData) Update(gtx C) {
	if c.frame != nil {
		for len(c.Enabled) < len(c.frame.Columns) {
			c.Enabled = append(c.Enabled, &widget.Bool{Value: true})
		}
	}
	if c.pauseBtn.Clicked(gtx) {
		c.paused = !c.paused
		if !c.paused && c.pending != nil {
			c.frame = c.pending
			c.pending = nil
			c.clampCursor()
		}
	}
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: c,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release | pointer.Cancel,
		})
		if !ok {
			break
		}
		switch ev := ev.(type) {
		case pointer.Event:
			switch ev.Kind {
			case pointer.Press:
				c.dragging = true
				c.cursorActive = true
				c.pos = ev.Position
			case pointer.Drag:
				if c.dragging {
					c.pos = ev.Position
				}
			case pointer.Release, pointer.Cancel:
				c.dragging = false
				if c.ClearCursorOnRelease {
					c.cursorActive = false
					c.cursor = -1
				}
			}
		}
	}
}

// Layout draws the chart: y axis labels, plot with grid and cursor, time
// labels, and the series legend. Empty or all-gap data renders an explicit
// placeholder instead of a misleading blank plot.
func (c *ChartData) Layout(gtx C, th *material.Theme) D {
	c.Update(gtx)
	frame := c.frame
	_, _, usable := valueRange(frameColumns(frame))
	if frame.Empty() || !usable {
		return c.layoutPlaceholder(gtx, th)
	}

	origConstraints := gtx.Constraints
	gtx.Constraints.Min = image.Point{}

	// Reserve space for axis labels using the (presumably) widest one.
	geoProbe, _ := geometryFor(0, 0, 1, 1, frame.Columns)
	widest := material.Body1(th, formatValue(geoProbe.rangeMax))
	macro := op.Record(gtx.Ops)
	axisLabelDims := widest.Layout(gtx)
	_ = macro.Stop()

	// Measure the legend so the plot gets the remaining space.
	macro = op.Record(gtx.Ops)
	gtx.Constraints.Min.X = origConstraints.Max.X
	keyDims := c.layoutLegend(gtx, th)
	keyCall := macro.Stop()

	gtx.Constraints = origConstraints.SubMax(image.Point{
		X: axisLabelDims.Size.X,
		Y: axisLabelDims.Size.Y + keyDims.Size.Y,
	})
	macro = op.Record(gtx.Ops)
	plotDims := c.layoutPlot(gtx, th)
	plotCall := macro.Stop()
	gtx.Constraints = origConstraints

	ticks := xTicks(frame.TimestampsMS)
	minDomainLabel := material.Body1(th, formatClock(ticks[0]))
	midDomainLabel := material.Body1(th, formatClock(ticks[1]))
	maxDomainLabel := material.Body1(th, formatClock(ticks[2]))
	midDomainLabel.Alignment = text.Middle

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Flexed(1, func(gtx C) D {
			return layout.Flex{}.Layout(gtx,
				layout.Rigid(func(gtx C) D {
					gtx.Constraints.Min.Y = gtx.Constraints.Max.Y
					gtx.Constraints.Max.X = axisLabelDims.Size.X
					return c.layoutYAxisLabels(gtx, th, axisLabelDims.Size.Y+keyDims.Size.Y)
				}),
				layout.Flexed(1, func(gtx C) D {
					return layout.Flex{Axis: layout.Vertical, Spacing: layout.SpaceBetween}.Layout(gtx,
						layout.Flexed(1, func(gtx C) D {
							plotCall.Add(gtx.Ops)
							return plotDims
						}),
						layout.Rigid(func(gtx C) D {
							return layout.Flex{Alignment: layout.Baseline}.Layout(gtx,
								layout.Rigid(func(gtx C) D {
									icon := pauseIcon
									if c.paused {
										icon = playIcon
									}
									side := axisLabelDims.Size.Y
									gtx.Constraints = layout.Exact(image.Pt(side, side))
									return material.Clickable(gtx, &c.pauseBtn, func(gtx C) D {
										return icon.Layout(gtx, th.Fg)
									})
								}),
								layout.Rigid(minDomainLabel.Layout),
								layout.Flexed(1, midDomainLabel.Layout),
								layout.Rigid(maxDomainLabel.Layout),
							)
						}),
					)
				}),
			)
		}),
		layout.Rigid(func(gtx C) D {
			keyCall.Add(gtx.Ops)
			return keyDims
		}),
	)
}

func frameColumns(frame *backend.Frame) []backend.Column {
	if frame == nil {
		return nil
	}
	return frame.Columns
}

func (c *ChartData) layoutPlaceholder(gtx C, th *material.Theme) D {
	l := material.Body1(th, "No data in the visible range.")
	return layout.Center.Layout(gtx, func(gtx C) D {
		gtx.Constraints.Min = image.Point{}
		return l.Layout(gtx)
	})
}

func (c *ChartData) layoutYAxisLabels(gtx C, th *material.Theme, bottomInset int) D {
	geo, _ := geometryFor(0, 0, 1, 1, c.frame.Columns)
	ticks := yTicks(geo, yTickCount)
	return layout.Inset{Bottom: gtx.Metric.PxToDp(bottomInset)}.Layout(gtx, func(gtx C) D {
		return layout.Flex{
			Axis:    layout.Vertical,
			Spacing: layout.SpaceBetween,
		}.Layout(gtx, func() []layout.FlexChild {
			children := make([]layout.FlexChild, 0, len(ticks))
			for _, tick := range ticks {
				l := material.Body1(th, formatValue(tick))
				l.MaxLines = 1
				l.Alignment = text.End
				children = append(children, layout.Rigid(l.Layout))
			}
			return children
		}()...)
	})
}

// layoutPlot draws the grid, every enabled series path, and the cursor
// overlay. Pointer positions are relative to the plot origin, so the
// geometry uses a zero origin.
func (c *ChartData) layoutPlot(gtx C, th *material.Theme) D {
	frame := c.frame
	geo, _ := geometryFor(0, 0, float32(gtx.Constraints.Max.X), float32(gtx.Constraints.Max.Y), frame.Columns)
	count := len(frame.TimestampsMS)

	defer clip.Rect{Max: gtx.Constraints.Max}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, c)

	c.layoutGrid(gtx, geo)

	oneDp := float32(gtx.Dp(1))
	strokeWidth := float32(gtx.Dp(2))
	for i, col := range frame.Columns {
		if i < len(c.Enabled) && !c.Enabled[i].Value {
			continue
		}
		segments := pathSegments(col.Values, geo)
		if len(segments) == 0 {
			continue
		}
		var p clip.Path
		p.Begin(gtx.Ops)
		for _, segment := range segments {
			p.MoveTo(segment[0])
			if len(segment) == 1 {
				// A lone point still deserves a mark.
				p.LineTo(f32.Pt(segment[0].X+oneDp, segment[0].Y))
				continue
			}
			for _, pt := range segment[1:] {
				p.LineTo(pt)
			}
		}
		paint.FillShape(gtx.Ops, colors[i%len(colors)], clip.Stroke{
			Path:  p.End(),
			Width: strokeWidth,
		}.Op())
	}

	if c.cursorActive {
		if idx := indexAtX(c.pos.X, geo, count); idx >= 0 {
			c.cursor = idx
		}
	}
	if c.cursor >= 0 && c.cursor < count {
		c.layoutCursor(gtx, th, geo)
	}
	return D{Size: gtx.Constraints.Max}
}

func (c *ChartData) layoutGrid(gtx C, geo plotGeometry) {
	oneDp := gtx.Dp(1)
	for i, tick := range yTicks(geo, yTickCount) {
		a := uint8(50)
		if i == 0 || i == yTickCount {
			a = 100
		}
		y := int(geo.yAt(tick))
		paint.FillShape(gtx.Ops, color.NRGBA{A: a}, clip.Rect{
			Min: image.Point{Y: y - oneDp/2},
			Max: image.Point{X: gtx.Constraints.Max.X, Y: y - oneDp/2 + oneDp},
		}.Op())
	}
}

// layoutCursor draws the vertical cursor line and the synchronized tooltip
// showing every enabled series' value at the cursor index.
func (c *ChartData) layoutCursor(gtx C, th *material.Theme, geo plotGeometry) {
	frame := c.frame
	count := len(frame.TimestampsMS)
	xR := geo.xAt(c.cursor, count)
	xL := xR - float32(gtx.Dp(1))

	children := []layout.FlexChild{
		layout.Rigid(material.Body2(th, formatClock(frame.TimestampsMS[c.cursor])).Layout),
	}
	for i := range frame.Columns {
		if i < len(c.Enabled) && !c.Enabled[i].Value {
			continue
		}
		col := frame.Columns[i]
		swatch := colors[i%len(colors)]
		label := material.Body2(th, col.Name+" "+formatValue(col.Values[c.cursor]))
		children = append(children, layout.Rigid(func(gtx C) D {
			return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
				layout.Rigid(label.Layout),
				layout.Rigid(layout.Spacer{Width: 8}.Layout),
				layout.Rigid(func(gtx C) D {
					size := image.Pt(gtx.Dp(8), gtx.Dp(8))
					paint.FillShape(gtx.Ops, swatch, clip.Ellipse{Max: size}.Op(gtx.Ops))
					return D{Size: size}
				}),
			)
		}))
	}

	origConstraints := gtx.Constraints
	gtx.Constraints.Min = image.Point{}
	tooltipMacro := op.Record(gtx.Ops)
	tooltipDims := layout.Background{}.Layout(gtx,
		func(gtx C) D {
			paint.FillShape(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 200}, clip.Rect{Max: gtx.Constraints.Min}.Op())
			return D{Size: gtx.Constraints.Min}
		},
		func(gtx C) D {
			return layout.UniformInset(10).Layout(gtx, func(gtx C) D {
				return layout.Flex{
					Axis:      layout.Vertical,
					Alignment: layout.End,
				}.Layout(gtx, children...)
			})
		},
	)
	tooltipCall := tooltipMacro.Stop()
	gtx.Constraints = origConstraints

	paint.FillShape(gtx.Ops, color.NRGBA{A: 255}, clip.Rect{
		Min: image.Point{X: int(xL)},
		Max: image.Point{X: int(xR), Y: gtx.Constraints.Max.Y},
	}.Op())

	pos := image.Point{}
	if int(xL) > gtx.Constraints.Max.X-int(xR) {
		pos.X = max(int(xL)-tooltipDims.Size.X, 0)
	} else {
		pos.X = min(int(xR), gtx.Constraints.Max.X-tooltipDims.Size.X)
	}
	if offscreenY := gtx.Constraints.Max.Y - (int(c.pos.Y) + tooltipDims.Size.Y); offscreenY < 0 {
		pos.Y = int(c.pos.Y) + offscreenY
	} else {
		pos.Y = int(c.pos.Y)
	}
	transform := op.Offset(pos).Push(gtx.Ops)
	tooltipCall.Add(gtx.Ops)
	transform.Pop()
}

// layoutLegend draws the series key: color swatch toggles, names, and the
// latest reading per column.
func (c *ChartData) layoutLegend(gtx C, th *material.Theme) D {
	frame := c.frame
	table := component.Table(th, &c.keyTable)
	table.HScrollbarStyle.Indicator.MinorWidth = 0
	table.HScrollbarStyle.Track.MinorPadding = 0
	table.VScrollbarStyle.Indicator.MinorWidth = 0
	table.VScrollbarStyle.Track.MinorPadding = 0
	colorColWidth := gtx.Dp(50)
	valueColWidth := gtx.Dp(100)
	nameColWidth := gtx.Constraints.Max.X - colorColWidth - valueColWidth - gtx.Dp(table.VScrollbarStyle.Width())
	rowHeight := gtx.Sp(20)
	const (
		colorCol = iota
		seriesNameCol
		latestCol
		numCols
	)
	return table.Layout(gtx, len(frame.Columns), numCols,
		func(axis layout.Axis, index, constraint int) int {
			if axis == layout.Vertical {
				return min(constraint, rowHeight)
			}
			var size int
			switch index {
			case colorCol:
				size = colorColWidth
			case seriesNameCol:
				size = nameColWidth
			case latestCol:
				size = valueColWidth
			}
			return min(size, constraint)
		},
		func(gtx C, index int) D {
			var l material.LabelStyle
			switch index {
			case colorCol:
				l = material.Body1(th, "Color")
			case seriesNameCol:
				l = material.Body1(th, "Series")
				l.Alignment = text.Middle
			case latestCol:
				l = material.Body1(th, "Latest")
				l.Alignment = text.End
			default:
				l = material.Body1(th, "???")
			}
			l.Color = th.ContrastFg
			return layout.Background{}.Layout(gtx,
				func(gtx C) D {
					paint.FillShape(gtx.Ops, th.ContrastBg, clip.Rect{Max: gtx.Constraints.Max}.Op())
					return D{Size: gtx.Constraints.Min}
				},
				l.Layout,
			)
		},
		func(gtx C, row, col int) (dims D) {
			defer func() {
				dims.Size = gtx.Constraints.Constrain(dims.Size)
			}()
			column := frame.Columns[row]
			enabled := row >= len(c.Enabled) || c.Enabled[row].Value
			disabledAlpha := uint8(100)
			dims = layout.UniformInset(2).Layout(gtx, func(gtx C) D {
				switch col {
				case colorCol:
					if row >= len(c.Enabled) {
						return D{Size: gtx.Constraints.Min}
					}
					c.Enabled[row].Update(gtx)
					return c.Enabled[row].Layout(gtx, func(gtx C) D {
						return layout.Center.Layout(gtx, func(gtx C) D {
							sideLen := gtx.Dp(10)
							sz := image.Pt(sideLen, sideLen)
							fullColor := colors[row%len(colors)]
							if !enabled {
								fullColor.A = disabledAlpha
							}
							paint.FillShape(gtx.Ops, fullColor, clip.Rect{Max: sz}.Op())
							return D{Size: sz}
						})
					})
				case seriesNameCol:
					l := material.Body2(th, column.Name)
					if !enabled {
						l.Color.A = disabledAlpha
					}
					return l.Layout(gtx)
				case latestCol:
					l := material.Body2(th, formatValue(latestValue(column.Values)))
					if !enabled {
						l.Color.A = disabledAlpha
					}
					l.Alignment = text.End
					return l.Layout(gtx)
				default:
					return D{Size: gtx.Constraints.Max}
				}
			})
			if row&1 != 0 {
				shade := colors[row%len(colors)]
				shade.A = 50
				paint.FillShape(gtx.Ops, shade, clip.Rect{Max: gtx.Constraints.Max}.Op())
			}
			return dims
		})
}

// latestValue returns the most recent non-gap value, or a gap if the
// column has none.
func latestValue(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !backend.IsGap(values[i]) {
			return values[i]
		}
	}
	return backend.Gap()
}
