package main

import (
	"image"
	"image/color"
	"log"

	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"

	"github.com/helioview/helioview/backend"
)

type (
	C = layout.Context
	D = layout.Dimensions
)

const (
	tabDashboard = "dashboard"
	tabScheduler = "scheduler"
)

// UI is responsible for holding the state of and drawing the top-level UI.
type UI struct {
	ws   backend.WindowState
	expl *explorer.Explorer

	chart     *ChartData
	scheduler *SchedulerConsole
	tab       widget.Enum
	pollBtn   widget.Clickable
	replayBtn widget.Clickable
	polling   bool
	dataErr   string

	th            *material.Theme
	sessionStream *stream.Stream[backend.Session]
	session       backend.Session
}

func NewUI(ws backend.WindowState, expl *explorer.Explorer) *UI {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()), text.NoSystemFonts())
	ui := &UI{
		ws:            ws,
		th:            th,
		expl:          expl,
		tab:           widget.Enum{Value: tabDashboard},
		sessionStream: stream.New(ws.Controller, ws.Datasource.ActiveSessionStream),
	}
	ui.chart = NewChart()
	ui.chart.ClearCursorOnRelease = ws.Config.ClearCursorOnRelease
	ui.scheduler = NewSchedulerConsole(ws, ws.Config.SiteID)
	return ui
}

// Update the state of the UI and generate events. The active session's raw
// series are re-aggregated whenever the session emits new data.
func (ui *UI) Update(gtx C) {
	session, isNew := ui.sessionStream.ReadNew(gtx)
	if isNew {
		ui.session = session
		if session.Err != nil {
			ui.dataErr = session.Err.Error()
		} else {
			ui.dataErr = ""
		}
		ui.aggregate()
	}
	ui.chart.Update(gtx)
	ui.tab.Update(gtx)
	if !ui.polling && ui.pollBtn.Clicked(gtx) {
		ui.polling = true
		ui.ws.Datasource.PollSite(ui.ws.Config.SiteID)
	}
	if ui.replayBtn.Clicked(gtx) {
		if _, err := ui.ws.Datasource.LoadFromFile(ui.expl); err != nil {
			log.Printf("failed opening export: %v", err)
			ui.dataErr = err.Error()
		}
	}
}

// aggregate rebuilds the chart frame from the active session's raw series.
// Aggregation failures surface as UI text rather than replacing the last
// good frame.
func (ui *UI) aggregate() {
	if ui.session.Data == nil {
		return
	}
	raw := ui.session.Data.Snapshot()
	metrics := ui.session.Data.Metrics()
	specs := make([]backend.SeriesSpec, len(raw))
	for i := range specs {
		if i < len(metrics) {
			specs[i] = backend.DefaultSpec(metrics[i])
		}
	}
	frame, err := backend.Aggregate(raw, specs, "Total")
	if err != nil {
		ui.dataErr = err.Error()
		return
	}
	ui.chart.SetFrame(frame)
}

type TabStyle struct {
	state  *widget.Enum
	label  material.LabelStyle
	border widget.Border
	inset  layout.Inset
	value  string
	fill   color.NRGBA
}

func Tab(th *material.Theme, state *widget.Enum, value, display string) TabStyle {
	selected := state.Value == value
	ts := TabStyle{
		state: state,
		label: material.Body1(th, display),
		inset: layout.UniformInset(2),
		border: widget.Border{
			Width: 2,
			Color: th.ContrastBg,
		},
		value: value,
	}
	ts.label.Alignment = text.Middle
	if selected {
		ts.label.Color = th.ContrastFg
		ts.fill = th.ContrastBg
	}
	return ts
}

func (t TabStyle) Layout(gtx C) D {
	return t.inset.Layout(gtx, func(gtx C) D {
		return t.border.Layout(gtx, func(gtx C) D {
			return t.inset.Layout(gtx, func(gtx C) D {
				return t.state.Layout(gtx, t.value, func(gtx C) D {
					return layout.Background{}.Layout(gtx, func(gtx C) D {
						paint.FillShape(gtx.Ops, t.fill, clip.Rect{Max: gtx.Constraints.Min}.Op())
						return D{Size: gtx.Constraints.Min}
					}, t.label.Layout)
				})
			})
		})
	})
}

func (ui *UI) layoutMainArea(gtx C) D {
	return layout.Flex{
		Axis: layout.Vertical,
	}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			return layout.Flex{}.Layout(gtx,
				layout.Flexed(1, Tab(ui.th, &ui.tab, tabDashboard, "Dashboard").Layout),
				layout.Flexed(1, Tab(ui.th, &ui.tab, tabScheduler, "Scheduler").Layout),
			)
		}),
		layout.Rigid(func(gtx C) D {
			if len(ui.dataErr) == 0 {
				return D{}
			}
			l := material.Body1(ui.th, ui.dataErr)
			l.Color = color.NRGBA{R: 150, A: 255}
			return l.Layout(gtx)
		}),
		layout.Flexed(1, func(gtx C) D {
			if ui.tab.Value == tabDashboard {
				return ui.chart.Layout(gtx, ui.th)
			} else {
				return ui.scheduler.Layout(gtx, ui.th)
			}
		}),
	)
}

func (ui *UI) layoutStartScreen(gtx C) D {
	l := material.Body1(ui.th, "No data yet.")
	return layout.Flex{
		Axis:      layout.Vertical,
		Alignment: layout.Middle,
		Spacing:   layout.SpaceAround,
	}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return l.Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			if ui.polling {
				gtx = gtx.Disabled()
			}
			return material.Button(ui.th, &ui.pollBtn, "Start Monitoring").Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return material.Button(ui.th, &ui.replayBtn, "Open Existing Export").Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return material.Body2(ui.th, ui.dataErr).Layout(gtx)
		}),
	)
}

// Layout the UI into the provided context.
func (ui *UI) Layout(gtx C) D {
	ui.Update(gtx)
	if ui.session.Data != nil {
		return ui.layoutMainArea(gtx)
	}
	return ui.layoutStartScreen(gtx)
}
