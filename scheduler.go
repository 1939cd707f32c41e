package main

import (
	"fmt"
	"image/color"
	"log"
	"strconv"
	"strings"
	"time"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/component"
	"git.sr.ht/~gioverse/skel/stream"

	"github.com/helioview/helioview/backend"
)

type submitStatus uint8

const (
	submitNotStarted submitStatus = iota
	submitInFlight
	submitAccepted
	submitFailed
)

func (s submitStatus) String() string {
	switch s {
	case submitNotStarted:
		return "not submitted"
	case submitInFlight:
		return "submitting"
	case submitAccepted:
		return "accepted"
	case submitFailed:
		return "rejected"
	default:
		return "unknown"
	}
}

// SchedulerConsole is the screen for the remote charge scheduler: it shows
// the scheduler's current state and windows and submits new run windows.
type SchedulerConsole struct {
	ws     backend.WindowState
	siteID int

	startEditor    component.TextField
	durationEditor component.TextField
	socEditor      component.TextField
	submitBtn      widget.Clickable
	disableSubmit  bool
	formErr        string

	statusStream *stream.Stream[backend.SchedulerStatus]
	status       backend.SchedulerStatus
	haveStatus   bool

	submissionStream *stream.Stream[backend.Submission]
	submission       backend.Submission
	submitState      submitStatus

	table component.GridState
}

func NewSchedulerConsole(ws backend.WindowState, siteID int) *SchedulerConsole {
	return &SchedulerConsole{
		ws:           ws,
		siteID:       siteID,
		statusStream: stream.New(ws.Controller, ws.Bundle.Scheduler.WatchStatus(siteID)),
	}
}

func (s *SchedulerConsole) Update(gtx C, th *material.Theme) {
	s.startEditor.Update(gtx, th, "Start in (minutes)")
	s.durationEditor.Update(gtx, th, "Duration (minutes)")
	s.socEditor.Update(gtx, th, "Target SOC (%)")
	if s.submitBtn.Clicked(gtx) {
		s.submit()
	}
	var zero backend.SchedulerStatus
	s.statusStream.ReadInto(gtx, &s.status, zero)
	s.haveStatus = s.status.UpdatedAtMS != 0 || len(s.status.Windows) > 0 || s.status.State != ""
	if s.submissionStream != nil {
		submission, isNew := s.submissionStream.ReadNew(gtx)
		if isNew {
			s.submission = submission
			switch {
			case !submission.Completed:
				s.submitState = submitInFlight
			case submission.Err != nil:
				s.submitState = submitFailed
				s.disableSubmit = false
			default:
				s.submitState = submitAccepted
				s.disableSubmit = false
				// The verdict carries fresher state than the poll.
				s.status = submission.Status
				s.haveStatus = true
			}
		}
	}
}

func (s *SchedulerConsole) submit() {
	req, err := s.buildRequest()
	if err != nil {
		s.formErr = err.Error()
		return
	}
	s.formErr = ""
	mut, isNew := s.ws.Scheduler.Submit(s.siteID, req)
	if !isNew {
		log.Printf("did not create new submission stream")
		return
	}
	s.disableSubmit = true
	s.submitState = submitInFlight
	s.submissionStream = stream.New(s.ws.Controller, mut.Stream)
}

func (s *SchedulerConsole) buildRequest() (backend.ScheduleRequest, error) {
	startMin, err := parseField(s.startEditor.Text(), 0)
	if err != nil {
		return backend.ScheduleRequest{}, fmt.Errorf("start: %w", err)
	}
	durationMin, err := parseField(s.durationEditor.Text(), 60)
	if err != nil {
		return backend.ScheduleRequest{}, fmt.Errorf("duration: %w", err)
	}
	if durationMin <= 0 {
		return backend.ScheduleRequest{}, fmt.Errorf("duration must be positive")
	}
	soc, err := parseField(s.socEditor.Text(), 80)
	if err != nil {
		return backend.ScheduleRequest{}, fmt.Errorf("target SOC: %w", err)
	}
	if soc < 0 || soc > 100 {
		return backend.ScheduleRequest{}, fmt.Errorf("target SOC must be within 0-100")
	}
	return backend.ScheduleRequest{
		StartMS:         time.Now().Add(time.Duration(startMin) * time.Minute).UnixMilli(),
		DurationMinutes: int(durationMin),
		TargetSOC:       soc,
	}, nil
}

func parseField(raw string, fallback float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func (s *SchedulerConsole) Layout(gtx C, th *material.Theme) D {
	inset := layout.UniformInset(2)
	s.Update(gtx, th)
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			return layout.Flex{Alignment: layout.Baseline}.Layout(gtx,
				layout.Flexed(1, func(gtx C) D {
					return inset.Layout(gtx, func(gtx C) D {
						return s.startEditor.Layout(gtx, th, "Start in (minutes)")
					})
				}),
				layout.Flexed(1, func(gtx C) D {
					return inset.Layout(gtx, func(gtx C) D {
						return s.durationEditor.Layout(gtx, th, "Duration (minutes)")
					})
				}),
				layout.Flexed(1, func(gtx C) D {
					return inset.Layout(gtx, func(gtx C) D {
						return s.socEditor.Layout(gtx, th, "Target SOC (%)")
					})
				}),
			)
		}),
		layout.Rigid(func(gtx C) D {
			return layout.Flex{Alignment: layout.Baseline}.Layout(gtx,
				layout.Flexed(1, func(gtx C) D {
					return inset.Layout(gtx, func(gtx C) D {
						btn := material.Button(th, &s.submitBtn, "Submit Window")
						if s.disableSubmit {
							gtx = gtx.Disabled()
						}
						return btn.Layout(gtx)
					})
				}),
				layout.Flexed(1, func(gtx C) D {
					return inset.Layout(gtx, func(gtx C) D {
						l := material.Body1(th, "Submission: "+s.submitState.String())
						if s.submission.Err != nil {
							l.Text += " " + s.submission.Err.Error()
							l.Color = color.NRGBA{R: 150, A: 255}
						}
						return l.Layout(gtx)
					})
				}),
			)
		}),
		layout.Rigid(func(gtx C) D {
			if s.formErr == "" {
				return D{}
			}
			l := material.Body1(th, s.formErr)
			l.Color = color.NRGBA{R: 150, A: 255}
			return inset.Layout(gtx, l.Layout)
		}),
		layout.Rigid(func(gtx C) D {
			label := "Scheduler: waiting for status"
			if s.haveStatus {
				label = "Scheduler: " + s.status.State
				if s.status.UpdatedAtMS != 0 {
					label += ", updated " + formatClock(s.status.UpdatedAtMS)
				}
			}
			return inset.Layout(gtx, material.Body1(th, label).Layout)
		}),
		layout.Flexed(1, func(gtx C) D {
			return s.layoutWindows(gtx, th)
		}),
	)
}

func (s *SchedulerConsole) layoutWindows(gtx C, th *material.Theme) D {
	windows := s.status.Windows
	tbl := component.Table(th, &s.table)
	rowHeight := gtx.Sp(20)
	const (
		idCol = iota
		startCol
		durationCol
		socCol
		numCols
	)
	colWidth := gtx.Constraints.Max.X / numCols
	return tbl.Layout(gtx, len(windows), numCols,
		func(axis layout.Axis, index, constraint int) int {
			if axis == layout.Vertical {
				return min(constraint, rowHeight)
			}
			return min(colWidth, constraint)
		},
		func(gtx C, index int) D {
			l := material.Body1(th, "???")
			switch index {
			case idCol:
				l.Text = "Window"
			case startCol:
				l.Text = "Start"
			case durationCol:
				l.Text = "Duration"
			case socCol:
				l.Text = "Target SOC"
			}
			l.MaxLines = 1
			l.Color = th.ContrastFg
			return layout.Background{}.Layout(gtx,
				func(gtx C) D {
					paint.FillShape(gtx.Ops, th.ContrastBg, clip.Rect{Max: gtx.Constraints.Max}.Op())
					return D{Size: gtx.Constraints.Min}
				},
				l.Layout,
			)
		},
		func(gtx C, row, col int) D {
			w := windows[row]
			active := w.ID == s.status.ActiveID && s.status.ActiveID != 0
			return layout.Background{}.Layout(gtx,
				func(gtx C) D {
					c := color.NRGBA{G: 150, B: 50, A: 0}
					if active {
						c.A = 80
					} else if row&1 != 0 {
						c = color.NRGBA{A: 25}
					}
					paint.FillShape(gtx.Ops, c, clip.Rect{Max: gtx.Constraints.Max}.Op())
					return D{Size: gtx.Constraints.Min}
				},
				func(gtx C) D {
					l := material.Body1(th, "")
					l.MaxLines = 1
					switch col {
					case idCol:
						l.Text = strconv.Itoa(w.ID)
					case startCol:
						l.Text = formatClock(w.StartMS)
					case durationCol:
						l.Text = fmt.Sprintf("%d min", w.DurationMinutes)
					case socCol:
						l.Text = fmt.Sprintf("%.0f%%", w.TargetSOC)
						l.Alignment = text.End
					}
					return l.Layout(gtx)
				},
			)
		},
	)
}
