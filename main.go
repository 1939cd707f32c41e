package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"

	"github.com/helioview/helioview/backend"
)

func main() {
	replayPath := flag.String("replay", "", "replay an exported CSV instead of starting idle")
	flag.Parse()

	cfg, err := backend.LoadConfig()
	if err != nil {
		log.Fatalf("failed loading configuration: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mutator := stream.NewMutator(ctx, time.Second)
	bundle, err := backend.NewBundle(ctx, mutator, cfg)
	if err != nil {
		log.Fatalf("failed initializing services: %v", err)
	}
	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			log.Fatalf("failed opening replay file: %v", err)
		}
		bundle.Datasource.Replay(f)
	}
	go func() {
		w := app.NewWindow(app.Title("Helioview"))
		if err := loop(ctx, w, bundle); err != nil {
			log.Fatal(err)
		}
		cancel()
		os.Exit(0)
	}()
	app.Main()
}

func loop(ctx context.Context, w *app.Window, bundle backend.Bundle) error {
	ws := backend.NewWindowState(ctx, bundle, w)
	expl := explorer.NewExplorer(w)
	ui := NewUI(ws, expl)
	var ops op.Ops
	for {
		ev := w.NextEvent()
		expl.ListenEvents(ev)
		switch ev := ev.(type) {
		case app.DestroyEvent:
			return ev.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, ev)
			ui.Layout(gtx)
			ev.Frame(gtx.Ops)
		}
	}
}
