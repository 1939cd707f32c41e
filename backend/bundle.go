package backend

import (
	"context"

	"gioui.org/app"
	"git.sr.ht/~gioverse/skel/stream"
)

// WindowState carries the per-window stream controller alongside the
// shared service bundle.
type WindowState struct {
	Bundle
	Controller *stream.Controller
}

func NewWindowState(ctx context.Context, bundle Bundle, win *app.Window) WindowState {
	return WindowState{
		Bundle:     bundle,
		Controller: stream.NewController(ctx, win.Invalidate),
	}
}

// Bundle is the set of long-lived services shared by every window.
type Bundle struct {
	Config     Config
	Client     *Client
	Datasource *Datasource
	Scheduler  *Scheduler
}

func NewBundle(ctx context.Context, mutator *stream.Mutator, cfg Config) (Bundle, error) {
	client := NewClient(cfg)
	ds, err := NewDatasource(ctx, mutator, client, cfg)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Config:     cfg,
		Client:     client,
		Datasource: ds,
		Scheduler:  NewScheduler(mutator, client, cfg),
	}, nil
}
