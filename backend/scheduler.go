package backend

import (
	"context"
	"time"

	"git.sr.ht/~gioverse/skel/stream"
)

// Submission tracks one schedule request from composition to the
// scheduler's verdict.
type Submission struct {
	Request   ScheduleRequest
	Accepted  bool
	Completed bool
	Status    SchedulerStatus
	Err       error
}

// Scheduler is the gateway to the remote charge scheduler: it submits run
// windows and polls the scheduler's status.
type Scheduler struct {
	pool   *stream.MutationPool[string, Submission]
	client *Client
	cfg    Config
}

func NewScheduler(mutator *stream.Mutator, client *Client, cfg Config) *Scheduler {
	return &Scheduler{
		pool:   stream.NewMutationPool[string, Submission](mutator),
		client: client,
		cfg:    cfg,
	}
}

// Submit sends a schedule request for the site. The mutation emits once
// when the request goes out and once with the scheduler's verdict.
func (s *Scheduler) Submit(siteID int, req ScheduleRequest) (mutation *stream.Mutation[Submission], isNew bool) {
	key := generateSessionID()
	return stream.Mutate(s.pool, key, func(ctx context.Context) <-chan Submission {
		out := make(chan Submission)
		go func() {
			defer close(out)
			current := Submission{Request: req}
			select {
			case out <- current:
			case <-ctx.Done():
				return
			}
			status, err := s.client.SubmitWindow(ctx, siteID, req)
			current.Completed = true
			current.Err = err
			if err == nil {
				current.Accepted = true
				current.Status = status
			}
			select {
			case out <- current:
			case <-ctx.Done():
			}
		}()
		return out
	})
}

// WatchStatus polls the scheduler endpoint and emits each status. Suitable
// for stream.New with a window's controller.
func (s *Scheduler) WatchStatus(siteID int) func(ctx context.Context) <-chan SchedulerStatus {
	return func(ctx context.Context) <-chan SchedulerStatus {
		out := make(chan SchedulerStatus, 1)
		go func() {
			defer close(out)
			interval := s.cfg.SchedulerPollInterval
			if interval <= 0 {
				interval = 30 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				status, err := s.client.SchedulerStatus(ctx, siteID)
				if err == nil {
					select {
					case out <- status:
					case <-ctx.Done():
						return
					}
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	}
}
