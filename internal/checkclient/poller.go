package checkclient

import (
	"context"
	"errors"
	"time"
)

const (
	pollInterval = 1500 * time.Millisecond
	pollTimeout  = 10 * time.Minute

	// maxPollFailures is the consecutive transport-failure budget. One
	// success resets it, so transient blips never accumulate.
	maxPollFailures = 5
)

var (
	// ErrConnection means polling gave up after repeated transport failures.
	ErrConnection = errors.New("server connection failed")
	// ErrTimeout means the job outlived the aggregate polling ceiling.
	ErrTimeout = errors.New("check timed out")
)

// StatusAPI is the slice of the client the poller needs.
type StatusAPI interface {
	JobStatus(ctx context.Context, jobID int64) (JobStatus, error)
}

// Poller drives a job to a terminal status on a fixed interval. The interval
// is deliberately not adaptive: job duration scales with input length, and a
// steady cadence keeps progress updates evenly spaced.
type Poller struct {
	api      StatusAPI
	interval time.Duration
	timeout  time.Duration

	// Clock seams for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller with the production interval and timeout.
func NewPoller(api StatusAPI) *Poller {
	return &Poller{
		api:      api,
		interval: pollInterval,
		timeout:  pollTimeout,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Poll fetches the job status every interval until it reaches completed,
// failed, or cancelled, and returns that terminal snapshot. onProgress, when
// non-nil, is invoked synchronously with every progress payload, in poll
// order; requests never overlap.
//
// Two independent abort conditions: maxPollFailures consecutive transport
// failures end with ErrConnection, and exceeding the aggregate timeout ends
// with ErrTimeout even while polls are succeeding. The first distinguishes
// "the server is unreachable" from the second's "the job is too slow".
func (p *Poller) Poll(ctx context.Context, jobID int64, onProgress func(Progress)) (JobStatus, error) {
	start := p.now()
	failures := 0

	for {
		if p.now().Sub(start) > p.timeout {
			return JobStatus{}, ErrTimeout
		}

		status, err := p.api.JobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return JobStatus{}, ctx.Err()
			}
			failures++
			if failures >= maxPollFailures {
				return JobStatus{}, ErrConnection
			}
		} else {
			failures = 0
			if status.Progress != nil && onProgress != nil {
				onProgress(*status.Progress)
			}
			switch status.Status {
			case StatusCompleted, StatusFailed, StatusCancelled:
				return status, nil
			}
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return JobStatus{}, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
