package checkclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedStatus replays a fixed sequence of responses; a nil entry means a
// transport failure. The final entry repeats if the poller outlives the
// script.
type scriptedStatus struct {
	responses []*JobStatus
	calls     int
}

var errTransport = errors.New("connection refused")

func (s *scriptedStatus) JobStatus(_ context.Context, _ int64) (JobStatus, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	if s.responses[i] == nil {
		return JobStatus{}, errTransport
	}
	return *s.responses[i], nil
}

func newTestPoller(api StatusAPI) *Poller {
	p := NewPoller(api)
	p.interval = 0
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func processing(p *Progress) *JobStatus {
	return &JobStatus{Status: StatusProcessing, Progress: p}
}

func TestPollReturnsTerminalStatus(t *testing.T) {
	api := &scriptedStatus{responses: []*JobStatus{
		processing(nil),
		{Status: StatusCompleted, Result: &Record{CorrectedText: "고친 글"}},
	}}

	status, err := newTestPoller(api).Poll(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.Status != StatusCompleted {
		t.Errorf("status = %q", status.Status)
	}
	if status.Result == nil || status.Result.CorrectedText != "고친 글" {
		t.Error("terminal result not returned")
	}
}

func TestPollInvokesProgressInOrder(t *testing.T) {
	api := &scriptedStatus{responses: []*JobStatus{
		processing(&Progress{CurrentChunk: 1, TotalChunks: 3, Percentage: 33}),
		processing(&Progress{CurrentChunk: 2, TotalChunks: 3, Percentage: 66}),
		{Status: StatusCompleted, Result: &Record{}},
	}}

	var seen []int
	_, err := newTestPoller(api).Poll(context.Background(), 1, func(p Progress) {
		seen = append(seen, p.Percentage)
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(seen) != 2 || seen[0] != 33 || seen[1] != 66 {
		t.Errorf("progress updates = %v, want [33 66]", seen)
	}
}

func TestPollAbortsAfterConsecutiveFailures(t *testing.T) {
	api := &scriptedStatus{responses: []*JobStatus{nil}}

	_, err := newTestPoller(api).Poll(context.Background(), 1, nil)
	if err != ErrConnection {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if api.calls != maxPollFailures {
		t.Errorf("gave up after %d calls, want %d", api.calls, maxPollFailures)
	}
}

func TestPollFailureStreakResetsOnSuccess(t *testing.T) {
	// Failures at 1,2, success at 3, failures at 4-7: only four consecutive
	// since the reset, so the loop must keep going and see the completion.
	api := &scriptedStatus{responses: []*JobStatus{
		nil, nil,
		processing(nil),
		nil, nil, nil, nil,
		{Status: StatusCompleted, Result: &Record{}},
	}}

	status, err := newTestPoller(api).Poll(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Poll aborted despite streak reset: %v", err)
	}
	if status.Status != StatusCompleted {
		t.Errorf("status = %q", status.Status)
	}

	// The same sequence with a fifth consecutive failure must abort.
	api = &scriptedStatus{responses: []*JobStatus{
		nil, nil,
		processing(nil),
		nil, nil, nil, nil, nil,
	}}
	if _, err := newTestPoller(api).Poll(context.Background(), 1, nil); err != ErrConnection {
		t.Errorf("err = %v, want ErrConnection", err)
	}
}

func TestPollTimesOutDespiteHealthyPolls(t *testing.T) {
	api := &scriptedStatus{responses: []*JobStatus{processing(nil)}}

	p := NewPoller(api)
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }
	p.sleep = func(context.Context, time.Duration) error {
		clock = clock.Add(3 * time.Minute)
		return nil
	}

	_, err := p.Poll(context.Background(), 1, nil)
	if err != ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestPollStopsOnContextCancel(t *testing.T) {
	api := &scriptedStatus{responses: []*JobStatus{processing(nil)}}
	ctx, cancel := context.WithCancel(context.Background())

	p := NewPoller(api)
	p.interval = 0
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := p.Poll(ctx, 1, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
