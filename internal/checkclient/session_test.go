package checkclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeAPI struct {
	mu          sync.Mutex
	submitCalls int
	statusCalls int

	submitFn func(text, provider string) (SubmissionOutcome, error)
	statusFn func(call int, jobID int64) (JobStatus, error)
	cancelFn func(jobID int64) error
	deleteFn func(id int64) error

	cancelledJobs []int64
}

func (f *fakeAPI) Submit(_ context.Context, text, provider string) (SubmissionOutcome, error) {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.submitFn == nil {
		return SubmissionOutcome{}, errors.New("no submit scripted")
	}
	return f.submitFn(text, provider)
}

func (f *fakeAPI) JobStatus(_ context.Context, jobID int64) (JobStatus, error) {
	f.mu.Lock()
	call := f.statusCalls
	f.statusCalls++
	f.mu.Unlock()
	if f.statusFn == nil {
		return JobStatus{}, errors.New("no status scripted")
	}
	return f.statusFn(call, jobID)
}

func (f *fakeAPI) CancelJob(_ context.Context, jobID int64) error {
	f.mu.Lock()
	f.cancelledJobs = append(f.cancelledJobs, jobID)
	f.mu.Unlock()
	if f.cancelFn != nil {
		return f.cancelFn(jobID)
	}
	return nil
}

func (f *fakeAPI) DeleteHistory(_ context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return nil
}

func newTestSession(api *fakeAPI) *Session {
	s := NewSession(api)
	s.poller.interval = 0
	s.poller.sleep = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
	return s
}

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, never reached %v", s.State(), want)
}

func TestBlankSubmitIsSilentNoOp(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSession(api)

	for _, text := range []string{"", "   ", "\n\t"} {
		s.SetText(text)
		if err := s.Check(context.Background(), nil); err != nil {
			t.Fatalf("Check(%q): %v", text, err)
		}
		if s.State() != StateIdle {
			t.Errorf("state after blank submit = %v, want idle", s.State())
		}
		if s.Err() != "" {
			t.Errorf("blank submit surfaced error %q", s.Err())
		}
	}
	if api.submitCalls != 0 {
		t.Errorf("blank submits reached the server %d times", api.submitCalls)
	}
}

func TestCacheHitCompletesImmediately(t *testing.T) {
	result := CheckResult{
		OriginalText:  "안녕하세요 반갑슴니다",
		CorrectedText: "안녕하세요 반갑습니다",
		Issues: []Issue{{
			Original: "반갑슴니다", Corrected: "반갑습니다",
			Position: Span{Start: 6, End: 11}, Type: "spelling",
		}},
		Provider: "claude",
	}
	api := &fakeAPI{
		submitFn: func(text, provider string) (SubmissionOutcome, error) {
			if provider != "claude" {
				t.Errorf("provider = %q", provider)
			}
			return SubmissionOutcome{Cached: true, Result: &result}, nil
		},
	}
	s := newTestSession(api)
	s.SetText("안녕하세요 반갑슴니다")
	s.SetProvider("claude")

	if err := s.Check(context.Background(), nil); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %v, want completed", s.State())
	}
	got := s.Result()
	if got == nil || len(got.Issues) != 1 || got.Issues[0].Corrected != "반갑습니다" {
		t.Errorf("result = %+v", got)
	}
}

func TestJobPathReportsProgressThenCompletes(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			return SubmissionOutcome{JobID: 42}, nil
		},
		statusFn: func(call int, jobID int64) (JobStatus, error) {
			if jobID != 42 {
				t.Errorf("polled job %d, want 42", jobID)
			}
			if call == 0 {
				return JobStatus{
					Status:   StatusProcessing,
					Progress: &Progress{CurrentChunk: 1, TotalChunks: 3, Percentage: 33},
				}, nil
			}
			return JobStatus{
				Status: StatusCompleted,
				Result: &Record{CorrectedText: "고친 글", Provider: "claude"},
			}, nil
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")

	var seen []int
	if err := s.Check(context.Background(), func(p Progress) {
		seen = append(seen, p.Percentage)
	}); err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(seen) != 1 || seen[0] != 33 {
		t.Errorf("progress updates = %v, want [33]", seen)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %v, want completed", s.State())
	}
	if s.Result() == nil || s.Result().CorrectedText != "고친 글" {
		t.Errorf("result = %+v", s.Result())
	}
	if s.JobID() != 0 || s.Progress() != nil {
		t.Error("job bookkeeping not cleared after completion")
	}
}

func TestCancelDiscardsStalePollResult(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			return SubmissionOutcome{JobID: 7}, nil
		},
		statusFn: func(call int, jobID int64) (JobStatus, error) {
			<-release
			return JobStatus{
				Status: StatusCompleted,
				Result: &Record{CorrectedText: "뒤늦은 결과"},
			}, nil
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Check(context.Background(), nil)
	}()
	waitForState(t, s, StatePolling)

	s.Cancel()
	if s.State() != StateCancelled {
		t.Fatalf("state after Cancel = %v, want cancelled", s.State())
	}
	if s.JobID() != 0 {
		t.Errorf("job id = %d after cancel, want 0", s.JobID())
	}

	// The in-flight poll now resolves with a completed result for job 7; it
	// must be discarded, not applied.
	close(release)
	<-done
	if s.State() != StateCancelled {
		t.Errorf("stale poll overwrote state: %v", s.State())
	}
	if s.Result() != nil {
		t.Errorf("stale result applied: %+v", s.Result())
	}
}

func TestCancelIsImmediateDespiteSlowAck(t *testing.T) {
	ack := make(chan struct{})
	cancelStarted := make(chan struct{})
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			return SubmissionOutcome{JobID: 9}, nil
		},
		statusFn: func(call int, jobID int64) (JobStatus, error) {
			return JobStatus{Status: StatusProcessing}, nil
		},
		cancelFn: func(jobID int64) error {
			close(cancelStarted)
			<-ack // arbitrarily slow server acknowledgment
			return nil
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")

	go s.Check(context.Background(), nil)
	waitForState(t, s, StatePolling)

	s.Cancel()
	if s.State() != StateCancelled {
		t.Fatal("Cancel did not transition synchronously")
	}

	select {
	case <-cancelStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("server cancel request never issued")
	}
	close(ack)

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.cancelledJobs) != 1 || api.cancelledJobs[0] != 9 {
		t.Errorf("cancelled jobs = %v, want [9]", api.cancelledJobs)
	}
}

func TestJobFailureShowsServerMessage(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			return SubmissionOutcome{JobID: 3}, nil
		},
		statusFn: func(call int, jobID int64) (JobStatus, error) {
			return JobStatus{Status: StatusFailed, ErrorMessage: "provider rate limited"}, nil
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")

	if err := s.Check(context.Background(), nil); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if s.State() != StateFailed {
		t.Fatalf("state = %v, want failed", s.State())
	}
	if s.Err() != "provider rate limited" {
		t.Errorf("error = %q, want server message verbatim", s.Err())
	}
}

func TestPollConnectionLossFailsSession(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			return SubmissionOutcome{JobID: 3}, nil
		},
		statusFn: func(call int, jobID int64) (JobStatus, error) {
			return JobStatus{}, errors.New("connection refused")
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")

	if err := s.Check(context.Background(), nil); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if s.State() != StateFailed {
		t.Fatalf("state = %v, want failed", s.State())
	}
	if s.Err() != ErrConnection.Error() {
		t.Errorf("error = %q, want %q", s.Err(), ErrConnection.Error())
	}
}

func TestSetTextClearsError(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			return SubmissionOutcome{}, errors.New("boom")
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")
	s.Check(context.Background(), nil)
	if s.Err() == "" {
		t.Fatal("expected a surfaced error")
	}

	s.SetText("고친 글")
	if s.Err() != "" {
		t.Error("typing did not clear the error")
	}
	if s.State() != StateEditing {
		t.Errorf("state = %v, want editing", s.State())
	}
}

func TestDeleteSelectedHistoryClearsResult(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSession(api)

	s.SelectHistory(Record{ID: 5, CorrectedText: "고친 글"})
	if s.Result() == nil || s.SelectedHistoryID() != 5 {
		t.Fatal("history selection not applied")
	}

	if err := s.DeleteHistory(context.Background(), 5); err != nil {
		t.Fatalf("DeleteHistory: %v", err)
	}
	if s.Result() != nil || s.SelectedHistoryID() != 0 {
		t.Error("deleting the displayed record did not clear it")
	}
}

func TestDeleteOtherHistoryKeepsResult(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSession(api)

	s.SelectHistory(Record{ID: 5, CorrectedText: "고친 글"})
	if err := s.DeleteHistory(context.Background(), 6); err != nil {
		t.Fatalf("DeleteHistory: %v", err)
	}
	if s.Result() == nil || s.SelectedHistoryID() != 5 {
		t.Error("deleting an unrelated record disturbed the displayed result")
	}
}

func TestResetReturnsToInitialState(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(string, string) (SubmissionOutcome, error) {
			result := CheckResult{CorrectedText: "고친 글"}
			return SubmissionOutcome{Cached: true, Result: &result}, nil
		},
	}
	s := newTestSession(api)
	s.SetText("검사할 글")
	s.Check(context.Background(), nil)

	s.Reset()
	if s.State() != StateIdle || s.Text() != "" || s.Result() != nil || s.Err() != "" {
		t.Errorf("reset left state=%v text=%q result=%v err=%q",
			s.State(), s.Text(), s.Result(), s.Err())
	}
}
