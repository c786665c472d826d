package checkclient

import (
	"context"
	"strings"
	"sync"
	"time"
)

// State is the session's single active state. Terminal check outcomes and the
// editing states are mutually exclusive by construction.
type State int

const (
	StateIdle State = iota
	StateEditing
	StateSubmitting
	StatePolling
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateEditing:    "editing",
	StateSubmitting: "submitting",
	StatePolling:    "polling",
	StateCompleted:  "completed",
	StateFailed:     "failed",
	StateCancelled:  "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// API is the slice of the client a session drives.
type API interface {
	Submit(ctx context.Context, text, provider string) (SubmissionOutcome, error)
	JobStatus(ctx context.Context, jobID int64) (JobStatus, error)
	CancelJob(ctx context.Context, jobID int64) error
	DeleteHistory(ctx context.Context, id int64) error
}

// Session owns one check-and-view cycle: the text being edited, the active
// job if any, and the displayed result or error. All mutation goes through
// its methods; construct one per consumer rather than sharing a singleton.
//
// Every async outcome is tagged with the generation current at submit time
// and discarded if a newer submit, cancel, or reset bumped the counter in
// the meantime, so a stale poll can never overwrite newer state.
type Session struct {
	api    API
	poller *Poller

	mu                sync.Mutex
	gen               uint64
	state             State
	text              string
	provider          string
	jobID             int64
	progress          *Progress
	result            *CheckResult
	errMsg            string
	selectedHistoryID int64
	cancelPoll        context.CancelFunc
}

// NewSession creates an idle session talking through api.
func NewSession(api API) *Session {
	return &Session{api: api, poller: NewPoller(api)}
}

// SetText replaces the working text. Any displayed error clears immediately;
// typing is how the user dismisses a failure.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.errMsg = ""
	if s.state == StateSubmitting || s.state == StatePolling {
		return
	}
	if strings.TrimSpace(text) == "" {
		s.state = StateIdle
	} else {
		s.state = StateEditing
	}
}

// SetProvider selects the provider for the next check.
func (s *Session) SetProvider(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = name
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the working text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Result returns the displayed result, or nil.
func (s *Session) Result() *CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the displayed error message, empty when there is none.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Progress returns the latest progress snapshot, or nil.
func (s *Session) Progress() *Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// JobID returns the active job id, zero when none.
func (s *Session) JobID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID
}

// Check runs a full check cycle: submit, then poll to a terminal state
// unless the cache answered directly. It blocks until the cycle settles and
// returns nil in every case the session absorbed into its own state,
// including failures; inspect State and Err afterwards. Submitting blank
// text is a silent no-op.
//
// onProgress, when non-nil, receives every progress update synchronously.
func (s *Session) Check(ctx context.Context, onProgress func(Progress)) error {
	s.mu.Lock()
	if strings.TrimSpace(s.text) == "" {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	text, provider := s.text, s.provider
	s.state = StateSubmitting
	s.result = nil
	s.errMsg = ""
	s.progress = nil
	s.jobID = 0
	s.selectedHistoryID = 0

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelPoll = cancel
	s.mu.Unlock()

	outcome, err := s.api.Submit(ctx, text, provider)
	if err != nil {
		s.fail(gen, err.Error())
		return nil
	}
	if outcome.Cached {
		s.complete(gen, *outcome.Result)
		return nil
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.state = StatePolling
	s.jobID = outcome.JobID
	s.mu.Unlock()

	status, err := s.poller.Poll(ctx, outcome.JobID, func(p Progress) {
		s.setProgress(gen, p)
		if onProgress != nil {
			onProgress(p)
		}
	})
	switch {
	case err == ErrConnection || err == ErrTimeout:
		s.fail(gen, err.Error())
	case err != nil:
		// Context cancellation; a bumped generation already holds the
		// state the user asked for.
		s.fail(gen, err.Error())
	case status.Status == StatusCompleted:
		if status.Result == nil {
			s.fail(gen, "server reported completion without a result")
			return nil
		}
		s.complete(gen, Normalize(*status.Result))
	case status.Status == StatusFailed:
		msg := status.ErrorMessage
		if msg == "" {
			msg = "check failed"
		}
		s.fail(gen, msg)
	case status.Status == StatusCancelled:
		s.cancelled(gen)
	}
	return nil
}

// Cancel aborts the active check. The local transition is synchronous and
// unconditional; the server notification is fire-and-forget, so a slow or
// failed acknowledgment never delays the user. Outside Submitting/Polling it
// is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != StateSubmitting && s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	jobID := s.jobID
	s.gen++
	s.state = StateCancelled
	s.jobID = 0
	s.progress = nil
	s.errMsg = ""
	cancel := s.cancelPoll
	s.cancelPoll = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if jobID != 0 {
		go func() {
			ctx, cancelReq := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelReq()
			s.api.CancelJob(ctx, jobID) //nolint:errcheck // advisory only
		}()
	}
}

// Reset returns the session to its initial state, clearing the text too.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateIdle
	s.text = ""
	s.jobID = 0
	s.progress = nil
	s.result = nil
	s.errMsg = ""
	s.selectedHistoryID = 0
}

// SelectHistory displays a persisted check as the current result.
func (s *Session) SelectHistory(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := Normalize(rec)
	s.result = &result
	s.selectedHistoryID = rec.ID
	s.errMsg = ""
	s.state = StateCompleted
}

// SelectedHistoryID returns the id of the displayed history record, zero
// when the displayed result did not come from history.
func (s *Session) SelectedHistoryID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedHistoryID
}

// DeleteHistory removes a persisted check on the server. If the deleted
// record is the one on display, the displayed result clears with it.
func (s *Session) DeleteHistory(ctx context.Context, id int64) error {
	if err := s.api.DeleteHistory(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedHistoryID == id {
		s.selectedHistoryID = 0
		s.result = nil
		if strings.TrimSpace(s.text) == "" {
			s.state = StateIdle
		} else {
			s.state = StateEditing
		}
	}
	return nil
}

// fail records a terminal failure unless the generation moved on.
func (s *Session) fail(gen uint64, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.state = StateFailed
	s.errMsg = msg
	s.result = nil
	s.progress = nil
	s.jobID = 0
}

func (s *Session) complete(gen uint64, result CheckResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.state = StateCompleted
	s.result = &result
	s.progress = nil
	s.jobID = 0
}

func (s *Session) cancelled(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.state = StateCancelled
	s.progress = nil
	s.jobID = 0
}

func (s *Session) setProgress(gen uint64, p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.progress = &p
}
