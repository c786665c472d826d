package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Check jobs ---

// CreateCheckJob inserts a pending job and returns its id.
func (s *Store) CreateCheckJob(text, textHash, provider string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO check_jobs (text, text_hash, provider, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)`,
		text, textHash, provider, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting check job: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetCheckJob(id int64) (CheckJob, error) {
	var j CheckJob
	var resultID sql.NullInt64
	var createdAt string
	var startedAt, completedAt sql.NullString
	err := s.db.QueryRow(`
		SELECT id, text, text_hash, provider, status, progress_current, progress_total,
		       error_message, result_id, created_at, started_at, completed_at
		FROM check_jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.Text, &j.TextHash, &j.Provider, &j.Status, &j.ProgressCurrent,
		&j.ProgressTotal, &j.ErrorMessage, &resultID, &createdAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return CheckJob{}, ErrNotFound
	}
	if err != nil {
		return CheckJob{}, err
	}
	j.ResultID = resultID.Int64
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return CheckJob{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if startedAt.Valid {
		if j.StartedAt, err = time.Parse(time.RFC3339, startedAt.String); err != nil {
			return CheckJob{}, fmt.Errorf("parsing started_at: %w", err)
		}
	}
	if completedAt.Valid {
		if j.CompletedAt, err = time.Parse(time.RFC3339, completedAt.String); err != nil {
			return CheckJob{}, fmt.Errorf("parsing completed_at: %w", err)
		}
	}
	return j, nil
}

// ClaimNextCheckJob atomically moves the oldest pending job to processing.
// Returns nil when the queue is empty.
func (s *Store) ClaimNextCheckJob() (*CheckJob, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var id int64
	err = tx.QueryRow(`
		SELECT id FROM check_jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next check job: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.Exec(`
		UPDATE check_jobs SET status = 'processing', started_at = ?
		WHERE id = ? AND status = 'pending'`, now, id)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("marking job processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	job, err := s.GetCheckJob(id)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) UpdateCheckJobProgress(id int64, current, total int) error {
	res, err := s.db.Exec(`
		UPDATE check_jobs SET progress_current = ?, progress_total = ?
		WHERE id = ?`, current, total, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CheckJobStatus returns just the status column. The worker polls this
// between chunks so a cancellation takes effect mid-job.
func (s *Store) CheckJobStatus(id int64) (string, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM check_jobs WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return status, err
}

func (s *Store) CompleteCheckJob(id, resultID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE check_jobs SET status = 'completed', result_id = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`, resultID, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) FailCheckJob(id int64, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE check_jobs SET status = 'failed', error_message = ?, completed_at = ?
		WHERE id = ?`, errMsg, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CancelCheckJob marks a job cancelled. Only non-terminal jobs are affected;
// cancelling an already-terminal job is a no-op, not an error, because the
// client-side cancel is best-effort by contract.
func (s *Store) CancelCheckJob(id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		UPDATE check_jobs SET status = 'cancelled', completed_at = ?
		WHERE id = ? AND status IN ('pending', 'processing')`, now, id)
	return err
}

// FailStaleCheckJobs fails jobs stuck in processing since before cutoff.
// Returns the number of jobs failed.
func (s *Store) FailStaleCheckJobs(cutoff time.Time) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE check_jobs SET status = 'failed', error_message = 'job timed out (stale processing)', completed_at = ?
		WHERE status = 'processing' AND started_at < ?`,
		now, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- Check results ---

func (s *Store) SaveCheckResult(r CheckResult) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO check_results (text_hash, original_text, corrected_text, issues, provider, processing_ms, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TextHash, r.OriginalText, r.CorrectedText, r.Issues, r.Provider,
		r.ProcessingMs, r.ChunkCount, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting check result: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetCheckResult(id int64) (CheckResult, error) {
	row := s.db.QueryRow(`
		SELECT id, text_hash, original_text, corrected_text, issues, provider, processing_ms, chunk_count, created_at
		FROM check_results WHERE id = ?`, id)
	return scanCheckResult(row)
}

// FindCachedResult returns the most recent result for the same text and
// provider, or nil when the text has never been checked.
func (s *Store) FindCachedResult(textHash, provider string) (*CheckResult, error) {
	row := s.db.QueryRow(`
		SELECT id, text_hash, original_text, corrected_text, issues, provider, processing_ms, chunk_count, created_at
		FROM check_results WHERE text_hash = ? AND provider = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, textHash, provider)
	r, err := scanCheckResult(row)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListCheckResults returns one page of results, newest first, plus the total count.
func (s *Store) ListCheckResults(page, perPage int) ([]CheckResult, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM check_results`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT id, text_hash, original_text, corrected_text, issues, provider, processing_ms, chunk_count, created_at
		FROM check_results ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []CheckResult
	for rows.Next() {
		r, err := scanCheckResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func (s *Store) DeleteCheckResult(id int64) error {
	res, err := s.db.Exec(`DELETE FROM check_results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckResult(row rowScanner) (CheckResult, error) {
	var r CheckResult
	var createdAt string
	err := row.Scan(&r.ID, &r.TextHash, &r.OriginalText, &r.CorrectedText, &r.Issues,
		&r.Provider, &r.ProcessingMs, &r.ChunkCount, &createdAt)
	if err == sql.ErrNoRows {
		return CheckResult{}, ErrNotFound
	}
	if err != nil {
		return CheckResult{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return CheckResult{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
