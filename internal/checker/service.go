// Package checker owns the server side of a proofreading check: request
// validation, the result cache, the job queue, and chunk-by-chunk processing
// through an AI provider.
package checker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/sync/errgroup"

	"github.com/kyuho/barun/internal/provider"
	"github.com/kyuho/barun/internal/storage"
)

// MaxTextLength is the maximum accepted input length in runes.
const MaxTextLength = 100000

var (
	ErrEmptyText   = errors.New("text cannot be empty")
	ErrTextTooLong = fmt.Errorf("text exceeds maximum limit of %d characters", MaxTextLength)
)

// ProviderRegistry resolves providers by name for the service.
type ProviderRegistry interface {
	Resolve(name string) (provider.Provider, error)
	Availability(ctx context.Context) map[string]bool
}

// SubmitOutcome is the result of submitting text: either a cached result or
// a queued job id.
type SubmitOutcome struct {
	Cached bool
	Result *storage.CheckResult // set when Cached
	JobID  int64                // set when not Cached
}

// Service validates check requests and routes them to the cache or the queue.
type Service struct {
	store     *storage.Store
	registry  ProviderRegistry
	chunkSize int
}

// NewService creates a Service. chunkSize <= 0 selects DefaultChunkSize.
func NewService(store *storage.Store, registry ProviderRegistry, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Service{store: store, registry: registry, chunkSize: chunkSize}
}

// Submit validates text, consults the result cache, and either returns the
// cached result or enqueues a job for the worker.
func (s *Service) Submit(text, providerName string) (SubmitOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return SubmitOutcome{}, ErrEmptyText
	}
	if len([]rune(text)) > MaxTextLength {
		return SubmitOutcome{}, ErrTextTooLong
	}

	p, err := s.registry.Resolve(providerName)
	if err != nil {
		return SubmitOutcome{}, err
	}

	hash := TextHash(text)
	cached, err := s.store.FindCachedResult(hash, p.Name())
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("looking up cache: %w", err)
	}
	if cached != nil {
		return SubmitOutcome{Cached: true, Result: cached}, nil
	}

	jobID, err := s.store.CreateCheckJob(text, hash, p.Name())
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("enqueueing check job: %w", err)
	}
	return SubmitOutcome{JobID: jobID}, nil
}

// CheckSync runs a full check inline, bypassing the queue. Used by the MCP
// proofread tool, where the caller holds the connection open anyway.
func (s *Service) CheckSync(ctx context.Context, text, providerName string) (storage.CheckResult, error) {
	if strings.TrimSpace(text) == "" {
		return storage.CheckResult{}, ErrEmptyText
	}
	if len([]rune(text)) > MaxTextLength {
		return storage.CheckResult{}, ErrTextTooLong
	}

	p, err := s.registry.Resolve(providerName)
	if err != nil {
		return storage.CheckResult{}, err
	}

	hash := TextHash(text)
	cached, err := s.store.FindCachedResult(hash, p.Name())
	if err != nil {
		return storage.CheckResult{}, fmt.Errorf("looking up cache: %w", err)
	}
	if cached != nil {
		return *cached, nil
	}

	result, err := s.processConcurrent(ctx, p, text)
	if err != nil {
		return storage.CheckResult{}, err
	}
	id, err := s.store.SaveCheckResult(result)
	if err != nil {
		return storage.CheckResult{}, fmt.Errorf("saving result: %w", err)
	}
	result.ID = id
	return result, nil
}

// Availability reports which providers are configured.
func (s *Service) Availability(ctx context.Context) map[string]bool {
	return s.registry.Availability(ctx)
}

// process chunks text, runs every chunk through the provider in order, and
// merges the results. onChunk, when non-nil, is called after each chunk
// completes; returning an error from it aborts the check (the worker uses
// this for cancellation).
func (s *Service) process(ctx context.Context, p provider.Provider, text string, onChunk func(done, total int) error) (storage.CheckResult, error) {
	start := time.Now()
	chunks := ChunkText(text, s.chunkSize)
	results := make([]provider.ChunkResult, len(chunks))

	for i, chunk := range chunks {
		chunkResult, err := p.Check(ctx, chunk)
		if err != nil {
			return storage.CheckResult{}, fmt.Errorf("checking chunk %d/%d: %w", i+1, len(chunks), err)
		}
		results[i] = chunkResult

		if onChunk != nil {
			if err := onChunk(i+1, len(chunks)); err != nil {
				return storage.CheckResult{}, err
			}
		}
	}

	return mergeChunkResults(text, p.Name(), results, start)
}

// processConcurrent runs the chunks through the provider in parallel and
// merges the results in input order. The synchronous check path uses this;
// the queued path stays sequential so per-chunk progress and mid-job
// cancellation keep their meaning.
func (s *Service) processConcurrent(ctx context.Context, p provider.Provider, text string) (storage.CheckResult, error) {
	start := time.Now()
	chunks := ChunkText(text, s.chunkSize)
	results := make([]provider.ChunkResult, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to stay inside provider rate limits.
	for i, chunk := range chunks {
		g.Go(func() error {
			chunkResult, err := p.Check(gCtx, chunk)
			if err != nil {
				return fmt.Errorf("checking chunk %d/%d: %w", i+1, len(chunks), err)
			}
			results[i] = chunkResult
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return storage.CheckResult{}, err
	}

	return mergeChunkResults(text, p.Name(), results, start)
}

// mergeChunkResults concatenates corrected chunks and rebases each chunk's
// issue positions onto the merged corrected text.
func mergeChunkResults(text, providerName string, results []provider.ChunkResult, start time.Time) (storage.CheckResult, error) {
	var corrected strings.Builder
	var issues []provider.Issue
	offset := 0 // UTF-16 code units of corrected text so far

	for _, chunkResult := range results {
		for _, issue := range chunkResult.Issues {
			issue.Position.Start += offset
			issue.Position.End += offset
			issues = append(issues, issue)
		}
		corrected.WriteString(chunkResult.CorrectedText)
		offset += utf16Len(chunkResult.CorrectedText)
	}

	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return storage.CheckResult{}, fmt.Errorf("encoding issues: %w", err)
	}
	if issues == nil {
		issuesJSON = []byte("[]")
	}

	return storage.CheckResult{
		TextHash:      TextHash(text),
		OriginalText:  text,
		CorrectedText: corrected.String(),
		Issues:        string(issuesJSON),
		Provider:      providerName,
		ProcessingMs:  time.Since(start).Milliseconds(),
		ChunkCount:    len(results),
	}, nil
}

// TextHash returns the cache key for a piece of input text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// utf16Len counts UTF-16 code units, the offset unit used by issue positions.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
