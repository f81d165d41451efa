// Package verifier probes candidate URLs under a global concurrency limit and
// reports classified results batch by batch.
package verifier

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/btraven00/linkscan/internal/config"
	"github.com/btraven00/linkscan/internal/extractor"
	"github.com/btraven00/linkscan/internal/log"
	"github.com/btraven00/linkscan/internal/status"
)

// maxErrorMessage is the number of characters kept from a transport error.
const maxErrorMessage = 120

// Result is the outcome of probing one candidate.
type Result struct {
	extractor.CandidateURL
	StatusCode   int              `json:"status_code"`
	Category     status.Category  `json:"status"`
	ErrorKind    status.ErrorKind `json:"error_kind,omitempty"`
	ResponseTime time.Duration    `json:"-"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// Seconds is the response time in seconds, rounded to 0.1ms.
func (r Result) Seconds() float64 {
	return float64(r.ResponseTime.Round(100*time.Microsecond)) / float64(time.Second)
}

// Batch is a group of results reported together. Results appear in the order
// their probes completed; Successes counts the active and redirect ones.
type Batch struct {
	Index     int
	Results   []Result
	Successes int
}

// Engine runs verification passes. One Engine may serve many runs; each call
// to Verify gets its own admission gate.
type Engine struct {
	prober    Prober
	limit     int
	batchSize int
	limiter   *rate.Limiter
}

// Option configures an Engine.
type Option func(*Engine)

// WithProber replaces the HTTP prober.
func WithProber(p Prober) Option {
	return func(e *Engine) {
		e.prober = p
	}
}

// WithRateLimit caps probe starts per second across the whole run.
func WithRateLimit(perSecond float64) Option {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}

		e.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// NewEngine builds an engine from cfg. The concurrency limit is
// cfg.EffectiveConcurrency.
func NewEngine(cfg config.Config, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		prober:    NewHTTPProber(cfg.RequestTimeout, cfg.UserAgent),
		limit:     cfg.EffectiveConcurrency(),
		batchSize: cfg.BatchSize,
	}

	WithRateLimit(cfg.RateLimit)(e)

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Verify partitions candidates into batches in input order and returns a
// sequence yielding one Batch per partition. At most the configured number
// of probes are in flight at any moment, across batch boundaries.
//
// ctx is checked before each batch starts: once it is done no further batch
// begins, while a batch already running completes. The sequence can be
// ranged over only once; later ranges yield nothing.
//
// The returned error reports a run that cannot start, never a failed probe.
func (e *Engine) Verify(ctx context.Context, candidates []extractor.CandidateURL) (iter.Seq[Batch], error) {
	if e == nil || e.prober == nil || e.limit < 1 || e.batchSize < 1 {
		return nil, failure.New(ErrEngineStart,
			failure.Message("verification engine is not initialized"),
		)
	}

	gate := semaphore.NewWeighted(int64(e.limit))
	batches := lo.Chunk(candidates, e.batchSize)

	var started atomic.Bool

	return func(yield func(Batch) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}

		for i, chunk := range batches {
			if err := ctx.Err(); err != nil {
				log.Info("verification stopped",
					"completed_batches", i,
					"total_batches", len(batches),
					"reason", err,
				)
				return
			}

			batch := e.runBatch(context.WithoutCancel(ctx), gate, i, chunk)

			if !yield(batch) {
				return
			}
		}
	}, nil
}

func (e *Engine) runBatch(ctx context.Context, gate *semaphore.Weighted, index int, chunk []extractor.CandidateURL) Batch {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]Result, 0, len(chunk))
	)

	record := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for _, candidate := range chunk {
		if candidate.Normalized == "" {
			record(invalidResult(candidate))
			continue
		}

		// ctx is never cancelled here, so Acquire only returns once a slot frees.
		if err := gate.Acquire(ctx, 1); err != nil {
			record(failedResult(candidate, 0, err))
			continue
		}

		wg.Add(1)

		go func(c extractor.CandidateURL) {
			defer wg.Done()
			defer gate.Release(1)

			record(e.probe(ctx, c))
		}(candidate)
	}

	wg.Wait()

	successes := lo.CountBy(results, func(r Result) bool {
		return r.Category.IsSuccess()
	})

	log.Debug("batch verified", "batch", index, "size", len(results), "successes", successes)

	return Batch{
		Index:     index,
		Results:   results,
		Successes: successes,
	}
}

func (e *Engine) probe(ctx context.Context, c extractor.CandidateURL) Result {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return failedResult(c, 0, err)
		}
	}

	code, elapsed, err := timed(ctx, e.prober, c.Normalized)
	if err != nil {
		return failedResult(c, elapsed, err)
	}

	return Result{
		CandidateURL: c,
		StatusCode:   code,
		Category:     status.Classify(code),
		ResponseTime: elapsed,
	}
}

func invalidResult(c extractor.CandidateURL) Result {
	return Result{
		CandidateURL: c,
		Category:     status.CategoryInvalid,
		ErrorKind:    status.KindInvalid,
		ErrorMessage: "empty URL",
	}
}

func failedResult(c extractor.CandidateURL, elapsed time.Duration, err error) Result {
	category, kind := status.ClassifyError(err)

	return Result{
		CandidateURL: c,
		Category:     category,
		ErrorKind:    kind,
		ResponseTime: elapsed,
		ErrorMessage: lo.Substring(err.Error(), 0, maxErrorMessage),
	}
}
