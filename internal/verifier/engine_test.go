package verifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/spf13/afero"

	"github.com/btraven00/linkscan/internal/config"
	"github.com/btraven00/linkscan/internal/extractor"
	"github.com/btraven00/linkscan/internal/status"
)

func testConfig(concurrency, batchSize int) config.Config {
	cfg := config.Default()
	cfg.MaxConcurrency = concurrency
	cfg.BatchSize = batchSize
	cfg.RequestTimeout = 2 * time.Second

	return cfg
}

func candidates(n int, base string) []extractor.CandidateURL {
	out := make([]extractor.CandidateURL, n)
	for i := range out {
		u := fmt.Sprintf("%s/item/%d", base, i)
		out[i] = extractor.CandidateURL{Original: u, Normalized: u, SourceID: "test"}
	}

	return out
}

func collect(t *testing.T, e *Engine, ctx context.Context, in []extractor.CandidateURL) []Batch {
	t.Helper()

	seq, err := e.Verify(ctx, in)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	var batches []Batch
	for b := range seq {
		batches = append(batches, b)
	}

	return batches
}

func TestEngineConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	engine, err := NewEngine(testConfig(3, 7))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	batches := collect(t, engine, context.Background(), candidates(30, server.URL))

	if got := peak.Load(); got > 3 {
		t.Errorf("expected at most 3 probes in flight, observed %d", got)
	}

	total := 0
	for _, b := range batches {
		total += len(b.Results)
	}

	if total != 30 {
		t.Errorf("expected 30 results, got %d", total)
	}
}

func TestEngineCompleteness(t *testing.T) {
	var seen sync.Map

	prober := ProberFunc(func(_ context.Context, target string) (int, error) {
		if _, dup := seen.LoadOrStore(target, true); dup {
			return 0, fmt.Errorf("probed twice: %s", target)
		}
		return http.StatusOK, nil
	})

	engine, err := NewEngine(testConfig(10, 4), WithProber(prober))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	in := candidates(10, "https://example.com")
	batches := collect(t, engine, context.Background(), in)

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	wantSizes := []int{4, 4, 2}
	got := make(map[string]int)

	for i, b := range batches {
		if b.Index != i {
			t.Errorf("batch %d has index %d", i, b.Index)
		}

		if len(b.Results) != wantSizes[i] {
			t.Errorf("batch %d: expected %d results, got %d", i, wantSizes[i], len(b.Results))
		}

		if b.Successes != len(b.Results) {
			t.Errorf("batch %d: expected %d successes, got %d", i, len(b.Results), b.Successes)
		}

		for _, r := range b.Results {
			got[r.Normalized]++

			// Each batch holds exactly its slice of the input.
			if !strings.HasPrefix(r.Normalized, "https://example.com/item/") {
				t.Errorf("unexpected result URL %s", r.Normalized)
			}
		}
	}

	for _, c := range in {
		if got[c.Normalized] != 1 {
			t.Errorf("expected exactly one result for %s, got %d", c.Normalized, got[c.Normalized])
		}
	}
}

func TestEngineBatchesFollowInputOrder(t *testing.T) {
	engine, err := NewEngine(testConfig(5, 3), WithProber(ProberFunc(func(context.Context, string) (int, error) {
		return http.StatusOK, nil
	})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	in := candidates(7, "https://example.com")
	batches := collect(t, engine, context.Background(), in)

	for i, b := range batches {
		members := make(map[string]bool)
		for _, r := range b.Results {
			members[r.Normalized] = true
		}

		for j := i * 3; j < min((i+1)*3, len(in)); j++ {
			if !members[in[j].Normalized] {
				t.Errorf("batch %d missing input %d", i, j)
			}
		}
	}
}

func TestEngineCancellationBetweenBatches(t *testing.T) {
	var probes atomic.Int64

	engine, err := NewEngine(testConfig(4, 5), WithProber(ProberFunc(func(context.Context, string) (int, error) {
		probes.Add(1)
		return http.StatusOK, nil
	})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq, err := engine.Verify(ctx, candidates(25, "https://example.com"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	var batches []Batch
	for b := range seq {
		batches = append(batches, b)
		if len(batches) == 2 {
			cancel()
		}
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches after cancellation, got %d", len(batches))
	}

	for _, b := range batches {
		if len(b.Results) != 5 {
			t.Errorf("batch %d incomplete: %d results", b.Index, len(b.Results))
		}
	}

	if got := probes.Load(); got != 10 {
		t.Errorf("expected 10 probes, got %d", got)
	}
}

func TestEngineInFlightBatchCompletesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := NewEngine(testConfig(2, 4), WithProber(ProberFunc(func(pctx context.Context, _ string) (int, error) {
		cancel()
		if pctx.Err() != nil {
			return 0, pctx.Err()
		}
		return http.StatusOK, nil
	})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	batches := collect(t, engine, ctx, candidates(8, "https://example.com"))

	if len(batches) != 1 {
		t.Fatalf("expected only the running batch, got %d", len(batches))
	}

	if batches[0].Successes != 4 {
		t.Errorf("expected the running batch to finish normally, got %d successes", batches[0].Successes)
	}
}

func TestEngineNotRestartable(t *testing.T) {
	engine, err := NewEngine(testConfig(2, 2), WithProber(ProberFunc(func(context.Context, string) (int, error) {
		return http.StatusOK, nil
	})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	seq, err := engine.Verify(context.Background(), candidates(3, "https://example.com"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	first := 0
	for range seq {
		first++
	}

	second := 0
	for range seq {
		second++
	}

	if first != 2 || second != 0 {
		t.Errorf("expected 2 then 0 batches, got %d then %d", first, second)
	}
}

func TestEngineEmptyInput(t *testing.T) {
	engine, err := NewEngine(testConfig(2, 2))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if batches := collect(t, engine, context.Background(), nil); len(batches) != 0 {
		t.Errorf("expected no batches, got %d", len(batches))
	}
}

func TestEngineInvalidCandidate(t *testing.T) {
	var probes atomic.Int64

	engine, err := NewEngine(testConfig(2, 10), WithProber(ProberFunc(func(context.Context, string) (int, error) {
		probes.Add(1)
		return http.StatusOK, nil
	})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	batches := collect(t, engine, context.Background(), []extractor.CandidateURL{
		{Original: "garbage", Normalized: "", SourceID: "test"},
	})

	if probes.Load() != 0 {
		t.Error("invalid candidate must not be probed")
	}

	r := batches[0].Results[0]
	if r.Category != status.CategoryInvalid || r.StatusCode != 0 || r.ErrorMessage == "" {
		t.Errorf("unexpected result for empty URL: %+v", r)
	}
}

func TestEngineStartFailure(t *testing.T) {
	var engine *Engine

	_, err := engine.Verify(context.Background(), candidates(1, "https://example.com"))
	if !failure.Is(err, ErrEngineStart) {
		t.Errorf("expected ErrEngineStart, got %v", err)
	}

	_, err = (&Engine{}).Verify(context.Background(), nil)
	if !failure.Is(err, ErrEngineStart) {
		t.Errorf("expected ErrEngineStart for zero engine, got %v", err)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BatchSize = 0

	if _, err := NewEngine(cfg); !failure.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestEngineClassifiesOutcomes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	refusedURL := closed.URL + "/gone"
	closed.Close()

	cfg := testConfig(4, 10)
	cfg.RequestTimeout = 100 * time.Millisecond

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	want := map[string]struct {
		category status.Category
		code     int
	}{
		server.URL + "/ok":      {status.CategoryActive, 200},
		server.URL + "/missing": {status.CategoryClientError, 404},
		server.URL + "/broken":  {status.CategoryServerError, 502},
		server.URL + "/moved":   {status.CategoryActive, 200},
		server.URL + "/slow":    {status.CategoryTimeout, 0},
		refusedURL:              {status.CategoryConnectionRefused, 0},
	}

	var in []extractor.CandidateURL
	for u := range want {
		in = append(in, extractor.CandidateURL{Original: u, Normalized: u, SourceID: "test"})
	}

	for _, b := range collect(t, engine, context.Background(), in) {
		for _, r := range b.Results {
			w := want[r.Normalized]

			if r.Category != w.category || r.StatusCode != w.code {
				t.Errorf("%s: expected %s/%d, got %s/%d (%s)",
					r.Normalized, w.category, w.code, r.Category, r.StatusCode, r.ErrorMessage)
			}

			if r.Category.IsError() && r.ErrorMessage == "" {
				t.Errorf("%s: expected an error message", r.Normalized)
			}

			if len([]rune(r.ErrorMessage)) > maxErrorMessage {
				t.Errorf("%s: error message not truncated", r.Normalized)
			}
		}
	}
}

func TestEngineRateLimit(t *testing.T) {
	var probes atomic.Int64

	cfg := testConfig(10, 10)
	cfg.RateLimit = 20

	engine, err := NewEngine(cfg, WithProber(ProberFunc(func(context.Context, string) (int, error) {
		probes.Add(1)
		return http.StatusOK, nil
	})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	start := time.Now()
	collect(t, engine, context.Background(), candidates(30, "https://example.com"))

	// A burst of 20 plus 10 more at 20/s needs roughly half a second.
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("expected rate limiting to slow the run, took %v", elapsed)
	}

	if probes.Load() != 30 {
		t.Errorf("expected 30 probes, got %d", probes.Load())
	}
}

func TestEndToEndFromText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host != "example.com" || r.URL.Path != "/Page" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ex := extractor.NewExtractor(extractor.ExtractionOptions{Fs: afero.NewMemMapFs(), CacheSize: 16})

	found := ex.ExtractText("Visit http://Example.com/Page?x=1 now.", extractor.ManualSourceID)
	if len(found) != 1 || found[0].Normalized != "http://example.com/Page" {
		t.Fatalf("unexpected candidates: %+v", found)
	}

	// Route every dial to the test server.
	transport := newTransport()
	transport.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, server.Listener.Addr().String())
	}

	engine, err := NewEngine(testConfig(2, 10), WithProber(newHTTPProber(time.Second, "test-agent", transport)))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	batches := collect(t, engine, context.Background(), found)

	r := batches[0].Results[0]
	if r.Category != status.CategoryActive || r.StatusCode != http.StatusOK {
		t.Errorf("expected active/200, got %s/%d (%s)", r.Category, r.StatusCode, r.ErrorMessage)
	}

	if r.ResponseTime <= 0 {
		t.Error("expected a positive response time")
	}
}

func TestFailedResultTruncatesMessage(t *testing.T) {
	long := errors.New(strings.Repeat("x", 300))

	r := failedResult(extractor.CandidateURL{Normalized: "https://example.com/a"}, time.Millisecond, long)
	if len(r.ErrorMessage) != maxErrorMessage {
		t.Errorf("expected %d characters, got %d", maxErrorMessage, len(r.ErrorMessage))
	}

	if r.Category != status.CategoryNetworkError {
		t.Errorf("expected generic network error, got %s", r.Category)
	}
}

func TestResultSeconds(t *testing.T) {
	r := Result{ResponseTime: 1234567 * time.Microsecond}
	if got := r.Seconds(); got != 1.2346 {
		t.Errorf("expected 1.2346, got %v", got)
	}
}
