package verifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProberHeadFirst(t *testing.T) {
	var mu sync.Mutex
	var methods []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()

		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected configured User-Agent, got %q", r.Header.Get("User-Agent"))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	code, err := NewHTTPProber(5*time.Second, "test-agent").Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(methods) != 1 || methods[0] != http.MethodHead {
		t.Errorf("expected a single HEAD request, got %v", methods)
	}
}

func TestHTTPProberFallsBackToGet(t *testing.T) {
	testCases := []struct {
		name       string
		headStatus int
	}{
		{"method not allowed", http.StatusMethodNotAllowed},
		{"not implemented", http.StatusNotImplemented},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					w.WriteHeader(tc.headStatus)
					return
				}

				w.WriteHeader(http.StatusOK)
				w.Write([]byte("body"))
			}))
			defer server.Close()

			code, err := NewHTTPProber(5*time.Second, "test-agent").Probe(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Probe failed: %v", err)
			}

			if code != http.StatusOK {
				t.Errorf("expected GET fallback to yield 200, got %d", code)
			}
		})
	}
}

func TestHTTPProberKeepsHeadErrorStatus(t *testing.T) {
	var gets atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	code, err := NewHTTPProber(5*time.Second, "test-agent").Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	if n := gets.Load(); n != 0 {
		t.Errorf("404 on HEAD should not trigger GET, got %d GETs", n)
	}
}

func TestHTTPProberAcceptsSelfSignedCertificates(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	code, err := NewHTTPProber(5*time.Second, "test-agent").Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", code)
	}
}

func TestHTTPProberRedirectLimit(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	_, err := NewHTTPProber(5*time.Second, "test-agent").Probe(context.Background(), server.URL+"/loop")
	if err == nil {
		t.Fatal("expected redirect loop to fail")
	}
}

func TestTimed(t *testing.T) {
	prober := ProberFunc(func(context.Context, string) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return http.StatusTeapot, nil
	})

	code, elapsed, err := timed(context.Background(), prober, "https://example.com")
	if err != nil {
		t.Fatalf("timed failed: %v", err)
	}

	if code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", code)
	}

	if elapsed < 20*time.Millisecond {
		t.Errorf("expected at least 20ms, got %v", elapsed)
	}
}
