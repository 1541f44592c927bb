package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestRuntime(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, time.Second)
}

func TestScoreBatch(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		results := make([][]LabelScore, len(req.Inputs))
		for i := range req.Inputs {
			results[i] = []LabelScore{{Label: "joy", Score: 0.9}, {Label: "neutral", Score: 0.1}}
		}
		json.NewEncoder(w).Encode(scoreResponse{Results: results})
	})

	results, err := c.ScoreBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("ScoreBatch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0][0].Label != "joy" || results[0][0].Score != 0.9 {
		t.Errorf("unexpected first result %+v", results[0][0])
	}
}

func TestScoreBatchEmptyInput(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	results, err := c.ScoreBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("ScoreBatch() error = %v", err)
	}
	if results != nil {
		t.Errorf("got %v, want nil", results)
	}
}

func TestScoreBatchLengthMismatch(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Results: [][]LabelScore{{{Label: "joy", Score: 1}}}})
	})

	if _, err := c.ScoreBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on result count mismatch")
	}
}

func TestScoreBatchRuntimeError(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "out of memory"})
	})

	_, err := c.ScoreBatch(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWarmUp(t *testing.T) {
	var warmed bool
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/warmup" && r.Method == http.MethodPost {
			warmed = true
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if err := c.WarmUp(context.Background()); err != nil {
		t.Fatalf("WarmUp() error = %v", err)
	}
	if !warmed {
		t.Error("warmup endpoint was not called")
	}
}

func TestWarmUpFailure(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "checkpoint corrupt"})
	})

	if err := c.WarmUp(context.Background()); err == nil {
		t.Fatal("expected error on failed warmup")
	}
}

func TestHealth(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RuntimeHealth{
			Status:        "healthy",
			Device:        "cuda",
			GPUAvailable:  true,
			GPUName:       "NVIDIA L4",
			MemoryTotalMB: 23034,
			ModelLoaded:   true,
		})
	})

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if !h.GPUAvailable || h.GPUName != "NVIDIA L4" {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := NewClient(srv.URL, 100*time.Millisecond, 100*time.Millisecond)

	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error for unreachable runtime")
	}
}
