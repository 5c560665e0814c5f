package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lowband/rxcal/pkg/storage"
)

func testSnapshot(observation string, solvedAt time.Time) storage.Snapshot {
	curve := storage.Curve{ModelType: "polynomial", Coeffs: []float64{1, 0.5}, FMin: 50, FMax: 100}
	return storage.Snapshot{
		Observation: observation,
		SolvedAt:    solvedAt,
		FLowMHz:     50,
		FHighMHz:    100,
		CTerms:      6,
		WTerms:      5,
		LoadNames:   []string{"ambient", "hot_load", "open", "short"},
		Iterations:  4,
		ResidualK:   1e-7,
		C1:          curve,
		C2:          curve,
		Tunc:        curve,
		Tcos:        curve,
		Tsin:        curve,
	}
}

// fakeEvaluator serves a canned evaluation for a single observation.
type fakeEvaluator struct {
	observation string
}

func (e *fakeEvaluator) Evaluate(observation string, freqs []float64) (*Evaluation, error) {
	if observation != e.observation {
		return nil, fmt.Errorf("%w for observation %q", ErrNotSolved, observation)
	}
	flat := make([]float64, len(freqs))
	for i := range flat {
		flat[i] = 1
	}
	return &Evaluation{
		Observation:    observation,
		FrequenciesMHz: freqs,
		C1:             flat,
		C2:             flat,
		Tunc:           flat,
		Tcos:           flat,
		Tsin:           flat,
		Loads: map[string]GammaCurve{
			"ambient": {Re: flat, Im: flat},
		},
	}, nil
}

func testMux(t *testing.T, store storage.Store) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return SetupRoutes(store, &fakeEvaluator{observation: "obs"}, 2*time.Minute, logger)
}

func TestSetupRoutes(t *testing.T) {
	if mux := testMux(t, storage.NewMemoryStore()); mux == nil {
		t.Fatal("SetupRoutes() returned nil")
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); body != "OK" {
		t.Errorf("body = %q, want %q", body, "OK")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		t.Error("Content-Type header should be set for metrics endpoint")
	}
}

func TestGetSnapshot_MissingObservation(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/calibration/current", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetSnapshot_InvalidObservationName(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/calibration/current?observation=bad%20name", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/calibration/current?observation=nonexistent", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetSnapshot_Success(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Put(context.Background(), testSnapshot("obs", time.Now())); err != nil {
		t.Fatalf("failed to put snapshot: %v", err)
	}
	mux := testMux(t, store)

	req := httptest.NewRequest(http.MethodGet, "/calibration/current?observation=obs", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	if w.Header().Get("X-Rxcal-Stale") == "true" {
		t.Error("fresh snapshot should not be marked stale")
	}

	for _, field := range []string{
		`"observation"`, `"solved_at"`, `"f_low_mhz"`, `"f_high_mhz"`,
		`"cterms"`, `"wterms"`, `"load_names"`, `"iterations"`,
		`"residual_k"`, `"c1"`, `"c2"`, `"tunc"`, `"tcos"`, `"tsin"`,
		`"model_type"`, `"coeffs"`,
	} {
		if !strings.Contains(w.Body.String(), field) {
			t.Errorf("response missing field %s", field)
		}
	}
}

func TestGetSnapshot_Stale(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Put(context.Background(), testSnapshot("obs", time.Now().Add(-5*time.Minute))); err != nil {
		t.Fatalf("failed to put snapshot: %v", err)
	}
	mux := testMux(t, store)

	req := httptest.NewRequest(http.MethodGet, "/calibration/current?observation=obs", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Rxcal-Stale") != "true" {
		t.Error("old snapshot should be marked stale")
	}
}

func TestEvaluate_Success(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/calibration/evaluate?observation=obs&freq=50,75,100", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var result Evaluation
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(result.FrequenciesMHz) != 3 || result.FrequenciesMHz[1] != 75 {
		t.Errorf("frequencies = %v", result.FrequenciesMHz)
	}
	if len(result.C1) != 3 || len(result.Tsin) != 3 {
		t.Errorf("curve lengths = %d/%d, want 3", len(result.C1), len(result.Tsin))
	}
	if _, ok := result.Loads["ambient"]; !ok {
		t.Error("loads missing ambient reflection")
	}
}

func TestEvaluate_NotSolved(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/calibration/evaluate?observation=other&freq=60", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestEvaluate_BadFreqs(t *testing.T) {
	mux := testMux(t, storage.NewMemoryStore())

	for _, query := range []string{
		"observation=obs",
		"observation=obs&freq=",
		"observation=obs&freq=abc",
		"observation=obs&freq=50,-10",
	} {
		req := httptest.NewRequest(http.MethodGet, "/calibration/evaluate?"+query, nil)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: status code = %d, want %d", query, w.Code, http.StatusBadRequest)
		}
	}
}

func TestParseFreqs(t *testing.T) {
	freqs, err := parseFreqs("50, 62.5 ,75")
	if err != nil {
		t.Fatalf("parseFreqs failed: %v", err)
	}
	if len(freqs) != 3 || freqs[1] != 62.5 {
		t.Errorf("freqs = %v", freqs)
	}

	if _, err := parseFreqs(""); err == nil {
		t.Error("expected error for empty list")
	}
	if _, err := parseFreqs("50,,60"); err == nil {
		t.Error("expected error for empty element")
	}
}
