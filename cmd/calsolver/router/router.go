// Package router configures HTTP routes for the solver's HTTP API.
//
// The solver exposes an HTTP server on port 8081 (configurable) that provides
// calibration solution retrieval, on-demand curve evaluation, health checks,
// and Prometheus metrics. This package sets up the routes for that server.
//
// Routes configured:
//   - GET /calibration/current?observation=<name> - Latest solution snapshot
//   - GET /calibration/evaluate?observation=<name>&freq=<f1,f2,...> -
//     Calibration curves and per-load reflections on a requested grid
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// The /calibration/current endpoint returns the stored coefficient snapshot
// in JSON. Snapshots older than the stale threshold include an X-Rxcal-Stale
// header so consumers can decide whether to trust them.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lowband/rxcal/pkg/httpx"
	"github.com/lowband/rxcal/pkg/storage"
)

var observationNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_.-]{0,251}[a-zA-Z0-9])?$`)

// maxEvalPoints bounds the requested evaluation grid.
const maxEvalPoints = 10000

// ErrNotSolved reports that no solved calibration is available for the
// requested observation. Handlers map it to 404.
var ErrNotSolved = errors.New("no solved calibration")

// GammaCurve is a complex reflection curve split into parts for JSON.
type GammaCurve struct {
	Re []float64 `json:"re"`
	Im []float64 `json:"im"`
}

// Evaluation is the response body of /calibration/evaluate: the five
// calibration curves and every load reflection evaluated on the requested
// frequency grid.
type Evaluation struct {
	Observation    string                `json:"observation"`
	FrequenciesMHz []float64             `json:"frequencies_mhz"`
	C1             []float64             `json:"c1"`
	C2             []float64             `json:"c2"`
	Tunc           []float64             `json:"tunc"`
	Tcos           []float64             `json:"tcos"`
	Tsin           []float64             `json:"tsin"`
	Loads          map[string]GammaCurve `json:"loads"`
}

// Evaluator evaluates the live solution on a caller-supplied grid.
type Evaluator interface {
	Evaluate(observation string, freqs []float64) (*Evaluation, error)
}

// SetupRoutes configures HTTP endpoints for the solver.
func SetupRoutes(store storage.Store, eval Evaluator, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.HandleFunc("/calibration/current", handleGetSnapshot(store, staleAfter, logger))
	mux.HandleFunc("/calibration/evaluate", handleEvaluate(eval, logger))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetSnapshot returns a handler for GET /calibration/current.
func handleGetSnapshot(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		observation, ok := observationParam(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, observation)
		if err != nil {
			logger.Error("failed to get snapshot", "observation", observation, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no solution for observation %q", observation))
			return
		}

		if time.Since(snapshot.SolvedAt) > staleAfter {
			w.Header().Set("X-Rxcal-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleEvaluate returns a handler for GET /calibration/evaluate.
func handleEvaluate(eval Evaluator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		observation, ok := observationParam(w, r)
		if !ok {
			return
		}

		freqs, err := parseFreqs(r.URL.Query().Get("freq"))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		result, err := eval.Evaluate(observation, freqs)
		if err != nil {
			if errors.Is(err, ErrNotSolved) {
				httpx.WriteError(w, http.StatusNotFound, err)
				return
			}
			logger.Error("evaluation failed", "observation", observation, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func observationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	observation := r.URL.Query().Get("observation")
	if observation == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "observation parameter required")
		return "", false
	}
	if !observationNameRegex.MatchString(observation) {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid observation name format")
		return "", false
	}
	return observation, true
}

// parseFreqs parses the freq query parameter: a comma-separated list of
// frequencies in MHz.
func parseFreqs(raw string) ([]float64, error) {
	if raw == "" {
		return nil, errors.New("freq parameter required (comma-separated MHz values)")
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxEvalPoints {
		return nil, fmt.Errorf("too many frequencies: %d (max %d)", len(parts), maxEvalPoints)
	}
	freqs := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frequency %q", p)
		}
		if f <= 0 {
			return nil, fmt.Errorf("frequency must be positive, got %g", f)
		}
		freqs = append(freqs, f)
	}
	return freqs, nil
}
