// Package main implements the core solve loop orchestration.
//
// This file contains the Solver type which orchestrates the calibration
// pipeline:
//
//	fetch → build models → solve → store snapshot
//
// The Solver runs continuously via Run(), executing Tick() at regular
// intervals. Each tick fetches the observation from the adapter, rebuilds the
// reflection models and spectra, solves for the calibration parameters, and
// updates the stored snapshot that the HTTP API serves.
//
// The loop is instrumented with Prometheus metrics tracking the duration of
// the fetch and solve stages, the iteration count and residual of the latest
// solution, and any errors encountered during execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lowband/rxcal/cmd/calsolver/config"
	"github.com/lowband/rxcal/cmd/calsolver/metrics"
	"github.com/lowband/rxcal/cmd/calsolver/router"
	"github.com/lowband/rxcal/pkg/adapters"
	"github.com/lowband/rxcal/pkg/calibrate"
	"github.com/lowband/rxcal/pkg/hotload"
	"github.com/lowband/rxcal/pkg/modeling"
	"github.com/lowband/rxcal/pkg/s11"
	"github.com/lowband/rxcal/pkg/spectra"
	"github.com/lowband/rxcal/pkg/storage"
)

// Solver orchestrates the solve loop: fetch → build → solve → store.
type Solver struct {
	cfg     *config.Config
	adapter adapters.Adapter
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	current  *calibrate.Observation
	solvedAt time.Time
}

// NewSolver creates a new Solver.
func NewSolver(cfg *config.Config, adapter adapters.Adapter, store storage.Store, logger *slog.Logger, m *metrics.Metrics) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{
		cfg:     cfg,
		adapter: adapter,
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Run executes the solve loop at regular intervals.
// Blocks until context is canceled.
func (s *Solver) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("starting solve loop", "interval", interval, "observation", s.cfg.Observation)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Tick(ctx); err != nil {
		s.logger.Error("initial solve tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("solve loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("solve tick failed", "error", err)
			}
		}
	}
}

// Tick performs one solve cycle.
// Exported for testing purposes.
func (s *Solver) Tick(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("starting solve tick")

	data, fetchDuration, err := s.fetch(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("adapter", "fetch_failed")
		}
		return fmt.Errorf("fetch: %w", err)
	}

	obs, err := s.build(data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("build", "model_failed")
		}
		return fmt.Errorf("build: %w", err)
	}

	solveStart := time.Now()
	sol, err := obs.Solution()
	solveDuration := time.Since(solveStart)
	if s.metrics != nil {
		s.metrics.RecordSolve(solveDuration.Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("solver", "solve_failed")
		}
		return fmt.Errorf("solve: %w", err)
	}

	if err := s.storeSnapshot(ctx, obs, sol); err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("store", "put_failed")
		}
		return fmt.Errorf("store: %w", err)
	}

	s.mu.Lock()
	s.current = obs
	s.solvedAt = time.Now()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetIterations(sol.Iterations)
		s.metrics.SetResidual(sol.Residual)
		s.metrics.SetSolutionAge(0)
	}

	totalDuration := time.Since(start)
	s.logger.Info("solve tick complete",
		"observation", s.cfg.Observation,
		"bins", len(obs.Frequencies()),
		"loads", len(obs.LoadNames()),
		"iterations", sol.Iterations,
		"residual_k", sol.Residual,
		"fetch_ms", fetchDuration.Milliseconds(),
		"solve_ms", solveDuration.Milliseconds(),
		"total_ms", totalDuration.Milliseconds(),
	)

	return nil
}

// fetch retrieves the observation from the adapter.
func (s *Solver) fetch(ctx context.Context) (*adapters.ObservationData, time.Duration, error) {
	start := time.Now()

	data, err := s.adapter.Fetch(ctx, s.cfg.Observation)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordFetch(duration.Seconds())
	}

	s.logger.Info("fetched observation",
		"adapter", s.adapter.Name(),
		"observation", data.Name,
		"loads", len(data.Loads),
		"duration_ms", duration.Milliseconds(),
	)

	return data, duration, nil
}

// build turns raw observation data into a solvable Observation: fits the
// receiver, switch and per-load reflection models on the configured band and
// averages the load spectra.
func (s *Solver) build(data *adapters.ObservationData) (*calibrate.Observation, error) {
	cfg := s.cfg

	typ, err := modeling.ParseModelType(cfg.Model)
	if err != nil {
		return nil, err
	}

	recMS, err := data.Receiver.Crop(cfg.FLow, cfg.FHigh)
	if err != nil {
		return nil, fmt.Errorf("receiver measurements: %w", err)
	}
	rec, err := s11.NewReceiver(recMS, cfg.MatchOhm, cfg.ReceiverTerms, typ)
	if err != nil {
		return nil, err
	}

	swMS, err := data.Switch.Crop(cfg.FLow, cfg.FHigh)
	if err != nil {
		return nil, fmt.Errorf("switch measurements: %w", err)
	}
	sw, err := s11.NewInternalSwitch(swMS, cfg.MatchOhm, s11.SwitchNTerms{
		S11:    cfg.SwitchTerms,
		S12S21: cfg.SwitchTerms,
		S22:    cfg.SwitchTerms,
	}, typ)
	if err != nil {
		return nil, err
	}

	opts := spectra.Options{
		IgnorePercent: cfg.IgnorePercent,
		FLow:          cfg.FLow,
		FHigh:         cfg.FHigh,
		TLoad:         cfg.TLoad,
		TLoadNS:       cfg.TLoadNS,
	}

	type built struct {
		spectrum   *spectra.Spectrum
		reflection *modeling.ComplexModel
	}
	parts := make(map[string]built, len(data.Loads))
	for name, ld := range data.Loads {
		ms, err := ld.S11.Crop(cfg.FLow, cfg.FHigh)
		if err != nil {
			return nil, fmt.Errorf("load %s measurements: %w", name, err)
		}
		ls, err := s11.NewLoadS11(name, ms, sw, cfg.LoadTerms, typ)
		if err != nil {
			return nil, err
		}
		sp, err := spectra.New(ld.Spectrum, opts)
		if err != nil {
			return nil, fmt.Errorf("load %s spectrum: %w", name, err)
		}
		parts[name] = built{spectrum: sp, reflection: ls.Model()}
	}

	loads := make(map[string]*calibrate.Load, len(parts))
	for name, p := range parts {
		lcfg := calibrate.LoadConfig{
			Spectrum:   p.spectrum,
			Reflection: p.reflection,
		}

		// The hot load sits behind a semi-rigid cable; correct its
		// temperature for the cable loss against the ambient load's
		// physical temperature.
		if name == calibrate.LoadHot && cfg.HotLoadCable != "none" {
			ambient, ok := parts[calibrate.LoadAmbient]
			if !ok {
				return nil, fmt.Errorf("hot load loss correction needs the %s load", calibrate.LoadAmbient)
			}
			freqs := p.spectrum.Frequencies()
			cable, err := hotload.DefaultCable(freqs)
			if err != nil {
				return nil, fmt.Errorf("hot load cable: %w", err)
			}
			loss, err := hotload.New(freqs, cable, p.reflection.EvalAll(freqs))
			if err != nil {
				return nil, fmt.Errorf("hot load loss: %w", err)
			}
			lcfg.Loss = loss
			lcfg.Ambient = ambient.spectrum.ThermistorTemp()
		}

		load, err := calibrate.NewLoad(name, lcfg)
		if err != nil {
			return nil, err
		}
		loads[name] = load
	}

	return calibrate.NewObservation(rec, sw, loads, cfg.CTerms, cfg.WTerms)
}

// Evaluate implements router.Evaluator: it evaluates the live solution's
// curves and per-load reflections on the requested grid.
func (s *Solver) Evaluate(observation string, freqs []float64) (*router.Evaluation, error) {
	s.mu.RLock()
	obs := s.current
	s.mu.RUnlock()

	if obs == nil || observation != s.cfg.Observation {
		return nil, fmt.Errorf("%w for observation %q", router.ErrNotSolved, observation)
	}

	sol, err := obs.Solution()
	if err != nil {
		return nil, err
	}

	result := &router.Evaluation{
		Observation:    observation,
		FrequenciesMHz: freqs,
		C1:             sol.C1.EvalAll(freqs),
		C2:             sol.C2.EvalAll(freqs),
		Tunc:           sol.Tunc.EvalAll(freqs),
		Tcos:           sol.Tcos.EvalAll(freqs),
		Tsin:           sol.Tsin.EvalAll(freqs),
		Loads:          make(map[string]router.GammaCurve, len(obs.LoadNames())),
	}

	for _, name := range obs.LoadNames() {
		refl := obs.Load(name).Reflection()
		re := make([]float64, len(freqs))
		im := make([]float64, len(freqs))
		for i, f := range freqs {
			g := refl.Eval(f)
			re[i] = real(g)
			im[i] = imag(g)
		}
		result.Loads[name] = router.GammaCurve{Re: re, Im: im}
	}

	return result, nil
}

// storeSnapshot persists the solved calibration.
func (s *Solver) storeSnapshot(ctx context.Context, obs *calibrate.Observation, sol *calibrate.Solution) error {
	snapshot := storage.Snapshot{
		Observation: s.cfg.Observation,
		SolvedAt:    time.Now(),
		FLowMHz:     s.cfg.FLow,
		FHighMHz:    s.cfg.FHigh,
		CTerms:      obs.CTerms(),
		WTerms:      obs.WTerms(),
		LoadNames:   obs.LoadNames(),
		Iterations:  sol.Iterations,
		ResidualK:   sol.Residual,
		C1:          storage.NewCurve(sol.C1),
		C2:          storage.NewCurve(sol.C2),
		Tunc:        storage.NewCurve(sol.Tunc),
		Tcos:        storage.NewCurve(sol.Tcos),
		Tsin:        storage.NewCurve(sol.Tsin),
	}

	if err := s.store.Put(ctx, snapshot); err != nil {
		return err
	}

	s.logger.Debug("stored snapshot", "observation", s.cfg.Observation)
	return nil
}
