// Package derscore scores diarization hypotheses against references and
// keeps a history of evaluations.
package derscore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/AcousticDER/internal/der"
	"github.com/himanishpuri/AcousticDER/internal/model"
	"github.com/himanishpuri/AcousticDER/internal/rttm"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

// ErrPersistenceDisabled is returned by history calls on a service built
// WithoutPersistence.
var ErrPersistenceDisabled = errors.New("evaluation storage is disabled")

// derService is the default implementation of the Service interface.
type derService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}

	var stor Storage
	var err error
	switch {
	case cfg.Storage != nil:
		stor = cfg.Storage
	case cfg.Persist:
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &derService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Evaluate loads both RTTM files and scores every recording they mention.
func (s *derService) Evaluate(ctx context.Context, refPath, hypPath string, opts ...EvalOption) (*Evaluation, error) {
	s.log.Infof("Evaluating %s against %s", hypPath, refPath)

	ref, err := s.load(refPath)
	if err != nil {
		return nil, fmt.Errorf("loading reference: %w", err)
	}
	hyp, err := s.load(hypPath)
	if err != nil {
		return nil, fmt.Errorf("loading hypothesis: %w", err)
	}
	return s.EvaluateAnnotations(ctx, ref, hyp, opts...)
}

func (s *derService) load(path string) (*Source, error) {
	f, err := rttm.Load(path, rttm.Options{Lenient: s.config.Lenient, Log: s.log})
	if err != nil {
		return nil, err
	}
	if f.Stats.Skipped > 0 {
		s.log.Warnf("%s: skipped %d malformed records", path, f.Stats.Skipped)
	}
	s.log.Debugf("%s: %d records across %d recordings", path, f.Stats.Records, len(f.URIs))
	return SourceFromFile(f), nil
}

// SourceFromFile lists the recordings of a parsed RTTM file in file order.
func SourceFromFile(f *rttm.File) *Source {
	src := &Source{Name: f.Path, Recordings: make([]*Annotation, 0, len(f.URIs))}
	for _, uri := range f.URIs {
		src.Recordings = append(src.Recordings, f.Recordings[uri])
	}
	return src
}

// EvaluateAnnotations scores hyp against ref recording by recording. A
// recording present on only one side is scored against an empty annotation.
// Recordings are processed concurrently, at most Config.Workers at a time.
func (s *derService) EvaluateAnnotations(ctx context.Context, ref, hyp *Source, opts ...EvalOption) (*Evaluation, error) {
	ec := &evalConfig{save: s.storage != nil}
	for _, opt := range opts {
		opt(ec)
	}
	scoring := s.config.Scoring
	if ec.scoring != nil {
		scoring = *ec.scoring
	}
	if err := scoring.Validate(); err != nil {
		return nil, err
	}
	if ref == nil {
		ref = &Source{}
	}
	if hyp == nil {
		hyp = &Source{}
	}

	pairs := pairRecordings(ref, hyp)
	reports, warnings, err := s.scoreAll(ctx, pairs, scoring)
	if err != nil {
		return nil, err
	}

	overall, err := der.Aggregate(OverallURI, reports)
	if err != nil && !errors.Is(err, der.ErrUndefinedMetric) {
		return nil, err
	}

	eval := &Evaluation{
		Name:        ec.name,
		Reference:   ref.Name,
		Hypothesis:  hyp.Name,
		Collar:      scoring.Collar,
		SkipOverlap: scoring.SkipOverlap,
		Count:       len(reports),
		Overall:     overall,
		Recordings:  reports,
		Warnings:    warnings,
		CreatedAt:   time.Now().UTC(),
	}

	if overall.Undefined {
		s.log.Warnf("Overall DER undefined: reference has no speech")
	} else {
		s.log.Infof("Scored %d recordings: DER %.2f%% (FA %.2f%%, MISS %.2f%%, CONF %.2f%%)",
			len(reports), 100*overall.DER, 100*overall.FalseAlarmRate(),
			100*overall.MissedRate(), 100*overall.ConfusionRate())
	}

	if ec.save {
		if s.storage == nil {
			return nil, ErrPersistenceDisabled
		}
		if _, err := s.storage.SaveEvaluation(eval); err != nil {
			return nil, fmt.Errorf("failed to store evaluation: %w", err)
		}
		s.log.Infof("Stored evaluation ID=%s", eval.ID)
	}
	return eval, nil
}

type recordingPair struct {
	uri      string
	ref, hyp *model.Annotation
}

// pairRecordings matches recordings by URI: reference order first, then
// recordings only the hypothesis has.
func pairRecordings(ref, hyp *Source) []recordingPair {
	hypByURI := make(map[string]*model.Annotation, len(hyp.Recordings))
	for _, a := range hyp.Recordings {
		if a != nil {
			hypByURI[a.URI] = a
		}
	}

	seen := make(map[string]bool, len(ref.Recordings))
	pairs := make([]recordingPair, 0, len(ref.Recordings))
	for _, a := range ref.Recordings {
		if a == nil || seen[a.URI] {
			continue
		}
		seen[a.URI] = true
		pairs = append(pairs, recordingPair{uri: a.URI, ref: a, hyp: hypByURI[a.URI]})
	}
	for _, a := range hyp.Recordings {
		if a == nil || seen[a.URI] {
			continue
		}
		seen[a.URI] = true
		pairs = append(pairs, recordingPair{uri: a.URI, hyp: a})
	}
	return pairs
}

// scoreAll runs der.Compute over pairs with a bounded pool of workers.
// Reports come back in pair order.
func (s *derService) scoreAll(ctx context.Context, pairs []recordingPair, opts der.Options) ([]*Report, []string, error) {
	reports := make([]*Report, len(pairs))
	errs := make([]error, len(pairs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(s.config.Workers, len(pairs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := pairs[i]
				rep, err := der.Compute(p.ref, p.hyp, opts)
				if rep != nil {
					rep.URI = p.uri
				}
				reports[i], errs[i] = rep, err
			}
		}()
	}

	var cancelled error
feed:
	for i := range pairs {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, nil, cancelled
	}

	var warnings []string
	for i, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, der.ErrUndefinedMetric):
			msg := fmt.Sprintf("%s: reference has no speech, DER undefined", pairs[i].uri)
			s.log.Warnf("%s", msg)
			warnings = append(warnings, msg)
		default:
			return nil, nil, fmt.Errorf("scoring %s: %w", pairs[i].uri, err)
		}
		if r := reports[i]; r != nil && !r.Undefined {
			s.log.Debugf("%s: DER %.4f over %.3fs", r.URI, r.DER, r.Total)
		}
	}
	return reports, warnings, nil
}

func (s *derService) GetEvaluation(id string) (*Evaluation, error) {
	if s.storage == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.storage.GetEvaluation(id)
}

// ListEvaluations returns stored evaluations newest first, without
// per-recording reports.
func (s *derService) ListEvaluations(limit int) ([]*Evaluation, error) {
	if s.storage == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.storage.ListEvaluations(limit)
}

func (s *derService) DeleteEvaluation(id string) error {
	if s.storage == nil {
		return ErrPersistenceDisabled
	}
	return s.storage.DeleteEvaluation(id)
}

func (s *derService) CountEvaluations() (int, error) {
	if s.storage == nil {
		return 0, ErrPersistenceDisabled
	}
	return s.storage.CountEvaluations()
}

// Close releases all resources held by the service.
func (s *derService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
