// Package ops implements the operations exposed by the CLI and the MCP
// server: spec evaluation, drift detection, comparison and coverage trends.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/doccov/internal/cache"
	"github.com/hpungsan/doccov/internal/config"
	"github.com/hpungsan/doccov/internal/diff"
	"github.com/hpungsan/doccov/internal/drift"
	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/quality"
	"github.com/hpungsan/doccov/internal/spec"
	"github.com/hpungsan/doccov/internal/trend"
)

// History limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Service wires the analysis components behind the operations. It is safe
// for concurrent use.
type Service struct {
	cfg      *config.Config
	engine   *quality.Engine
	detector *drift.Detector
	differ   *diff.Differ
	tracker  *trend.Tracker
	source   Source
	diffs    *cache.Memo[cache.DiffKey, *diff.SpecDiff]
	specs    *cache.Memo[cache.SpecKey, *spec.PackageSpec]
	logger   *log.Logger
}

// New builds a Service. Config rule severities become the engine defaults.
// store defaults to an in-memory store; source may be nil when only inline
// specs are used.
func New(cfg *config.Config, store trend.Store, source Source) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if store == nil {
		store = trend.NewMemoryStore()
	}
	defaults, err := quality.ParseSeverities(cfg.Rules)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("config rules: %v", err))
	}
	engine := quality.NewEngine(quality.DefaultRuleSet(), defaults)
	detector := drift.NewDetector(nil)

	diffs, err := cache.New[cache.DiffKey, *diff.SpecDiff]("diff", cfg.CacheSize)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	specs, err := cache.New[cache.SpecKey, *spec.PackageSpec]("spec", cfg.CacheSize)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "ops"})
	return &Service{
		cfg:      cfg,
		engine:   engine,
		detector: detector,
		differ:   diff.NewDiffer(engine, detector),
		tracker:  trend.NewTracker(store),
		source:   source,
		diffs:    diffs,
		specs:    specs,
		logger:   logger,
	}, nil
}

// SetLogger replaces the logger of the service and the components it owns.
func (s *Service) SetLogger(l *log.Logger) {
	s.logger = l
	s.diffs.SetLogger(l)
	s.specs.SetLogger(l)
	trend.WithLogger(l)(s.tracker)
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// CacheStats reports diff and spec cache activity.
func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"diff": s.diffs.Stats(),
		"spec": s.specs.Stats(),
	}
}

// SpecInput supplies a spec inline or by reference. Exactly one is required.
type SpecInput struct {
	Spec json.RawMessage `json:"spec,omitempty"`
	Ref  *SpecRef        `json:"ref,omitempty"`
}

// loadedSpec is a decoded, validated spec with its content hash.
type loadedSpec struct {
	spec *spec.PackageSpec
	hash string
}

func (in SpecInput) validate(label string) error {
	hasSpec := len(in.Spec) > 0
	hasRef := in.Ref != nil
	switch {
	case hasSpec && hasRef:
		return errors.NewInvalidRequest(label + ": specify either spec or ref, not both")
	case !hasSpec && !hasRef:
		return errors.NewInvalidRequest(label + ": spec or ref is required")
	}
	return nil
}

// load resolves in to a validated spec. Referenced specs are fetched from
// the source and decoded at most once per (owner, repo, content hash).
func (s *Service) load(ctx context.Context, label string, in SpecInput) (*loadedSpec, error) {
	if err := in.validate(label); err != nil {
		return nil, err
	}

	data := []byte(in.Spec)
	owner, repo := "", ""
	if in.Ref != nil {
		if s.source == nil {
			return nil, errors.NewInvalidRequest(label + ": no spec source configured for ref")
		}
		var err error
		data, err = s.source.Retrieve(ctx, *in.Ref)
		if err != nil {
			return nil, err
		}
		owner, repo = in.Ref.Owner, in.Ref.Repo
	}

	hash := spec.ContentHash(data)
	ps, err := s.specs.Get(ctx, cache.SpecKey{Owner: owner, Repo: repo, ContentHash: hash}, func(context.Context) (*spec.PackageSpec, error) {
		return spec.Decode(data)
	})
	if err != nil {
		return nil, err
	}
	return &loadedSpec{spec: ps, hash: hash}, nil
}

// severities parses per-call rule overrides.
func severities(rules map[string]string) (map[string]quality.Severity, error) {
	sev, err := quality.ParseSeverities(rules)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("rules: %v", err))
	}
	return sev, nil
}
