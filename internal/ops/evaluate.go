package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/doccov/internal/drift"
	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/quality"
	"github.com/hpungsan/doccov/internal/spec"
)

// EvaluateInput contains parameters for the Evaluate operation.
type EvaluateInput struct {
	SpecInput
	// RawDocs maps export ID to its raw documentation comment, used by
	// style rules.
	RawDocs map[string]string `json:"raw_docs,omitempty"`
	// Rules overrides rule severities for this call.
	Rules map[string]string `json:"rules,omitempty"`
}

// EvaluateOutput contains the result of the Evaluate operation.
type EvaluateOutput struct {
	Package     string `json:"package"`
	Version     string `json:"version,omitempty"`
	ContentHash string `json:"content_hash"`
	*quality.Aggregate
	Warnings []spec.Warning `json:"warnings"`
}

// Evaluate scores the documentation quality of every export.
func (s *Service) Evaluate(ctx context.Context, input EvaluateInput) (*EvaluateOutput, error) {
	sev, err := severities(input.Rules)
	if err != nil {
		return nil, err
	}
	loaded, err := s.load(ctx, "spec", input.SpecInput)
	if err != nil {
		return nil, err
	}

	agg := s.engine.EvaluateSpec(loaded.spec, input.RawDocs, sev)
	return &EvaluateOutput{
		Package:     loaded.spec.Meta.Name,
		Version:     loaded.spec.Meta.Version,
		ContentHash: loaded.hash,
		Aggregate:   agg,
		Warnings:    spec.Warnings(loaded.spec),
	}, nil
}

// DriftInput contains parameters for the Drift operation.
type DriftInput struct {
	SpecInput
	// Type restricts the output to one drift kind.
	Type string `json:"type,omitempty"`
}

// DriftOutput contains the result of the Drift operation.
type DriftOutput struct {
	Package string             `json:"package"`
	Issues  []drift.Issue      `json:"issues"`
	Total   int                `json:"total"`
	ByType  map[drift.Type]int `json:"by_type"`
}

// Drift reports documentation that disagrees with the declared signatures.
func (s *Service) Drift(ctx context.Context, input DriftInput) (*DriftOutput, error) {
	if input.Type != "" && !validDriftType(input.Type) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown drift type %q", input.Type))
	}
	loaded, err := s.load(ctx, "spec", input.SpecInput)
	if err != nil {
		return nil, err
	}

	issues := s.detector.DetectSpec(ctx, loaded.spec)
	if input.Type != "" {
		filtered := []drift.Issue{}
		for _, is := range issues {
			if string(is.Type) == input.Type {
				filtered = append(filtered, is)
			}
		}
		issues = filtered
	}
	if issues == nil {
		issues = []drift.Issue{}
	}
	return &DriftOutput{
		Package: loaded.spec.Meta.Name,
		Issues:  issues,
		Total:   len(issues),
		ByType:  drift.CountByType(issues),
	}, nil
}

func validDriftType(t string) bool {
	for _, known := range drift.Types {
		if string(known) == t {
			return true
		}
	}
	return false
}
