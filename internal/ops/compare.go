package ops

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/doccov/internal/cache"
	"github.com/hpungsan/doccov/internal/diff"
	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/impact"
	"github.com/hpungsan/doccov/internal/quality"
)

// CompareInput contains parameters for the Compare operation.
type CompareInput struct {
	Base SpecInput `json:"base"`
	Head SpecInput `json:"head"`
	// MarkdownFiles are scanned for code samples that reference breaking
	// or removed exports.
	MarkdownFiles []impact.File `json:"markdown_files,omitempty"`
	// Rules overrides rule severities for the coverage delta. Overridden
	// comparisons bypass the diff cache.
	Rules map[string]string `json:"rules,omitempty"`
	// Patches adds a unified signature diff for every breaking export.
	Patches bool `json:"patches,omitempty"`
}

// CompareOutput contains the result of the Compare operation.
type CompareOutput struct {
	BaseHash string            `json:"base_hash"`
	HeadHash string            `json:"head_hash"`
	Cached   bool              `json:"cached"`
	Diff     *diff.SpecDiff    `json:"diff"`
	Patches  map[string]string `json:"patches,omitempty"`
}

// Compare diffs two spec versions. Retrieval and diffing together are
// bounded by the configured retrieval timeout; exceeding it yields
// RETRIEVAL_TIMEOUT even when the source ignores cancellation.
func (s *Service) Compare(ctx context.Context, input CompareInput) (*CompareOutput, error) {
	sev, err := severities(input.Rules)
	if err != nil {
		return nil, err
	}
	if err := input.Base.validate("base"); err != nil {
		return nil, err
	}
	if err := input.Head.validate("head"); err != nil {
		return nil, err
	}

	timeout := s.cfg.RetrievalTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out *CompareOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.compare(ctx, input, sev)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && stderrors.Is(r.err, context.DeadlineExceeded) {
			return nil, errors.NewRetrievalTimeout(int(timeout.Seconds()))
		}
		return r.out, r.err
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("compare timed out", "timeout", timeout)
			return nil, errors.NewRetrievalTimeout(int(timeout.Seconds()))
		}
		return nil, ctx.Err()
	}
}

func (s *Service) compare(ctx context.Context, input CompareInput, sev map[string]quality.Severity) (*CompareOutput, error) {
	var base, head *loadedSpec
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		base, err = s.load(gctx, "base", input.Base)
		return err
	})
	g.Go(func() error {
		var err error
		head, err = s.load(gctx, "head", input.Head)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &CompareOutput{BaseHash: base.hash, HeadHash: head.hash}
	compute := func(ctx context.Context) (*diff.SpecDiff, error) {
		return s.differ.Diff(ctx, base.spec, head.spec, diff.Options{Severities: sev})
	}

	var d *diff.SpecDiff
	var err error
	if len(sev) > 0 {
		d, err = compute(ctx)
	} else {
		key := cache.DiffKey{BaseHash: base.hash, HeadHash: head.hash}
		_, out.Cached = s.diffs.Peek(key)
		d, err = s.diffs.Get(ctx, key, compute)
	}
	if err != nil {
		return nil, err
	}

	if len(input.MarkdownFiles) > 0 {
		d = d.WithDocsImpact(input.MarkdownFiles)
	}
	out.Diff = d

	if input.Patches {
		patches, err := s.patches(base, head, d)
		if err != nil {
			return nil, err
		}
		out.Patches = patches
	}

	s.logger.Debug("compared specs",
		"base", base.hash, "head", head.hash,
		"breaking", len(d.Breaking), "cached", out.Cached)
	return out, nil
}

// patches renders signature diffs for the breaking exports present in
// both versions, keyed by head export name.
func (s *Service) patches(base, head *loadedSpec, d *diff.SpecDiff) (map[string]string, error) {
	out := make(map[string]string)
	for _, bc := range d.CategorizedBreaking {
		b, ok := base.spec.FindExport(bc.ExportID)
		if !ok {
			continue
		}
		h, ok := head.spec.FindExport(bc.ExportID)
		if !ok {
			continue
		}
		p, err := diff.SignaturePatch(b, h)
		if err != nil {
			return nil, errors.NewInternal(fmt.Errorf("patch %s: %w", bc.ExportName, err))
		}
		if p != "" {
			out[bc.ExportName] = p
		}
	}
	return out, nil
}
