package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/doccov/internal/errors"
	"github.com/hpungsan/doccov/internal/impact"
	"github.com/hpungsan/doccov/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc *ops.Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *ops.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Request types for each tool

// SpecRequest supplies a spec inline or by reference.
type SpecRequest struct {
	Spec json.RawMessage `json:"spec,omitempty"`
	Ref  *ops.SpecRef    `json:"ref,omitempty"`
}

func (r SpecRequest) input() ops.SpecInput {
	return ops.SpecInput{Spec: r.Spec, Ref: r.Ref}
}

// EvaluateRequest represents the arguments for spec_evaluate.
type EvaluateRequest struct {
	SpecRequest
	RawDocs map[string]string `json:"raw_docs,omitempty"`
	Rules   map[string]string `json:"rules,omitempty"`
}

// DriftRequest represents the arguments for spec_drift.
type DriftRequest struct {
	SpecRequest
	Type string `json:"type,omitempty"`
}

// DiffRequest represents the arguments for spec_diff.
type DiffRequest struct {
	Base          SpecRequest       `json:"base"`
	Head          SpecRequest       `json:"head"`
	MarkdownFiles []impact.File     `json:"markdown_files,omitempty"`
	Rules         map[string]string `json:"rules,omitempty"`
	Patches       bool              `json:"patches,omitempty"`
}

// RecordRequest represents the arguments for trend_record.
type RecordRequest struct {
	SpecRequest
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Source  string `json:"source,omitempty"`
}

// HistoryRequest represents the arguments for trend_history.
type HistoryRequest struct {
	Package string `json:"package"`
	Limit   int    `json:"limit,omitempty"`
}

// PruneRequest represents the arguments for trend_prune.
type PruneRequest struct {
	Package string `json:"package"`
	Keep    int    `json:"keep,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// AnalyzeRequest represents the arguments for trend_analyze.
type AnalyzeRequest struct {
	Package string `json:"package"`
	Limit   int    `json:"limit,omitempty"`
}

// Handler implementations

// HandleEvaluate handles the spec_evaluate tool call.
func (h *Handlers) HandleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EvaluateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.Evaluate(ctx, ops.EvaluateInput{
		SpecInput: input.input(),
		RawDocs:   input.RawDocs,
		Rules:     input.Rules,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDrift handles the spec_drift tool call.
func (h *Handlers) HandleDrift(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DriftRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.Drift(ctx, ops.DriftInput{SpecInput: input.input(), Type: input.Type})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDiff handles the spec_diff tool call.
func (h *Handlers) HandleDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DiffRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.Compare(ctx, ops.CompareInput{
		Base:          input.Base.input(),
		Head:          input.Head.input(),
		MarkdownFiles: input.MarkdownFiles,
		Rules:         input.Rules,
		Patches:       input.Patches,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRecord handles the trend_record tool call.
func (h *Handlers) HandleRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecordRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.Record(ctx, ops.RecordInput{
		SpecInput: input.input(),
		Version:   input.Version,
		Commit:    input.Commit,
		Source:    input.Source,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the trend_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.History(ctx, ops.HistoryInput{Package: input.Package, Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePrune handles the trend_prune tool call.
func (h *Handlers) HandlePrune(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PruneRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.Prune(ctx, ops.PruneInput{Package: input.Package, Keep: input.Keep, Tier: input.Tier})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAnalyze handles the trend_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.svc.Analyze(ctx, ops.AnalyzeInput{Package: input.Package, Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Helper functions

// errorResult creates an MCP error result from an error. Wrapping context
// around a DocCovError is kept in the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var dErr *errors.DocCovError
	if stderrors.As(err, &dErr) {
		message := dErr.Message
		if prefix, ok := strings.CutSuffix(err.Error(), dErr.Error()); ok && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":      dErr.Code,
			"message":   message,
			"status":    dErr.Status,
			"retryable": dErr.Retryable(),
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
