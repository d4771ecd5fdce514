package mcp

import "github.com/mark3labs/mcp-go/mcp"

var specRefProperties = map[string]any{
	"owner": map[string]any{"type": "string"},
	"repo":  map[string]any{"type": "string"},
	"path":  map[string]any{"type": "string", "description": "Path of the spec JSON under the spec root"},
}

var evaluateToolDef = mcp.NewTool("spec_evaluate",
	mcp.WithDescription("Score the documentation quality of every export in a package spec. Supply the spec inline or by ref."),
	mcp.WithObject("spec", mcp.Description("Inline PackageSpec JSON")),
	mcp.WithObject("ref", mcp.Description("Reference to a stored spec"), mcp.Properties(specRefProperties)),
	mcp.WithObject("raw_docs", mcp.Description("Raw documentation comment per export id, for style rules")),
	mcp.WithObject("rules", mcp.Description("Rule severity overrides: rule id → error|warn|off")),
)

var driftToolDef = mcp.NewTool("spec_drift",
	mcp.WithDescription("Report documentation that disagrees with the declared signatures."),
	mcp.WithObject("spec", mcp.Description("Inline PackageSpec JSON")),
	mcp.WithObject("ref", mcp.Description("Reference to a stored spec"), mcp.Properties(specRefProperties)),
	mcp.WithString("type", mcp.Description("Only report this drift kind, e.g. param-mismatch")),
)

var diffToolDef = mcp.NewTool("spec_diff",
	mcp.WithDescription("Compare two versions of a package spec: breaking changes, coverage delta, drift delta and stale code samples in markdown."),
	mcp.WithObject("base", mcp.Required(), mcp.Description("Base spec: {spec} or {ref}")),
	mcp.WithObject("head", mcp.Required(), mcp.Description("Head spec: {spec} or {ref}")),
	mcp.WithArray("markdown_files",
		mcp.Description("Markdown documents to scan for stale references"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"path", "content"},
		}),
	),
	mcp.WithObject("rules", mcp.Description("Rule severity overrides for the coverage delta")),
	mcp.WithBoolean("patches", mcp.Description("Include a unified signature diff per breaking export")),
)

var recordToolDef = mcp.NewTool("trend_record",
	mcp.WithDescription("Evaluate a spec and append a coverage snapshot to its package history."),
	mcp.WithObject("spec", mcp.Description("Inline PackageSpec JSON")),
	mcp.WithObject("ref", mcp.Description("Reference to a stored spec"), mcp.Properties(specRefProperties)),
	mcp.WithString("version", mcp.Description("Version label (defaults to the spec version)")),
	mcp.WithString("commit", mcp.Description("Commit SHA")),
	mcp.WithString("source", mcp.Description("ci, manual or scheduled (default manual)")),
)

var historyToolDef = mcp.NewTool("trend_history",
	mcp.WithDescription("Return the coverage trend of a package: current snapshot, history newest first, delta and sparkline."),
	mcp.WithString("package", mcp.Required(), mcp.Description("Package name")),
	mcp.WithNumber("limit", mcp.Description("Maximum snapshots (default 20, max 100)")),
)

var pruneToolDef = mcp.NewTool("trend_prune",
	mcp.WithDescription("Delete old snapshots of a package, keeping the newest N or those inside a retention tier."),
	mcp.WithString("package", mcp.Required(), mcp.Description("Package name")),
	mcp.WithNumber("keep", mcp.Description("Keep this many newest snapshots")),
	mcp.WithString("tier", mcp.Description("Retention tier: free (7d), team (30d) or pro (90d)")),
)

var analyzeToolDef = mcp.NewTool("trend_analyze",
	mcp.WithDescription("Analyze a package's coverage history: velocity, 30-day projection, regressions, milestones and weekly summaries."),
	mcp.WithString("package", mcp.Required(), mcp.Description("Package name")),
	mcp.WithNumber("limit", mcp.Description("Analyze only the newest N snapshots")),
)
