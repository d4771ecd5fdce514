// Package impact finds prose documentation that references exports a
// change breaks or removes.
//
// Matching is textual: any code sample mentioning a changed name is
// flagged for review. False positives are expected.
package impact

import (
	"bytes"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ChangeType is the kind of change that made a reference stale.
type ChangeType string

const (
	ChangeRemoved          ChangeType = "removed"
	ChangeSignatureChanged ChangeType = "signature-changed"
	ChangeMemberRemoved    ChangeType = "member-removed"
)

// File is one markdown document.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Change is a breaking or removed export to look for.
type Change struct {
	ExportName string
	ChangeType ChangeType
	// RemovedMembers are member names whose ".name" accesses are stale.
	RemovedMembers []string
}

// Reference is one code line that mentions a changed export.
type Reference struct {
	File       string     `json:"file"`
	Line       int        `json:"line"`
	ExportName string     `json:"exportName"`
	Member     string     `json:"member,omitempty"`
	ChangeType ChangeType `json:"changeType"`
	Snippet    string     `json:"snippet"`
}

// Report collects every stale reference across the scanned files.
type Report struct {
	References      []Reference `json:"references"`
	AffectedFiles   []string    `json:"affectedFiles"`
	TotalReferences int         `json:"totalReferences"`
}

// codeLine is one line of code content with its 1-based line number.
type codeLine struct {
	line int
	text string
}

type matcher struct {
	exportName string
	member     string
	changeType ChangeType
	re         *regexp.Regexp
}

// Analyze scans fenced, indented and inline code in files for changes.
// The report is sorted by file, line and export name.
func Analyze(files []File, changes []Change) *Report {
	report := &Report{References: []Reference{}, AffectedFiles: []string{}}
	matchers := buildMatchers(changes)
	if len(matchers) == 0 {
		return report
	}

	md := goldmark.New()
	for _, f := range files {
		src := []byte(f.Content)
		found := false
		for _, cl := range codeLines(md, src) {
			for _, m := range matchers {
				if !m.re.MatchString(cl.text) {
					continue
				}
				report.References = append(report.References, Reference{
					File:       f.Path,
					Line:       cl.line,
					ExportName: m.exportName,
					Member:     m.member,
					ChangeType: m.changeType,
					Snippet:    strings.TrimSpace(cl.text),
				})
				found = true
			}
		}
		if found {
			report.AffectedFiles = append(report.AffectedFiles, f.Path)
		}
	}

	slices.SortStableFunc(report.References, func(a, b Reference) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return strings.Compare(a.ExportName, b.ExportName)
	})
	report.References = slices.CompactFunc(report.References, func(a, b Reference) bool { return a == b })
	slices.Sort(report.AffectedFiles)
	report.AffectedFiles = slices.Compact(report.AffectedFiles)
	report.TotalReferences = len(report.References)
	return report
}

func buildMatchers(changes []Change) []matcher {
	var out []matcher
	for _, c := range changes {
		if c.ExportName == "" {
			continue
		}
		out = append(out, matcher{
			exportName: c.ExportName,
			changeType: c.ChangeType,
			re:         regexp.MustCompile(`(?:^|[^\w$])` + regexp.QuoteMeta(c.ExportName) + `(?:$|[^\w$])`),
		})
		for _, member := range c.RemovedMembers {
			out = append(out, matcher{
				exportName: c.ExportName,
				member:     member,
				changeType: ChangeMemberRemoved,
				re:         regexp.MustCompile(`\.` + regexp.QuoteMeta(member) + `(?:$|[^\w$])`),
			})
		}
	}
	return out
}

// codeLines returns the lines of every code block and inline code span in
// src, in document order.
func codeLines(md goldmark.Markdown, src []byte) []codeLine {
	doc := md.Parser().Parse(text.NewReader(src))
	var out []codeLine
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				out = append(out, codeLine{
					line: lineAt(src, seg.Start),
					text: strings.TrimRight(string(seg.Value(src)), "\r\n"),
				})
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					out = append(out, codeLine{
						line: lineAt(src, t.Segment.Start),
						text: string(t.Segment.Value(src)),
					})
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func lineAt(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}
