package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dm/esfixer/internal/format"
	"github.com/dm/esfixer/internal/model"
)

const descriptionWidth = 60

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styleDim).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return styleCell
		})
}

func renderIssues(w io.Writer, issues []model.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, styleOK.Render("No issues found. Cluster is healthy."))
		return
	}

	t := newTable("SEVERITY", "CATEGORY", "INDEX", "DETAIL", "DESCRIPTION")
	for _, issue := range issues {
		t.Row(
			severityStyle(issue.Severity).Render(string(issue.Severity)),
			string(issue.Category),
			issue.AffectedResource,
			issueDetail(issue),
			format.Truncate(issue.Description, descriptionWidth),
		)
	}
	fmt.Fprintln(w, styleTitle.Render(fmt.Sprintf("%d issue(s) found", len(issues))))
	fmt.Fprintln(w, t.Render())
}

// issueDetail summarizes the metric that triggered the issue.
func issueDetail(issue model.Issue) string {
	switch issue.Category {
	case model.CategoryMapping:
		if n, ok := issue.Metrics["field_count"].(int); ok {
			return format.FormatNumber(int64(n)) + " fields"
		}
	case model.CategoryILM:
		if size, ok := issue.Metrics["size"].(string); ok {
			return size
		}
	}
	return styleDim.Render("-")
}

func renderCycle(w io.Writer, res model.CycleResult, bench *model.BenchmarkResult) {
	fmt.Fprintf(w, "%s %s\n", styleTitle.Render("cycle "+res.CycleID), statusStyle(string(res.Status)).Render(string(res.Status)))
	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}
	if res.TargetIssue != nil {
		issue := res.TargetIssue
		fmt.Fprintf(w, "\n%s %s on %s\n%s\n",
			severityStyle(issue.Severity).Render(string(issue.Severity)),
			issue.Category,
			issue.AffectedResource,
			issue.Description)
	}
	if res.Proposal != nil {
		renderProposal(w, *res.Proposal)
	}
	if bench != nil {
		renderBenchmark(w, *bench)
	}
}

func renderProposal(w io.Writer, p model.FixProposal) {
	fmt.Fprintf(w, "\n%s %s\n", styleTitle.Render("proposed fix"), styleDim.Render("("+p.Source+")"))
	if p.IsEmpty() {
		fmt.Fprintln(w, styleWarn.Render(p.Explanation))
		return
	}
	code, err := json.MarshalIndent(p.FixedCode, "", "  ")
	if err != nil {
		code = []byte(fmt.Sprint(p.FixedCode))
	}
	fmt.Fprintln(w, styleCode.Render(string(code)))
	fmt.Fprintf(w, "%s\nImpact: %s\n", p.Explanation, p.EstimatedImpact)
}

func renderBenchmark(w io.Writer, b model.BenchmarkResult) {
	safety := styleOK.Render("safe")
	if !b.IsSafe {
		safety = styleError.Render("unsafe")
	}
	fmt.Fprintf(w, "\nlatency %s -> %s (%s) %s\n",
		format.FormatLatency(b.LatencyBeforeMs),
		format.FormatLatency(b.LatencyAfterMs),
		format.FormatImprovement(b.ImprovementPercentage),
		safety)
}

func renderHistory(w io.Writer, records []model.HistoryRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, styleDim.Render("No history yet."))
		return
	}
	t := newTable("TIME (UTC)", "ACTION", "ISSUE", "DETAIL")
	for _, rec := range records {
		t.Row(
			format.FormatTimestamp(rec.Timestamp),
			statusStyle(string(rec.Action)).Render(string(rec.Action)),
			rec.IssueID,
			historyDetail(rec),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// historyDetail picks the most useful line out of a record's details.
func historyDetail(rec model.HistoryRecord) string {
	if result, ok := rec.Details["result"].(map[string]any); ok {
		if msg, ok := result["message"].(string); ok {
			return format.Truncate(msg, descriptionWidth)
		}
	}
	if proposal, ok := rec.Details["proposal"].(map[string]any); ok {
		if expl, ok := proposal["explanation"].(string); ok {
			return format.Truncate(strings.TrimSpace(expl), descriptionWidth)
		}
	}
	return ""
}
