package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nexus-run/nexus/internal/core"
)

func renderPipelineResult(result core.PipelineResult) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Task", "Status", "Hosts OK", "Hosts Failed"})
	for _, tr := range result.TaskResults {
		ok, failed := 0, 0
		for _, hr := range tr.HostResults {
			if hr.Status == core.StatusOK {
				ok++
			} else if hr.Status == core.StatusError {
				failed++
			}
		}
		t.AppendRow(table.Row{tr.Task, tr.Status, ok, failed})
	}

	summary := fmt.Sprintf("\nstatus=%s tasks_run=%d succeeded=%d failed=%d duration_ms=%d",
		result.Status, result.TasksRun, result.TasksSucceeded, result.TasksFailed, result.DurationMS)
	if result.AbortedAt != "" {
		summary += fmt.Sprintf(" aborted_at=%s", result.AbortedAt)
	}
	return t.Render() + summary
}
