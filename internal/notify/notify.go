// Package notify sends a PipelineResult summary to Slack or Discord
// after a run completes, per the config's pipeline-wide NotifyPolicy
// (Config.NotifyOn).
package notify

import (
	"fmt"

	"github.com/nexus-run/nexus/internal/core"
)

// Sender delivers a pipeline result summary to one destination.
type Sender interface {
	Notify(result core.PipelineResult) error
}

// ShouldNotify applies spec's notify_on policy: always fires every time,
// failure only fires on a non-ok status, never never fires.
func ShouldNotify(policy core.NotifyPolicy, result core.PipelineResult) bool {
	switch policy {
	case core.NotifyAlways:
		return true
	case core.NotifyFailure:
		return result.Status != core.StatusOK
	case core.NotifyNever:
		return false
	default:
		return result.Status != core.StatusOK
	}
}

func summaryLine(result core.PipelineResult) string {
	status := "succeeded"
	if result.Status != core.StatusOK {
		status = "failed"
	}
	line := fmt.Sprintf("pipeline %s: %d/%d tasks succeeded (%dms)", status, result.TasksSucceeded, result.TasksRun, result.DurationMS)
	if result.AbortedAt != "" {
		line += fmt.Sprintf(", aborted at %q", result.AbortedAt)
	}
	return line
}

// Multi fans a result out to every configured Sender, collecting (not
// short-circuiting on) individual failures.
type Multi []Sender

func (m Multi) Notify(result core.PipelineResult) error {
	var firstErr error
	for _, s := range m {
		if err := s.Notify(result); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
