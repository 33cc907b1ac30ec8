package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/predicate"
)

// Prober is the minimal shape facts needs from a transport to gather a
// remote host's facts: run one command and get its output back. Satisfied
// structurally by runner.Transport's Exec method.
type Prober interface {
	Exec(ctx context.Context, host core.Host, command string, timeout time.Duration) (output string, exitCode int, err error)
}

// remoteProbeScript prints os, arch, cpu_count and hostname as a single
// JSON object. Unlike the local gopsutil path it does not report
// memory_mb, so remote hosts have no memory_mb fact.
const remoteProbeScript = `printf '{"os":"%s","arch":"%s","cpu_count":%s,"hostname":"%s"}' ` +
	`"$(uname -s | tr 'A-Z' 'a-z')" "$(uname -m)" "$(nproc 2>/dev/null || getconf _NPROCESSORS_ONLN)" "$(hostname)"`

// ProbeTimeout bounds the remote fact-gathering probe.
const ProbeTimeout = 10 * time.Second

// GopsutilProvider collects local facts via gopsutil/v4 and remote facts
// via a one-shot shell probe over the host's transport, per spec's
// facts-provider component.
type GopsutilProvider struct {
	Transport Prober
}

func NewGopsutilProvider(transport Prober) *GopsutilProvider {
	return &GopsutilProvider{Transport: transport}
}

func (p *GopsutilProvider) Facts(ctx context.Context, h core.Host) (predicate.Facts, error) {
	if h.IsLocal() {
		return localFacts(ctx)
	}
	return p.remoteFacts(ctx, h)
}

func localFacts(ctx context.Context) (predicate.Facts, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect host info: %w", err)
	}
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("collect cpu count: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect memory: %w", err)
	}

	return predicate.Facts{
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"cpu_count": float64(counts),
		"memory_mb": float64(vm.Total / (1024 * 1024)),
		"hostname":  info.Hostname,
	}, nil
}

func (p *GopsutilProvider) remoteFacts(ctx context.Context, h core.Host) (predicate.Facts, error) {
	if p.Transport == nil {
		return nil, fmt.Errorf("no transport configured for remote facts")
	}
	output, exitCode, err := p.Transport.Exec(ctx, h, remoteProbeScript, ProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("probe facts on %s: %w", h.Name, err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("probe facts on %s: exit %d", h.Name, exitCode)
	}

	var raw struct {
		OS       string `json:"os"`
		Arch     string `json:"arch"`
		CPUCount int    `json:"cpu_count"`
		Hostname string `json:"hostname"`
	}
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		return nil, fmt.Errorf("parse facts probe output from %s: %w", h.Name, err)
	}

	return predicate.Facts{
		"os":        raw.OS,
		"arch":      raw.Arch,
		"cpu_count": float64(raw.CPUCount),
		"hostname":  raw.Hostname,
	}, nil
}
