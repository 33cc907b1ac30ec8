package core

import "fmt"

// ValidationError reports a problem found before any execution begins.
type ValidationError struct {
	Kind         string // "unknown_tasks", "unknown_deps", "unknown_hosts", "cycle", "invalid_option"
	UnknownTasks []string
	UnknownDeps  []DepRef
	MissingHosts []HostRef
	Witness      []string
	Detail       string
}

// DepRef names a task that references a dependency absent from the Config.
type DepRef struct {
	Task, MissingDep string
}

// HostRef names a task whose `on:` target does not resolve.
type HostRef struct {
	Task, Target string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case "unknown_tasks":
		return fmt.Sprintf("unknown tasks: %v", e.UnknownTasks)
	case "unknown_deps":
		return fmt.Sprintf("unknown dependencies: %v", e.UnknownDeps)
	case "unknown_hosts":
		return fmt.Sprintf("unresolved targets: %v", e.MissingHosts)
	case "cycle":
		return fmt.Sprintf("dependency cycle: %v", e.Witness)
	default:
		return fmt.Sprintf("invalid config: %s", e.Detail)
	}
}

// ValidateStatic checks invariants 1, 2, and 4 from spec §3. Cycle
// detection (invariant 3) is the DAG builder's job and is layered on top
// by the scheduler, which owns graph construction.
func ValidateStatic(cfg Config) error {
	var unknownDeps []DepRef
	for name, t := range cfg.Tasks {
		for _, dep := range t.Deps {
			if _, ok := cfg.Tasks[dep]; !ok {
				unknownDeps = append(unknownDeps, DepRef{Task: name, MissingDep: dep})
			}
		}
	}
	if len(unknownDeps) > 0 {
		return &ValidationError{Kind: "unknown_deps", UnknownDeps: unknownDeps}
	}

	var badHosts []HostRef
	for name, t := range cfg.Tasks {
		if t.On == "" || t.On == LocalHost.Name {
			continue
		}
		if _, ok := cfg.Hosts[t.On]; ok {
			continue
		}
		grp, ok := cfg.Groups[t.On]
		if !ok {
			badHosts = append(badHosts, HostRef{Task: name, Target: t.On})
			continue
		}
		for _, hn := range grp.Hosts {
			if _, ok := cfg.Hosts[hn]; !ok {
				badHosts = append(badHosts, HostRef{Task: name, Target: hn})
			}
		}
	}
	if len(badHosts) > 0 {
		return &ValidationError{Kind: "unknown_hosts", MissingHosts: badHosts}
	}

	for name, t := range cfg.Tasks {
		for i, c := range t.Commands {
			if c.TimeoutMS < 0 {
				return &ValidationError{Kind: "invalid_option", Detail: fmt.Sprintf("task %s command %d: timeout_ms must be > 0", name, i)}
			}
			if c.Retries < 0 {
				return &ValidationError{Kind: "invalid_option", Detail: fmt.Sprintf("task %s command %d: retries must be >= 0", name, i)}
			}
			if c.RetryDelayMS < 0 {
				return &ValidationError{Kind: "invalid_option", Detail: fmt.Sprintf("task %s command %d: retry_delay_ms must be > 0", name, i)}
			}
		}
		if t.Strategy == StrategyRolling && t.BatchSize < 1 {
			return &ValidationError{Kind: "invalid_option", Detail: fmt.Sprintf("task %s: batch_size must be >= 1", name)}
		}
	}
	return nil
}

// ResolveHosts expands task.On into a concrete, ordered host list.
func ResolveHosts(cfg Config, task Task) ([]Host, error) {
	switch {
	case task.On == "" || task.On == LocalHost.Name:
		return []Host{LocalHost}, nil
	}
	if h, ok := cfg.Hosts[task.On]; ok {
		return []Host{h}, nil
	}
	if grp, ok := cfg.Groups[task.On]; ok {
		hosts := make([]Host, 0, len(grp.Hosts))
		for _, hn := range grp.Hosts {
			h, ok := cfg.Hosts[hn]
			if !ok {
				return nil, fmt.Errorf("no_hosts: group %q references unknown host %q", task.On, hn)
			}
			hosts = append(hosts, h)
		}
		return hosts, nil
	}
	return nil, fmt.Errorf("no_hosts: %q", task.On)
}
