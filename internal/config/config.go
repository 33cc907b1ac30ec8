// Package config loads a YAML pipeline definition into a core.Config,
// applying the §7 defaults table wherever a value is left unset.
package config

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/goccy/go-yaml"

	"github.com/nexus-run/nexus/internal/core"
)

// hostDef mirrors core.Host's YAML shape; fields use snake_case tags to
// match the rest of the pack's config surface.
type hostDef struct {
	Hostname       string `yaml:"hostname"`
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	KeyPath        string `yaml:"key_path"`
	PasswordRef    string `yaml:"password_ref"`
	ProxyJump      string `yaml:"proxy_jump"`
	Become         bool   `yaml:"become"`
	BecomeUser     string `yaml:"become_user"`
	BecomeMethod   string `yaml:"become_method"`
	StrictHostKey  bool   `yaml:"strict_host_key"`
	OutputEncoding string `yaml:"output_encoding"`
}

type groupDef struct {
	Hosts []string `yaml:"hosts"`
}

type commandDef struct {
	Shell        string `yaml:"shell"`
	Sudo         bool   `yaml:"sudo"`
	RunAsUser    string `yaml:"run_as_user"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	Retries      int    `yaml:"retries"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
	When         string `yaml:"when"`
	Unless       string `yaml:"unless"`
	OnlyIf       string `yaml:"only_if"`
	Creates      string `yaml:"creates"`
	Removes      string `yaml:"removes"`
}

type taskDef struct {
	Deps      []string     `yaml:"deps"`
	On        string       `yaml:"on"`
	Commands  []commandDef `yaml:"commands"`
	Strategy  string       `yaml:"strategy"`
	BatchSize int          `yaml:"batch_size"`
	TimeoutMS int          `yaml:"timeout_ms"`
	Tags      []string     `yaml:"tags"`
	When      string       `yaml:"when"`
}

type defaultsDef struct {
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
	Retries          int    `yaml:"retries"`
	RetryDelayMS     int    `yaml:"retry_delay_ms"`
	TaskTimeoutMS    int    `yaml:"task_timeout_ms"`
	Strategy         string `yaml:"strategy"`
	BatchSize        int    `yaml:"batch_size"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	MaxConnections   int    `yaml:"max_connections"`
	ContinueOnError  bool   `yaml:"continue_on_error"`
	ParallelLimit    int    `yaml:"parallel_limit"`
}

// document is the top-level YAML shape a pipeline file parses into.
type document struct {
	Hosts    map[string]hostDef  `yaml:"hosts"`
	Groups   map[string]groupDef `yaml:"groups"`
	Tasks    map[string]taskDef  `yaml:"tasks"`
	Defaults defaultsDef         `yaml:"defaults"`
	NotifyOn string              `yaml:"notify_on"`
	Vars     map[string]string   `yaml:"vars"`
}

// WhenParser parses a task's or command's `when:` string into a
// core.Predicate. Injected so config stays independent of the predicate
// grammar's concrete syntax.
type WhenParser func(expr string) (core.Predicate, error)

// substituteVars replaces every `${name}` occurrence in s with vars[name],
// leaving unknown placeholders untouched. Applied to command shell strings
// and probes at load time, so the core only ever sees resolved strings.
func substituteVars(s string, vars map[string]string) string {
	if s == "" || len(vars) == 0 {
		return s
	}
	for name, val := range vars {
		s = strings.ReplaceAll(s, "${"+name+"}", val)
	}
	return s
}

// Load reads and parses the YAML pipeline file at path into a core.Config.
// If parseWhen is nil, any task or command carrying a `when:` string is
// rejected with an error rather than loaded with its predicate dropped.
func Load(path string, parseWhen WhenParser) (core.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw, parseWhen)
}

// Parse decodes raw YAML bytes into a core.Config, merging §7 defaults
// over whatever the document's own `defaults:` block left unset.
func Parse(raw []byte, parseWhen WhenParser) (core.Config, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return core.Config{}, fmt.Errorf("parse config: %w", err)
	}

	defaults := core.DefaultDefaults()
	docDefaults := core.Defaults{
		CommandTimeoutMS: doc.Defaults.CommandTimeoutMS,
		Retries:          doc.Defaults.Retries,
		RetryDelayMS:     doc.Defaults.RetryDelayMS,
		TaskTimeoutMS:    doc.Defaults.TaskTimeoutMS,
		Strategy:         core.Strategy(doc.Defaults.Strategy),
		BatchSize:        doc.Defaults.BatchSize,
		ConnectTimeoutMS: doc.Defaults.ConnectTimeoutMS,
		MaxConnections:   doc.Defaults.MaxConnections,
		ContinueOnError:  doc.Defaults.ContinueOnError,
		ParallelLimit:    doc.Defaults.ParallelLimit,
	}
	if err := mergo.Merge(&docDefaults, defaults); err != nil {
		return core.Config{}, fmt.Errorf("merge defaults: %w", err)
	}

	cfg := core.Config{
		Hosts:    make(map[string]core.Host, len(doc.Hosts)),
		Groups:   make(map[string]core.HostGroup, len(doc.Groups)),
		Tasks:    make(map[string]core.Task, len(doc.Tasks)),
		Defaults: docDefaults,
		NotifyOn: core.NotifyPolicy(doc.NotifyOn),
		Vars:     doc.Vars,
	}
	if cfg.NotifyOn == "" {
		cfg.NotifyOn = core.NotifyFailure
	}

	for name, h := range doc.Hosts {
		cfg.Hosts[name] = core.Host{
			Name:           name,
			Hostname:       h.Hostname,
			User:           h.User,
			Port:           h.Port,
			KeyPath:        h.KeyPath,
			PasswordRef:    h.PasswordRef,
			ProxyJump:      h.ProxyJump,
			Become:         h.Become,
			BecomeUser:     h.BecomeUser,
			BecomeMethod:   core.BecomeMethod(h.BecomeMethod),
			StrictHostKey:  h.StrictHostKey,
			OutputEncoding: h.OutputEncoding,
		}
	}
	for name, g := range doc.Groups {
		cfg.Groups[name] = core.HostGroup{Name: name, Hosts: g.Hosts}
	}

	for name, t := range doc.Tasks {
		task := core.Task{
			Name:      name,
			Deps:      t.Deps,
			On:        t.On,
			Strategy:  core.Strategy(t.Strategy),
			BatchSize: t.BatchSize,
			TimeoutMS: t.TimeoutMS,
			Tags:      t.Tags,
		}
		if t.When != "" {
			pred, err := resolveWhen(t.When, parseWhen)
			if err != nil {
				return core.Config{}, fmt.Errorf("task %s: when: %w", name, err)
			}
			task.When = pred
		}
		for i, c := range t.Commands {
			cmd := core.Command{
				Shell:        substituteVars(c.Shell, doc.Vars),
				Sudo:         c.Sudo,
				RunAsUser:    substituteVars(c.RunAsUser, doc.Vars),
				TimeoutMS:    c.TimeoutMS,
				Retries:      c.Retries,
				RetryDelayMS: c.RetryDelayMS,
				Unless:       substituteVars(c.Unless, doc.Vars),
				OnlyIf:       substituteVars(c.OnlyIf, doc.Vars),
				Creates:      substituteVars(c.Creates, doc.Vars),
				Removes:      substituteVars(c.Removes, doc.Vars),
			}
			if c.When != "" {
				pred, err := resolveWhen(c.When, parseWhen)
				if err != nil {
					return core.Config{}, fmt.Errorf("task %s command %d: when: %w", name, i, err)
				}
				cmd.When = pred
			}
			task.Commands = append(task.Commands, cmd)
		}
		cfg.Tasks[name] = task
	}

	if err := core.ValidateStatic(cfg); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

func resolveWhen(expr string, parseWhen WhenParser) (core.Predicate, error) {
	if parseWhen == nil {
		return nil, fmt.Errorf("no predicate parser configured, cannot parse %q", expr)
	}
	return parseWhen(expr)
}
