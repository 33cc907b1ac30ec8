// Package core defines the data model the rest of Nexus operates on:
// hosts, groups, commands, tasks, and the config that ties them together.
// Values here are immutable once a Config is built; nothing in this
// package mutates a Host, Command, or Task after construction.
package core

import (
	"time"

	"github.com/nexus-run/nexus/internal/predicate"
)

// Predicate is the `when` clause attached to a Command or Task.
type Predicate = predicate.Predicate

// BecomeMethod selects how a command escalates privilege on its target host.
type BecomeMethod string

const (
	BecomeSudo BecomeMethod = "sudo"
	BecomeSu   BecomeMethod = "su"
	BecomeDoas BecomeMethod = "doas"
)

// Host is one remote (or the implicit local) target. Immutable once built.
type Host struct {
	Name     string
	Hostname string
	User     string
	Port     int // default 22

	KeyPath      string // explicit private key path, if any
	PasswordRef  string // opaque reference resolved by the secrets collaborator
	ProxyJump    string // name of another Host in the same Config to tunnel through; loaded from config, but the SSH pool dials every host directly and does not read it

	Become       bool
	BecomeUser   string
	BecomeMethod BecomeMethod

	StrictHostKey bool // false = "accept-unknown", true = known_hosts only

	// OutputEncoding is the charset (IANA/HTML name, e.g. "shift_jis",
	// "euc-jp") this host's shell emits on stdout/stderr. Empty means
	// UTF-8. Output captured from this host is transcoded to UTF-8
	// before it reaches telemetry, guards, or the CLI.
	OutputEncoding string
}

// LocalHost is the sentinel Host used for `on: :local` targets.
var LocalHost = Host{Name: "local"}

// IsLocal reports whether h is the local execution target.
func (h Host) IsLocal() bool { return h.Name == LocalHost.Name && h.Hostname == "" }

// HostGroup names an ordered set of hosts.
type HostGroup struct {
	Name  string
	Hosts []string // host names, declaration order
}

// Strategy selects how a task's commands fan out across its resolved hosts.
type Strategy string

const (
	StrategyParallel Strategy = "parallel"
	StrategySerial   Strategy = "serial"
	StrategyRolling  Strategy = "rolling"
)

// Command is a single shell invocation plus its guards and retry policy.
// A Command is a pure value: constructing one has no side effects.
type Command struct {
	Shell string

	Sudo         bool
	RunAsUser    string
	TimeoutMS    int
	Retries      int
	RetryDelayMS int

	When    Predicate // nil means "always true"
	Unless  string    // probe: skip if it exits 0
	OnlyIf  string    // probe: skip unless it exits 0
	Creates string    // path probe: skip if it already exists
	Removes string    // path probe: skip if it's already gone
}

// Task is an ordered command sequence executed against resolved hosts.
type Task struct {
	Name      string
	Deps      []string
	On        string // "local", a host name, or a group name
	Commands  []Command
	Strategy  Strategy
	BatchSize int // rolling only, >=1
	TimeoutMS int
	Tags      []string
	When      Predicate
}

// Defaults holds the configuration defaults from spec §7, applied by the
// config loader wherever a value is left unset.
type Defaults struct {
	CommandTimeoutMS int
	Retries          int
	RetryDelayMS     int
	TaskTimeoutMS    int
	Strategy         Strategy
	BatchSize        int
	ConnectTimeoutMS int
	MaxConnections   int
	ContinueOnError  bool
	ParallelLimit    int
}

// DefaultDefaults returns the spec's §7 default table.
func DefaultDefaults() Defaults {
	return Defaults{
		CommandTimeoutMS: 60_000,
		Retries:          0,
		RetryDelayMS:     1_000,
		TaskTimeoutMS:    300_000,
		Strategy:         StrategyParallel,
		BatchSize:        1,
		ConnectTimeoutMS: 10_000,
		MaxConnections:   5,
		ContinueOnError:  false,
		ParallelLimit:    10,
	}
}

// NotifyPolicy controls when the notification callback fires after a run.
type NotifyPolicy string

const (
	NotifyAlways  NotifyPolicy = "always"
	NotifyFailure NotifyPolicy = "failure"
	NotifyNever   NotifyPolicy = "never"
)

// Config is the full, read-only input to a pipeline run.
type Config struct {
	Hosts  map[string]Host
	Groups map[string]HostGroup
	Tasks  map[string]Task

	Defaults Defaults
	NotifyOn NotifyPolicy

	// Vars holds the raw `vars:` table the config loader substituted into
	// command shell strings before building this Config. Kept for
	// diagnostics; commands themselves carry only resolved strings.
	Vars map[string]string
}

// ResolveTimeout returns the effective command timeout as a duration.
func (c Command) ResolveTimeout(d Defaults) time.Duration {
	ms := c.TimeoutMS
	if ms <= 0 {
		ms = d.CommandTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}

// MaxAttempts returns retries+1, the total attempt budget for a command.
func (c Command) MaxAttempts() int { return c.Retries + 1 }
