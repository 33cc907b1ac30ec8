package ssh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/telemetry"
)

// DefaultIdleTTL is how long an unused session sits idle before the
// sweeper probes it with a keepalive. A session that fails the keepalive
// is closed; one that answers stays in the idle list.
const DefaultIdleTTL = 5 * time.Minute

// ErrPoolClosed is returned by Checkout once CloseAll has run.
var ErrPoolClosed = errors.New("ssh: pool closed")

// PasswordResolver resolves a host's password reference (e.g. a
// `vault://...` URI) to a plaintext password at dial time. The core
// never sees unresolved secrets.
type PasswordResolver func(ctx context.Context, host core.Host) (string, error)

// Pool is a bounded, lazily-created pool of Connections to one host.
type Pool struct {
	host           core.Host
	maxConnections int
	connectTimeout time.Duration
	idleTTL        time.Duration
	hostKeyPolicy  HostKeyPolicy
	resolvePass    PasswordResolver
	logger         *slog.Logger
	sink           telemetry.Sink

	mu      sync.Mutex
	idle    []*pooledConn
	inUse   int
	tokens  chan struct{}
	closed  bool
	sweepCh chan struct{}

	// dialFunc defaults to Dial; overridable in tests so pool semantics
	// (capacity, blocking, release) can be exercised without a real
	// network connection.
	dialFunc func(ctx context.Context, host core.Host, password string, timeout time.Duration, policy HostKeyPolicy) (*Connection, error)
}

type pooledConn struct {
	conn     *Connection
	lastUsed time.Time
}

// NewPool creates a pool for one host. Connections are opened lazily on
// first Checkout, never eagerly. sink may be nil, in which case
// connect/checkout spans are not emitted.
func NewPool(host core.Host, maxConnections int, connectTimeout time.Duration, hostKeyPolicy HostKeyPolicy, resolvePass PasswordResolver, logger *slog.Logger, sink telemetry.Sink) *Pool {
	if maxConnections <= 0 {
		maxConnections = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = telemetry.Noop{}
	}
	p := &Pool{
		host:           host,
		maxConnections: maxConnections,
		connectTimeout: connectTimeout,
		idleTTL:        DefaultIdleTTL,
		hostKeyPolicy:  hostKeyPolicy,
		resolvePass:    resolvePass,
		logger:         logger,
		sink:           sink,
		tokens:         make(chan struct{}, maxConnections),
		sweepCh:        make(chan struct{}),
	}
	p.dialFunc = func(ctx context.Context, host core.Host, password string, timeout time.Duration, policy HostKeyPolicy) (*Connection, error) {
		return Dial(ctx, host, password, timeout, policy, nil)
	}
	go p.sweepLoop()
	return p
}

// WithSession acquires a session, passes it to fn, and returns it (or
// closes it, if fn reports a transport-tainted session) on every exit
// path, including a panic inside fn.
func (p *Pool) WithSession(ctx context.Context, fn func(*Connection) error) error {
	conn, err := p.checkout(ctx)
	if err != nil {
		return err
	}

	tainted := false
	defer func() {
		if r := recover(); r != nil {
			p.release(conn, true)
			panic(r)
		}
		p.release(conn, tainted)
	}()

	err = fn(conn)
	if err != nil {
		var execErr *ExecError
		if errors.As(err, &execErr) && execErr.Kind == FailureTransport {
			tainted = true
		}
	}
	return err
}

func (p *Pool) checkout(ctx context.Context) (*Connection, error) {
	meta := telemetry.Metadata{"host": p.host.Name}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		pc := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse++
		p.mu.Unlock()
		p.sink.Emit(telemetry.EventSSHPoolCheckout, telemetry.Measurements{"reused": true, "in_use": p.inUse}, meta)
		return pc.conn, nil
	}
	p.mu.Unlock()

	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("ssh: checkout canceled: %w", ctx.Err())
	}

	password := ""
	if p.resolvePass != nil {
		var err error
		password, err = p.resolvePass(ctx, p.host)
		if err != nil {
			<-p.tokens
			return nil, fmt.Errorf("resolving credentials: %w", err)
		}
	}

	start := time.Now()
	p.sink.Emit(telemetry.EventSSHConnectStart, telemetry.Measurements{"system_time": start}, meta)
	conn, err := p.dialFunc(ctx, p.host, password, p.connectTimeout, p.hostKeyPolicy)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		<-p.tokens
		p.sink.Emit(telemetry.EventSSHConnectStop, telemetry.Measurements{"duration_ms": elapsed}, mergeMeta(meta, telemetry.Metadata{"error": err.Error()}))
		return nil, err
	}
	p.sink.Emit(telemetry.EventSSHConnectStop, telemetry.Measurements{"duration_ms": elapsed}, meta)

	p.mu.Lock()
	p.inUse++
	inUse := p.inUse
	p.mu.Unlock()
	p.sink.Emit(telemetry.EventSSHPoolCheckout, telemetry.Measurements{"reused": false, "in_use": inUse}, meta)
	return conn, nil
}

func mergeMeta(base telemetry.Metadata, extra telemetry.Metadata) telemetry.Metadata {
	out := make(telemetry.Metadata, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (p *Pool) release(conn *Connection, taint bool) {
	p.mu.Lock()
	p.inUse--
	if p.closed || taint {
		closed := p.closed
		p.mu.Unlock()
		_ = conn.Close()
		if !closed {
			<-p.tokens
		}
		return
	}
	p.idle = append(p.idle, &pooledConn{conn: conn, lastUsed: time.Now()})
	p.mu.Unlock()
}

func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweepIdle()
		case <-p.sweepCh:
			return
		}
	}
}

func (p *Pool) sweepIdle() {
	now := time.Now()
	p.mu.Lock()
	var keep []*pooledConn
	var stale []*pooledConn
	for _, pc := range p.idle {
		if now.Sub(pc.lastUsed) > p.idleTTL {
			stale = append(stale, pc)
		} else {
			keep = append(keep, pc)
		}
	}
	p.idle = keep
	p.mu.Unlock()

	for _, pc := range stale {
		if err := pc.conn.Keepalive(); err == nil {
			// Still alive; return it rather than closing, but its
			// last-used time is not refreshed so it sweeps again next
			// round if it stays idle.
			p.mu.Lock()
			p.idle = append(p.idle, pc)
			p.mu.Unlock()
			continue
		}
		_ = pc.conn.Close()
		<-p.tokens
		p.logger.Debug("ssh pool: closed idle session", "host", p.host.Name)
	}
}

// CloseAll drains and tears down every idle and checked-out-tracked
// session. Called once at process end.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, pc := range idle {
		_ = pc.conn.Close()
	}
	close(p.sweepCh)
}

// Registry is a process-wide set of per-host pools, created lazily.
type Registry struct {
	mu    sync.Mutex
	pools map[string]*Pool
	new   func(host core.Host) *Pool
}

// NewRegistry builds a Registry whose pools are constructed with factory
// on first reference to a given host.
func NewRegistry(factory func(host core.Host) *Pool) *Registry {
	return &Registry{pools: map[string]*Pool{}, new: factory}
}

// Get returns the pool for host, creating it on first use.
func (r *Registry) Get(host core.Host) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[host.Name]; ok {
		return p
	}
	p := r.new(host)
	r.pools[host.Name] = p
	return p
}

// CloseAll tears down every pool in the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pools {
		p.CloseAll()
	}
	r.pools = map[string]*Pool{}
}
