// Package telemetry defines the event sink interface the core emits
// spans through (§6). The core never persists or ships events itself;
// it only calls the sink the caller supplied in run options.
package telemetry

// Event names, per spec §6's event schema.
const (
	EventPipelineStart     = "pipeline.start"
	EventPipelineStop      = "pipeline.stop"
	EventPipelineException = "pipeline.exception"
	EventTaskStart         = "task.start"
	EventTaskStop          = "task.stop"
	EventTaskException     = "task.exception"
	EventCommandStart      = "command.start"
	EventCommandStop       = "command.stop"
	EventCommandRetry      = "command.retry"
	EventSSHConnectStart   = "ssh.connect.start"
	EventSSHConnectStop    = "ssh.connect.stop"
	EventSSHPoolCheckout   = "ssh.pool.checkout"
)

// Measurements carries numeric spans data: duration, attempt counters, delays.
type Measurements map[string]any

// Metadata carries identifiers relevant to the span: task, host, command
// preview, exit code.
type Metadata map[string]any

// Sink receives one call per emitted event. Implementations must not
// block the caller indefinitely; a slow sink stalls the run.
type Sink interface {
	Emit(event string, measurements Measurements, metadata Metadata)
}

// Noop discards every event. Useful as a default when the caller
// supplies no sink.
type Noop struct{}

func (Noop) Emit(string, Measurements, Metadata) {}

// Func adapts a plain function to Sink.
type Func func(event string, measurements Measurements, metadata Metadata)

func (f Func) Emit(event string, measurements Measurements, metadata Metadata) { f(event, measurements, metadata) }
