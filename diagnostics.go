package groupaccess

import "github.com/oarkflow/groupaccess/logger"

// DebugFlags is the externally supplied toggle pair for decision debugging.
// Messages go to the DiagnosticsSink, log entries to the structured logger.
type DebugFlags struct {
	Messages bool `json:"messages" yaml:"messages"`
	Log      bool `json:"log" yaml:"log"`
}

func (f DebugFlags) enabled() bool { return f.Messages || f.Log }

// diagnostics fans debug messages out to the enabled channels. Emission is
// best-effort and never influences the decision.
type diagnostics struct {
	flags DebugFlags
	sink  DiagnosticsSink
	log   logger.Logger
}

func (d *diagnostics) emit(message string, keyvals ...any) {
	if d.flags.Messages && d.sink != nil {
		d.sink.Emit(message, keyvals...)
	}
	if d.flags.Log && d.log != nil {
		d.log.Info(message, keyvals...)
	}
}
