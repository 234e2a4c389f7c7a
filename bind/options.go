package bind

import (
	"os"
	"strconv"
	"sync/atomic"
)

// Mode selects how compiled codecs execute their bindings.
type Mode uint8

const (
	// ModeDefault defers to the process-wide default.
	ModeDefault Mode = iota
	// ModeGeneric interprets the binding list on every call.
	ModeGeneric
	// ModeSpecialized runs a closure chain generated once per binding list.
	ModeSpecialized
)

func (m Mode) String() string {
	switch m {
	case ModeGeneric:
		return "generic"
	case ModeSpecialized:
		return "specialized"
	default:
		return "default"
	}
}

// EnvGenerateBinding is the environment variable that selects the
// process-wide default mode. A true value selects ModeSpecialized.
const EnvGenerateBinding = "RECBIND_GENERATE_BINDING"

var defaultMode atomic.Uint32

func init() {
	defaultMode.Store(uint32(modeFromEnv()))
}

func modeFromEnv() Mode {
	on, err := strconv.ParseBool(os.Getenv(EnvGenerateBinding))
	if err == nil && on {
		return ModeSpecialized
	}
	return ModeGeneric
}

// DefaultMode returns the process-wide default mode.
func DefaultMode() Mode {
	return Mode(defaultMode.Load())
}

// SetDefaultMode overrides the process-wide default mode. It affects
// compilers created afterwards. ModeDefault restores the environment setting.
func SetDefaultMode(m Mode) {
	if m == ModeDefault {
		m = modeFromEnv()
	}
	defaultMode.Store(uint32(m))
}

// Options configures a Compiler.
type Options struct {
	// Registry supplies custom encodings. Nil means an empty registry.
	Registry *Registry
	Mode     Mode
}

// DefaultOptions returns default compiler configuration.
func DefaultOptions() Options {
	return Options{
		Mode: ModeDefault,
	}
}
