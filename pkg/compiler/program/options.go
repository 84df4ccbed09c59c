// Package program holds the shared compile-time state: the option set,
// the command database, the model registry and the diagnostic sink.
// A single Context is built before any job starts and is never mutated
// afterwards, except for the atomic diagnostic counters.
package program

import (
	"fmt"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
)

// HeaderVersion selects the .scm header layout of a target game.
type HeaderVersion uint8

const (
	HeaderNone HeaderVersion = iota
	HeaderGTA3
	HeaderGTAVC
	HeaderGTASA
)

// String returns the --config name of the version.
func (v HeaderVersion) String() string {
	switch v {
	case HeaderGTA3:
		return "gta3"
	case HeaderGTAVC:
		return "gtavc"
	case HeaderGTASA:
		return "gtasa"
	default:
		return "none"
	}
}

// Game maps the header version onto the command set of the same game.
func (v HeaderVersion) Game() commands.Game {
	switch v {
	case HeaderGTAVC:
		return commands.GameGTAVC
	case HeaderGTASA:
		return commands.GameGTASA
	default:
		return commands.GameGTA3
	}
}

// Options is the full compiler option set. It is a plain record of typed
// values; optional numeric bounds are pointers left nil when unset.
type Options struct {
	Headerless         bool
	Pedantic           bool
	Guesser            bool
	SkipSingleIfs      bool
	OptimizeZeroFloats bool
	EntityTracking     bool
	ScriptNameCheck    bool
	FSwitch            bool
	AllowBreakContinue bool
	ScopeThenLabel     bool
	FArrays            bool
	StreamedScripts    bool
	TextLabelVars      bool
	UseLocalOffsets    bool
	FSyntaxOnly        bool
	EmitIR2            bool
	RelaxNot           bool

	// Cleo, when set, selects CLEO output of the given format version.
	Cleo *uint8

	Header HeaderVersion

	TimerIndex      uint32
	LocalVarLimit   uint32
	MissionVarBegin uint32
	MissionVarLimit *uint32
	SwitchCaseLimit *uint32
	ArrayElemLimit  *uint32

	defines map[string]string
}

// NewOptions returns the option set with its defaults applied.
func NewOptions() Options {
	return Options{
		EntityTracking:  true,
		ScriptNameCheck: true,
		defines:         make(map[string]string),
	}
}

// Preset returns the option set for a --config name.
func Preset(config string) (Options, error) {
	opt := NewOptions()
	switch strings.ToLower(config) {
	case "gta3":
		opt.Header = HeaderGTA3
		opt.LocalVarLimit = 16
		opt.TimerIndex = 16
	case "gtavc":
		opt.Header = HeaderGTAVC
		opt.LocalVarLimit = 16
		opt.TimerIndex = 16
	case "gtasa":
		opt.Header = HeaderGTASA
		opt.LocalVarLimit = 32
		opt.TimerIndex = 32
		opt.FSwitch = true
		opt.FArrays = true
		opt.TextLabelVars = true
		limit := uint32(75)
		opt.SwitchCaseLimit = &limit
	default:
		return opt, fmt.Errorf("unknown config %q (want gta3, gtavc or gtasa)", config)
	}
	opt.Define(strings.ToUpper(config))
	return opt, nil
}

// Define predefines a preprocessor symbol, defaulting its value to "1".
func (o *Options) Define(symbol string, value ...string) {
	if o.defines == nil {
		o.defines = make(map[string]string)
	}
	v := "1"
	if len(value) > 0 {
		v = value[0]
	}
	o.defines[strings.ToUpper(symbol)] = v
}

// Undefine removes a predefined symbol.
func (o *Options) Undefine(symbol string) {
	delete(o.defines, strings.ToUpper(symbol))
}

// IsDefined reports whether the symbol is defined.
func (o *Options) IsDefined(symbol string) bool {
	_, ok := o.defines[strings.ToUpper(symbol)]
	return ok
}

// DefineValue returns the value of a defined symbol.
func (o *Options) DefineValue(symbol string) (string, bool) {
	v, ok := o.defines[strings.ToUpper(symbol)]
	return v, ok
}

// Defines returns a copy of the symbol table, for the analyzer to seed
// user constants from.
func (o *Options) Defines() map[string]string {
	out := make(map[string]string, len(o.defines))
	for k, v := range o.defines {
		out[k] = v
	}
	return out
}
