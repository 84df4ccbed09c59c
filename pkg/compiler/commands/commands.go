// Package commands holds the immutable catalog of engine commands the
// compiler targets: opcodes, parameter descriptors, alternator groups and
// enum bindings. Both the analyzer and the code generator depend on it,
// the same way the old VM and compiler shared one opcode package.
package commands

import (
	"errors"
	"strings"
)

// ParamKind classifies a command parameter slot.
type ParamKind uint8

const (
	// ParamInt accepts any integer literal; the emitter picks the
	// smallest width that holds the value.
	ParamInt ParamKind = iota
	// ParamFloat accepts a floating point literal.
	ParamFloat
	// ParamVarInt accepts a global integer variable.
	ParamVarInt
	// ParamLVarInt accepts a local integer variable.
	ParamLVarInt
	// ParamVarFloat accepts a global float variable.
	ParamVarFloat
	// ParamLVarFloat accepts a local float variable.
	ParamLVarFloat
	// ParamVarTextLabel accepts a global text label variable.
	ParamVarTextLabel
	// ParamLVarTextLabel accepts a local text label variable.
	ParamLVarTextLabel
	// ParamTextLabel accepts an immediate 8-byte text label.
	ParamTextLabel
	// ParamString accepts a variable-length string literal.
	ParamString
	// ParamLabel accepts a code label reference.
	ParamLabel
	// ParamConstant accepts an integer constant, possibly bound to a
	// named enum through Param.Enum.
	ParamConstant
	// ParamIntVarAny accepts an integer variable of either storage
	// class. Used by out slots, which the games accept both for.
	ParamIntVarAny
	// ParamFloatVarAny accepts a float variable of either storage class.
	ParamFloatVarAny
)

var paramKindNames = map[string]ParamKind{
	"INT":             ParamInt,
	"FLOAT":           ParamFloat,
	"VAR_INT":         ParamVarInt,
	"LVAR_INT":        ParamLVarInt,
	"VAR_FLOAT":       ParamVarFloat,
	"LVAR_FLOAT":      ParamLVarFloat,
	"VAR_TEXT_LABEL":  ParamVarTextLabel,
	"LVAR_TEXT_LABEL": ParamLVarTextLabel,
	"TEXT_LABEL":      ParamTextLabel,
	"STRING":          ParamString,
	"LABEL":           ParamLabel,
	"CONSTANT":        ParamConstant,
	"INT_VAR_ANY":     ParamIntVarAny,
	"FLOAT_VAR_ANY":   ParamFloatVarAny,
}

// Param describes one parameter slot of a command.
type Param struct {
	Kind     ParamKind
	Enum     string // enum binding for ParamConstant slots
	Entity   string // entity type this slot carries (CAR, PLAYER, ...)
	Out      bool   // the command writes this slot
	Optional bool   // trailing parameter that may be omitted
}

// Command is a single engine command.
type Command struct {
	Name      string
	Opcode    uint16
	Supported bool
	Params    []Param
	IsKeyword bool
}

// MinArgs returns the number of mandatory parameters.
func (c *Command) MinArgs() int {
	n := 0
	for _, p := range c.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// OutEntity returns the entity type the command produces into its out
// parameter, or "" when it produces none.
func (c *Command) OutEntity() string {
	for _, p := range c.Params {
		if p.Out && p.Entity != "" {
			return p.Entity
		}
	}
	return ""
}

// Alternator is a script-level name shared by a set of commands that are
// disambiguated by argument types (e.g. SET).
type Alternator struct {
	Name     string
	Commands []*Command
}

// Enum is a named set of integer constants.
type Enum struct {
	Name      string
	Constants map[string]int32
}

// Table is the loaded command database. It is immutable after
// construction and safe for concurrent readers.
type Table struct {
	commands    map[string]*Command
	alternators map[string]*Alternator
	enums       map[string]*Enum
}

// NewTable builds a Table from its parts. Lookup keys are uppercased.
func NewTable(cmds []*Command, alts []*Alternator, enums []*Enum) *Table {
	t := &Table{
		commands:    make(map[string]*Command, len(cmds)),
		alternators: make(map[string]*Alternator, len(alts)),
		enums:       make(map[string]*Enum, len(enums)),
	}
	for _, c := range cmds {
		t.commands[strings.ToUpper(c.Name)] = c
	}
	for _, a := range alts {
		t.alternators[strings.ToUpper(a.Name)] = a
	}
	for _, e := range enums {
		t.enums[strings.ToUpper(e.Name)] = e
	}
	return t
}

// FindCommand looks up a command by name, case-insensitively.
func (t *Table) FindCommand(name string) (*Command, bool) {
	c, ok := t.commands[strings.ToUpper(name)]
	return c, ok
}

// FindAlternator looks up an alternator by name, case-insensitively.
func (t *Table) FindAlternator(name string) (*Alternator, bool) {
	a, ok := t.alternators[strings.ToUpper(name)]
	return a, ok
}

// FindEnum looks up an enum by name, case-insensitively.
func (t *Table) FindEnum(name string) (*Enum, bool) {
	e, ok := t.enums[strings.ToUpper(name)]
	return e, ok
}

// ConstantValue resolves a constant name in any enum. Enum-bound slots
// restrict the search to one enum via EnumValue.
func (t *Table) ConstantValue(name string) (int32, bool) {
	for _, e := range t.enums {
		if v, ok := e.Constants[strings.ToUpper(name)]; ok {
			return v, true
		}
	}
	return 0, false
}

// EnumValue resolves a constant name within the named enum only.
func (t *Table) EnumValue(enum, name string) (int32, bool) {
	e, ok := t.enums[strings.ToUpper(enum)]
	if !ok {
		return 0, false
	}
	v, ok := e.Constants[strings.ToUpper(name)]
	return v, ok
}

// ArgType is the statically inferred type of an argument, used to pick
// the matching command out of an alternator.
type ArgType uint8

const (
	ArgNone ArgType = iota
	ArgIntLit
	ArgFloatLit
	ArgGlobalInt
	ArgLocalInt
	ArgGlobalFloat
	ArgLocalFloat
	ArgGlobalTextLabel
	ArgLocalTextLabel
	ArgTextLabel
	ArgStringLit
	ArgLabel
	ArgConstant
)

// Resolution errors.
var (
	// ErrNoMatch means no command in the alternator accepts the
	// argument types.
	ErrNoMatch = errors.New("no command matches the argument types")
	// ErrAmbiguous means two or more commands match equally well.
	// Ambiguity is rejected rather than resolved by declaration order.
	ErrAmbiguous = errors.New("ambiguous command for the argument types")
)

// MatchOptions carries the option flags that influence matching.
type MatchOptions struct {
	// TextLabelVars widens TEXT_LABEL slots to accept text label
	// variables.
	TextLabelVars bool
}

// kindMatches reports whether an argument of type a fits a slot of the
// given kind.
func kindMatches(p Param, a ArgType, opts MatchOptions) bool {
	switch p.Kind {
	case ParamInt:
		return a == ArgIntLit || a == ArgConstant
	case ParamFloat:
		return a == ArgFloatLit
	case ParamVarInt:
		return a == ArgGlobalInt
	case ParamLVarInt:
		return a == ArgLocalInt
	case ParamVarFloat:
		return a == ArgGlobalFloat
	case ParamLVarFloat:
		return a == ArgLocalFloat
	case ParamVarTextLabel:
		return a == ArgGlobalTextLabel
	case ParamLVarTextLabel:
		return a == ArgLocalTextLabel
	case ParamTextLabel:
		if a == ArgTextLabel {
			return true
		}
		return opts.TextLabelVars && (a == ArgGlobalTextLabel || a == ArgLocalTextLabel)
	case ParamString:
		return a == ArgStringLit
	case ParamLabel:
		return a == ArgLabel
	case ParamConstant:
		return a == ArgConstant || a == ArgIntLit
	case ParamIntVarAny:
		return a == ArgGlobalInt || a == ArgLocalInt
	case ParamFloatVarAny:
		return a == ArgGlobalFloat || a == ArgLocalFloat
	default:
		return false
	}
}

// matches reports whether the whole argument list fits the command.
func matches(c *Command, args []ArgType, opts MatchOptions) bool {
	if len(args) < c.MinArgs() || len(args) > len(c.Params) {
		return false
	}
	for i, a := range args {
		if !kindMatches(c.Params[i], a, opts) {
			return false
		}
	}
	return true
}

// ResolveAlternator picks the single command of alt whose parameters
// match the given argument types. Zero matches yield ErrNoMatch; more
// than one match is an ambiguity error, never a silent first pick.
// Unsupported commands never match.
func (t *Table) ResolveAlternator(alt *Alternator, args []ArgType, opts MatchOptions) (*Command, error) {
	var found *Command
	for _, c := range alt.Commands {
		if !c.Supported || !matches(c, args, opts) {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguous
		}
		found = c
	}
	if found == nil {
		return nil, ErrNoMatch
	}
	return found, nil
}
