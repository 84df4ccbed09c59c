// Package ir defines the lowered instruction stream: linear sequences
// of engine instructions with labels, produced by the control-flow
// lowerer and consumed by the code generators.
package ir

import "github.com/gtamodding/gta3sc/pkg/compiler/symtable"

// IntWidth is the encoded width of an integer operand.
type IntWidth uint8

const (
	// WidthAuto lets the emitter pick the smallest width that holds
	// the value.
	WidthAuto IntWidth = iota
	Width8
	Width16
	Width32
)

// SmallestWidth returns the smallest signed width holding v.
func SmallestWidth(v int32) IntWidth {
	switch {
	case v >= -128 && v <= 127:
		return Width8
	case v >= -32768 && v <= 32767:
		return Width16
	default:
		return Width32
	}
}

// Widen resolves WidthAuto into a concrete width for the value.
func (w IntWidth) Widen(v int32) IntWidth {
	if w == WidthAuto {
		return SmallestWidth(v)
	}
	return w
}

// OperandKind discriminates Operand.
type OperandKind uint8

const (
	OperandInt OperandKind = iota
	OperandFloat
	OperandVar
	OperandTextLabel
	OperandString
	OperandLabel
)

// Operand is one instruction argument.
type Operand struct {
	Kind  OperandKind
	Int   int32
	Width IntWidth // integer operands only
	Float float32
	Text  string              // text label / string payload
	Label string              // label key, resolved by the emitter
	Var   *symtable.Variable  // variable reference
}

// Int builds an auto-width integer operand.
func Int(v int32) Operand { return Operand{Kind: OperandInt, Int: v} }

// IntW builds an integer operand with a pinned width.
func IntW(v int32, w IntWidth) Operand { return Operand{Kind: OperandInt, Int: v, Width: w} }

// Float builds a float operand.
func Float(v float32) Operand { return Operand{Kind: OperandFloat, Float: v} }

// Var builds a variable operand.
func Var(v *symtable.Variable) Operand { return Operand{Kind: OperandVar, Var: v} }

// TextLabel builds an immediate text label operand.
func TextLabel(s string) Operand { return Operand{Kind: OperandTextLabel, Text: s} }

// String builds a variable-length string operand.
func String(s string) Operand { return Operand{Kind: OperandString, Text: s} }

// LabelRef builds a label reference operand.
func LabelRef(key string) Operand { return Operand{Kind: OperandLabel, Label: key} }

// Instr is one lowered instruction.
type Instr struct {
	// Name is the command name, kept for the textual emitter.
	Name   string
	Opcode uint16
	// Not marks a negated condition; the binary emitter sets the
	// opcode's high bit.
	Not  bool
	Args []Operand
}

// Item is one element of a lowered body: either a label definition or
// an instruction.
type Item struct {
	Label string // non-empty for label definitions
	Instr *Instr
}

// Body is the lowered form of one script.
type Body struct {
	Script *symtable.Script
	Items  []Item
}

// Emit appends an instruction.
func (b *Body) Emit(i *Instr) {
	b.Items = append(b.Items, Item{Instr: i})
}

// Label appends a label definition.
func (b *Body) Label(key string) {
	b.Items = append(b.Items, Item{Label: key})
}

// Labels returns the defining positions of every label in the body.
func (b *Body) Labels() map[string]int {
	out := make(map[string]int)
	for i, item := range b.Items {
		if item.Label != "" {
			out[item.Label] = i
		}
	}
	return out
}
