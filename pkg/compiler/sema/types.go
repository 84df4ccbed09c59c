// Package sema implements the semantic analyzer. It walks the parsed
// tree, binds identifiers, resolves commands and alternators, checks
// types and arities, and produces an annotated statement tree the
// control-flow lowerer consumes without any further name resolution.
package sema

import (
	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// Arg is a fully resolved command argument.
type Arg struct {
	Type  commands.ArgType
	Int   int32
	Float float32
	// Text holds the payload of text labels and string literals.
	Text string
	// Var is set for variable references.
	Var *symtable.Variable
	// LabelKey is the scope-qualified key of a label reference,
	// resolvable in the script's label table.
	LabelKey string
	Token    lexer.Token
}

// Command is a command call bound to its engine command.
type Command struct {
	Cmd   *commands.Command
	Not   bool
	Args  []Arg
	Token lexer.Token
}

// StmtKind discriminates annotated statements.
type StmtKind int

const (
	StmtCommand StmtKind = iota
	StmtLabel
	StmtScope
	StmtIf
	StmtWhile
	StmtRepeat
	StmtSwitch
	StmtBreak
	StmtContinue
)

// Case is one arm of an annotated switch.
type Case struct {
	Value int32
	Body  []*Stmt
	Token lexer.Token
}

// Switch is the annotated form of a SWITCH statement.
type Switch struct {
	Var        Arg
	Cases      []Case
	HasDefault bool
	// DefaultAfter is the number of cases preceding DEFAULT in source
	// order.
	DefaultAfter int
	Default      []*Stmt
}

// Repeat is the annotated form of a REPEAT statement.
type Repeat struct {
	Count Arg
	Var   Arg
}

// Stmt is one annotated statement. Exactly the fields implied by Kind
// are set.
type Stmt struct {
	Kind  StmtKind
	Token lexer.Token

	// StmtCommand
	Cmd *Command

	// StmtLabel: the scope-qualified label key being defined.
	LabelKey string

	// StmtIf / StmtWhile
	Or    bool
	Conds []*Command
	Then  []*Stmt // if only
	Else  []*Stmt // if only
	Body  []*Stmt // while, repeat, scope

	// StmtRepeat
	Repeat *Repeat

	// StmtSwitch
	Switch *Switch
}
