// Package parser provides syntax analysis for GTA3script sources.
// It builds a structured statement tree from the token stream; name and
// type resolution is left to the semantic analyzer.
package parser

import "github.com/gtamodding/gta3sc/pkg/compiler/lexer"

// ArgKind discriminates the syntactic category of a command argument.
type ArgKind int

const (
	// ArgInt is an integer literal.
	ArgInt ArgKind = iota
	// ArgFloat is a floating point literal.
	ArgFloat
	// ArgIdent is an identifier: a variable, label, string constant or
	// text label. Which one it is gets decided by the analyzer.
	ArgIdent
	// ArgString is a double-quoted string literal.
	ArgString
)

// Arg is a single command argument.
type Arg struct {
	Kind  ArgKind
	Int   int64
	Float float64
	Text  string // identifier or string contents
	Index *Arg   // array subscript, nil unless Kind==ArgIdent and subscripted
	Token lexer.Token
}

// Statement is implemented by all statement nodes.
type Statement interface {
	statementNode()
	Loc() lexer.Token
}

// CommandStatement is a plain command invocation: NAME ARG ARG ...
type CommandStatement struct {
	Token lexer.Token
	Not   bool // NOT prefix, only meaningful inside conditions
	Name  string
	Args  []*Arg
}

// LabelStatement is a label definition: name:
type LabelStatement struct {
	Token lexer.Token
	Name  string
}

// ScopeStatement is a lexical { } block introducing a local variable frame.
type ScopeStatement struct {
	Token lexer.Token
	Body  []Statement
}

// VarDeclType is the declared type of a variable.
type VarDeclType int

const (
	DeclInt VarDeclType = iota
	DeclFloat
	DeclTextLabel
)

// VarDeclName is one name in a declaration, optionally an array.
type VarDeclName struct {
	Name     string
	ArrayLen int64 // 0 for scalars
	Token    lexer.Token
}

// VarDeclStatement declares one or more variables: VAR_INT x y[10] z
type VarDeclStatement struct {
	Token  lexer.Token
	Global bool
	Type   VarDeclType
	Names  []VarDeclName
}

// ExprOp is the operation of an expression statement.
type ExprOp int

const (
	OpAssign ExprOp = iota // x = a
	OpAddAssign            // x += a
	OpSubAssign            // x -= a
	OpMulAssign            // x *= a
	OpDivAssign            // x /= a
	OpAdd                  // x = a + b
	OpSub                  // x = a - b
	OpMul                  // x = a * b
	OpDiv                  // x = a / b
	OpInc                  // ++x
	OpDec                  // --x
)

// ExprStatement is an assignment or arithmetic expression statement.
// The analyzer turns it into alternator-resolved command calls.
type ExprStatement struct {
	Token lexer.Token
	Op    ExprOp
	Dest  *Arg
	A     *Arg // nil for OpInc/OpDec
	B     *Arg // only for the three-operand forms
}

// CmpOp is a comparison operator inside a condition.
type CmpOp int

const (
	CmpEq CmpOp = iota // =
	CmpGt              // >
	CmpGe              // >=
	CmpLt              // <
	CmpLe              // <=
)

// Comparison is a relational condition: a OP b
type Comparison struct {
	Token lexer.Token
	Op    CmpOp
	Left  *Arg
	Right *Arg
}

// Condition is one line of an IF/WHILE condition list. Exactly one of
// Cmd and Cmp is set.
type Condition struct {
	Not bool
	Cmd *CommandStatement
	Cmp *Comparison
}

// IfStatement is IF..ELSE..ENDIF with an AND or OR condition list.
type IfStatement struct {
	Token lexer.Token
	Or    bool // condition list joined by OR instead of AND
	Conds []Condition
	Then  []Statement
	Else  []Statement
}

// WhileStatement is WHILE..ENDWHILE.
type WhileStatement struct {
	Token lexer.Token
	Or    bool
	Conds []Condition
	Body  []Statement
}

// RepeatStatement is REPEAT count var .. ENDREPEAT.
type RepeatStatement struct {
	Token lexer.Token
	Count *Arg
	Var   *Arg
	Body  []Statement
}

// CaseClause is one CASE value with its body.
type CaseClause struct {
	Token lexer.Token
	Value *Arg
	Body  []Statement
}

// SwitchStatement is SWITCH..CASE..DEFAULT..ENDSWITCH.
type SwitchStatement struct {
	Token      lexer.Token
	Var        *Arg
	Cases      []*CaseClause
	HasDefault bool
	// DefaultAfter is the number of cases preceding DEFAULT in source
	// order; case bodies are emitted in that order.
	DefaultAfter int
	Default      []Statement
}

// BreakStatement is the BREAK keyword.
type BreakStatement struct {
	Token lexer.Token
}

// ContinueStatement is the CONTINUE keyword.
type ContinueStatement struct {
	Token lexer.Token
}

// MissionStartStatement marks the beginning of a mission script.
type MissionStartStatement struct {
	Token lexer.Token
}

// MissionEndStatement marks the end of a mission script.
type MissionEndStatement struct {
	Token lexer.Token
}

// DefineStatement is a #DEFINE directive.
type DefineStatement struct {
	Token lexer.Token
	Name  string
	Value string
}

func (s *CommandStatement) statementNode()      {}
func (s *LabelStatement) statementNode()        {}
func (s *ScopeStatement) statementNode()        {}
func (s *VarDeclStatement) statementNode()      {}
func (s *ExprStatement) statementNode()         {}
func (s *IfStatement) statementNode()           {}
func (s *WhileStatement) statementNode()        {}
func (s *RepeatStatement) statementNode()       {}
func (s *SwitchStatement) statementNode()       {}
func (s *BreakStatement) statementNode()        {}
func (s *ContinueStatement) statementNode()     {}
func (s *MissionStartStatement) statementNode() {}
func (s *MissionEndStatement) statementNode()   {}
func (s *DefineStatement) statementNode()       {}

func (s *CommandStatement) Loc() lexer.Token      { return s.Token }
func (s *LabelStatement) Loc() lexer.Token        { return s.Token }
func (s *ScopeStatement) Loc() lexer.Token        { return s.Token }
func (s *VarDeclStatement) Loc() lexer.Token      { return s.Token }
func (s *ExprStatement) Loc() lexer.Token         { return s.Token }
func (s *IfStatement) Loc() lexer.Token           { return s.Token }
func (s *WhileStatement) Loc() lexer.Token        { return s.Token }
func (s *RepeatStatement) Loc() lexer.Token       { return s.Token }
func (s *SwitchStatement) Loc() lexer.Token       { return s.Token }
func (s *BreakStatement) Loc() lexer.Token        { return s.Token }
func (s *ContinueStatement) Loc() lexer.Token     { return s.Token }
func (s *MissionStartStatement) Loc() lexer.Token { return s.Token }
func (s *MissionEndStatement) Loc() lexer.Token   { return s.Token }
func (s *DefineStatement) Loc() lexer.Token       { return s.Token }

// ScriptFile is the parsed form of one translation unit.
type ScriptFile struct {
	// Name is the file stem, uppercased; label mangling and diagnostics
	// use it.
	Name       string
	Path       string
	Statements []Statement
}
