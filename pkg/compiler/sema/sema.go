package sema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
	"github.com/gtamodding/gta3sc/pkg/compiler/parser"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// maxConditions is the ANDOR limit of the target VM: one IF or WHILE
// carries at most eight conditions.
const maxConditions = 8

// maxTextLabel is the longest text label that fits the 8-byte field
// with its terminator.
const maxTextLabel = 7

type breakableKind int

const (
	breakableLoop breakableKind = iota
	breakableSwitch
)

// Analyzer performs semantic analysis of a single script. It is owned
// by the script's compile job and must not be shared.
type Analyzer struct {
	ctx    *program.Context
	table  *symtable.Table
	scope  *symtable.ScriptScope
	script *symtable.Script
	file   *parser.ScriptFile
	source string

	// scope numbering for label qualification under scope-then-label
	scopeIDs    map[*parser.ScopeStatement]int
	scopePath   []int
	nextScopeID int

	// entity-type annotations, tracked per job to keep shared symbol
	// state read-only during parallel analysis
	entities map[*symtable.Variable]string

	// model names the script references, for the header's model table
	usedModels map[string]bool

	breakables []breakableKind
}

// New creates an Analyzer for one script. The program table must have
// been through the declaration pass already.
func New(ctx *program.Context, table *symtable.Table, script *symtable.Script, file *parser.ScriptFile, source string) *Analyzer {
	cfg := symtable.ScopeConfig{
		LocalVarLimit:   ctx.Opt.LocalVarLimit,
		MissionVarBegin: ctx.Opt.MissionVarBegin,
	}
	if ctx.Opt.MissionVarLimit != nil {
		cfg.MissionVarLimit = *ctx.Opt.MissionVarLimit
	}
	a := &Analyzer{
		ctx:        ctx,
		table:      table,
		scope:      symtable.NewScriptScope(table, script, cfg),
		script:     script,
		file:       file,
		source:     source,
		scopeIDs:   make(map[*parser.ScopeStatement]int),
		entities:   make(map[*symtable.Variable]string),
		usedModels: make(map[string]bool),
	}
	a.scope.DeclareTimer("TIMERA", ctx.Opt.TimerIndex)
	a.scope.DeclareTimer("TIMERB", ctx.Opt.TimerIndex+1)
	return a
}

func (a *Analyzer) loc(tok lexer.Token) program.Location {
	return program.At(a.file.Path, tok, a.source)
}

// UsedModels returns the model names the script referenced, sorted.
func (a *Analyzer) UsedModels() []string {
	out := make([]string, 0, len(a.usedModels))
	for name := range a.usedModels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Declare runs the sequential declaration pass for one script: global
// variables, user constants and SCRIPT_NAME uniqueness. It must be
// called for every script, in input order, before any Analyze runs.
func Declare(ctx *program.Context, table *symtable.Table, script *symtable.Script, file *parser.ScriptFile, source string) {
	d := &declarer{ctx: ctx, table: table, script: script, file: file, source: source}
	d.walk(file.Statements)
}

type declarer struct {
	ctx    *program.Context
	table  *symtable.Table
	script *symtable.Script
	file   *parser.ScriptFile
	source string
}

func (d *declarer) loc(tok lexer.Token) program.Location {
	return program.At(d.file.Path, tok, d.source)
}

func (d *declarer) walk(stmts []parser.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *parser.VarDeclStatement:
			if s.Global && d.script.Kind != symtable.KindMission {
				for _, name := range s.Names {
					if _, err := d.table.DeclareGlobal(name.Name, declType(s.Type), name.ArrayLen); err != nil {
						d.ctx.Error(d.loc(name.Token), "%s", err)
					}
				}
			}
		case *parser.DefineStatement:
			value := int32(1)
			if v, err := strconv.ParseInt(s.Value, 10, 32); err == nil {
				value = int32(v)
			} else if c, ok := d.table.Constant(s.Value); ok {
				value = c
			} else {
				d.ctx.Error(d.loc(s.Token), "bad #DEFINE value '%s'", s.Value)
				continue
			}
			d.table.DefineConstant(s.Name, value)
		case *parser.CommandStatement:
			if strings.EqualFold(s.Name, "SCRIPT_NAME") && len(s.Args) == 1 && s.Args[0].Kind == parser.ArgIdent {
				name := s.Args[0].Text
				if prev, ok := d.table.RegisterScriptName(name, d.script); !ok && d.ctx.Opt.ScriptNameCheck {
					d.ctx.Error(d.loc(s.Token), "duplicate SCRIPT_NAME '%s'", name)
					d.ctx.Note(program.InFile(prev.Path), "previously declared here")
				}
			}
		case *parser.ScopeStatement:
			d.walk(s.Body)
		case *parser.IfStatement:
			d.walk(s.Then)
			d.walk(s.Else)
		case *parser.WhileStatement:
			d.walk(s.Body)
		case *parser.RepeatStatement:
			d.walk(s.Body)
		case *parser.SwitchStatement:
			for _, c := range s.Cases {
				d.walk(c.Body)
			}
			d.walk(s.Default)
		}
	}
}

func declType(t parser.VarDeclType) symtable.VarType {
	switch t {
	case parser.DeclInt:
		return symtable.TypeInt
	case parser.DeclFloat:
		return symtable.TypeFloat
	default:
		return symtable.TypeTextLabel
	}
}

// Analyze walks the script and returns the annotated statement tree.
// Normal errors accumulate in the diagnostic sink and analysis keeps
// going; the returned error is non-nil only when the job must halt.
func (a *Analyzer) Analyze() ([]*Stmt, error) {
	a.collectLabels(a.file.Statements)

	a.scopePath = a.scopePath[:0]
	out, err := a.analyzeBlock(a.file.Statements)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// qualifyLabel builds the lookup key of a label declared in the current
// scope chain. Without scope-then-label, labels are script-wide.
func (a *Analyzer) qualifyLabel(name string) string {
	if !a.ctx.Opt.ScopeThenLabel || len(a.scopePath) == 0 {
		return strings.ToUpper(name)
	}
	var b strings.Builder
	for _, id := range a.scopePath {
		fmt.Fprintf(&b, "%d/", id)
	}
	b.WriteString(strings.ToUpper(name))
	return b.String()
}

// resolveLabel finds the innermost visible label of the given name.
func (a *Analyzer) resolveLabel(name string) (string, bool) {
	if !a.ctx.Opt.ScopeThenLabel {
		key := strings.ToUpper(name)
		_, ok := a.scope.LookupLabel(key)
		return key, ok
	}
	for depth := len(a.scopePath); depth >= 0; depth-- {
		var b strings.Builder
		for _, id := range a.scopePath[:depth] {
			fmt.Fprintf(&b, "%d/", id)
		}
		b.WriteString(strings.ToUpper(name))
		key := b.String()
		if _, ok := a.scope.LookupLabel(key); ok {
			return key, true
		}
	}
	return "", false
}

// collectLabels is the label pre-pass: it declares every label so that
// forward references resolve, numbering scopes on the way so the main
// pass sees identical qualification.
func (a *Analyzer) collectLabels(stmts []parser.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *parser.LabelStatement:
			key := a.qualifyLabel(s.Name)
			if _, err := a.scope.DeclareLabel(key, s.Name); err != nil {
				a.ctx.Error(a.loc(s.Token), "%s", err)
			}
		case *parser.ScopeStatement:
			id := a.nextScopeID
			a.nextScopeID++
			a.scopeIDs[s] = id
			a.scopePath = append(a.scopePath, id)
			a.collectLabels(s.Body)
			a.scopePath = a.scopePath[:len(a.scopePath)-1]
		case *parser.IfStatement:
			a.collectLabels(s.Then)
			a.collectLabels(s.Else)
		case *parser.WhileStatement:
			a.collectLabels(s.Body)
		case *parser.RepeatStatement:
			a.collectLabels(s.Body)
		case *parser.SwitchStatement:
			for _, c := range s.Cases {
				a.collectLabels(c.Body)
			}
			a.collectLabels(s.Default)
		}
	}
}

func (a *Analyzer) analyzeBlock(stmts []parser.Statement) ([]*Stmt, error) {
	var out []*Stmt
	for _, stmt := range stmts {
		if a.ctx.ShouldHalt() {
			return out, program.ErrHalt
		}
		res, err := a.analyzeStatement(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (a *Analyzer) analyzeStatement(stmt parser.Statement) ([]*Stmt, error) {
	switch s := stmt.(type) {
	case *parser.CommandStatement:
		cmd, err := a.analyzeCommand(s)
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			return nil, nil
		}
		return []*Stmt{{Kind: StmtCommand, Token: s.Token, Cmd: cmd}}, nil

	case *parser.ExprStatement:
		return a.analyzeExpr(s)

	case *parser.LabelStatement:
		return []*Stmt{{Kind: StmtLabel, Token: s.Token, LabelKey: a.qualifyLabel(s.Name)}}, nil

	case *parser.ScopeStatement:
		a.scope.Push()
		a.scopePath = append(a.scopePath, a.scopeIDs[s])
		body, err := a.analyzeBlock(s.Body)
		a.scopePath = a.scopePath[:len(a.scopePath)-1]
		a.scope.Pop()
		if err != nil {
			return nil, err
		}
		return []*Stmt{{Kind: StmtScope, Token: s.Token, Body: body}}, nil

	case *parser.VarDeclStatement:
		a.analyzeVarDecl(s)
		return nil, nil

	case *parser.IfStatement:
		return a.analyzeIf(s)

	case *parser.WhileStatement:
		return a.analyzeWhile(s)

	case *parser.RepeatStatement:
		return a.analyzeRepeat(s)

	case *parser.SwitchStatement:
		return a.analyzeSwitch(s)

	case *parser.BreakStatement:
		if !a.breakAllowed() {
			a.ctx.Error(a.loc(s.Token), "BREAK is not allowed here")
			return nil, nil
		}
		return []*Stmt{{Kind: StmtBreak, Token: s.Token}}, nil

	case *parser.ContinueStatement:
		if !a.continueAllowed() {
			a.ctx.Error(a.loc(s.Token), "CONTINUE is not allowed here")
			return nil, nil
		}
		return []*Stmt{{Kind: StmtContinue, Token: s.Token}}, nil

	case *parser.MissionStartStatement:
		if a.script.Kind != symtable.KindMission {
			a.ctx.Error(a.loc(s.Token), "MISSION_START outside of mission script")
		}
		return nil, nil

	case *parser.MissionEndStatement:
		if a.script.Kind != symtable.KindMission {
			a.ctx.Error(a.loc(s.Token), "MISSION_END outside of mission script")
			return nil, nil
		}
		term, err := a.ctx.SupportedCommand(a.loc(s.Token), "TERMINATE_THIS_SCRIPT")
		if err != nil {
			return nil, err
		}
		return []*Stmt{{Kind: StmtCommand, Token: s.Token, Cmd: &Command{Cmd: term, Token: s.Token}}}, nil

	case *parser.DefineStatement:
		// handled by the declaration pass
		return nil, nil

	default:
		return nil, a.ctx.Internal(a.loc(stmt.Loc()), "unhandled statement type %T", stmt)
	}
}

// breakAllowed: BREAK binds to the innermost breakable. It is always
// legal in a SWITCH; inside loops only with allow_break_continue.
func (a *Analyzer) breakAllowed() bool {
	if len(a.breakables) == 0 {
		return false
	}
	top := a.breakables[len(a.breakables)-1]
	return top == breakableSwitch || a.ctx.Opt.AllowBreakContinue
}

// continueAllowed: CONTINUE binds to the innermost loop, skipping any
// switches, and requires allow_break_continue.
func (a *Analyzer) continueAllowed() bool {
	if !a.ctx.Opt.AllowBreakContinue {
		return false
	}
	for i := len(a.breakables) - 1; i >= 0; i-- {
		if a.breakables[i] == breakableLoop {
			return true
		}
	}
	return false
}

func (a *Analyzer) analyzeVarDecl(s *parser.VarDeclStatement) {
	typ := declType(s.Type)
	for _, name := range s.Names {
		if name.ArrayLen > 0 {
			if !a.ctx.Opt.FArrays {
				a.ctx.Error(a.loc(name.Token), "array requires -farrays")
				continue
			}
			if lim := a.ctx.Opt.ArrayElemLimit; lim != nil && name.ArrayLen > int64(*lim) {
				a.ctx.Error(a.loc(name.Token), "array exceeds the element limit of %d", *lim)
				continue
			}
		}
		var err error
		switch {
		case s.Global && a.script.Kind == symtable.KindMission:
			_, err = a.scope.DeclareMissionLocal(name.Name, typ, name.ArrayLen)
		case s.Global:
			// already declared by the declaration pass
		default:
			_, err = a.scope.DeclareLocal(name.Name, typ, name.ArrayLen)
		}
		if err != nil {
			a.ctx.Error(a.loc(name.Token), "%s", err)
		}
	}
}

func (a *Analyzer) analyzeIf(s *parser.IfStatement) ([]*Stmt, error) {
	conds, err := a.analyzeConditions(s.Conds, s.Token)
	if err != nil {
		return nil, err
	}
	then, err := a.analyzeBlock(s.Then)
	if err != nil {
		return nil, err
	}
	els, err := a.analyzeBlock(s.Else)
	if err != nil {
		return nil, err
	}
	return []*Stmt{{Kind: StmtIf, Token: s.Token, Or: s.Or, Conds: conds, Then: then, Else: els}}, nil
}

func (a *Analyzer) analyzeWhile(s *parser.WhileStatement) ([]*Stmt, error) {
	conds, err := a.analyzeConditions(s.Conds, s.Token)
	if err != nil {
		return nil, err
	}
	a.breakables = append(a.breakables, breakableLoop)
	body, err := a.analyzeBlock(s.Body)
	a.breakables = a.breakables[:len(a.breakables)-1]
	if err != nil {
		return nil, err
	}
	return []*Stmt{{Kind: StmtWhile, Token: s.Token, Or: s.Or, Conds: conds, Body: body}}, nil
}

func (a *Analyzer) analyzeRepeat(s *parser.RepeatStatement) ([]*Stmt, error) {
	count, ok := a.foldIntArg(s.Count)
	if !ok {
		a.ctx.Error(a.loc(s.Count.Token), "REPEAT count must be an integer constant")
		return nil, nil
	}
	loopVar, err := a.analyzeCounterVar(s.Var)
	if err != nil || loopVar == nil {
		return nil, err
	}

	a.breakables = append(a.breakables, breakableLoop)
	body, berr := a.analyzeBlock(s.Body)
	a.breakables = a.breakables[:len(a.breakables)-1]
	if berr != nil {
		return nil, berr
	}
	return []*Stmt{{
		Kind:   StmtRepeat,
		Token:  s.Token,
		Repeat: &Repeat{Count: Arg{Type: commands.ArgIntLit, Int: count, Token: s.Count.Token}, Var: *loopVar},
		Body:   body,
	}}, nil
}

// analyzeCounterVar binds the loop variable of a REPEAT, which must be
// an integer variable.
func (a *Analyzer) analyzeCounterVar(arg *parser.Arg) (*Arg, error) {
	if arg.Kind != parser.ArgIdent {
		a.ctx.Error(a.loc(arg.Token), "REPEAT variable must be an integer variable")
		return nil, nil
	}
	v, ok := a.lookupOrGuess(arg, symtable.TypeInt, false)
	if !ok {
		a.ctx.Error(a.loc(arg.Token), "undefined variable '%s'", arg.Text)
		return nil, nil
	}
	if v.Type != symtable.TypeInt {
		a.ctx.Error(a.loc(arg.Token), "REPEAT variable must be an integer variable")
		return nil, nil
	}
	return &Arg{Type: varArgType(v), Var: v, Token: arg.Token}, nil
}

func (a *Analyzer) analyzeSwitch(s *parser.SwitchStatement) ([]*Stmt, error) {
	if !a.ctx.Opt.FSwitch {
		a.ctx.Error(a.loc(s.Token), "SWITCH requires -fswitch")
		return nil, nil
	}

	disc, err := a.analyzeCounterVar(s.Var)
	if err != nil || disc == nil {
		return nil, err
	}

	if lim := a.ctx.Opt.SwitchCaseLimit; lim != nil && len(s.Cases) > int(*lim) {
		a.ctx.Error(a.loc(s.Token), "SWITCH exceeds the case limit of %d", *lim)
	}

	sw := &Switch{Var: *disc, HasDefault: s.HasDefault, DefaultAfter: s.DefaultAfter}
	seen := make(map[int32]lexer.Token)

	a.breakables = append(a.breakables, breakableSwitch)
	defer func() { a.breakables = a.breakables[:len(a.breakables)-1] }()

	for _, c := range s.Cases {
		value, ok := a.foldIntArg(c.Value)
		if !ok {
			a.ctx.Error(a.loc(c.Value.Token), "CASE value must be an integer constant")
			continue
		}
		if prev, dup := seen[value]; dup {
			a.ctx.Error(a.loc(c.Token), "duplicate CASE value %d", value)
			a.ctx.Note(a.loc(prev), "previous CASE here")
			continue
		}
		seen[value] = c.Token

		body, err := a.analyzeBlock(c.Body)
		if err != nil {
			return nil, err
		}
		if !terminated(body) {
			a.ctx.Error(a.loc(c.Token), "CASE %d falls through; end it with BREAK or a terminating statement", value)
		}
		sw.Cases = append(sw.Cases, Case{Value: value, Body: body, Token: c.Token})
	}

	if s.HasDefault {
		body, err := a.analyzeBlock(s.Default)
		if err != nil {
			return nil, err
		}
		if !terminated(body) {
			a.ctx.Error(a.loc(s.Token), "DEFAULT falls through; end it with BREAK or a terminating statement")
		}
		sw.Default = body
	}

	return []*Stmt{{Kind: StmtSwitch, Token: s.Token, Switch: sw}}, nil
}

// terminated reports whether a case body cannot fall off its end.
func terminated(body []*Stmt) bool {
	if len(body) == 0 {
		return false
	}
	last := body[len(body)-1]
	switch last.Kind {
	case StmtBreak, StmtContinue:
		return true
	case StmtCommand:
		switch last.Cmd.Cmd.Name {
		case "GOTO", "RETURN", "TERMINATE_THIS_SCRIPT":
			return true
		}
	}
	return false
}

// analyzeConditions checks a condition list and resolves each entry.
func (a *Analyzer) analyzeConditions(conds []parser.Condition, tok lexer.Token) ([]*Command, error) {
	if len(conds) > maxConditions {
		a.ctx.Error(a.loc(tok), "too many conditions (limit is %d)", maxConditions)
	}
	var out []*Command
	for _, c := range conds {
		var cmd *Command
		var err error
		switch {
		case c.Cmd != nil:
			c.Cmd.Not = c.Not
			cmd, err = a.analyzeCommand(c.Cmd)
		case c.Cmp != nil:
			cmd, err = a.analyzeComparison(c.Cmp, c.Not)
		}
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			out = append(out, cmd)
		}
	}
	return out, nil
}

var comparisonAlternators = map[parser.CmpOp]struct {
	name string
	swap bool
}{
	parser.CmpEq: {"IS_THING_EQUAL_TO_THING", false},
	parser.CmpGt: {"IS_THING_GREATER_THAN_THING", false},
	parser.CmpGe: {"IS_THING_GREATER_OR_EQUAL_TO_THING", false},
	parser.CmpLt: {"IS_THING_GREATER_THAN_THING", true},
	parser.CmpLe: {"IS_THING_GREATER_OR_EQUAL_TO_THING", true},
}

func (a *Analyzer) analyzeComparison(cmp *parser.Comparison, not bool) (*Command, error) {
	alt := comparisonAlternators[cmp.Op]
	left, right := cmp.Left, cmp.Right
	if alt.swap {
		left, right = right, left
	}
	return a.resolveAlternatorCall(alt.name, []*parser.Arg{left, right}, cmp.Token, not)
}

// analyzeExpr desugars an expression statement into alternator calls.
func (a *Analyzer) analyzeExpr(s *parser.ExprStatement) ([]*Stmt, error) {
	one := &parser.Arg{Kind: parser.ArgInt, Int: 1, Token: s.Token}

	// Infer an undeclared destination's type from the source operand
	// before resolution, so the guesser has something to match on.
	if a.ctx.Opt.Guesser && s.A != nil {
		a.guessDest(s.Dest, s.A)
	}

	compound := map[parser.ExprOp]string{
		parser.OpAddAssign: "ADD_THING_TO_THING",
		parser.OpSubAssign: "SUB_THING_FROM_THING",
		parser.OpMulAssign: "MULT_THING_BY_THING",
		parser.OpDivAssign: "DIV_THING_BY_THING",
	}

	switch s.Op {
	case parser.OpAssign:
		cmd, err := a.resolveAlternatorCall("SET", []*parser.Arg{s.Dest, s.A}, s.Token, false)
		return a.wrapExpr(s.Token, err, cmd)

	case parser.OpAddAssign, parser.OpSubAssign, parser.OpMulAssign, parser.OpDivAssign:
		cmd, err := a.resolveAlternatorCall(compound[s.Op], []*parser.Arg{s.Dest, s.A}, s.Token, false)
		return a.wrapExpr(s.Token, err, cmd)

	case parser.OpInc:
		cmd, err := a.resolveAlternatorCall("ADD_THING_TO_THING", []*parser.Arg{s.Dest, one}, s.Token, false)
		return a.wrapExpr(s.Token, err, cmd)

	case parser.OpDec:
		cmd, err := a.resolveAlternatorCall("SUB_THING_FROM_THING", []*parser.Arg{s.Dest, one}, s.Token, false)
		return a.wrapExpr(s.Token, err, cmd)

	case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv:
		binary := map[parser.ExprOp]string{
			parser.OpAdd: "ADD_THING_TO_THING",
			parser.OpSub: "SUB_THING_FROM_THING",
			parser.OpMul: "MULT_THING_BY_THING",
			parser.OpDiv: "DIV_THING_BY_THING",
		}
		// x = x + b collapses to the compound form.
		if sameVarRef(s.Dest, s.A) {
			cmd, err := a.resolveAlternatorCall(binary[s.Op], []*parser.Arg{s.Dest, s.B}, s.Token, false)
			return a.wrapExpr(s.Token, err, cmd)
		}
		set, err := a.resolveAlternatorCall("SET", []*parser.Arg{s.Dest, s.A}, s.Token, false)
		if err != nil {
			return nil, err
		}
		op, err := a.resolveAlternatorCall(binary[s.Op], []*parser.Arg{s.Dest, s.B}, s.Token, false)
		if err != nil {
			return nil, err
		}
		var out []*Stmt
		if set != nil {
			out = append(out, &Stmt{Kind: StmtCommand, Token: s.Token, Cmd: set})
		}
		if op != nil {
			out = append(out, &Stmt{Kind: StmtCommand, Token: s.Token, Cmd: op})
		}
		return out, nil

	default:
		return nil, a.ctx.Internal(a.loc(s.Token), "unhandled expression op %d", s.Op)
	}
}

func (a *Analyzer) wrapExpr(tok lexer.Token, err error, cmd *Command) ([]*Stmt, error) {
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, nil
	}
	return []*Stmt{{Kind: StmtCommand, Token: tok, Cmd: cmd}}, nil
}

func sameVarRef(x, y *parser.Arg) bool {
	return x != nil && y != nil &&
		x.Kind == parser.ArgIdent && y.Kind == parser.ArgIdent &&
		strings.EqualFold(x.Text, y.Text) && x.Index == nil && y.Index == nil
}

// guessDest declares an undeclared destination variable with the type
// of the source operand.
func (a *Analyzer) guessDest(dest, src *parser.Arg) {
	if dest.Kind != parser.ArgIdent || dest.Index != nil {
		return
	}
	if _, ok := a.scope.Lookup(dest.Text); ok {
		return
	}
	if _, ok := a.constantValue(dest.Text); ok {
		return
	}
	typ := symtable.TypeInt
	switch src.Kind {
	case parser.ArgFloat:
		typ = symtable.TypeFloat
	case parser.ArgIdent:
		if v, ok := a.scope.Lookup(src.Text); ok {
			typ = v.Type
		}
	}
	if _, err := a.table.DeclareGlobal(dest.Text, typ, 0); err != nil {
		a.ctx.Error(a.loc(dest.Token), "%s", err)
	}
}

// analyzeCommand resolves a command statement: direct command lookup
// first, alternator otherwise.
func (a *Analyzer) analyzeCommand(s *parser.CommandStatement) (*Command, error) {
	if _, ok := a.ctx.Commands.FindAlternator(s.Name); ok {
		return a.resolveAlternatorCall(s.Name, s.Args, s.Token, s.Not)
	}

	cmd, ok := a.ctx.Commands.FindCommand(s.Name)
	if !ok {
		a.ctx.Error(a.loc(s.Token), "unknown command '%s'", s.Name)
		return nil, nil
	}
	if !cmd.Supported {
		if a.ctx.Opt.Pedantic {
			a.ctx.Error(a.loc(s.Token), "command '%s' is not supported by this game", s.Name)
			return nil, nil
		}
		return nil, a.ctx.Fatal(a.loc(s.Token), "command '%s' is not supported by this game", s.Name)
	}

	if s.Not && !a.notAllowed(cmd.Name) {
		a.ctx.Error(a.loc(s.Token), "NOT cannot be applied to '%s'", cmd.Name)
		return nil, nil
	}

	args, ok := a.checkArgs(cmd, s.Args, s.Token)
	if !ok {
		return nil, nil
	}
	a.trackEntities(cmd, args)
	return &Command{Cmd: cmd, Not: s.Not, Args: args, Token: s.Token}, nil
}

// notAllowed reports whether NOT may negate the command. Outside of
// relax_not mode only condition-shaped commands qualify.
func (a *Analyzer) notAllowed(name string) bool {
	if a.ctx.Opt.RelaxNot {
		return true
	}
	return strings.HasPrefix(name, "IS_") || strings.HasPrefix(name, "HAS_")
}

// resolveAlternatorCall resolves an alternator against the naturally
// inferred argument types and checks the chosen command's arguments.
func (a *Analyzer) resolveAlternatorCall(name string, args []*parser.Arg, tok lexer.Token, not bool) (*Command, error) {
	alt, err := a.ctx.SupportedAlternator(a.loc(tok), name)
	if err != nil {
		return nil, err
	}

	types := make([]commands.ArgType, len(args))
	for i, arg := range args {
		types[i] = a.naturalType(arg)
	}

	opts := commands.MatchOptions{TextLabelVars: a.ctx.Opt.TextLabelVars}
	cmd, rerr := a.ctx.Commands.ResolveAlternator(alt, types, opts)
	switch rerr {
	case commands.ErrNoMatch:
		a.ctx.Error(a.loc(tok), "no overload of '%s' accepts these argument types", name)
		return nil, nil
	case commands.ErrAmbiguous:
		a.ctx.Error(a.loc(tok), "ambiguous use of '%s' for these argument types", name)
		return nil, nil
	}

	checked, ok := a.checkArgs(cmd, args, tok)
	if !ok {
		return nil, nil
	}
	a.trackEntities(cmd, checked)
	return &Command{Cmd: cmd, Not: not, Args: checked, Token: tok}, nil
}

// naturalType infers the static type of an argument before a command
// has been chosen.
func (a *Analyzer) naturalType(arg *parser.Arg) commands.ArgType {
	switch arg.Kind {
	case parser.ArgInt:
		return commands.ArgIntLit
	case parser.ArgFloat:
		return commands.ArgFloatLit
	case parser.ArgString:
		return commands.ArgStringLit
	default:
		if v, ok := a.scope.Lookup(arg.Text); ok {
			return varArgType(v)
		}
		if _, ok := a.constantValue(arg.Text); ok {
			return commands.ArgConstant
		}
		return commands.ArgTextLabel
	}
}

func varArgType(v *symtable.Variable) commands.ArgType {
	global := v.IsGlobalStorage()
	switch v.Type {
	case symtable.TypeInt:
		if global {
			return commands.ArgGlobalInt
		}
		return commands.ArgLocalInt
	case symtable.TypeFloat:
		if global {
			return commands.ArgGlobalFloat
		}
		return commands.ArgLocalFloat
	default:
		if global {
			return commands.ArgGlobalTextLabel
		}
		return commands.ArgLocalTextLabel
	}
}

// constantValue resolves a name as a user constant or any enum constant.
func (a *Analyzer) constantValue(name string) (int32, bool) {
	if v, ok := a.table.Constant(name); ok {
		return v, true
	}
	return a.ctx.Commands.ConstantValue(name)
}

// foldIntArg folds an argument into an integer constant.
func (a *Analyzer) foldIntArg(arg *parser.Arg) (int32, bool) {
	switch arg.Kind {
	case parser.ArgInt:
		if arg.Int < math.MinInt32 || arg.Int > math.MaxInt32 {
			return 0, false
		}
		return int32(arg.Int), true
	case parser.ArgIdent:
		return a.constantValue(arg.Text)
	default:
		return 0, false
	}
}

// checkArgs validates an argument list against a resolved command and
// builds the annotated arguments.
func (a *Analyzer) checkArgs(cmd *commands.Command, args []*parser.Arg, tok lexer.Token) ([]Arg, bool) {
	if len(args) < cmd.MinArgs() || len(args) > len(cmd.Params) {
		if cmd.MinArgs() == len(cmd.Params) {
			a.ctx.Error(a.loc(tok), "'%s' expects %d arguments, got %d", cmd.Name, len(cmd.Params), len(args))
		} else {
			a.ctx.Error(a.loc(tok), "'%s' expects %d to %d arguments, got %d",
				cmd.Name, cmd.MinArgs(), len(cmd.Params), len(args))
		}
		return nil, false
	}

	out := make([]Arg, 0, len(args))
	ok := true
	for i, arg := range args {
		built, argOK := a.checkArg(cmd, cmd.Params[i], arg)
		if !argOK {
			ok = false
			continue
		}
		out = append(out, built)
	}
	return out, ok
}

func (a *Analyzer) checkArg(cmd *commands.Command, p commands.Param, arg *parser.Arg) (Arg, bool) {
	fail := func(format string, args ...any) (Arg, bool) {
		a.ctx.Error(a.loc(arg.Token), format, args...)
		return Arg{}, false
	}

	switch p.Kind {
	case commands.ParamInt:
		v, ok := a.foldIntArg(arg)
		if !ok {
			return fail("expected an integer constant")
		}
		return Arg{Type: commands.ArgIntLit, Int: v, Token: arg.Token}, true

	case commands.ParamConstant:
		if arg.Kind == parser.ArgInt {
			v, ok := a.foldIntArg(arg)
			if !ok {
				return fail("integer constant out of range")
			}
			return Arg{Type: commands.ArgIntLit, Int: v, Token: arg.Token}, true
		}
		if arg.Kind != parser.ArgIdent {
			return fail("expected a constant")
		}
		if v, ok := a.enumConstant(p.Enum, arg.Text); ok {
			return Arg{Type: commands.ArgIntLit, Int: v, Token: arg.Token}, true
		}
		if p.Enum != "" {
			return fail("'%s' is not a constant of %s", arg.Text, p.Enum)
		}
		return fail("'%s' is not a constant", arg.Text)

	case commands.ParamFloat:
		switch arg.Kind {
		case parser.ArgFloat:
			return Arg{Type: commands.ArgFloatLit, Float: float32(arg.Float), Token: arg.Token}, true
		case parser.ArgInt:
			// integer literals coerce in float slots
			return Arg{Type: commands.ArgFloatLit, Float: float32(arg.Int), Token: arg.Token}, true
		default:
			return fail("expected a float constant")
		}

	case commands.ParamVarInt, commands.ParamLVarInt, commands.ParamIntVarAny:
		return a.checkVarArg(p, arg, symtable.TypeInt)

	case commands.ParamVarFloat, commands.ParamLVarFloat, commands.ParamFloatVarAny:
		return a.checkVarArg(p, arg, symtable.TypeFloat)

	case commands.ParamVarTextLabel, commands.ParamLVarTextLabel:
		return a.checkVarArg(p, arg, symtable.TypeTextLabel)

	case commands.ParamTextLabel:
		if arg.Kind == parser.ArgIdent {
			if v, ok := a.scope.Lookup(arg.Text); ok && v.Type == symtable.TypeTextLabel {
				if !a.ctx.Opt.TextLabelVars {
					return fail("text label variables require text_label_vars")
				}
				return Arg{Type: varArgType(v), Var: v, Token: arg.Token}, true
			}
			if len(arg.Text) > maxTextLabel {
				return fail("text label '%s' is longer than %d characters", arg.Text, maxTextLabel)
			}
			return Arg{Type: commands.ArgTextLabel, Text: strings.ToUpper(arg.Text), Token: arg.Token}, true
		}
		return fail("expected a text label")

	case commands.ParamString:
		if arg.Kind != parser.ArgString {
			return fail("expected a string literal")
		}
		return Arg{Type: commands.ArgStringLit, Text: arg.Text, Token: arg.Token}, true

	case commands.ParamLabel:
		if arg.Kind != parser.ArgIdent {
			return fail("expected a label")
		}
		key, ok := a.resolveLabel(arg.Text)
		if !ok {
			return fail("undefined label '%s'", arg.Text)
		}
		return Arg{Type: commands.ArgLabel, LabelKey: key, Text: strings.ToUpper(arg.Text), Token: arg.Token}, true

	default:
		a.ctx.Error(a.loc(arg.Token), "unsupported parameter kind for '%s'", cmd.Name)
		return Arg{}, false
	}
}

// enumConstant resolves a name in the slot's enum. The MODEL pseudo
// enum resolves through the model registry.
func (a *Analyzer) enumConstant(enum, name string) (int32, bool) {
	if enum == "" {
		return a.constantValue(name)
	}
	if strings.EqualFold(enum, "MODEL") {
		if id, ok := a.ctx.Models.ID(name); ok {
			a.usedModels[strings.ToUpper(name)] = true
			return id, true
		}
		// user constants may shadow model names
		return a.table.Constant(name)
	}
	return a.ctx.Commands.EnumValue(enum, name)
}

// checkVarArg binds a variable argument against a var slot.
func (a *Analyzer) checkVarArg(p commands.Param, arg *parser.Arg, want symtable.VarType) (Arg, bool) {
	fail := func(format string, args ...any) (Arg, bool) {
		a.ctx.Error(a.loc(arg.Token), format, args...)
		return Arg{}, false
	}
	if arg.Kind != parser.ArgIdent {
		return fail("expected a variable")
	}

	v, ok := a.lookupOrGuess(arg, want, p.Kind == commands.ParamLVarInt || p.Kind == commands.ParamLVarFloat || p.Kind == commands.ParamLVarTextLabel)
	if !ok {
		return fail("undefined variable '%s'", arg.Text)
	}
	if v.Type != want {
		return fail("variable '%s' is of type %s, expected %s", v.Name, v.Type, want)
	}

	global := v.IsGlobalStorage()
	switch p.Kind {
	case commands.ParamVarInt, commands.ParamVarFloat, commands.ParamVarTextLabel:
		if !global {
			return fail("'%s' is a local variable, a global is required", v.Name)
		}
	case commands.ParamLVarInt, commands.ParamLVarFloat, commands.ParamLVarTextLabel:
		if global {
			return fail("'%s' is a global variable, a local is required", v.Name)
		}
	}

	v2, ok := a.subscript(v, arg)
	if !ok {
		return Arg{}, false
	}
	return Arg{Type: varArgType(v2), Var: v2, Token: arg.Token}, true
}

// lookupOrGuess binds a variable name, declaring it on first use when
// the guesser is enabled.
func (a *Analyzer) lookupOrGuess(arg *parser.Arg, typ symtable.VarType, local bool) (*symtable.Variable, bool) {
	if v, ok := a.scope.Lookup(arg.Text); ok {
		return v, true
	}
	if !a.ctx.Opt.Guesser {
		return nil, false
	}
	var v *symtable.Variable
	var err error
	if local {
		v, err = a.scope.DeclareLocal(arg.Text, typ, 0)
	} else if a.script.Kind == symtable.KindMission {
		v, err = a.scope.DeclareMissionLocal(arg.Text, typ, 0)
	} else {
		v, err = a.table.DeclareGlobal(arg.Text, typ, 0)
	}
	if err != nil {
		a.ctx.Error(a.loc(arg.Token), "%s", err)
		return nil, false
	}
	return v, true
}

// subscript folds an array access into a view variable at the indexed
// offset. Indices must be integer constants.
func (a *Analyzer) subscript(v *symtable.Variable, arg *parser.Arg) (*symtable.Variable, bool) {
	if arg.Index == nil {
		if v.ArrayLen > 0 {
			a.ctx.Error(a.loc(arg.Token), "array '%s' requires a subscript", v.Name)
			return nil, false
		}
		return v, true
	}
	if !a.ctx.Opt.FArrays {
		a.ctx.Error(a.loc(arg.Token), "array access requires -farrays")
		return nil, false
	}
	if v.ArrayLen == 0 {
		a.ctx.Error(a.loc(arg.Token), "'%s' is not an array", v.Name)
		return nil, false
	}
	idx, ok := a.foldIntArg(arg.Index)
	if !ok {
		a.ctx.Error(a.loc(arg.Index.Token), "array index must be an integer constant")
		return nil, false
	}
	if idx < 0 || int64(idx) >= v.ArrayLen {
		a.ctx.Error(a.loc(arg.Index.Token), "index %d out of bounds for '%s[%d]'", idx, v.Name, v.ArrayLen)
		return nil, false
	}
	elemWords := uint32(1)
	if v.Type == symtable.TypeTextLabel {
		elemWords = 2
	}
	view := *v
	view.ArrayLen = 0
	view.Index = v.Index + uint32(idx)*elemWords
	return &view, true
}

// trackEntities propagates and checks entity-type annotations on the
// command's variable arguments.
func (a *Analyzer) trackEntities(cmd *commands.Command, args []Arg) {
	if !a.ctx.Opt.EntityTracking {
		return
	}
	for i := range args {
		p := cmd.Params[i]
		if p.Entity == "" || args[i].Var == nil {
			continue
		}
		v := args[i].Var
		have := a.entities[v]
		if p.Out {
			if have == "" {
				a.entities[v] = p.Entity
			} else if have != p.Entity {
				a.ctx.Error(a.loc(args[i].Token),
					"variable '%s' already holds a %s, cannot assign a %s", v.Name, have, p.Entity)
			}
			continue
		}
		if have != "" && have != p.Entity {
			a.ctx.Error(a.loc(args[i].Token),
				"variable '%s' holds a %s, but a %s is expected", v.Name, have, p.Entity)
		}
	}
}
