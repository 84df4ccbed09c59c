// Package lower translates the analyzer's structured statement tree
// into the labeled linear instruction stream of the target VM:
// IF/ELSE, WHILE, REPEAT and SWITCH become explicit jumps.
package lower

import (
	"fmt"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/sema"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// andOrBase is the ANDOR operand offset of OR-joined condition lists.
const andOrBase = 20

// target is one enclosing breakable statement on the lowering stack.
// A switch entry has no continue label.
type target struct {
	breakLabel    string
	continueLabel string
	isLoop        bool
}

// Lowerer lowers one script. It is owned by the script's compile job.
type Lowerer struct {
	ctx  *program.Context
	body *ir.Body
	next int
	loc  program.Location

	targets []target
}

// Lower converts an annotated statement tree into a lowered body.
// The returned error is non-nil only when the job must halt.
func Lower(ctx *program.Context, script *symtable.Script, stmts []*sema.Stmt) (*ir.Body, error) {
	l := &Lowerer{
		ctx:  ctx,
		body: &ir.Body{Script: script},
		loc:  program.InFile(script.Path),
	}
	if err := l.block(stmts); err != nil {
		return nil, err
	}
	return l.body, nil
}

// newLabel mints an internal label key. The '%' prefix keeps internal
// keys disjoint from source label names.
func (l *Lowerer) newLabel() string {
	l.next++
	return fmt.Sprintf("%%%d", l.next)
}

// command resolves a compiler-generated command by name.
func (l *Lowerer) command(name string) (*commands.Command, error) {
	return l.ctx.SupportedCommand(l.loc, name)
}

// alternator resolves a compiler-generated alternator call against the
// given argument types. Resolution failure here is a compiler bug, not
// a user error.
func (l *Lowerer) alternator(name string, types []commands.ArgType) (*commands.Command, error) {
	alt, err := l.ctx.SupportedAlternator(l.loc, name)
	if err != nil {
		return nil, err
	}
	opts := commands.MatchOptions{TextLabelVars: l.ctx.Opt.TextLabelVars}
	cmd, rerr := l.ctx.Commands.ResolveAlternator(alt, types, opts)
	if rerr != nil {
		return nil, l.ctx.Internal(l.loc, "cannot lower '%s' for %v: %v", name, types, rerr)
	}
	return cmd, nil
}

// emit appends an instruction built from a resolved command.
func (l *Lowerer) emit(cmd *commands.Command, not bool, args ...ir.Operand) {
	l.body.Emit(&ir.Instr{Name: cmd.Name, Opcode: cmd.Opcode, Not: not, Args: args})
}

// emitGoto emits an unconditional jump to the label key.
func (l *Lowerer) emitGoto(label string) error {
	cmd, err := l.command("GOTO")
	if err != nil {
		return err
	}
	l.emit(cmd, false, ir.LabelRef(label))
	return nil
}

// emitJumpIfFalse emits the conditional jump taken when the preceding
// condition block is false.
func (l *Lowerer) emitJumpIfFalse(label string) error {
	cmd, err := l.command("GOTO_IF_FALSE")
	if err != nil {
		return err
	}
	l.emit(cmd, false, ir.LabelRef(label))
	return nil
}

func (l *Lowerer) block(stmts []*sema.Stmt) error {
	for _, stmt := range stmts {
		if err := l.statement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lowerer) statement(stmt *sema.Stmt) error {
	switch stmt.Kind {
	case sema.StmtCommand:
		l.emitCommand(stmt.Cmd)
		return nil

	case sema.StmtLabel:
		l.body.Label(stmt.LabelKey)
		return nil

	case sema.StmtScope:
		return l.block(stmt.Body)

	case sema.StmtIf:
		return l.lowerIf(stmt)

	case sema.StmtWhile:
		return l.lowerWhile(stmt)

	case sema.StmtRepeat:
		return l.lowerRepeat(stmt)

	case sema.StmtSwitch:
		return l.lowerSwitch(stmt)

	case sema.StmtBreak:
		if n := len(l.targets); n > 0 {
			return l.emitGoto(l.targets[n-1].breakLabel)
		}
		return l.ctx.Internal(l.loc, "BREAK outside breakable statement survived analysis")

	case sema.StmtContinue:
		for i := len(l.targets) - 1; i >= 0; i-- {
			if l.targets[i].isLoop {
				return l.emitGoto(l.targets[i].continueLabel)
			}
		}
		return l.ctx.Internal(l.loc, "CONTINUE outside loop survived analysis")

	default:
		return l.ctx.Internal(l.loc, "unhandled lowered statement kind %d", stmt.Kind)
	}
}

// emitCommand lowers a resolved command call.
func (l *Lowerer) emitCommand(cmd *sema.Command) {
	args := make([]ir.Operand, 0, len(cmd.Args))
	for _, a := range cmd.Args {
		args = append(args, operand(a))
	}
	l.body.Emit(&ir.Instr{Name: cmd.Cmd.Name, Opcode: cmd.Cmd.Opcode, Not: cmd.Not, Args: args})
}

// operand converts an annotated argument into an IR operand.
func operand(a sema.Arg) ir.Operand {
	switch a.Type {
	case commands.ArgIntLit, commands.ArgConstant:
		return ir.Int(a.Int)
	case commands.ArgFloatLit:
		return ir.Float(a.Float)
	case commands.ArgTextLabel:
		return ir.TextLabel(a.Text)
	case commands.ArgStringLit:
		return ir.String(a.Text)
	case commands.ArgLabel:
		return ir.LabelRef(a.LabelKey)
	default:
		return ir.Var(a.Var)
	}
}

// conditions emits the ANDOR prelude and the condition commands of an
// IF or WHILE.
//
// ANDOR carries 0 for a single condition, n-1 for n AND-joined ones and
// 20+n-1 for OR. With skip_single_ifs, single-condition statements omit
// the ANDOR and fuse into the conditional jump alone.
func (l *Lowerer) conditions(conds []*sema.Command, or bool) error {
	single := len(conds) == 1
	if !single || !l.ctx.Opt.SkipSingleIfs {
		value := int32(0)
		if !single {
			value = int32(len(conds) - 1)
			if or {
				value += andOrBase
			}
		}
		andor, err := l.command("ANDOR")
		if err != nil {
			return err
		}
		l.emit(andor, false, ir.Int(value))
	}
	for _, c := range conds {
		l.emitCommand(c)
	}
	return nil
}

// lowerIf emits:
//
//	conds
//	GOTO_IF_FALSE @else_or_end
//	then
//	GOTO @end        (only with an else block)
//	@else: else
//	@end:
func (l *Lowerer) lowerIf(stmt *sema.Stmt) error {
	if err := l.conditions(stmt.Conds, stmt.Or); err != nil {
		return err
	}

	endLabel := l.newLabel()
	elseLabel := endLabel
	if len(stmt.Else) > 0 {
		elseLabel = l.newLabel()
	}

	if err := l.emitJumpIfFalse(elseLabel); err != nil {
		return err
	}
	if err := l.block(stmt.Then); err != nil {
		return err
	}
	if len(stmt.Else) > 0 {
		if err := l.emitGoto(endLabel); err != nil {
			return err
		}
		l.body.Label(elseLabel)
		if err := l.block(stmt.Else); err != nil {
			return err
		}
	}
	l.body.Label(endLabel)
	return nil
}

// lowerWhile emits:
//
//	@top: conds
//	GOTO_IF_FALSE @end
//	body
//	GOTO @top
//	@end:
func (l *Lowerer) lowerWhile(stmt *sema.Stmt) error {
	topLabel := l.newLabel()
	endLabel := l.newLabel()

	l.body.Label(topLabel)
	if err := l.conditions(stmt.Conds, stmt.Or); err != nil {
		return err
	}
	if err := l.emitJumpIfFalse(endLabel); err != nil {
		return err
	}

	l.targets = append(l.targets, target{breakLabel: endLabel, continueLabel: topLabel, isLoop: true})
	err := l.block(stmt.Body)
	l.targets = l.targets[:len(l.targets)-1]
	if err != nil {
		return err
	}

	if err := l.emitGoto(topLabel); err != nil {
		return err
	}
	l.body.Label(endLabel)
	return nil
}

// lowerRepeat emits:
//
//	SET var 0
//	@top: body
//	@cont: ADD var 1
//	IS_GREATER_OR_EQUAL var n
//	GOTO_IF_FALSE @top
//	@end:
func (l *Lowerer) lowerRepeat(stmt *sema.Stmt) error {
	rep := stmt.Repeat
	varType := rep.Var.Type

	set, err := l.alternator("SET", []commands.ArgType{varType, commands.ArgIntLit})
	if err != nil {
		return err
	}
	add, err := l.alternator("ADD_THING_TO_THING", []commands.ArgType{varType, commands.ArgIntLit})
	if err != nil {
		return err
	}
	ge, err := l.alternator("IS_THING_GREATER_OR_EQUAL_TO_THING", []commands.ArgType{varType, commands.ArgIntLit})
	if err != nil {
		return err
	}

	topLabel := l.newLabel()
	contLabel := l.newLabel()
	endLabel := l.newLabel()

	counter := ir.Var(rep.Var.Var)
	l.emit(set, false, counter, ir.Int(0))
	l.body.Label(topLabel)

	l.targets = append(l.targets, target{breakLabel: endLabel, continueLabel: contLabel, isLoop: true})
	berr := l.block(stmt.Body)
	l.targets = l.targets[:len(l.targets)-1]
	if berr != nil {
		return berr
	}

	l.body.Label(contLabel)
	l.emit(add, false, counter, ir.Int(1))
	l.emit(ge, false, counter, ir.Int(rep.Count.Int))
	if err := l.emitJumpIfFalse(topLabel); err != nil {
		return err
	}
	l.body.Label(endLabel)
	return nil
}
