package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// ParseIR2 reads a textual IR2 listing back into a lowered body, the
// decompiler direction of the IR2 format. Re-emitting the parsed body
// reproduces the input byte for byte: label names, pinned integer
// widths and variable offsets all survive the round trip.
//
// The command table, when non-nil, supplies opcodes so the parsed body
// can also feed the binary emitter.
func ParseIR2(text string, table *commands.Table) (*ir.Body, error) {
	body := &ir.Body{Script: &symtable.Script{}}

	for lineno, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if name, ok := strings.CutSuffix(line, ":"); ok && !strings.ContainsRune(name, ' ') {
			if body.Script.Name == "" {
				body.Script.Name = scriptOfLabel(name)
			}
			body.Label(name)
			continue
		}

		instr, err := parseIR2Instr(line, table)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno+1, err)
		}
		body.Emit(instr)
	}
	return body, nil
}

// scriptOfLabel strips the _seq suffix of a mangled label name.
func scriptOfLabel(label string) string {
	if i := strings.LastIndexByte(label, '_'); i > 0 {
		if _, err := strconv.Atoi(label[i+1:]); err == nil {
			return label[:i]
		}
	}
	return label
}

func parseIR2Instr(line string, table *commands.Table) (*ir.Instr, error) {
	fields := splitIR2Fields(line)

	instr := &ir.Instr{}
	if strings.EqualFold(fields[0], "NOT") {
		instr.Not = true
		fields = fields[1:]
		if len(fields) == 0 {
			return nil, fmt.Errorf("NOT without a command")
		}
	}
	instr.Name = strings.ToUpper(fields[0])
	if table != nil {
		cmd, ok := table.FindCommand(instr.Name)
		if !ok {
			return nil, fmt.Errorf("unknown command '%s'", instr.Name)
		}
		instr.Opcode = cmd.Opcode
	}

	for _, field := range fields[1:] {
		op, err := parseIR2Operand(field)
		if err != nil {
			return nil, err
		}
		instr.Args = append(instr.Args, op)
	}
	return instr, nil
}

// splitIR2Fields splits on spaces, keeping quoted strings whole.
func splitIR2Fields(line string) []string {
	var fields []string
	for line != "" {
		line = strings.TrimLeft(line, " \t")
		if line == "" {
			break
		}
		if line[0] == '"' {
			end := strings.IndexByte(line[1:], '"')
			if end < 0 {
				fields = append(fields, line)
				break
			}
			fields = append(fields, line[:end+2])
			line = line[end+2:]
			continue
		}
		sp := strings.IndexAny(line, " \t")
		if sp < 0 {
			fields = append(fields, line)
			break
		}
		fields = append(fields, line[:sp])
		line = line[sp:]
	}
	return fields
}

func parseIR2Operand(field string) (ir.Operand, error) {
	switch {
	case strings.HasPrefix(field, "@"):
		return ir.LabelRef(field[1:]), nil

	case strings.HasPrefix(field, "&"):
		offset, err := strconv.ParseUint(field[1:], 10, 32)
		if err != nil || offset%4 != 0 {
			return ir.Operand{}, fmt.Errorf("bad global variable offset '%s'", field)
		}
		v := &symtable.Variable{Class: symtable.ClassGlobal, Type: symtable.TypeInt, Index: uint32(offset / 4)}
		return ir.Var(v), nil

	case strings.HasSuffix(field, "@"):
		index, err := strconv.ParseUint(field[:len(field)-1], 10, 32)
		if err != nil {
			return ir.Operand{}, fmt.Errorf("bad local variable '%s'", field)
		}
		v := &symtable.Variable{Class: symtable.ClassLocal, Type: symtable.TypeInt, Index: uint32(index)}
		return ir.Var(v), nil

	case strings.HasPrefix(field, "'") && strings.HasSuffix(field, "'") && len(field) >= 2:
		return ir.TextLabel(field[1 : len(field)-1]), nil

	case strings.HasPrefix(field, `"`) && strings.HasSuffix(field, `"`) && len(field) >= 2:
		return ir.String(field[1 : len(field)-1]), nil
	}

	for suffix, width := range map[string]ir.IntWidth{"i8": ir.Width8, "i16": ir.Width16, "i32": ir.Width32} {
		if rest, ok := strings.CutSuffix(field, suffix); ok {
			v, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return ir.Operand{}, fmt.Errorf("bad integer '%s'", field)
			}
			return ir.IntW(int32(v), width), nil
		}
	}

	if rest, ok := strings.CutSuffix(field, "f"); ok {
		v, err := strconv.ParseFloat(rest, 32)
		if err != nil {
			return ir.Operand{}, fmt.Errorf("bad float '%s'", field)
		}
		return ir.Float(float32(v)), nil
	}

	return ir.Operand{}, fmt.Errorf("unrecognized operand '%s'", field)
}
