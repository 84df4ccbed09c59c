// Package codegen converts lowered instruction streams into their final
// forms: the textual IR2 listing and the binary .scm image.
package codegen

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
)

// mangleLabels assigns the printable name of every label defined in the
// body: {SCRIPT}_{seq}, seq starting at 1 in definition order.
func mangleLabels(body *ir.Body) map[string]string {
	names := make(map[string]string)
	seq := 0
	for _, item := range body.Items {
		if item.Label != "" {
			seq++
			names[item.Label] = fmt.Sprintf("%s_%d", body.Script.Name, seq)
		}
	}
	return names
}

// EmitIR2 writes the textual IR2 form of the lowered program: one
// instruction per line, label definitions as NAME:, operands with type
// suffixes (100i8, 1.5f, &8, 1@, @MAIN_5).
func EmitIR2(w io.Writer, bodies []*ir.Body) error {
	for _, body := range bodies {
		names := mangleLabels(body)
		for _, item := range body.Items {
			var line string
			if item.Label != "" {
				line = names[item.Label] + ":"
			} else {
				line = formatInstr(item.Instr, names)
			}
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatInstr(instr *ir.Instr, names map[string]string) string {
	var b strings.Builder
	if instr.Not {
		b.WriteString("NOT ")
	}
	b.WriteString(instr.Name)
	for _, arg := range instr.Args {
		b.WriteByte(' ')
		b.WriteString(formatOperand(arg, names))
	}
	return b.String()
}

func formatOperand(op ir.Operand, names map[string]string) string {
	switch op.Kind {
	case ir.OperandInt:
		return fmt.Sprintf("%d%s", op.Int, widthSuffix(op.Width.Widen(op.Int)))
	case ir.OperandFloat:
		return strconv.FormatFloat(float64(op.Float), 'g', -1, 32) + "f"
	case ir.OperandVar:
		if op.Var.IsGlobalStorage() {
			return fmt.Sprintf("&%d", op.Var.Index*4)
		}
		return fmt.Sprintf("%d@", op.Var.Index)
	case ir.OperandTextLabel:
		return "'" + op.Text + "'"
	case ir.OperandString:
		return `"` + op.Text + `"`
	case ir.OperandLabel:
		if name, ok := names[op.Label]; ok {
			return "@" + name
		}
		return "@" + op.Label
	default:
		return "?"
	}
}

func widthSuffix(w ir.IntWidth) string {
	switch w {
	case ir.Width8:
		return "i8"
	case ir.Width16:
		return "i16"
	default:
		return "i32"
	}
}
