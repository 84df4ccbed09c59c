package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

func mainScript() *symtable.Script {
	return &symtable.Script{Name: "MAIN", Kind: symtable.KindMain}
}

func gvar(index uint32) *symtable.Variable {
	return &symtable.Variable{Class: symtable.ClassGlobal, Type: symtable.TypeInt, Index: index}
}

func lvar(index uint32) *symtable.Variable {
	return &symtable.Variable{Class: symtable.ClassLocal, Type: symtable.TypeInt, Index: index}
}

func emitIR2(t *testing.T, bodies ...*ir.Body) string {
	t.Helper()
	var buf strings.Builder
	require.NoError(t, EmitIR2(&buf, bodies))
	return buf.String()
}

func TestIR2OperandFormats(t *testing.T) {
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "WAIT", Args: []ir.Operand{ir.Int(100)}})
	body.Emit(&ir.Instr{Name: "WAIT", Args: []ir.Operand{ir.Int(200)}})
	body.Emit(&ir.Instr{Name: "WAIT", Args: []ir.Operand{ir.Int(70000)}})
	body.Emit(&ir.Instr{Name: "SET_VAR_FLOAT", Args: []ir.Operand{ir.Var(gvar(2)), ir.Float(1.5)}})
	body.Emit(&ir.Instr{Name: "SET_LVAR_INT", Args: []ir.Operand{ir.Var(lvar(1)), ir.Int(-1)}})
	body.Emit(&ir.Instr{Name: "SCRIPT_NAME", Args: []ir.Operand{ir.TextLabel("MAIN")}})
	body.Emit(&ir.Instr{Name: "SAVE_STRING_TO_DEBUG_FILE", Args: []ir.Operand{ir.String("hey")}})

	want := strings.Join([]string{
		"WAIT 100i8",
		"WAIT 200i16",
		"WAIT 70000i32",
		"SET_VAR_FLOAT &8 1.5f",
		"SET_LVAR_INT 1@ -1i8",
		"SCRIPT_NAME 'MAIN'",
		`SAVE_STRING_TO_DEBUG_FILE "hey"`,
		"",
	}, "\n")
	require.Equal(t, want, emitIR2(t, body))
}

func TestIR2LabelMangling(t *testing.T) {
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "GOTO", Args: []ir.Operand{ir.LabelRef("%2")}})
	body.Label("%1")
	body.Emit(&ir.Instr{Name: "WAIT", Args: []ir.Operand{ir.Int(0)}})
	body.Label("%2")
	body.Emit(&ir.Instr{Name: "GOTO", Args: []ir.Operand{ir.LabelRef("%1")}})

	want := strings.Join([]string{
		"GOTO @MAIN_2", // forward reference to the second defined label
		"MAIN_1:",
		"WAIT 0i8",
		"MAIN_2:",
		"GOTO @MAIN_1",
		"",
	}, "\n")
	require.Equal(t, want, emitIR2(t, body))
}

func TestIR2SequencePerScript(t *testing.T) {
	first := &ir.Body{Script: mainScript()}
	first.Label("a")
	second := &ir.Body{Script: &symtable.Script{Name: "SUB", Kind: symtable.KindSubscript}}
	second.Label("b")
	second.Label("c")

	got := emitIR2(t, first, second)
	require.Equal(t, "MAIN_1:\nSUB_1:\nSUB_2:\n", got)
}

func TestIR2NotPrefix(t *testing.T) {
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{
		Name: "IS_INT_VAR_EQUAL_TO_NUMBER",
		Not:  true,
		Args: []ir.Operand{ir.Var(gvar(0)), ir.Int(5)},
	})
	require.Equal(t, "NOT IS_INT_VAR_EQUAL_TO_NUMBER &0 5i8\n", emitIR2(t, body))
}

func TestIR2SwitchSentinels(t *testing.T) {
	// the packed dispatch line pins the sentinel format literally
	body := &ir.Body{Script: mainScript()}
	args := []ir.Operand{ir.Var(gvar(0)), ir.Int(1), ir.LabelRef("%end")}
	args = append(args, ir.IntW(50, ir.Width8), ir.LabelRef("%case"))
	for i := 0; i < 6; i++ {
		args = append(args, ir.IntW(-1, ir.Width8), ir.LabelRef("%end"))
	}
	body.Emit(&ir.Instr{Name: "SWITCH_START", Args: args})
	body.Label("%case")
	body.Emit(&ir.Instr{Name: "GOTO", Args: []ir.Operand{ir.LabelRef("%end")}})
	body.Label("%end")

	got := emitIR2(t, body)
	require.Contains(t, got, "SWITCH_START &0 1i8 @MAIN_2 50i8 @MAIN_1 -1i8 @MAIN_2 -1i8 @MAIN_2 -1i8 @MAIN_2 -1i8 @MAIN_2 -1i8 @MAIN_2 -1i8 @MAIN_2")
}

func TestIR2FloatFormats(t *testing.T) {
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "SET_VAR_FLOAT", Args: []ir.Operand{ir.Var(gvar(0)), ir.Float(1)}})
	body.Emit(&ir.Instr{Name: "SET_VAR_FLOAT", Args: []ir.Operand{ir.Var(gvar(0)), ir.Float(-0.5)}})

	got := emitIR2(t, body)
	require.Contains(t, got, "&0 1f")
	require.Contains(t, got, "&0 -0.5f")
}
