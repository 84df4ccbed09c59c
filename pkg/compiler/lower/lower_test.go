package lower

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
	"github.com/gtamodding/gta3sc/pkg/compiler/parser"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/sema"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// lowerSource drives parse + analyze + lower over one main script.
func lowerSource(t *testing.T, opt program.Options, source string) (*ir.Body, *program.Context) {
	t.Helper()
	ctx := program.NewContext(opt, commands.DefaultTable(opt.Header.Game()), nil)
	ctx.SetOutput(&bytes.Buffer{})

	p := parser.New(lexer.New(source))
	file, errs := p.ParseFile("main", "main.sc")
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}

	table := symtable.NewTable()
	script := &symtable.Script{Path: "main.sc", Name: "MAIN", Kind: symtable.KindMain}
	table.AddScript(script)
	sema.Declare(ctx, table, script, file, source)

	stmts, err := sema.New(ctx, table, script, file, source).Analyze()
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if ctx.HasError() {
		t.Fatal("analysis reported errors")
	}

	body, err := Lower(ctx, script, stmts)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return body, ctx
}

func gtasaOpts(t *testing.T) program.Options {
	t.Helper()
	opt, err := program.Preset("gtasa")
	if err != nil {
		t.Fatal(err)
	}
	return opt
}

// names returns the instruction names in order, with "LABEL" standing
// in for label definitions.
func names(body *ir.Body) []string {
	var out []string
	for _, item := range body.Items {
		if item.Label != "" {
			out = append(out, "LABEL")
		} else {
			out = append(out, item.Instr.Name)
		}
	}
	return out
}

func assertShape(t *testing.T, body *ir.Body, want []string) {
	t.Helper()
	got := names(body)
	if len(got) != len(want) {
		t.Fatalf("shape = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("shape[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestLowerIfWithoutElse(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
IF x = 1
WAIT 0
ENDIF
`)
	assertShape(t, body, []string{
		"ANDOR",
		"IS_INT_VAR_EQUAL_TO_NUMBER",
		"GOTO_IF_FALSE",
		"WAIT",
		"LABEL",
	})
}

func TestLowerIfElse(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
IF x = 1
WAIT 0
ELSE
WAIT 1
ENDIF
`)
	assertShape(t, body, []string{
		"ANDOR",
		"IS_INT_VAR_EQUAL_TO_NUMBER",
		"GOTO_IF_FALSE",
		"WAIT",
		"GOTO",
		"LABEL", // else
		"WAIT",
		"LABEL", // end
	})
}

func TestSkipSingleIfsOmitsAndOr(t *testing.T) {
	opt := gtasaOpts(t)
	opt.SkipSingleIfs = true
	body, _ := lowerSource(t, opt, `VAR_INT x
IF x = 1
WAIT 0
ENDIF
`)
	assertShape(t, body, []string{
		"IS_INT_VAR_EQUAL_TO_NUMBER",
		"GOTO_IF_FALSE",
		"WAIT",
		"LABEL",
	})
}

func TestAndOrValues(t *testing.T) {
	tests := []struct {
		name   string
		conds  string
		expect int32
	}{
		{"two ands", "IF x = 1\nAND x = 2\n", 1},
		{"three ors", "IF x = 1\nOR x = 2\nOR x = 3\n", 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := lowerSource(t, gtasaOpts(t), "VAR_INT x\n"+tt.conds+"WAIT 0\nENDIF\n")
			first := body.Items[0].Instr
			if first.Name != "ANDOR" || first.Args[0].Int != tt.expect {
				t.Errorf("ANDOR operand = %+v, want %d", first.Args[0], tt.expect)
			}
		})
	}
}

func TestLowerWhile(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
WHILE x < 10
WAIT 0
ENDWHILE
`)
	assertShape(t, body, []string{
		"LABEL", // top
		"ANDOR",
		"IS_NUMBER_GREATER_THAN_INT_VAR",
		"GOTO_IF_FALSE",
		"WAIT",
		"GOTO",
		"LABEL", // end
	})
	// the back edge targets the top label
	top := body.Items[0].Label
	back := body.Items[5].Instr
	if back.Args[0].Label != top {
		t.Errorf("back edge targets %q, want %q", back.Args[0].Label, top)
	}
}

func TestLowerRepeat(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT i
REPEAT 5 i
WAIT 0
ENDREPEAT
`)
	assertShape(t, body, []string{
		"SET_VAR_INT", // initializer
		"LABEL",       // top
		"WAIT",
		"LABEL",               // continue target
		"ADD_VAL_TO_INT_VAR",  // i += 1
		"IS_INT_VAR_GREATER_OR_EQUAL_TO_NUMBER",
		"GOTO_IF_FALSE",
		"LABEL", // end
	})
	init := body.Items[0].Instr
	if init.Args[1].Int != 0 {
		t.Errorf("initializer value = %d, want 0", init.Args[1].Int)
	}
	test := body.Items[5].Instr
	if test.Args[1].Int != 5 {
		t.Errorf("bound = %d, want 5", test.Args[1].Int)
	}
}

func TestBreakAndContinueTargets(t *testing.T) {
	opt := gtasaOpts(t)
	opt.AllowBreakContinue = true
	body, _ := lowerSource(t, opt, `VAR_INT x
WHILE x < 10
BREAK
CONTINUE
ENDWHILE
`)
	assertShape(t, body, []string{
		"LABEL", // top
		"ANDOR",
		"IS_NUMBER_GREATER_THAN_INT_VAR",
		"GOTO_IF_FALSE",
		"GOTO", // BREAK
		"GOTO", // CONTINUE
		"GOTO", // loop back edge
		"LABEL", // end
	})
	top := body.Items[0].Label
	end := body.Items[7].Label
	if body.Items[4].Instr.Args[0].Label != end {
		t.Error("BREAK does not target the end label")
	}
	if body.Items[5].Instr.Args[0].Label != top {
		t.Error("CONTINUE does not target the loop top")
	}
}

// Scenario: switch with default and out-of-order cases, under seven
// cases total. One SWITCH_START, n=4, slots sorted ascending, three
// sentinel slots aimed at the end label.
func TestSwitchWithDefaultUnderSevenCases(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
SWITCH x
CASE 100
BREAK
CASE 200
BREAK
CASE 300
BREAK
CASE 50
BREAK
DEFAULT
BREAK
ENDSWITCH
`)
	start := body.Items[0].Instr
	if start.Name != "SWITCH_START" {
		t.Fatalf("first instruction = %s", start.Name)
	}
	if len(start.Args) != 3+2*7 {
		t.Fatalf("SWITCH_START arity = %d", len(start.Args))
	}
	if start.Args[1].Int != 4 {
		t.Errorf("n_cases = %d, want 4", start.Args[1].Int)
	}

	values := caseValues(start)
	want := []int32{50, 100, 200, 300, -1, -1, -1}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("slot %d value = %d, want %d (all: %v)", i, values[i], v, values)
		}
	}

	// sentinels point at the end label, not the default
	endLabel := body.Items[len(body.Items)-1].Label
	defaultLabel := start.Args[2].Label
	if defaultLabel == endLabel {
		t.Error("default label must be distinct when DEFAULT is present")
	}
	for slot := 4; slot < 7; slot++ {
		if got := start.Args[3+slot*2+1].Label; got != endLabel {
			t.Errorf("sentinel slot %d targets %q, want end %q", slot, got, endLabel)
		}
	}

	// no SWITCH_CONTINUED for <= 7 cases
	for _, item := range body.Items[1:] {
		if item.Instr != nil && item.Instr.Name == "SWITCH_CONTINUED" {
			t.Error("unexpected SWITCH_CONTINUED")
		}
	}
}

// Scenario: switch without default. The default label slot reuses the
// end label and four slots are sentinels.
func TestSwitchWithoutDefault(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
SWITCH x
CASE 100
BREAK
CASE 200
BREAK
CASE 50
BREAK
ENDSWITCH
`)
	start := body.Items[0].Instr
	if start.Args[1].Int != 3 {
		t.Errorf("n_cases = %d, want 3", start.Args[1].Int)
	}
	endLabel := body.Items[len(body.Items)-1].Label
	if start.Args[2].Label != endLabel {
		t.Errorf("default slot = %q, want end label %q", start.Args[2].Label, endLabel)
	}
	values := caseValues(start)
	want := []int32{50, 100, 200, -1, -1, -1, -1}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("slot %d = %d, want %d", i, values[i], v)
		}
	}
}

// Scenario: nine cases overflow into one SWITCH_CONTINUED carrying two
// cases and seven sentinels.
func TestSwitchOverflowsIntoContinued(t *testing.T) {
	source := "VAR_INT x\nSWITCH x\n"
	for i := 1; i <= 9; i++ {
		source += caseBlock(i * 100)
	}
	source += "ENDSWITCH\n"

	body, _ := lowerSource(t, gtasaOpts(t), source)
	start := body.Items[0].Instr
	contd := body.Items[1].Instr
	if start.Name != "SWITCH_START" || contd.Name != "SWITCH_CONTINUED" {
		t.Fatalf("prefix = %s, %s", start.Name, contd.Name)
	}
	if start.Args[1].Int != 9 {
		t.Errorf("n_cases = %d, want 9", start.Args[1].Int)
	}

	startValues := caseValues(start)
	for i := 0; i < 7; i++ {
		if startValues[i] != int32((i+1)*100) {
			t.Errorf("start slot %d = %d", i, startValues[i])
		}
	}

	if len(contd.Args) != 2*9 {
		t.Fatalf("SWITCH_CONTINUED arity = %d", len(contd.Args))
	}
	if contd.Args[0].Int != 800 || contd.Args[2].Int != 900 {
		t.Errorf("continued values = %d, %d", contd.Args[0].Int, contd.Args[2].Int)
	}
	sentinels := 0
	for i := 2; i < 9; i++ {
		if contd.Args[i*2].Int == -1 {
			sentinels++
		}
	}
	if sentinels != 7 {
		t.Errorf("sentinel count = %d, want 7", sentinels)
	}
}

// Case values pick their width independently: the smallest signed
// width holding each value, with sentinels pinned to int8.
func TestSwitchCaseValueWidths(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
SWITCH x
CASE 100
BREAK
CASE 200
BREAK
CASE 70000
BREAK
ENDSWITCH
`)
	start := body.Items[0].Instr
	widths := []ir.IntWidth{}
	for slot := 0; slot < 7; slot++ {
		arg := start.Args[3+slot*2]
		widths = append(widths, arg.Width.Widen(arg.Int))
	}
	want := []ir.IntWidth{ir.Width8, ir.Width16, ir.Width32, ir.Width8, ir.Width8, ir.Width8, ir.Width8}
	for i := range want {
		if widths[i] != want[i] {
			t.Errorf("slot %d width = %d, want %d", i, widths[i], want[i])
		}
	}
}

// Default body position follows source order.
func TestSwitchDefaultInMiddle(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `VAR_INT x
SWITCH x
CASE 1
BREAK
DEFAULT
BREAK
CASE 2
BREAK
ENDSWITCH
`)
	start := body.Items[0].Instr
	defaultLabel := start.Args[2].Label

	var labelOrder []string
	for _, item := range body.Items {
		if item.Label != "" {
			labelOrder = append(labelOrder, item.Label)
		}
	}
	// case 1 body, then default body, then case 2 body, then end
	if len(labelOrder) != 4 || labelOrder[1] != defaultLabel {
		t.Errorf("label order = %v, default = %q", labelOrder, defaultLabel)
	}
}

func TestScopedLabelsLowerThroughScopes(t *testing.T) {
	body, _ := lowerSource(t, gtasaOpts(t), `{
LVAR_INT a
a = 1
inner:
GOTO inner
}
`)
	assertShape(t, body, []string{
		"SET_LVAR_INT",
		"LABEL",
		"GOTO",
	})
}

func caseValues(instr *ir.Instr) []int32 {
	var out []int32
	for slot := 0; slot < (len(instr.Args)-3)/2; slot++ {
		out = append(out, instr.Args[3+slot*2].Int)
	}
	return out
}

func caseBlock(value int) string {
	return "CASE " + strconv.Itoa(value) + "\nBREAK\n"
}
