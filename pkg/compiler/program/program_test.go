package program

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
)

func newTestContext() (*Context, *bytes.Buffer) {
	ctx := NewContext(NewOptions(), commands.DefaultTable(commands.GameGTASA), nil)
	var buf bytes.Buffer
	ctx.SetOutput(&buf)
	return ctx, &buf
}

func TestDiagnosticFormat(t *testing.T) {
	ctx, buf := newTestContext()

	tok := lexer.Token{Line: 2, Column: 5}
	loc := At("main.sc", tok, "WAIT 0\nBAD STUFF HERE\n")
	ctx.Error(loc, "unknown command '%s'", "STUFF")

	got := buf.String()
	want := "main.sc:2:5: error: unknown command 'STUFF'\n BAD STUFF HERE\n     ^\n"
	if got != want {
		t.Errorf("diagnostic =\n%q\nwant\n%q", got, want)
	}
}

func TestDiagnosticWithoutContext(t *testing.T) {
	ctx, buf := newTestContext()
	ctx.Warning(NoContext(), "something odd")
	if got := buf.String(); got != "gta3sc: warning: something odd\n" {
		t.Errorf("diagnostic = %q", got)
	}
}

func TestCounters(t *testing.T) {
	ctx, _ := newTestContext()
	if ctx.HasError() {
		t.Fatal("fresh context reports errors")
	}
	ctx.Note(NoContext(), "fyi")
	ctx.Warning(NoContext(), "hm")
	if ctx.HasError() {
		t.Error("notes and warnings must not fail the build")
	}
	ctx.Error(NoContext(), "bad")
	if !ctx.HasError() || ctx.ErrorCount() != 1 {
		t.Error("error not counted")
	}
}

func TestFatalReturnsHalt(t *testing.T) {
	ctx, buf := newTestContext()
	err := ctx.Fatal(InFile("main.sc"), "cannot continue")
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("Fatal returned %v, want ErrHalt", err)
	}
	if ctx.FatalCount() != 1 {
		t.Error("fatal not counted")
	}
	if !strings.Contains(buf.String(), "main.sc: fatal error: cannot continue") {
		t.Errorf("message = %q", buf.String())
	}
}

func TestInternalErrorIsNeverSilent(t *testing.T) {
	ctx, buf := newTestContext()
	_ = ctx.Internal(NoContext(), "broken invariant")
	if !strings.Contains(buf.String(), "internal_error: broken invariant") {
		t.Errorf("message = %q", buf.String())
	}
	if !ctx.HasError() {
		t.Error("internal error must fail the build")
	}
}

func TestTooManyErrorsCutoff(t *testing.T) {
	ctx, buf := newTestContext()
	for i := 0; i < tooManyErrors+10; i++ {
		ctx.Error(NoContext(), "err %d", i)
	}
	if !ctx.ShouldHalt() {
		t.Error("cutoff not reached")
	}
	if ctx.FatalCount() != 1 {
		t.Errorf("fatal count = %d, want 1", ctx.FatalCount())
	}
	if !strings.Contains(buf.String(), "too many errors") {
		t.Error("cutoff message missing")
	}
}

func TestConcurrentDiagnosticsKeepLinesWhole(t *testing.T) {
	ctx, buf := newTestContext()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ctx.Warning(NoContext(), "worker message xyzzy")
			}
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if line != "gta3sc: warning: worker message xyzzy" {
			t.Fatalf("interleaved line: %q", line)
		}
	}
	if ctx.WarnCount() != 160 {
		t.Errorf("warn count = %d", ctx.WarnCount())
	}
}

func TestSupportedCommand(t *testing.T) {
	ctx, _ := newTestContext()
	cmd, err := ctx.SupportedCommand(NoContext(), "GOTO")
	if err != nil || cmd.Opcode != 0x0002 {
		t.Fatalf("GOTO = %v, %v", cmd, err)
	}

	gta3 := NewContext(NewOptions(), commands.DefaultTable(commands.GameGTA3), nil)
	gta3.SetOutput(&bytes.Buffer{})
	if _, err := gta3.SupportedCommand(NoContext(), "SWITCH_START"); !errors.Is(err, ErrHalt) {
		t.Errorf("unsupported command should be fatal, got %v", err)
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		config  string
		header  HeaderVersion
		locals  uint32
		fswitch bool
	}{
		{"gta3", HeaderGTA3, 16, false},
		{"gtavc", HeaderGTAVC, 16, false},
		{"gtasa", HeaderGTASA, 32, true},
	}
	for _, tt := range tests {
		opt, err := Preset(tt.config)
		if err != nil {
			t.Fatalf("Preset(%s): %v", tt.config, err)
		}
		if opt.Header != tt.header || opt.LocalVarLimit != tt.locals || opt.FSwitch != tt.fswitch {
			t.Errorf("Preset(%s) = %+v", tt.config, opt)
		}
		if !opt.IsDefined(strings.ToUpper(tt.config)) {
			t.Errorf("Preset(%s) should define %s", tt.config, strings.ToUpper(tt.config))
		}
	}
	if _, err := Preset("gta4"); err == nil {
		t.Error("unknown config accepted")
	}
}

func TestDefines(t *testing.T) {
	opt := NewOptions()
	opt.Define("FOO")
	opt.Define("BAR", "42")
	if !opt.IsDefined("foo") {
		t.Error("defines must be case-insensitive")
	}
	if v, _ := opt.DefineValue("BAR"); v != "42" {
		t.Errorf("BAR = %q", v)
	}
	opt.Undefine("FOO")
	if opt.IsDefined("FOO") {
		t.Error("Undefine had no effect")
	}
}
