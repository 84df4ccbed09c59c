package codegen

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

func testContext(t *testing.T, config string) *program.Context {
	t.Helper()
	opt, err := program.Preset(config)
	if err != nil {
		t.Fatal(err)
	}
	opt.Headerless = true
	ctx := program.NewContext(opt, commands.DefaultTable(opt.Header.Game()), nil)
	ctx.SetOutput(&bytes.Buffer{})
	return ctx
}

func emitOne(t *testing.T, ctx *program.Context, body *ir.Body) []byte {
	t.Helper()
	out, err := EmitSCM(ctx, &Program{Bodies: []*ir.Body{body}})
	require.NoError(t, err)
	return out.Main
}

func TestOperandEncodings(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(100)}})
	body.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(300)}})
	body.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(70000)}})

	got := emitOne(t, ctx, body)
	want := []byte{
		0x01, 0x00, 0x04, 100, // WAIT 100i8
		0x01, 0x00, 0x05, 0x2C, 0x01, // WAIT 300i16
		0x01, 0x00, 0x01, 0x70, 0x11, 0x01, 0x00, // WAIT 70000i32
	}
	require.Equal(t, want, got)
}

func TestVariableEncodings(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	// global at word index 2 serializes as byte offset 8
	body.Emit(&ir.Instr{Name: "SET_VAR_INT", Opcode: 0x0004, Args: []ir.Operand{ir.Var(gvar(2)), ir.Int(1)}})
	body.Emit(&ir.Instr{Name: "SET_LVAR_INT", Opcode: 0x0006, Args: []ir.Operand{ir.Var(lvar(3)), ir.Int(1)}})

	got := emitOne(t, ctx, body)
	want := []byte{
		0x04, 0x00, 0x02, 0x08, 0x00, 0x04, 0x01,
		0x06, 0x00, 0x03, 0x03, 0x00, 0x04, 0x01,
	}
	require.Equal(t, want, got)
}

func TestFloatEncoding(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "SET_VAR_FLOAT", Opcode: 0x0005, Args: []ir.Operand{ir.Var(gvar(0)), ir.Float(1.5)}})

	got := emitOne(t, ctx, body)
	require.Equal(t, byte(0x06), got[5])
	bits := binary.LittleEndian.Uint32(got[6:10])
	require.Equal(t, float32(1.5), math.Float32frombits(bits))
}

func TestTextLabelAndStringEncodings(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "SCRIPT_NAME", Opcode: 0x03A4, Args: []ir.Operand{ir.TextLabel("INTRO")}})
	body.Emit(&ir.Instr{Name: "SAVE_STRING_TO_DEBUG_FILE", Opcode: 0x05B6, Args: []ir.Operand{ir.String("hey")}})

	got := emitOne(t, ctx, body)
	// text label: tag + 8 zero-padded bytes
	require.Equal(t, []byte{0xA4, 0x03, 0x09, 'I', 'N', 'T', 'R', 'O', 0, 0, 0}, got[:11])
	// string: tag + length byte + payload
	require.Equal(t, []byte{0xB6, 0x05, 0x0E, 3, 'h', 'e', 'y'}, got[11:])
}

func TestOptimizeZeroFloats(t *testing.T) {
	opt, err := program.Preset("gtavc")
	require.NoError(t, err)
	opt.Headerless = true
	opt.OptimizeZeroFloats = true
	ctx := program.NewContext(opt, commands.DefaultTable(commands.GameGTAVC), nil)
	ctx.SetOutput(&bytes.Buffer{})

	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "SET_VAR_FLOAT", Opcode: 0x0005, Args: []ir.Operand{
		ir.Var(&symtable.Variable{Class: symtable.ClassGlobal, Type: symtable.TypeFloat}),
		ir.Float(0),
	}})

	out, err := EmitSCM(ctx, &Program{Bodies: []*ir.Body{body}})
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x00, 0x02, 0x00, 0x00, 0x04, 0x00}, out.Main)
}

func TestNotSetsOpcodeHighBit(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "IS_INT_VAR_EQUAL_TO_NUMBER", Opcode: 0x0038, Not: true,
		Args: []ir.Operand{ir.Var(gvar(0)), ir.Int(1)}})

	got := emitOne(t, ctx, body)
	opcode := binary.LittleEndian.Uint16(got[:2])
	require.Equal(t, uint16(0x8038), opcode)
}

func TestLabelResolvesToAbsoluteOffset(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "GOTO", Opcode: 0x0002, Args: []ir.Operand{ir.LabelRef("TARGET")}})
	body.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(0)}})
	body.Label("TARGET")
	body.Emit(&ir.Instr{Name: "RETURN", Opcode: 0x0051})

	got := emitOne(t, ctx, body)
	// GOTO is 7 bytes, WAIT is 4; TARGET sits at offset 11
	target := int32(binary.LittleEndian.Uint32(got[3:7]))
	require.Equal(t, int32(11), target)
}

func TestUnresolvedLabelFails(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "GOTO", Opcode: 0x0002, Args: []ir.Operand{ir.LabelRef("MISSING")}})

	_, err := EmitSCM(ctx, &Program{Bodies: []*ir.Body{body}})
	require.ErrorIs(t, err, program.ErrHalt)
	require.NotZero(t, ctx.FatalCount())
}

func TestMissionUsesNegatedLocalOffsets(t *testing.T) {
	opt, err := program.Preset("gtasa")
	require.NoError(t, err)
	opt.Headerless = true
	opt.UseLocalOffsets = true
	ctx := program.NewContext(opt, commands.DefaultTable(commands.GameGTASA), nil)
	ctx.SetOutput(&bytes.Buffer{})

	mainBody := &ir.Body{Script: mainScript()}
	mainBody.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(0)}})

	mission := &ir.Body{Script: &symtable.Script{Name: "MISS1", Kind: symtable.KindMission}}
	mission.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(0)}})
	mission.Label("LOOP")
	mission.Emit(&ir.Instr{Name: "GOTO", Opcode: 0x0002, Args: []ir.Operand{ir.LabelRef("LOOP")}})

	out, err := EmitSCM(ctx, &Program{Bodies: []*ir.Body{mainBody, mission}})
	require.NoError(t, err)

	// main WAIT (4 bytes), mission WAIT (4), then GOTO at mission
	// offset 4 whose operand is the negated local offset of LOOP
	gotoOperand := int32(binary.LittleEndian.Uint32(out.Main[4+4+3 : 4+4+7]))
	require.Equal(t, int32(-4), gotoOperand)
}

func TestStreamedScriptsAreSeparateImages(t *testing.T) {
	ctx := testContext(t, "gtasa")
	mainBody := &ir.Body{Script: mainScript()}
	mainBody.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(0)}})

	str := &ir.Body{Script: &symtable.Script{Name: "AMBUL", Kind: symtable.KindStreamed}}
	str.Emit(&ir.Instr{Name: "RETURN", Opcode: 0x0051})

	out, err := EmitSCM(ctx, &Program{Bodies: []*ir.Body{mainBody, str}})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x00, 0x04, 0x00}, out.Main)
	require.Equal(t, []byte{0x51, 0x00}, out.Streamed["AMBUL"])
}

func TestHeaderLayout(t *testing.T) {
	opt, err := program.Preset("gtasa")
	require.NoError(t, err)
	opt.StreamedScripts = true
	ctx := program.NewContext(opt, commands.DefaultTable(commands.GameGTASA), nil)
	ctx.SetOutput(&bytes.Buffer{})

	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "WAIT", Opcode: 0x0001, Args: []ir.Operand{ir.Int(0)}})

	out, err := EmitSCM(ctx, &Program{
		GlobalWords: 2,
		Models:      []string{"INFERNUS"},
		Bodies:      []*ir.Body{body},
	})
	require.NoError(t, err)

	image := out.Main
	// segment 0: jump over 8 bytes of globals
	require.Equal(t, []byte{0x02, 0x00, 0x01}, image[:3])
	seg1 := int32(binary.LittleEndian.Uint32(image[3:7]))
	require.Equal(t, int32(7+8), seg1)
	require.Equal(t, make([]byte, 8), image[7:15])

	// segment 1: model count then one 24-byte record
	require.Equal(t, []byte{0x02, 0x00, 0x01}, image[seg1:seg1+3])
	count := binary.LittleEndian.Uint32(image[seg1+7 : seg1+11])
	require.Equal(t, uint32(1), count)
	require.Equal(t, byte('I'), image[seg1+11])

	// segment 2 starts right after the model record
	seg2 := int32(binary.LittleEndian.Uint32(image[seg1+3 : seg1+7]))
	require.Equal(t, seg1+7+4+24, seg2)

	// main size covers header plus the 4-byte body
	mainSize := binary.LittleEndian.Uint32(image[seg2+7 : seg2+11])
	require.Equal(t, uint32(len(image)), mainSize)

	// the body is the last 4 bytes
	require.Equal(t, []byte{0x01, 0x00, 0x04, 0x00}, image[len(image)-4:])
}

func TestHeaderlessOmitsHeader(t *testing.T) {
	ctx := testContext(t, "gtasa")
	body := &ir.Body{Script: mainScript()}
	body.Emit(&ir.Instr{Name: "RETURN", Opcode: 0x0051})

	got := emitOne(t, ctx, body)
	require.Equal(t, []byte{0x51, 0x00}, got)
}

func TestCleoIsHeaderlessAndLocal(t *testing.T) {
	opt, err := program.Preset("gtasa")
	require.NoError(t, err)
	version := uint8(4)
	opt.Cleo = &version
	ctx := program.NewContext(opt, commands.DefaultTable(commands.GameGTASA), nil)
	ctx.SetOutput(&bytes.Buffer{})

	body := &ir.Body{Script: mainScript()}
	body.Label("TOP")
	body.Emit(&ir.Instr{Name: "GOTO", Opcode: 0x0002, Args: []ir.Operand{ir.LabelRef("TOP")}})

	out, err := EmitSCM(ctx, &Program{Bodies: []*ir.Body{body}})
	require.NoError(t, err)
	// no header, label offsets relative to the script start
	require.Equal(t, []byte{0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}, out.Main)
}
