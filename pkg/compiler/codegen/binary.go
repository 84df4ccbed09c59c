package codegen

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// Operand datatype discriminators of the binary format.
const (
	tagInt32     = 0x01
	tagGlobalVar = 0x02
	tagLocalVar  = 0x03
	tagInt8      = 0x04
	tagInt16     = 0x05
	tagFloat     = 0x06
	tagTextLabel = 0x09
	tagString    = 0x0E
)

// notFlag is set on the opcode when the condition is negated.
const notFlag = 0x8000

// Program is the input of the binary emitter: the lowered bodies in
// emission order plus the variable and model layout.
type Program struct {
	GlobalWords uint32
	Models      []string
	Bodies      []*ir.Body
}

// Output is the emitted binary image set.
type Output struct {
	// Main is the .scm image: header, main script, subscripts and
	// mission scripts.
	Main []byte
	// Streamed maps script names to their standalone images
	// (San Andreas only).
	Streamed map[string][]byte
}

// binaryEmitter lays out and writes the binary form in two passes: the
// first assigns instruction sizes and label positions, the second
// writes bytes. The layout is little-endian throughout.
type binaryEmitter struct {
	ctx  *program.Context
	prog *Program
}

// EmitSCM produces the binary image set for the lowered program.
func EmitSCM(ctx *program.Context, prog *Program) (*Output, error) {
	e := &binaryEmitter{ctx: ctx, prog: prog}
	return e.emit()
}

// bodyLayout is the pass-1 result for one body.
type bodyLayout struct {
	body *ir.Body
	// itemOffsets holds the byte offset of every item, relative to the
	// body start; the trailing element is the body size.
	itemOffsets []int32
	size        int32
	base        int32 // absolute offset within its file
	local       bool  // label operands are body-relative
	negate      bool  // ... and negated (missions/streamed)
}

func (e *binaryEmitter) emit() (*Output, error) {
	var mains, missions, streamed []*bodyLayout
	for _, body := range e.prog.Bodies {
		l := e.layout(body)
		switch body.Script.Kind {
		case symtable.KindMission:
			missions = append(missions, l)
		case symtable.KindStreamed:
			streamed = append(streamed, l)
		default:
			mains = append(mains, l)
		}
	}

	cleo := e.ctx.Opt.Cleo != nil
	local := e.ctx.Opt.UseLocalOffsets

	// Streamed scripts live in their own files and are laid out from
	// offset zero.
	for _, l := range streamed {
		l.local = true
		l.negate = local
		l.body.Script.SizeOnDisk = uint32(l.size)
	}

	headerSize := int32(0)
	if !e.ctx.Opt.Headerless && !cleo && e.ctx.Opt.Header != program.HeaderNone {
		headerSize = e.headerSize(len(missions), len(streamed))
	}

	offset := headerSize
	for _, l := range mains {
		l.base = offset
		if cleo {
			l.local = true
		}
		offset += l.size
		l.body.Script.SizeOnDisk = uint32(l.size)
	}
	mainSize := offset

	missionOffsets := make([]int32, 0, len(missions))
	largestMission := int32(0)
	for _, l := range missions {
		l.base = offset
		l.local = local
		l.negate = local
		missionOffsets = append(missionOffsets, l.base)
		if l.size > largestMission {
			largestMission = l.size
		}
		offset += l.size
		l.body.Script.SizeOnDisk = uint32(l.size)
	}

	var buf bytes.Buffer
	if headerSize > 0 {
		e.writeHeader(&buf, headerInfo{
			globalWords:    e.prog.GlobalWords,
			models:         e.prog.Models,
			mainSize:       mainSize,
			largestMission: largestMission,
			missionOffsets: missionOffsets,
			streamed:       streamed,
		})
	}

	for _, l := range append(append([]*bodyLayout{}, mains...), missions...) {
		if err := e.writeBody(&buf, l); err != nil {
			return nil, err
		}
	}

	out := &Output{Main: buf.Bytes()}
	if len(streamed) > 0 {
		out.Streamed = make(map[string][]byte, len(streamed))
		for _, l := range streamed {
			var sbuf bytes.Buffer
			if err := e.writeBody(&sbuf, l); err != nil {
				return nil, err
			}
			out.Streamed[l.body.Script.Name] = sbuf.Bytes()
		}
	}
	return out, nil
}

// layout is the first pass: per-item offsets and total size.
func (e *binaryEmitter) layout(body *ir.Body) *bodyLayout {
	l := &bodyLayout{body: body, itemOffsets: make([]int32, 0, len(body.Items)+1)}
	offset := int32(0)
	for _, item := range body.Items {
		l.itemOffsets = append(l.itemOffsets, offset)
		if item.Instr != nil {
			offset += e.instrSize(item.Instr)
		}
	}
	l.itemOffsets = append(l.itemOffsets, offset)
	l.size = offset
	return l
}

func (e *binaryEmitter) instrSize(instr *ir.Instr) int32 {
	size := int32(2)
	for _, op := range instr.Args {
		size += e.operandSize(op)
	}
	return size
}

func (e *binaryEmitter) operandSize(op ir.Operand) int32 {
	switch op.Kind {
	case ir.OperandInt:
		switch op.Width.Widen(op.Int) {
		case ir.Width8:
			return 1 + 1
		case ir.Width16:
			return 1 + 2
		default:
			return 1 + 4
		}
	case ir.OperandFloat:
		// zero floats shrink to an int8 zero; the game coerces
		if e.ctx.Opt.OptimizeZeroFloats && op.Float == 0 {
			return 1 + 1
		}
		return 1 + 4
	case ir.OperandVar:
		return 1 + 2
	case ir.OperandTextLabel:
		return 1 + 8
	case ir.OperandString:
		return 1 + 1 + int32(len(op.Text))
	case ir.OperandLabel:
		return 1 + 4
	default:
		return 1
	}
}

// writeBody is the second pass for one body: resolve its labels and
// serialize every instruction.
func (e *binaryEmitter) writeBody(buf *bytes.Buffer, l *bodyLayout) error {
	labels := make(map[string]int32)
	for key, index := range l.body.Labels() {
		pos := l.itemOffsets[index]
		if !l.local {
			pos += l.base
		}
		if l.negate {
			pos = -pos
		}
		labels[key] = pos
	}

	for _, item := range l.body.Items {
		if item.Instr == nil {
			continue
		}
		if err := e.writeInstr(buf, item.Instr, labels); err != nil {
			return err
		}
	}
	return nil
}

func (e *binaryEmitter) writeInstr(buf *bytes.Buffer, instr *ir.Instr, labels map[string]int32) error {
	opcode := instr.Opcode
	if instr.Not {
		opcode |= notFlag
	}
	writeU16(buf, opcode)

	for _, op := range instr.Args {
		switch op.Kind {
		case ir.OperandInt:
			switch op.Width.Widen(op.Int) {
			case ir.Width8:
				buf.WriteByte(tagInt8)
				buf.WriteByte(byte(int8(op.Int)))
			case ir.Width16:
				buf.WriteByte(tagInt16)
				writeU16(buf, uint16(int16(op.Int)))
			default:
				buf.WriteByte(tagInt32)
				writeU32(buf, uint32(op.Int))
			}
		case ir.OperandFloat:
			if e.ctx.Opt.OptimizeZeroFloats && op.Float == 0 {
				buf.WriteByte(tagInt8)
				buf.WriteByte(0)
				continue
			}
			buf.WriteByte(tagFloat)
			writeU32(buf, math.Float32bits(op.Float))
		case ir.OperandVar:
			if op.Var.IsGlobalStorage() {
				buf.WriteByte(tagGlobalVar)
				writeU16(buf, uint16(op.Var.Index*4))
			} else {
				buf.WriteByte(tagLocalVar)
				writeU16(buf, uint16(op.Var.Index))
			}
		case ir.OperandTextLabel:
			buf.WriteByte(tagTextLabel)
			var name [8]byte
			copy(name[:], op.Text)
			buf.Write(name[:])
		case ir.OperandString:
			buf.WriteByte(tagString)
			buf.WriteByte(byte(len(op.Text)))
			buf.WriteString(op.Text)
		case ir.OperandLabel:
			target, ok := labels[op.Label]
			if !ok {
				return e.ctx.Internal(program.NoContext(), "unresolved label '%s'", op.Label)
			}
			buf.WriteByte(tagInt32)
			writeU32(buf, uint32(target))
		default:
			return e.ctx.Internal(program.NoContext(), "unhandled operand kind %d", op.Kind)
		}
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
