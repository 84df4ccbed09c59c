package codegen

import (
	"bytes"

	"github.com/gtamodding/gta3sc/pkg/compiler/program"
)

// The .scm header is a chain of segments, each led by a GOTO over its
// payload so the game's loader can execute straight through it:
//
//	segment 0: global variable space (word count * 4 bytes, zeroed)
//	segment 1: model name table (count + 24-byte records)
//	segment 2: script info (main size, largest mission size,
//	           mission count, mission offset table)
//	segment 3: streamed script table (San Andreas only)
//
// The layout is a compatibility contract with the game loaders; sizes
// below are fixed by it.
const (
	segJumpSize      = 2 + 1 + 4 // GOTO opcode + int32 operand
	modelNameSize    = 24
	streamedNameSize = 20
)

// headerInfo carries everything the header needs, computed by pass 1.
type headerInfo struct {
	globalWords    uint32
	models         []string
	mainSize       int32
	largestMission int32
	missionOffsets []int32
	streamed       []*bodyLayout
}

// headerSize computes the byte size of the header for the current
// option set, before anything is written.
func (e *binaryEmitter) headerSize(missionCount, streamedCount int) int32 {
	size := int32(0)
	// globals segment
	size += segJumpSize + int32(e.prog.GlobalWords)*4
	// models segment
	size += segJumpSize + 4 + int32(len(e.prog.Models))*modelNameSize
	// script info segment
	size += segJumpSize + 4 + 4 + 2 + 2 + int32(missionCount)*4
	// streamed scripts segment
	if e.ctx.Opt.Header == program.HeaderGTASA && e.ctx.Opt.StreamedScripts {
		size += segJumpSize + 4 + int32(streamedCount)*(streamedNameSize+4+4)
	}
	return size
}

// writeHeader serializes the segment chain.
func (e *binaryEmitter) writeHeader(buf *bytes.Buffer, info headerInfo) {
	start := int32(buf.Len())

	// segment 0: global variable space
	next := start + segJumpSize + int32(info.globalWords)*4
	writeSegJump(buf, next)
	buf.Write(make([]byte, info.globalWords*4))

	// segment 1: model table
	next += segJumpSize + 4 + int32(len(info.models))*modelNameSize
	writeSegJump(buf, next)
	writeU32(buf, uint32(len(info.models)))
	for _, model := range info.models {
		var name [modelNameSize]byte
		copy(name[:], model)
		buf.Write(name[:])
	}

	// segment 2: script info
	next += segJumpSize + 4 + 4 + 2 + 2 + int32(len(info.missionOffsets))*4
	writeSegJump(buf, next)
	writeU32(buf, uint32(info.mainSize))
	writeU32(buf, uint32(info.largestMission))
	writeU16(buf, uint16(len(info.missionOffsets)))
	writeU16(buf, 0)
	for _, off := range info.missionOffsets {
		writeU32(buf, uint32(off))
	}

	// segment 3: streamed script table (San Andreas only)
	if e.ctx.Opt.Header == program.HeaderGTASA && e.ctx.Opt.StreamedScripts {
		next += segJumpSize + 4 + int32(len(info.streamed))*(streamedNameSize+4+4)
		writeSegJump(buf, next)
		writeU32(buf, uint32(len(info.streamed)))
		for _, l := range info.streamed {
			var name [streamedNameSize]byte
			copy(name[:], l.body.Script.Name)
			buf.Write(name[:])
			writeU32(buf, 0) // offset within its own file
			writeU32(buf, uint32(l.size))
		}
	}
}

// writeSegJump writes the GOTO instruction leading a segment.
func writeSegJump(buf *bytes.Buffer, target int32) {
	writeU16(buf, 0x0002)
	buf.WriteByte(tagInt32)
	writeU32(buf, uint32(target))
}
