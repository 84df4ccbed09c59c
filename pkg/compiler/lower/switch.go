package lower

import (
	"sort"

	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/sema"
)

// The target instruction pair packs case tables into fixed-width
// payloads: SWITCH_START carries seven (value, label) slots next to the
// discriminant, case count and default label; each SWITCH_CONTINUED
// carries nine more. Unused trailing slots of the last instruction are
// filled with (-1i8, @end) sentinel pairs.
const (
	startSlots    = 7
	continueSlots = 9
)

// sentinelValue fills unused case slots.
const sentinelValue = -1

type caseSlot struct {
	value int32
	label string
}

// lowerSwitch emits the dispatch instructions followed by the case
// bodies in source order. BREAK inside a body jumps to the end label.
func (l *Lowerer) lowerSwitch(stmt *sema.Stmt) error {
	sw := stmt.Switch

	start, err := l.command("SWITCH_START")
	if err != nil {
		return err
	}
	cont, err := l.command("SWITCH_CONTINUED")
	if err != nil {
		return err
	}

	endLabel := l.newLabel()
	defaultLabel := endLabel
	if sw.HasDefault {
		defaultLabel = l.newLabel()
	}

	// One label per case, minted in source order; the dispatch table
	// is packed in ascending value order.
	caseLabels := make([]string, len(sw.Cases))
	for i := range sw.Cases {
		caseLabels[i] = l.newLabel()
	}
	slots := make([]caseSlot, len(sw.Cases))
	for i, c := range sw.Cases {
		slots[i] = caseSlot{value: c.Value, label: caseLabels[i]}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].value < slots[j].value })

	// SWITCH_START discriminant, n, default, case0..case6
	nCases := len(slots)
	args := []ir.Operand{
		ir.Var(sw.Var.Var),
		ir.Int(int32(nCases)),
		ir.LabelRef(defaultLabel),
	}
	args = appendSlots(args, slots, startSlots, endLabel)
	l.body.Emit(&ir.Instr{Name: start.Name, Opcode: start.Opcode, Args: args})

	// ceil((n-7)/9) SWITCH_CONTINUED instructions for the overflow.
	for rest := slots[min(nCases, startSlots):]; len(rest) > 0; rest = rest[min(len(rest), continueSlots):] {
		cargs := appendSlots(nil, rest, continueSlots, endLabel)
		l.body.Emit(&ir.Instr{Name: cont.Name, Opcode: cont.Opcode, Args: cargs})
	}

	// Case bodies in source order, the default body at its source
	// position. Analysis guarantees no body falls through.
	l.targets = append(l.targets, target{breakLabel: endLabel})
	defer func() { l.targets = l.targets[:len(l.targets)-1] }()

	emitDefault := func() error {
		if !sw.HasDefault {
			return nil
		}
		l.body.Label(defaultLabel)
		return l.block(sw.Default)
	}

	for i, c := range sw.Cases {
		if sw.HasDefault && sw.DefaultAfter == i {
			if err := emitDefault(); err != nil {
				return err
			}
		}
		l.body.Label(caseLabels[i])
		if err := l.block(c.Body); err != nil {
			return err
		}
	}
	if sw.HasDefault && sw.DefaultAfter >= len(sw.Cases) {
		if err := emitDefault(); err != nil {
			return err
		}
	}

	l.body.Label(endLabel)
	return nil
}

// appendSlots packs up to width case slots onto args, padding with
// sentinel pairs. Each case value is encoded in the smallest width
// holding it; the sentinel is pinned to int8.
func appendSlots(args []ir.Operand, slots []caseSlot, width int, endLabel string) []ir.Operand {
	for i := 0; i < width; i++ {
		if i < len(slots) {
			s := slots[i]
			args = append(args, ir.IntW(s.value, ir.SmallestWidth(s.value)), ir.LabelRef(s.label))
		} else {
			args = append(args, ir.IntW(sentinelValue, ir.Width8), ir.LabelRef(endLabel))
		}
	}
	return args
}
