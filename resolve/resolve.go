// Package resolve computes the effective address and/or fetched value for
// a decoded instruction's addressing mode, along with whether indexing
// crossed a page boundary. It is the 6502-specific-quirks layer: zero-page
// wrap, the indirect-JMP page-boundary bug, and INDX/INDY pointer
// construction all live here.
package resolve

import (
	"github.com/sixfiveohtwo/core/decode"
	"github.com/sixfiveohtwo/core/memory"
)

// Registers is the subset of processor state the resolver needs to turn
// an Instruction into an address/value. It's a narrow view rather than a
// dependency on the cpu package, so resolve has no import cycle back to
// cpu.
type Registers struct {
	X  uint8
	Y  uint8
	PC uint16
}

// OperandContext is the resolver's output: the effective address (for
// memory-targeting instructions), the fetched value (for value-consuming
// instructions), and whether the addressing mode's indexing crossed a
// page boundary.
type OperandContext struct {
	EffectiveAddr *uint16
	Value         *uint8
	PageCrossed   bool
}

func addrOf(a uint16) *uint16 { return &a }
func valOf(v uint8) *uint8    { return &v }

// Resolve computes the OperandContext for instr given the current
// registers and bus. For write-only instructions (STA/STX/STY) the
// caller must pass write=true so the resolver skips the speculative read
// that a load or RMW instruction would otherwise perform.
func Resolve(instr decode.Instruction, regs Registers, bus memory.Bus, write bool) OperandContext {
	switch instr.Mode {
	case decode.Implied, decode.Accumulator:
		return OperandContext{}

	case decode.Immediate:
		return OperandContext{Value: valOf(instr.OperandByte())}

	case decode.ZeroPage:
		addr := uint16(instr.OperandByte())
		ctx := OperandContext{EffectiveAddr: addrOf(addr)}
		if !write {
			ctx.Value = valOf(bus.Read(addr))
		}
		return ctx

	case decode.ZeroPageX:
		return resolveZeroPageIndexed(instr, bus, regs.X, write)

	case decode.ZeroPageY:
		return resolveZeroPageIndexed(instr, bus, regs.Y, write)

	case decode.Relative:
		// Signed offset, sign-extended from 8 to 16 bits. The target is
		// PC + instruction length + offset; computed here but only
		// applied by the executor if the branch is taken.
		offset := int16(int8(instr.OperandByte()))
		target := regs.PC + uint16(instr.Length) + uint16(offset)
		return OperandContext{EffectiveAddr: addrOf(target)}

	case decode.Absolute:
		addr := instr.OperandWord()
		ctx := OperandContext{EffectiveAddr: addrOf(addr)}
		if !write {
			ctx.Value = valOf(bus.Read(addr))
		}
		return ctx

	case decode.AbsoluteX:
		return resolveAbsoluteIndexed(instr, bus, regs.X, write)

	case decode.AbsoluteY:
		return resolveAbsoluteIndexed(instr, bus, regs.Y, write)

	case decode.Indirect:
		// JMP-only: the indirect-JMP page-boundary bug. If the pointer
		// sits at $xxFF, the high byte is fetched from $xx00, not from
		// the next page.
		ptr := instr.OperandWord()
		hiAddr := (ptr & 0xFF00) | uint16(uint8(ptr&0x00FF)+1)
		lo := bus.Read(ptr)
		hi := bus.Read(hiAddr)
		addr := uint16(lo) | uint16(hi)<<8
		return OperandContext{EffectiveAddr: addrOf(addr)}

	case decode.IndexedIndirect:
		ptr := uint8(instr.OperandByte() + regs.X)
		lo := bus.Read(uint16(ptr))
		hi := bus.Read(uint16(uint8(ptr + 1)))
		addr := uint16(lo) | uint16(hi)<<8
		ctx := OperandContext{EffectiveAddr: addrOf(addr)}
		if !write {
			ctx.Value = valOf(bus.Read(addr))
		}
		return ctx

	case decode.IndirectIndexed:
		zp := instr.OperandByte()
		lo := bus.Read(uint16(zp))
		hi := bus.Read(uint16(uint8(zp + 1)))
		base := uint16(lo) | uint16(hi)<<8
		addr := base + uint16(regs.Y)
		ctx := OperandContext{
			EffectiveAddr: addrOf(addr),
			PageCrossed:   (addr & 0xFF00) != (base & 0xFF00),
		}
		if !write {
			ctx.Value = valOf(bus.Read(addr))
		}
		return ctx
	}
	return OperandContext{}
}

// resolveZeroPageIndexed implements ZeroPageX/ZeroPageY: the index wraps
// within the zero page and never crosses into the stack page.
func resolveZeroPageIndexed(instr decode.Instruction, bus memory.Bus, reg uint8, write bool) OperandContext {
	addr := uint16(instr.OperandByte() + reg)
	ctx := OperandContext{EffectiveAddr: addrOf(addr)}
	if !write {
		ctx.Value = valOf(bus.Read(addr))
	}
	return ctx
}

// resolveAbsoluteIndexed implements AbsoluteX/AbsoluteY, including
// page-cross detection against the unindexed base address.
func resolveAbsoluteIndexed(instr decode.Instruction, bus memory.Bus, reg uint8, write bool) OperandContext {
	base := instr.OperandWord()
	addr := base + uint16(reg)
	ctx := OperandContext{
		EffectiveAddr: addrOf(addr),
		PageCrossed:   (addr & 0xFF00) != (base & 0xFF00),
	}
	if !write {
		ctx.Value = valOf(bus.Read(addr))
	}
	return ctx
}
