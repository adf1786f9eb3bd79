// Package cpu implements the MOS 6502 fetch-decode-execute core: the
// Processor state and the Executor from the system design, built on top
// of the decode and resolve packages. Processor.Step is the public entry
// point; it runs exactly one instruction to completion and reports the
// number of cycles it consumed.
package cpu

import (
	"fmt"
	"log"

	"github.com/sixfiveohtwo/core/decode"
	"github.com/sixfiveohtwo/core/irq"
	"github.com/sixfiveohtwo/core/memory"
	"github.com/sixfiveohtwo/core/resolve"
)

const (
	NMI_VECTOR   = uint16(0xFFFA)
	RESET_VECTOR = uint16(0xFFFC)
	IRQ_VECTOR   = uint16(0xFFFE)

	P_NEGATIVE  = uint8(0x80)
	P_OVERFLOW  = uint8(0x40)
	P_UNUSED    = uint8(0x20) // Always reads as 1.
	P_BREAK     = uint8(0x10) // Only set in copies pushed by BRK/PHP. Cleared on PLP/RTI and in IRQ/NMI pushes.
	P_DECIMAL   = uint8(0x08)
	P_INTERRUPT = uint8(0x04)
	P_ZERO      = uint8(0x02)
	P_CARRY     = uint8(0x01)
)

// Processor holds the 6502's register file and cycle counter. The zero
// value is not useful on its own; construct one with New.
type Processor struct {
	A      uint8
	X      uint8
	Y      uint8
	S      uint8
	P      uint8
	PC     uint16
	Cycles uint64

	irq    irq.Sender
	nmi    irq.Sender
	logger *log.Logger
}

// Option configures a Processor at construction time.
type Option func(*Processor)

// WithIRQ installs an optional maskable-interrupt line. Step checks it
// once per call, ahead of decoding the next opcode.
func WithIRQ(s irq.Sender) Option {
	return func(p *Processor) { p.irq = s }
}

// WithNMI installs an optional non-maskable-interrupt line.
func WithNMI(s irq.Sender) Option {
	return func(p *Processor) { p.nmi = s }
}

// WithLogger installs a trace logger; Step writes one line per executed
// instruction or serviced interrupt when set. Nil (the default) disables
// tracing entirely.
func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New returns a Processor in a defined power-on-ish state: registers
// zeroed, stack pointer at 0xFF, status register with only the always-1
// bit set, PC at zero. Callers either set PC directly or call Reset
// against a bus carrying a reset vector.
func New(opts ...Option) *Processor {
	p := &Processor{P: P_UNUSED, S: 0xFF}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reset loads PC from the reset vector and disables IRQs, leaving A/X/Y
// untouched. S is set to 0xFF.
func (p *Processor) Reset(bus memory.Bus) {
	p.S = 0xFF
	p.P |= P_INTERRUPT | P_UNUSED
	lo := bus.Read(RESET_VECTOR)
	hi := bus.Read(RESET_VECTOR + 1)
	p.PC = uint16(lo) | uint16(hi)<<8
}

// Step decodes and executes exactly one instruction, or services a
// pending IRQ/NMI if one is installed and raised. It returns the number
// of cycles consumed. decode.InvalidOpcodeError propagates unchanged for
// an undocumented opcode byte.
func (p *Processor) Step(bus memory.Bus) (int, error) {
	if vector, ok := p.pendingInterrupt(); ok {
		cycles := p.serviceInterrupt(bus, vector)
		p.Cycles += uint64(cycles)
		p.trace(fmt.Sprintf("INT   -> $%04X  A:%02X X:%02X Y:%02X P:%02X S:%02X CYC:%d", p.PC, p.A, p.X, p.Y, p.P, p.S, p.Cycles))
		return cycles, nil
	}

	startPC := p.PC
	instr, err := decode.Decode(bus, startPC)
	if err != nil {
		return 0, err
	}

	write := isStore(instr.Mnemonic)
	ctx := resolve.Resolve(instr, resolve.Registers{X: p.X, Y: p.Y, PC: startPC}, bus, write)

	cycles := instr.BaseCycles
	if ctx.PageCrossed && readPenaltyApplies(instr.Mnemonic, instr.Mode) {
		cycles++
	}

	// Default PC advance; jump/branch/JSR/RTS/RTI/BRK overwrite this below.
	p.PC = startPC + uint16(instr.Length)

	switch instr.Mnemonic {
	case decode.LDA:
		p.load(&p.A, *ctx.Value)
	case decode.LDX:
		p.load(&p.X, *ctx.Value)
	case decode.LDY:
		p.load(&p.Y, *ctx.Value)
	case decode.STA:
		bus.Write(*ctx.EffectiveAddr, p.A)
	case decode.STX:
		bus.Write(*ctx.EffectiveAddr, p.X)
	case decode.STY:
		bus.Write(*ctx.EffectiveAddr, p.Y)

	case decode.TAX:
		p.load(&p.X, p.A)
	case decode.TAY:
		p.load(&p.Y, p.A)
	case decode.TSX:
		p.load(&p.X, p.S)
	case decode.TXA:
		p.load(&p.A, p.X)
	case decode.TYA:
		p.load(&p.A, p.Y)
	case decode.TXS:
		// The one transfer that doesn't touch N/Z.
		p.S = p.X

	case decode.ADC:
		p.adc(*ctx.Value)
	case decode.SBC:
		p.adc(^*ctx.Value)

	case decode.AND:
		p.load(&p.A, p.A&*ctx.Value)
	case decode.ORA:
		p.load(&p.A, p.A|*ctx.Value)
	case decode.EOR:
		p.load(&p.A, p.A^*ctx.Value)

	case decode.ASL:
		p.shift(bus, instr, ctx, func(v uint8) (uint8, bool) { return v << 1, v&0x80 != 0 })
	case decode.LSR:
		p.shift(bus, instr, ctx, func(v uint8) (uint8, bool) { return v >> 1, v&0x01 != 0 })
	case decode.ROL:
		oldCarry := p.P & P_CARRY
		p.shift(bus, instr, ctx, func(v uint8) (uint8, bool) { return (v << 1) | oldCarry, v&0x80 != 0 })
	case decode.ROR:
		oldCarry := p.P & P_CARRY
		p.shift(bus, instr, ctx, func(v uint8) (uint8, bool) { return (v >> 1) | (oldCarry << 7), v&0x01 != 0 })

	case decode.INC:
		p.incMem(bus, ctx, 1)
	case decode.DEC:
		p.incMem(bus, ctx, 0xFF) // wraps as -1 mod 256

	case decode.INX:
		p.load(&p.X, p.X+1)
	case decode.DEX:
		p.load(&p.X, p.X-1)
	case decode.INY:
		p.load(&p.Y, p.Y+1)
	case decode.DEY:
		p.load(&p.Y, p.Y-1)

	case decode.CMP:
		p.compare(p.A, *ctx.Value)
	case decode.CPX:
		p.compare(p.X, *ctx.Value)
	case decode.CPY:
		p.compare(p.Y, *ctx.Value)

	case decode.BIT:
		p.bit(*ctx.Value)

	case decode.BCC:
		cycles += p.branch(p.P&P_CARRY == 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BCS:
		cycles += p.branch(p.P&P_CARRY != 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BEQ:
		cycles += p.branch(p.P&P_ZERO != 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BNE:
		cycles += p.branch(p.P&P_ZERO == 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BMI:
		cycles += p.branch(p.P&P_NEGATIVE != 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BPL:
		cycles += p.branch(p.P&P_NEGATIVE == 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BVC:
		cycles += p.branch(p.P&P_OVERFLOW == 0, *ctx.EffectiveAddr, startPC, instr)
	case decode.BVS:
		cycles += p.branch(p.P&P_OVERFLOW != 0, *ctx.EffectiveAddr, startPC, instr)

	case decode.JMP:
		p.PC = *ctx.EffectiveAddr
	case decode.JSR:
		ret := startPC + 2
		p.push(bus, uint8(ret>>8))
		p.push(bus, uint8(ret))
		p.PC = *ctx.EffectiveAddr
	case decode.RTS:
		lo := p.pull(bus)
		hi := p.pull(bus)
		p.PC = (uint16(hi)<<8 | uint16(lo)) + 1

	case decode.PHA:
		p.push(bus, p.A)
	case decode.PHP:
		p.push(bus, p.P|P_UNUSED|P_BREAK)
	case decode.PLA:
		p.load(&p.A, p.pull(bus))
	case decode.PLP:
		p.P = (p.pull(bus) | P_UNUSED) &^ P_BREAK

	case decode.BRK:
		ret := startPC + 2
		p.push(bus, uint8(ret>>8))
		p.push(bus, uint8(ret))
		p.push(bus, p.P|P_UNUSED|P_BREAK)
		p.P |= P_INTERRUPT
		lo := bus.Read(IRQ_VECTOR)
		hi := bus.Read(IRQ_VECTOR + 1)
		p.PC = uint16(lo) | uint16(hi)<<8
	case decode.RTI:
		p.P = (p.pull(bus) | P_UNUSED) &^ P_BREAK
		lo := p.pull(bus)
		hi := p.pull(bus)
		p.PC = uint16(lo) | uint16(hi)<<8

	case decode.CLC:
		p.P &^= P_CARRY
	case decode.SEC:
		p.P |= P_CARRY
	case decode.CLD:
		p.P &^= P_DECIMAL
	case decode.SED:
		p.P |= P_DECIMAL
	case decode.CLI:
		p.P &^= P_INTERRUPT
	case decode.SEI:
		p.P |= P_INTERRUPT
	case decode.CLV:
		p.P &^= P_OVERFLOW

	case decode.NOP:
		// No effect beyond the PC advance and cycle cost already applied above.
	}

	p.Cycles += uint64(cycles)
	p.trace(fmt.Sprintf("%04X  %-3s %-16s A:%02X X:%02X Y:%02X P:%02X S:%02X CYC:%d", startPC, instr.Mnemonic, instr.Mode, p.A, p.X, p.Y, p.P, p.S, p.Cycles))
	return cycles, nil
}

// pendingInterrupt reports the vector to service, if any, preferring NMI
// (non-maskable) over IRQ (masked by the I flag) when both are raised.
func (p *Processor) pendingInterrupt() (uint16, bool) {
	if p.nmi != nil && p.nmi.Raised() {
		return NMI_VECTOR, true
	}
	if p.irq != nil && p.irq.Raised() && p.P&P_INTERRUPT == 0 {
		return IRQ_VECTOR, true
	}
	return 0, false
}

// serviceInterrupt runs the hardware interrupt-entry sequence: push
// PC/P (B clear, unlike BRK), disable further IRQs, and load PC from the
// given vector. Always costs 7 cycles, matching BRK's cost.
func (p *Processor) serviceInterrupt(bus memory.Bus, vector uint16) int {
	p.push(bus, uint8(p.PC>>8))
	p.push(bus, uint8(p.PC))
	p.push(bus, (p.P|P_UNUSED)&^P_BREAK)
	p.P |= P_INTERRUPT
	lo := bus.Read(vector)
	hi := bus.Read(vector + 1)
	p.PC = uint16(lo) | uint16(hi)<<8
	return 7
}

// load writes val into reg and updates N/Z. Used by every load, transfer,
// and logical op that isn't TXS.
func (p *Processor) load(reg *uint8, val uint8) {
	*reg = val
	p.zeroCheck(val)
	p.negativeCheck(val)
}

// adc implements ADC; SBC calls it with the operand's ones-complement,
// since SBC(a, m, c) is defined as ADC(a, ^m, c).
func (p *Processor) adc(m uint8) {
	carry := uint16(p.P & P_CARRY)
	sum := uint16(p.A) + uint16(m) + carry
	result := uint8(sum)
	p.overflowCheck(p.A, m, result)
	p.setCarry(sum > 0xFF)
	p.A = result
	p.zeroCheck(result)
	p.negativeCheck(result)
}

// shift implements ASL/LSR/ROL/ROR: op computes the new value and the new
// carry from the old value. Operates on A for Accumulator mode, else on
// the resolved memory address (a true read-modify-write).
func (p *Processor) shift(bus memory.Bus, instr decode.Instruction, ctx resolve.OperandContext, op func(uint8) (uint8, bool)) {
	var val uint8
	if instr.Mode == decode.Accumulator {
		val = p.A
	} else {
		val = *ctx.Value
	}
	result, carry := op(val)
	p.setCarry(carry)
	p.zeroCheck(result)
	p.negativeCheck(result)
	if instr.Mode == decode.Accumulator {
		p.A = result
	} else {
		bus.Write(*ctx.EffectiveAddr, result)
	}
}

// incMem implements INC/DEC: delta is 1 or 0xFF (i.e. -1 mod 256).
func (p *Processor) incMem(bus memory.Bus, ctx resolve.OperandContext, delta uint8) {
	result := *ctx.Value + delta
	bus.Write(*ctx.EffectiveAddr, result)
	p.zeroCheck(result)
	p.negativeCheck(result)
}

// compare implements CMP/CPX/CPY: the register is left unchanged.
func (p *Processor) compare(reg, m uint8) {
	diff := reg - m
	p.setCarry(reg >= m)
	p.P &^= P_ZERO
	if reg == m {
		p.P |= P_ZERO
	}
	p.negativeCheck(diff)
}

// bit implements BIT: A is unchanged.
func (p *Processor) bit(m uint8) {
	p.P &^= P_ZERO
	if p.A&m == 0 {
		p.P |= P_ZERO
	}
	p.P &^= P_NEGATIVE
	if m&0x80 != 0 {
		p.P |= P_NEGATIVE
	}
	p.P &^= P_OVERFLOW
	if m&0x40 != 0 {
		p.P |= P_OVERFLOW
	}
}

// branch evaluates a conditional branch. Returns the extra cycles to add
// on top of the instruction's base cycles: 0 if not taken, 1 if taken on
// the same page, 2 if taken across a page boundary.
func (p *Processor) branch(take bool, target, startPC uint16, instr decode.Instruction) int {
	if !take {
		return 0
	}
	fallthroughPC := startPC + uint16(instr.Length)
	p.PC = target
	if (target & 0xFF00) != (fallthroughPC & 0xFF00) {
		return 2
	}
	return 1
}

// push writes val to the hardware stack at $0100|S and decrements S.
func (p *Processor) push(bus memory.Bus, val uint8) {
	bus.Write(0x0100|uint16(p.S), val)
	p.S--
}

// pull increments S and reads the hardware stack at $0100|S.
func (p *Processor) pull(bus memory.Bus) uint8 {
	p.S++
	return bus.Read(0x0100 | uint16(p.S))
}

// zeroCheck sets Z based on whether val is zero.
func (p *Processor) zeroCheck(val uint8) {
	p.P &^= P_ZERO
	if val == 0 {
		p.P |= P_ZERO
	}
}

// negativeCheck sets N to bit 7 of val.
func (p *Processor) negativeCheck(val uint8) {
	p.P &^= P_NEGATIVE
	if val&0x80 != 0 {
		p.P |= P_NEGATIVE
	}
}

// setCarry sets or clears C.
func (p *Processor) setCarry(c bool) {
	p.P &^= P_CARRY
	if c {
		p.P |= P_CARRY
	}
}

// overflowCheck sets V when the ALU operation caused a two's-complement
// sign change: both operands agree in sign and disagree with the result.
func (p *Processor) overflowCheck(reg, arg, res uint8) {
	p.P &^= P_OVERFLOW
	if (reg^res)&(arg^res)&0x80 != 0 {
		p.P |= P_OVERFLOW
	}
}

func (p *Processor) trace(line string) {
	if p.logger == nil {
		return
	}
	p.logger.Print(line)
}

// isStore reports whether mnemonic is a write-only instruction, which
// must not trigger the resolver's speculative read.
func isStore(m decode.Mnemonic) bool {
	switch m {
	case decode.STA, decode.STX, decode.STY:
		return true
	}
	return false
}

// readPenaltyApplies reports whether a page-crossing indexed read should
// add one cycle. Only read instructions (not stores, not read-modify-write)
// in AbsoluteX/AbsoluteY/IndirectIndexed pay this; writes and RMWs already
// bake the worst case into their base cycle count.
func readPenaltyApplies(m decode.Mnemonic, mode decode.Mode) bool {
	switch mode {
	case decode.AbsoluteX, decode.AbsoluteY, decode.IndirectIndexed:
	default:
		return false
	}
	switch m {
	case decode.STA, decode.ASL, decode.LSR, decode.ROL, decode.ROR, decode.INC, decode.DEC:
		return false
	}
	return true
}
