package decode

import (
	"testing"

	"github.com/sixfiveohtwo/core/memory"
)

func newBus() *memory.RAM {
	return memory.NewRAM()
}

func TestDecodeImmediate(t *testing.T) {
	bus := newBus()
	bus.Write(0x0600, 0xA9) // LDA #$42
	bus.Write(0x0601, 0x42)
	instr, err := Decode(bus, 0x0600)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Mnemonic != LDA || instr.Mode != Immediate {
		t.Errorf("got %s/%s, want LDA/Immediate", instr.Mnemonic, instr.Mode)
	}
	if instr.Length != 2 || instr.BaseCycles != 2 {
		t.Errorf("Length=%d BaseCycles=%d, want 2/2", instr.Length, instr.BaseCycles)
	}
	if instr.OperandByte() != 0x42 {
		t.Errorf("OperandByte = %#02x, want 0x42", instr.OperandByte())
	}
}

func TestDecodeAbsoluteReadsTwoOperandBytes(t *testing.T) {
	bus := newBus()
	bus.Write(0x0600, 0x4C) // JMP $1234
	bus.Write(0x0601, 0x34)
	bus.Write(0x0602, 0x12)
	instr, err := Decode(bus, 0x0600)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Mnemonic != JMP || instr.Mode != Absolute {
		t.Errorf("got %s/%s, want JMP/Absolute", instr.Mnemonic, instr.Mode)
	}
	if instr.OperandWord() != 0x1234 {
		t.Errorf("OperandWord = %#04x, want 0x1234", instr.OperandWord())
	}
	if instr.Length != 3 {
		t.Errorf("Length = %d, want 3", instr.Length)
	}
}

func TestDecodeImpliedHasNoOperandBytes(t *testing.T) {
	bus := newBus()
	bus.Write(0x0600, 0xEA) // NOP
	instr, err := Decode(bus, 0x0600)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.OperandLen != 0 || instr.Length != 1 {
		t.Errorf("OperandLen=%d Length=%d, want 0/1", instr.OperandLen, instr.Length)
	}
}

func TestDecodeInvalidOpcodeReturnsError(t *testing.T) {
	bus := newBus()
	bus.Write(0x0600, 0x02) // undocumented
	_, err := Decode(bus, 0x0600)
	if err == nil {
		t.Fatal("Decode: got nil error, want InvalidOpcodeError")
	}
	want := InvalidOpcodeError{Opcode: 0x02, PC: 0x0600}
	if err != want {
		t.Errorf("err = %#v, want %#v", err, want)
	}
}

func TestDecodeAllDocumentedOpcodesHaveAMnemonic(t *testing.T) {
	bus := newBus()
	missing := 0
	for op := 0; op < 256; op++ {
		bus.Write(0x0600, uint8(op))
		_, err := Decode(bus, 0x0600)
		if err != nil {
			missing++
		}
	}
	// The 6502 has 256 opcode slots and only 151 are documented.
	if missing != 256-151 {
		t.Errorf("undocumented opcode count = %d, want %d", missing, 256-151)
	}
}

func TestDecodeEveryModeAgreesWithDocumentedLength(t *testing.T) {
	tests := []struct {
		mode   Mode
		length int
	}{
		{Implied, 1},
		{Accumulator, 1},
		{Immediate, 2},
		{ZeroPage, 2},
		{ZeroPageX, 2},
		{ZeroPageY, 2},
		{Relative, 2},
		{IndexedIndirect, 2},
		{IndirectIndexed, 2},
		{Absolute, 3},
		{AbsoluteX, 3},
		{AbsoluteY, 3},
		{Indirect, 3},
	}
	for _, test := range tests {
		if got := test.mode.length(); got != test.length {
			t.Errorf("%s.length() = %d, want %d", test.mode, got, test.length)
		}
	}
}
