package chip8

import (
	"fmt"
	"strings"
)

// Instr is a raw 16-bit CHIP-8 instruction word.
type Instr uint16

// Class returns the most significant nibble, which selects the opcode family.
func (i Instr) Class() byte { return byte(i >> 12) }

// X returns the first register selector.
func (i Instr) X() byte { return byte(i>>8) & 0xf }

// Y returns the second register selector.
func (i Instr) Y() byte { return byte(i>>4) & 0xf }

// N returns the 4-bit immediate.
func (i Instr) N() byte { return byte(i) & 0xf }

// NN returns the 8-bit immediate.
func (i Instr) NN() byte { return byte(i) }

// NNN returns the 12-bit address.
func (i Instr) NNN() uint16 { return uint16(i) & 0xfff }

func (i Instr) String() string { return fmt.Sprintf("%.4x", uint16(i)) }

// Op identifies the operation an instruction performs, independent of its
// operand fields.
type Op byte

const (
	Invalid Op = iota
	CLS        // 00E0
	RET        // 00EE
	JP         // 1nnn
	CALL       // 2nnn
	SEB        // 3xnn
	SNEB       // 4xnn
	SE         // 5xy0
	LDB        // 6xnn
	ADDB       // 7xnn
	LD         // 8xy0
	OR         // 8xy1
	AND        // 8xy2
	XOR        // 8xy3
	ADD        // 8xy4
	SUB        // 8xy5
	SHR        // 8xy6
	SUBN       // 8xy7
	SHL        // 8xyE
	SNE        // 9xy0
	LDI        // Annn
	JPV        // Bnnn
	RND        // Cxnn
	DRW        // Dxyn
	SKP        // Ex9E
	SKNP       // ExA1
	LDVT       // Fx07
	LDK        // Fx0A
	LDDT       // Fx15
	LDST       // Fx18
	ADDI       // Fx1E
	LDF        // Fx29
	BCD        // Fx33
	STM        // Fx55
	LDM        // Fx65
)

func (o Op) String() string {
	if int(o) < len(opStrings) {
		return opStrings[o]
	}
	return fmt.Sprintf("Op(%d)", byte(o))
}

var opStrings = strings.Fields(`
	???
	CLS
	RET
	JP
	CALL
	SEB
	SNEB
	SE
	LDB
	ADDB
	LD
	OR
	AND
	XOR
	ADD
	SUB
	SHR
	SUBN
	SHL
	SNE
	LDI
	JPV
	RND
	DRW
	SKP
	SKNP
	LDVT
	LDK
	LDDT
	LDST
	ADDI
	LDF
	BCD
	STM
	LDM
`)

// Decode reports the operation performed by i. Instructions that match no
// operation decode as Invalid.
func Decode(i Instr) Op {
	switch i.Class() {
	case 0x0:
		switch i {
		case 0x00e0:
			return CLS
		case 0x00ee:
			return RET
		}
	case 0x1:
		return JP
	case 0x2:
		return CALL
	case 0x3:
		return SEB
	case 0x4:
		return SNEB
	case 0x5:
		if i.N() == 0x0 {
			return SE
		}
	case 0x6:
		return LDB
	case 0x7:
		return ADDB
	case 0x8:
		switch i.N() {
		case 0x0:
			return LD
		case 0x1:
			return OR
		case 0x2:
			return AND
		case 0x3:
			return XOR
		case 0x4:
			return ADD
		case 0x5:
			return SUB
		case 0x6:
			return SHR
		case 0x7:
			return SUBN
		case 0xe:
			return SHL
		}
	case 0x9:
		if i.N() == 0x0 {
			return SNE
		}
	case 0xa:
		return LDI
	case 0xb:
		return JPV
	case 0xc:
		return RND
	case 0xd:
		return DRW
	case 0xe:
		switch i.NN() {
		case 0x9e:
			return SKP
		case 0xa1:
			return SKNP
		}
	case 0xf:
		switch i.NN() {
		case 0x07:
			return LDVT
		case 0x0a:
			return LDK
		case 0x15:
			return LDDT
		case 0x18:
			return LDST
		case 0x1e:
			return ADDI
		case 0x29:
			return LDF
		case 0x33:
			return BCD
		case 0x55:
			return STM
		case 0x65:
			return LDM
		}
	}
	return Invalid
}
