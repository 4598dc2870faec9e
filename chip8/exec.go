package chip8

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by Step after a fatal error, until Reset.
var ErrHalted = errors.New("machine halted")

// Step executes the instruction at PC.
//
// While the machine is awaiting a key, Step does nothing and returns nil.
// An unrecognised instruction yields an UnknownOpcodeError; it is not fatal
// and the next Step continues with the following instruction. A stack
// overflow or underflow yields a HaltError and halts the machine: further
// calls return an error wrapping ErrHalted until Reset is called.
func (m *Machine) Step() (err error) {
	if m.halt != nil {
		return fmt.Errorf("%w: %w", ErrHalted, m.halt)
	}
	if m.Keys.State == AwaitingKey {
		return nil
	}

	var (
		addr = m.PC
		in   = m.Fetch(addr)
	)
	defer func() {
		if e := recover(); e != nil {
			if code, ok := e.(HaltCode); ok {
				err = HaltError{
					HaltCode: code,
					Instr:    in,
					Addr:     addr,
				}
				m.halt = err
			} else {
				panic(e)
			}
		}
	}()

	m.PC += 2

	x, y := in.X(), in.Y()
	switch Decode(in) {
	case CLS:
		m.Disp.Clear()
	case RET:
		m.PC = m.Stack.pop()
	case JP:
		m.PC = in.NNN()
	case CALL:
		m.Stack.push(m.PC)
		m.PC = in.NNN()
	case SEB:
		m.skipIf(m.V[x] == in.NN())
	case SNEB:
		m.skipIf(m.V[x] != in.NN())
	case SE:
		m.skipIf(m.V[x] == m.V[y])
	case LDB:
		m.V[x] = in.NN()
	case ADDB:
		m.V[x] += in.NN()
	case LD:
		m.V[x] = m.V[y]
	case OR:
		m.V[x] |= m.V[y]
	case AND:
		m.V[x] &= m.V[y]
	case XOR:
		m.V[x] ^= m.V[y]
	case ADD:
		sum := uint16(m.V[x]) + uint16(m.V[y])
		m.V[x] = byte(sum)
		m.V[0xf] = flag(sum > 0xff)
	case SUB:
		vx, vy := m.V[x], m.V[y]
		m.V[x] = vx - vy
		m.V[0xf] = flag(vx >= vy)
	case SHR:
		vx := m.V[x]
		m.V[x] = vx >> 1
		m.V[0xf] = vx & 0x01
	case SUBN:
		vx, vy := m.V[x], m.V[y]
		m.V[x] = vy - vx
		m.V[0xf] = flag(vy >= vx)
	case SHL:
		vx := m.V[x]
		m.V[x] = vx << 1
		m.V[0xf] = vx >> 7
	case SNE:
		m.skipIf(m.V[x] != m.V[y])
	case LDI:
		m.I = in.NNN()
	case JPV:
		m.PC = (in.NNN() + uint16(m.V[0])) & (MemSize - 1)
	case RND:
		m.V[x] = m.rand() & in.NN()
	case DRW:
		var (
			n      = int(in.N())
			sprite [0xf]byte
		)
		for r := 0; r < n; r++ {
			sprite[r] = m.load(m.I + uint16(r))
		}
		m.V[0xf] = flag(m.Disp.Blit(int(m.V[x]), int(m.V[y]), sprite[:n]))
	case SKP:
		m.skipIf(m.Keys.Down[m.V[x]&0xf])
	case SKNP:
		m.skipIf(!m.Keys.Down[m.V[x]&0xf])
	case LDVT:
		m.V[x] = byte(m.delay.Load())
	case LDK:
		m.Keys.await(x)
	case LDDT:
		m.delay.Store(uint32(m.V[x]))
	case LDST:
		m.sound.Store(uint32(m.V[x]))
	case ADDI:
		m.I += uint16(m.V[x])
		if m.cfg.IndexOverflow {
			m.V[0xf] = flag(m.I > 0xfff)
		}
	case LDF:
		m.I = FontAddr + glyphSize*uint16(m.V[x]&0xf)
	case BCD:
		v := m.V[x]
		m.store(m.I, v/100)
		m.store(m.I+1, v/10%10)
		m.store(m.I+2, v%10)
	case STM:
		for r := byte(0); r <= x; r++ {
			m.store(m.I+uint16(r), m.V[r])
		}
	case LDM:
		for r := byte(0); r <= x; r++ {
			m.V[r] = m.load(m.I + uint16(r))
		}
	default:
		return UnknownOpcodeError{Instr: in, Addr: addr}
	}
	return nil
}

func (m *Machine) skipIf(cond bool) {
	if cond {
		m.PC += 2
	}
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// UnknownOpcodeError is returned by Step for an instruction that decodes to
// no operation. It does not halt the machine.
type UnknownOpcodeError struct {
	Instr Instr
	Addr  uint16
}

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode %s at %.3x", e.Instr, e.Addr)
}

// HaltError is returned by Step when a fatal condition halts the machine.
type HaltError struct {
	HaltCode
	Instr Instr
	Addr  uint16
}

func (e HaltError) Error() string {
	return fmt.Sprintf("%s executing %s at %.3x", e.HaltCode, e.Instr, e.Addr)
}

// HaltCode signifies the type of condition that halted execution.
type HaltCode byte

const (
	StackOverflow  HaltCode = 0x01
	StackUnderflow HaltCode = 0x02
)

func (c HaltCode) String() string {
	if s, ok := map[HaltCode]string{
		StackOverflow:  "stack overflow",
		StackUnderflow: "stack underflow",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}

// IsFatal reports whether err, as returned by Step, means the machine has
// halted.
func IsFatal(err error) bool {
	var h HaltError
	return errors.As(err, &h) || errors.Is(err, ErrHalted)
}
