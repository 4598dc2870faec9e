// Package chip8 provides an implementation of the CHIP-8 virtual machine,
// called Machine, that can be used to execute CHIP-8 program images.
//
// A Machine does no I/O of its own. The host calls Step at its chosen
// instruction rate and Tick at 60 Hz, feeds key events through KeyDown and
// KeyUp, and polls Frame for display updates and Sounding for the buzzer.
package chip8

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"
)

// Memory layout.
const (
	MemSize        = 0x1000
	ProgramStart   = 0x200
	MaxProgramSize = MemSize - ProgramStart
)

// Config holds the tunable behaviour of a Machine.
type Config struct {
	// StackDepth is the number of return addresses the stack holds.
	// Values below MinStackDepth are raised to it.
	StackDepth int

	// IndexOverflow makes Fx1E set VF when I passes 0xfff.
	IndexOverflow bool

	// Rand supplies the random bytes for Cxnn. If nil, a time-seeded
	// math/rand source is used.
	Rand func() byte
}

// DefaultConfig returns the configuration used by the c8 command.
func DefaultConfig() Config {
	return Config{
		StackDepth:    16,
		IndexOverflow: true,
	}
}

// Machine is an implementation of the CHIP-8 virtual machine.
type Machine struct {
	Mem   [MemSize]byte
	V     [16]byte
	I     uint16
	PC    uint16
	Stack Stack
	Disp  Display
	Keys  Keypad

	// The timers are the only state touched by the 60 Hz clock,
	// which may run on a different goroutine to Step.
	delay atomic.Uint32
	sound atomic.Uint32

	cfg  Config
	rand func() byte
	halt error
}

// New returns a Machine with the font loaded, registers cleared and PC at
// ProgramStart.
func New(cfg Config) *Machine {
	m := &Machine{
		cfg:   cfg,
		rand:  cfg.Rand,
		Stack: newStack(cfg.StackDepth),
	}
	if m.rand == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		m.rand = func() byte { return byte(r.Intn(0x100)) }
	}
	m.Reset()
	return m
}

// Config returns the configuration the machine was created with.
func (m *Machine) Config() Config { return m.cfg }

// Reset returns the machine to its initial state, discarding any loaded
// program and clearing a halt.
func (m *Machine) Reset() {
	m.Mem = [MemSize]byte{}
	copy(m.Mem[FontAddr:], font[:])
	m.V = [16]byte{}
	m.I = 0
	m.PC = ProgramStart
	m.Stack.reset()
	m.Keys = Keypad{}
	m.Disp.Clear()
	m.delay.Store(0)
	m.sound.Store(0)
	m.halt = nil
}

// ErrProgramSize is returned by LoadProgram for images that do not fit
// between ProgramStart and the end of memory.
var ErrProgramSize = errors.New("program too large")

// LoadProgram copies rom into memory at ProgramStart. Memory is left
// untouched if rom is larger than MaxProgramSize.
func (m *Machine) LoadProgram(rom []byte) error {
	if len(rom) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrProgramSize, len(rom), MaxProgramSize)
	}
	copy(m.Mem[ProgramStart:], rom)
	return nil
}

// Fetch returns the instruction stored at addr.
func (m *Machine) Fetch(addr uint16) Instr {
	return Instr(short(m.load(addr), m.load(addr+1)))
}

// Halted returns the fatal error that stopped the machine, or nil.
func (m *Machine) Halted() error { return m.halt }

// State reports whether the machine is running or waiting for a key.
func (m *Machine) State() State { return m.Keys.State }

// KeyDown marks key k (0x0-0xf) as held. If the machine is waiting on
// Fx0A, the key is stored in the waiting register and execution resumes.
func (m *Machine) KeyDown(k byte) {
	k &= 0xf
	if reg, ok := m.Keys.press(k); ok {
		m.V[reg] = k
	}
}

// KeyUp marks key k (0x0-0xf) as released.
func (m *Machine) KeyUp(k byte) { m.Keys.release(k) }

// Frame returns the current display contents and whether they changed since
// the previous call.
func (m *Machine) Frame() (Frame, bool) { return m.Disp.Consume() }

// Delay returns the delay timer.
func (m *Machine) Delay() byte { return byte(m.delay.Load()) }

// Sound returns the sound timer.
func (m *Machine) Sound() byte { return byte(m.sound.Load()) }

// Sounding reports whether the buzzer should be on.
func (m *Machine) Sounding() bool { return m.sound.Load() != 0 }

// Tick decrements the delay and sound timers, stopping at zero. It should
// be called at 60 Hz regardless of the instruction rate, and is safe to
// call concurrently with Step. It reports whether the sound timer has just
// reached zero.
func (m *Machine) Tick() (silenced bool) {
	countDown(&m.delay)
	return countDown(&m.sound)
}

func countDown(t *atomic.Uint32) (reachedZero bool) {
	for {
		v := t.Load()
		if v == 0 {
			return false
		}
		if t.CompareAndSwap(v, v-1) {
			return v == 1
		}
	}
}

func (m *Machine) load(addr uint16) byte {
	return m.Mem[addr&(MemSize-1)]
}

// store writes v to addr. Writes to the font are dropped.
func (m *Machine) store(addr uint16, v byte) {
	addr &= MemSize - 1
	if addr < fontEnd {
		return
	}
	m.Mem[addr] = v
}

func short(hi, lo byte) uint16 {
	return uint16(hi)<<8 + uint16(lo)
}
