package chip8

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func newTestMachine(t *testing.T, rom ...byte) *Machine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Rand = func() byte { return 0x5a }
	m := New(cfg)
	assert.NoError(t, m.LoadProgram(rom))
	return m
}

func TestNew(t *testing.T) {
	m := New(DefaultConfig())

	assert.Equal(t, uint16(ProgramStart), m.PC)
	assert.Equal(t, uint16(0), m.I)
	assert.Equal(t, [16]byte{}, m.V)
	assert.Equal(t, 0, m.Stack.Ptr)
	assert.Equal(t, 16, len(m.Stack.Addrs))
	assert.Equal(t, Running, m.State())
	assert.True(t, bytes.Equal(font[:], m.Mem[FontAddr:fontEnd]))
	assert.NoError(t, m.Halted())
}

func TestNew_StackDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{"zero raised to minimum", 0, MinStackDepth},
		{"below minimum", 4, MinStackDepth},
		{"minimum", MinStackDepth, MinStackDepth},
		{"larger", 32, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{StackDepth: tt.depth})
			assert.Equal(t, tt.want, len(m.Stack.Addrs))
		})
	}
}

func TestLoadProgram(t *testing.T) {
	for _, size := range []int{0, 1, MaxProgramSize - 1, MaxProgramSize} {
		m := New(DefaultConfig())
		assert.NoError(t, m.LoadProgram(bytes.Repeat([]byte{1}, size)))
		for i := range m.Mem[ProgramStart:] {
			w := byte(0)
			if i < size {
				w = 1
			}
			if g := m.Mem[ProgramStart+i]; g != w {
				t.Fatalf("size %d: Mem[%.3x] == %.2x, want %.2x", size, ProgramStart+i, g, w)
			}
		}
	}
}

func TestLoadProgram_TooLarge(t *testing.T) {
	m := New(DefaultConfig())
	before := m.Mem

	err := m.LoadProgram(bytes.Repeat([]byte{1}, MaxProgramSize+1))

	assert.Error(t, err, "program too large: 3585 bytes, maximum is 3584")
	assert.True(t, errors.Is(err, ErrProgramSize))
	assert.True(t, before == m.Mem)
}

func TestLoadThenAdd(t *testing.T) {
	for x := byte(0); x < 16; x++ {
		for nn := 0; nn < 0x100; nn++ {
			m := newTestMachine(t,
				0x60|x, byte(nn), // LD Vx, nn
				0x70|x, 0x00, // ADD Vx, 0
			)
			assert.NoError(t, m.Step())
			assert.NoError(t, m.Step())
			if m.V[x] != byte(nn) {
				t.Fatalf("V%X = %.2x, want %.2x", x, m.V[x], nn)
			}
		}
	}
}

func TestAddCarry(t *testing.T) {
	for a := 0; a < 0x100; a++ {
		for b := 0; b < 0x100; b++ {
			m := newTestMachine(t, 0x80, 0x14)
			m.V[0], m.V[1] = byte(a), byte(b)
			assert.NoError(t, m.Step())
			if g, w := m.V[0], byte(a+b); g != w {
				t.Fatalf("%d+%d: V0 = %d, want %d", a, b, g, w)
			}
			if g, w := m.V[0xf], flag(a+b > 0xff); g != w {
				t.Fatalf("%d+%d: VF = %d, want %d", a, b, g, w)
			}
		}
	}
}

func TestSubBorrow(t *testing.T) {
	for a := 0; a < 0x100; a++ {
		for b := 0; b < 0x100; b++ {
			m := newTestMachine(t, 0x80, 0x15)
			m.V[0], m.V[1] = byte(a), byte(b)
			assert.NoError(t, m.Step())
			if g, w := m.V[0], byte(a-b); g != w {
				t.Fatalf("%d-%d: V0 = %d, want %d", a, b, g, w)
			}
			if g, w := m.V[0xf], flag(a >= b); g != w {
				t.Fatalf("%d-%d: VF = %d, want %d", a, b, g, w)
			}
		}
	}
}

func TestIndexOverflowDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IndexOverflow = false
	m := New(cfg)
	assert.NoError(t, m.LoadProgram([]byte{0xf0, 0x1e}))
	m.I = 0xfff
	m.V[0] = 2
	m.V[0xf] = 7

	assert.NoError(t, m.Step())

	assert.Equal(t, uint16(0x1001), m.I)
	assert.Equal(t, byte(7), m.V[0xf])
}

func TestDrawTwiceRestores(t *testing.T) {
	m := newTestMachine(t,
		0xa2, 0x0a, // LD I, sprite
		0xd0, 0x13, // DRW V0, V1, 3
		0xd0, 0x13, // DRW V0, V1, 3
		0x12, 0x06, // JP self
		0x00, 0x00,
		0xff, 0x81, 0x3c, // sprite
	)
	m.V[0], m.V[1] = 10, 20

	assert.NoError(t, m.Step())
	before, _ := m.Frame()
	assert.NoError(t, m.Step())
	assert.Equal(t, byte(0), m.V[0xf])
	mid, dirty := m.Frame()
	assert.True(t, dirty)
	assert.True(t, mid.At(10, 20))
	assert.True(t, mid.At(17, 21))
	assert.False(t, mid.At(11, 21))

	assert.NoError(t, m.Step())
	assert.Equal(t, byte(1), m.V[0xf])
	after, dirty := m.Frame()
	assert.True(t, dirty)
	assert.True(t, before == after)
}

func TestDrawWrap(t *testing.T) {
	m := newTestMachine(t, 0xd0, 0x12)
	m.I = 0x300
	m.Mem[0x300] = 0xc0
	m.Mem[0x301] = 0x80
	m.V[0], m.V[1] = 63, 31

	assert.NoError(t, m.Step())

	f, _ := m.Frame()
	assert.True(t, f[31][63])
	assert.True(t, f[31][0])
	assert.True(t, f[0][63])
	assert.False(t, f[0][0])
	assert.Equal(t, byte(0), m.V[0xf])
}

func TestDrawStartWraps(t *testing.T) {
	m := newTestMachine(t, 0xd0, 0x11)
	m.I = 0x300
	m.Mem[0x300] = 0x80
	m.V[0], m.V[1] = 64+5, 32+7

	assert.NoError(t, m.Step())

	f, _ := m.Frame()
	assert.True(t, f[7][5])
}

func TestClearAfterDraws(t *testing.T) {
	m := newTestMachine(t,
		0xf0, 0x29, // LD F, V0
		0xd1, 0x25, // DRW V1, V2, 5
		0xd3, 0x45, // DRW V3, V4, 5
		0x00, 0xe0, // CLS
	)
	m.V[0], m.V[1], m.V[2], m.V[3], m.V[4] = 8, 60, 30, 1, 2
	for i := 0; i < 3; i++ {
		assert.NoError(t, m.Step())
	}
	m.Frame()

	assert.NoError(t, m.Step())

	f, dirty := m.Frame()
	assert.True(t, dirty)
	assert.True(t, f == Frame{})
}

func TestTimers(t *testing.T) {
	m := newTestMachine(t, 0x60, 0x02, 0xf0, 0x15, 0xf0, 0x18)
	for i := 0; i < 3; i++ {
		assert.NoError(t, m.Step())
	}
	assert.True(t, m.Sounding())

	assert.False(t, m.Tick())
	assert.Equal(t, byte(1), m.Delay())
	assert.True(t, m.Tick())
	assert.False(t, m.Sounding())
	for i := 0; i < 10; i++ {
		assert.False(t, m.Tick())
	}
	assert.Equal(t, byte(0), m.Delay())
	assert.Equal(t, byte(0), m.Sound())
}

func TestTickConcurrentWithStep(t *testing.T) {
	m := newTestMachine(t,
		0x60, 0xff, // LD V0, 0xff
		0xf0, 0x15, // LD DT, V0
		0xf1, 0x07, // LD V1, DT
		0x12, 0x02, // JP 0x202
	)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			m.Tick()
		}
	}()
	for i := 0; i < 1000; i++ {
		assert.NoError(t, m.Step())
	}
	wg.Wait()
}

func TestAwaitKey(t *testing.T) {
	m := newTestMachine(t,
		0xf3, 0x0a, // LD V3, K
		0x64, 0x01, // LD V4, 1
	)
	assert.NoError(t, m.Step())
	assert.Equal(t, AwaitingKey, m.State())

	var (
		pc  = m.PC
		v   = m.V
		mem = m.Mem
	)
	for i := 0; i < 10; i++ {
		assert.NoError(t, m.Step())
	}
	assert.Equal(t, pc, m.PC)
	assert.True(t, v == m.V)
	assert.True(t, mem == m.Mem)

	m.KeyUp(0x7)
	assert.Equal(t, AwaitingKey, m.State())

	m.KeyDown(0x7)
	assert.Equal(t, Running, m.State())
	assert.Equal(t, byte(0x7), m.V[3])
	assert.True(t, m.Keys.Down[0x7])

	assert.NoError(t, m.Step())
	assert.Equal(t, byte(1), m.V[4])
}

func TestStackUnderflowHalts(t *testing.T) {
	m := newTestMachine(t,
		0x60, 0x05, // LD V0, 5
		0x61, 0x06, // LD V1, 6
		0x00, 0xee, // RET
		0x62, 0x07, // LD V2, 7
	)
	assert.NoError(t, m.Step())
	assert.NoError(t, m.Step())

	err := m.Step()

	var h HaltError
	assert.True(t, errors.As(err, &h))
	assert.Equal(t, StackUnderflow, h.HaltCode)
	assert.Equal(t, uint16(0x204), h.Addr)
	assert.True(t, IsFatal(err))
	assert.Equal(t, byte(5), m.V[0])
	assert.Equal(t, byte(6), m.V[1])

	err = m.Step()
	assert.True(t, errors.Is(err, ErrHalted))
	assert.True(t, errors.As(err, &h))
	assert.Equal(t, byte(0), m.V[2])
	assert.Equal(t, uint16(0x206), m.PC)
}

func TestStackOverflowHalts(t *testing.T) {
	m := newTestMachine(t, 0x22, 0x00) // CALL 0x200
	var err error
	for i := 0; i < 16 && err == nil; i++ {
		err = m.Step()
	}
	assert.NoError(t, err)
	assert.Equal(t, 16, m.Stack.Ptr)

	err = m.Step()

	var h HaltError
	assert.True(t, errors.As(err, &h))
	assert.Equal(t, StackOverflow, h.HaltCode)
	assert.True(t, m.Halted() != nil)
}

func TestUnknownOpcodeContinues(t *testing.T) {
	m := newTestMachine(t,
		0xff, 0xff, // unknown
		0x60, 0x2a, // LD V0, 0x2a
	)

	err := m.Step()

	var u UnknownOpcodeError
	assert.True(t, errors.As(err, &u))
	assert.False(t, IsFatal(err))
	assert.Equal(t, Instr(0xffff), u.Instr)
	assert.NoError(t, m.Step())
	assert.Equal(t, byte(0x2a), m.V[0])
}

func TestReset(t *testing.T) {
	m := newTestMachine(t, 0x00, 0xee, 0x60, 0x01)
	m.V[5] = 9
	m.KeyDown(3)
	assert.Error(t, m.Step(), "stack underflow executing 00ee at 200")

	m.Reset()

	assert.NoError(t, m.Halted())
	assert.Equal(t, uint16(ProgramStart), m.PC)
	assert.Equal(t, byte(0), m.V[5])
	assert.False(t, m.Keys.Down[3])
	assert.Equal(t, byte(0), m.Mem[ProgramStart])
	assert.True(t, bytes.Equal(font[:], m.Mem[FontAddr:fontEnd]))
	_, dirty := m.Frame()
	assert.True(t, dirty)
}

func TestMemoryWraps(t *testing.T) {
	m := newTestMachine(t, 0xf1, 0x55) // LD [I], V1
	m.I = 0xfff
	m.V[0], m.V[1] = 0xaa, 0xbb

	assert.NoError(t, m.Step())

	assert.Equal(t, byte(0xaa), m.Mem[0xfff])
	assert.True(t, bytes.Equal(font[:], m.Mem[FontAddr:fontEnd]))
}
