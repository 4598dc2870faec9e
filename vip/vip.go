// Package vip implements a host for the CHIP-8 machine in the manner of the
// COSMAC VIP it was written for: a 60 Hz clock driving the timers and the
// buzzer, a hexadecimal keypad and a 64x32 display, presented through a
// window or a terminal.
package vip

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retroenv/retrogolib/log"

	"github.com/nf/c8/chip8"
)

// DefaultHz is the default instruction rate.
const DefaultHz = 700

// Frontend selects how the machine is presented.
type Frontend int

const (
	Headless Frontend = iota
	Window
	Terminal
)

// Config controls a Runner.
type Config struct {
	Frontend Frontend
	Dev      bool // keep running after a halt, waiting for Swap
	Hz       int  // instructions per second
	Scale    int  // initial window pixels per display pixel
	Sound    bool

	Foreground color.RGBA
	Background color.RGBA
	Keymap     Keymap

	Machine chip8.Config

	// Logger receives runtime diagnostics. If nil, they are passed to
	// Logf instead, and dropped if that is nil too. Debugger command
	// errors always go to Logf.
	Logger *log.Logger
	Logf   func(format string, args ...any)

	// StateFunc, if set, is called from the execution goroutine to
	// report debugger state changes. The machine must not be retained.
	StateFunc StateFunc
}

// DefaultConfig returns the configuration used by the c8 command.
func DefaultConfig() Config {
	return Config{
		Frontend:   Window,
		Hz:         DefaultHz,
		Scale:      10,
		Sound:      true,
		Foreground: color.RGBA{0xff, 0xcc, 0x00, 0xff},
		Background: color.RGBA{0x99, 0x66, 0x00, 0xff},
		Keymap:     QWERTY,
		Machine:    chip8.DefaultConfig(),
	}
}

// StateKind identifies the reason StateFunc was called.
type StateKind int

const (
	ClearState StateKind = iota // execution resumed
	QuietState                  // periodic update while running
	DebugState                  // reached the debug address
	BreakState                  // stopped at the break address
	PauseState                  // paused or single-stepped
	HaltState                   // halted by a fatal error
)

// StateFunc reports the machine state to a debugger.
type StateFunc func(m *chip8.Machine, k StateKind)

type Runner struct {
	cfg Config

	swap     chan []byte
	swapDone chan bool
	debug    chan debugCmd
	quit     chan bool
	quitOnce sync.Once

	mu  sync.Mutex
	rom []byte

	buzzer Buzzer
}

func NewRunner(cfg Config) *Runner {
	if cfg.Keymap == nil {
		cfg.Keymap = QWERTY
	}
	return &Runner{
		cfg:      cfg,
		swap:     make(chan []byte),
		swapDone: make(chan bool),
		debug:    make(chan debugCmd, 16),
		quit:     make(chan bool),
		buzzer:   nopBuzzer{},
	}
}

// Swap replaces the running machine with a fresh one loaded with rom.
// It may only be called while Run is executing.
func (r *Runner) Swap(rom []byte) {
	r.swap <- rom
	<-r.swapDone
}

// Debug passes a debugger command to the running machine.
func (r *Runner) Debug(cmd string, addr uint16) {
	switch cmd {
	case "exit":
		r.stop()
		return
	case "r", "reset":
		r.mu.Lock()
		rom := r.rom
		r.mu.Unlock()
		go r.Swap(rom)
		return
	}
	select {
	case r.debug <- debugCmd{cmd, addr}:
	default:
		r.logf("debug: command %q dropped, machine busy", cmd)
	}
}

func (r *Runner) stop() {
	r.quitOnce.Do(func() { close(r.quit) })
}

// Run executes rom until the frontend exits, ctx is cancelled, or (outside
// dev mode) the machine halts. It returns the process exit code.
func (r *Runner) Run(ctx context.Context, rom []byte) (exitCode int, err error) {
	v, err := r.newVIP(rom)
	if err != nil {
		return 0, err
	}
	if r.cfg.Sound {
		b, err := newBeeper(buzzerHz)
		if err != nil {
			r.warn("audio unavailable", err)
		} else {
			r.buzzer = b
		}
	}
	if l := r.cfg.Logger; l != nil {
		l.Info("Loaded program", log.Int("size", len(rom)), log.Int("hz", r.cfg.Hz))
	}

	var (
		f    = r.newFrontend(v)
		exit = make(chan bool)
		done = make(chan bool)
	)
	go func() {
		defer close(done)
		var (
			execErr = make(chan error)
			running = true
		)
		go func(v *VIP) { execErr <- v.Exec() }(v)
		for {
			select {
			case rom := <-r.swap:
				newV, err := r.newVIP(rom)
				if err != nil {
					r.warn("reset rejected", err)
					r.swapDone <- true
					break
				}
				if running {
					v.Halt()
					<-execErr
				}
				v = newV
				f.Swap(v)
				go func(v *VIP) { execErr <- v.Exec() }(v)
				running = true
				if l := r.cfg.Logger; l != nil {
					l.Info("Machine reset", log.Int("size", len(rom)))
				}
				r.swapDone <- true
			case err := <-execErr:
				running = false
				if err == nil {
					close(exit)
					return
				}
				r.reportHalt(v, err)
				if r.cfg.Dev {
					break
				}
				exitCode = 1
				close(exit)
				return
			case <-ctx.Done():
				r.stopVIP(v, running, execErr)
				close(exit)
				return
			case <-r.quit:
				r.stopVIP(v, running, execErr)
				close(exit)
				return
			}
		}
	}()

	err = f.Run(exit)
	r.stop()
	<-done
	if err != nil {
		return exitCode, fmt.Errorf("frontend: %w", err)
	}
	return exitCode, nil
}

func (r *Runner) stopVIP(v *VIP, running bool, execErr <-chan error) {
	if running {
		v.Halt()
		<-execErr
	}
}

func (r *Runner) newVIP(rom []byte) (*VIP, error) {
	m := chip8.New(r.cfg.Machine)
	if err := m.LoadProgram(rom); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.rom = rom
	r.mu.Unlock()

	hz := r.cfg.Hz
	if hz <= 0 {
		hz = DefaultHz
	}
	perFrame := hz / 60
	if perFrame < 1 {
		perFrame = 1
	}
	return &VIP{
		m:          m,
		r:          r,
		perFrame:   perFrame,
		update:     make(chan bool),
		updateDone: make(chan bool),
		halt:       make(chan bool),
	}, nil
}

func (r *Runner) newFrontend(v *VIP) frontend {
	switch r.cfg.Frontend {
	case Window:
		return newGUI(v, &r.cfg)
	case Terminal:
		return newTerm(v, &r.cfg)
	default:
		return newHeadless(v)
	}
}

func (r *Runner) warn(msg string, err error) {
	if l := r.cfg.Logger; l != nil {
		l.Warn(msg, log.Err(err))
		return
	}
	r.logf("%s: %v", msg, err)
}

func (r *Runner) logf(format string, args ...any) {
	if r.cfg.Logf != nil {
		r.cfg.Logf(format, args...)
	}
}

func (r *Runner) reportHalt(v *VIP, err error) {
	if l := r.cfg.Logger; l != nil {
		l.Error("Machine halted", err)
		v.backlog.Emit(func(addr uint16, in chip8.Instr) {
			l.Debug("Trace", log.String("addr", fmt.Sprintf("%.3x", addr)), log.Stringer("instr", in),
				log.String("op", chip8.Decode(in).String()))
		})
		return
	}
	r.logf("chip8: %v", err)
}

// frontend presents a VIP to the user. Run blocks until exit is closed or
// the user quits. At most once per frame it should receive from the VIP's
// update channel, exchange keys and display with the machine, and reply on
// updateDone.
type frontend interface {
	Run(exit <-chan bool) error
	Swap(v *VIP)
}

// VIP is a CHIP-8 machine together with its clock.
type VIP struct {
	m *chip8.Machine
	r *Runner

	perFrame int
	backlog  backlog

	// The execution goroutine owns m except between a send on update
	// and the following receive on updateDone.
	update     chan bool
	updateDone chan bool
	halt       chan bool

	frozen atomic.Bool // timers stop while paused in the debugger

	paused  bool
	brk     uint16
	dbg     uint16
	reports int
}

// Machine returns the underlying machine. It is only safe to use between
// receiving on the update channel and replying on updateDone.
func (v *VIP) Machine() *chip8.Machine { return v.m }

// Halt stops Exec.
func (v *VIP) Halt() { close(v.halt) }

// Exec runs the machine until Halt is called or a fatal error occurs. Each
// frame it hands the machine to the frontend, then executes a frame's worth
// of instructions.
func (v *VIP) Exec() error {
	stop := v.startClock()
	defer stop()

	for {
		select {
		case v.update <- true:
			<-v.updateDone
		case c := <-v.r.debug:
			if err := v.handleDebug(c); err != nil {
				return err
			}
			continue
		case <-v.halt:
			return nil
		}
		if v.paused {
			continue
		}
		for i := 0; i < v.perFrame; i++ {
			if err := v.step(); err != nil {
				v.state(HaltState)
				return err
			}
			if v.brk != 0 && v.m.PC == v.brk {
				v.pause(BreakState)
				break
			}
			if v.dbg != 0 && v.m.PC == v.dbg {
				v.state(DebugState)
			}
		}
		if v.reports++; v.reports%15 == 0 {
			v.state(QuietState)
		}
	}
}

func (v *VIP) step() error {
	if v.m.State() == chip8.Running && v.m.Halted() == nil {
		v.backlog.Add(v.m.PC, v.m.Fetch(v.m.PC))
	}
	err := v.m.Step()
	if err == nil {
		return nil
	}
	if chip8.IsFatal(err) {
		return err
	}
	if u, ok := err.(chip8.UnknownOpcodeError); ok {
		if l := v.r.cfg.Logger; l != nil {
			l.Warn("Unknown opcode",
				log.String("addr", fmt.Sprintf("%.3x", u.Addr)),
				log.Stringer("instr", u.Instr))
			return nil
		}
	}
	v.r.logf("chip8: %v", err)
	return nil
}

func (v *VIP) state(k StateKind) {
	if f := v.r.cfg.StateFunc; f != nil {
		f(v.m, k)
	}
}

func (v *VIP) pause(k StateKind) {
	v.paused = true
	v.frozen.Store(true)
	v.state(k)
}

type debugCmd struct {
	cmd  string
	addr uint16
}

func (v *VIP) handleDebug(c debugCmd) error {
	switch c.cmd {
	case "b", "break":
		v.brk = c.addr
	case "d", "debug":
		v.dbg = c.addr
	case "p", "pause":
		v.pause(PauseState)
	case "c", "cont":
		v.paused = false
		v.frozen.Store(false)
		v.state(ClearState)
	case "s", "step":
		if !v.paused {
			v.pause(PauseState)
			break
		}
		if err := v.step(); err != nil {
			v.state(HaltState)
			return err
		}
		v.state(PauseState)
	default:
		v.r.logf("debug: unknown command %q", c.cmd)
	}
	return nil
}

// buzzerHz is the pitch of the buzzer tone.
const buzzerHz = 440

func (v *VIP) startClock() (stop func()) {
	var (
		done     = make(chan bool)
		finished = make(chan bool)
		b        = v.r.buzzer
	)
	go func() {
		defer close(finished)
		t := time.NewTicker(time.Second / 60)
		defer t.Stop()
		for {
			select {
			case <-done:
				b.Stop()
				return
			case <-t.C:
				if v.frozen.Load() {
					b.Stop()
					continue
				}
				if v.m.Tick() || !v.m.Sounding() {
					b.Stop()
				} else {
					b.Start()
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// headless runs the machine with no presentation at all.
type headless struct {
	mu sync.Mutex
	v  *VIP
}

func newHeadless(v *VIP) *headless { return &headless{v: v} }

func (h *headless) Swap(v *VIP) {
	h.mu.Lock()
	h.v = v
	h.mu.Unlock()
}

func (h *headless) vip() *VIP {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.v
}

func (h *headless) Run(exit <-chan bool) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	for {
		select {
		case <-exit:
			return nil
		case <-t.C:
			v := h.vip()
			select {
			case <-v.update:
				v.m.Frame()
				v.updateDone <- true
			default:
			}
		}
	}
}
