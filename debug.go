package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/c8/chip8"
	"github.com/nf/c8/vip"
)

type debugger struct {
	run *vip.Runner

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	mu       sync.Mutex
	dbg, brk uint16
	watches  []watch
}

type watch struct {
	addr  uint16
	short bool
}

var debugCommands = []string{
	"break", "debug", "watch", "watch2",
	"step", "cont", "pause", "reset", "exit",
}

func newDebugger() *debugger {
	d := &debugger{
		log: tview.NewTextView().
			SetDynamicColors(true).
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 4, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if t == "" || strings.Contains(t, " ") {
			return nil
		}
		for _, c := range debugCommands {
			if strings.HasPrefix(c, t) {
				entries = append(entries, c)
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := d.input.GetText()
		if cmd == "" {
			return
		}
		d.input.SetText("")
		d.command(cmd)
	})
	return d
}

func (d *debugger) command(cmd string) {
	if cmd == "exit" {
		d.app.Stop()
		return
	}
	if cmd, arg, ok := strings.Cut(cmd, " "); ok {
		addr, err := parseAddr(arg)
		if err != nil {
			log.Print(err)
			return
		}
		switch cmd {
		case "b", "break", "d", "debug":
			d.run.Debug(cmd, addr)
			d.mu.Lock()
			if cmd[0] == 'b' {
				d.brk = addr
			} else {
				d.dbg = addr
			}
			d.mu.Unlock()
			log.Printf("set %s %.3x", cmd, addr)
		case "w", "w2", "watch", "watch2":
			d.mu.Lock()
			d.watches = append(d.watches,
				watch{addr: addr, short: strings.HasSuffix(cmd, "2")})
			d.mu.Unlock()
			log.Printf("watching %.3x", addr)
		default:
			log.Printf("unknown command %q", cmd)
		}
		return
	}
	d.run.Debug(cmd, 0)
	d.mu.Lock()
	defer d.mu.Unlock()
	switch cmd {
	case "b", "break":
		d.brk = 0
		log.Print("cleared break")
	case "d", "debug":
		d.dbg = 0
		log.Print("cleared debug")
	}
}

// parseAddr parses a hexadecimal address, with or without a $ or 0x prefix.
func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "$"), "0x")
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil || n >= chip8.MemSize {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint16(n), nil
}

func (d *debugger) Run() error { return d.app.Run() }

func (d *debugger) StateFunc(m *chip8.Machine, k vip.StateKind) {
	var (
		watch = d.watchContent(m)
		state string
	)
	if k != vip.ClearState && k != vip.QuietState {
		state = stateMsg(m, k)
	}
	d.app.QueueUpdateDraw(func() {
		switch k {
		case vip.DebugState, vip.ClearState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case vip.BreakState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case vip.PauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case vip.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		if k != vip.QuietState {
			d.state.SetText(state)
		}
	})
}

func stateMsg(m *chip8.Machine, k vip.StateKind) string {
	in := m.Fetch(m.PC)
	kind := "       "
	switch k {
	case vip.BreakState:
		kind = "[break]"
	case vip.DebugState:
		kind = "[debug]"
	case vip.PauseState:
		kind = "[pause]"
	case vip.HaltState:
		kind = "[HALT!]"
	}
	if m.State() == chip8.AwaitingKey {
		kind += " (key)"
	}
	return fmt.Sprintf("%.3x %s %- 5s %s\nv: % x\ni: %.3x dt: %.2x st: %.2x\nrs: %v\n",
		m.PC, in, chip8.Decode(in), kind, m.V, m.I, m.Delay(), m.Sound(), m.Stack)
}

func (d *debugger) watchContent(m *chip8.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if d.brk != 0 {
		fmt.Fprintf(&b, "[%.3x] brk!\n", d.brk)
	}
	if d.dbg != 0 {
		fmt.Fprintf(&b, "[%.3x] dbg?\n", d.dbg)
	}
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%.3x] ", w.addr)
		if w.short {
			fmt.Fprintf(&b, "%.2x%.2x", m.Mem[w.addr], m.Mem[(w.addr+1)%chip8.MemSize])
		} else {
			fmt.Fprintf(&b, "  %.2x", m.Mem[w.addr])
		}
	}
	return b.String()
}
