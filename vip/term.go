package vip

import (
	"image/color"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/nf/c8/chip8"
)

// keyHold is how long a terminal key stays down. Terminals report only
// presses and repeats, so a key is released once it stops repeating.
const keyHold = 150 * time.Millisecond

func newTerm(v *VIP, cfg *Config) *term {
	return &term{
		v:      v,
		keymap: cfg.Keymap,
		fg:     tcellColor(cfg.Foreground),
		bg:     tcellColor(cfg.Background),
		held:   map[byte]time.Time{},
	}
}

// term draws the display in a terminal, two pixels per cell.
type term struct {
	mu sync.Mutex
	v  *VIP

	keymap Keymap
	fg, bg tcell.Color

	keys  keyQueue
	held  map[byte]time.Time // key -> release deadline
	frame chip8.Frame
	dirty bool
}

func (t *term) Swap(v *VIP) {
	t.mu.Lock()
	t.v = v
	t.mu.Unlock()
}

func (t *term) vip() *VIP {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.v
}

func (t *term) Run(exit <-chan bool) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	var (
		events = make(chan tcell.Event)
		quit   = make(chan bool)
	)
	defer close(quit)
	go func() {
		for {
			ev := s.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	tick := time.NewTicker(time.Second / 60)
	defer tick.Stop()
	t.dirty = true
	for {
		select {
		case <-exit:
			return nil

		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch ev.Key() {
				case tcell.KeyEscape, tcell.KeyCtrlC:
					return nil
				case tcell.KeyRune:
					if k, ok := t.keymap.Lookup(ev.Rune()); ok {
						t.press(k, ev.When())
					}
				}
			case *tcell.EventResize:
				s.Sync()
				t.dirty = true
			}

		case now := <-tick.C:
			v := t.vip()
			select {
			case <-v.update:
				t.sync(v.m, now)
				v.updateDone <- true
			default:
			}
			if t.dirty {
				t.draw(s)
				s.Show()
				t.dirty = false
			}
		}
	}
}

func (t *term) press(k byte, at time.Time) {
	if _, down := t.held[k]; !down {
		t.keys.down(k)
	}
	t.held[k] = at.Add(keyHold)
}

// release queues key-up events for held keys whose deadline has passed.
func (t *term) release(now time.Time) {
	for k, deadline := range t.held {
		if now.After(deadline) {
			delete(t.held, k)
			t.keys.up(k)
		}
	}
}

func (t *term) sync(m *chip8.Machine, now time.Time) {
	t.release(now)
	t.keys.apply(m)
	if f, changed := m.Frame(); changed {
		t.frame = f
		t.dirty = true
	}
}

// draw renders the frame using upper half blocks: the foreground colour of
// each cell is the upper pixel and the background is the lower.
func (t *term) draw(s tcell.Screen) {
	for y := 0; y < chip8.Height/2; y++ {
		for x := 0; x < chip8.Width; x++ {
			st := tcell.StyleDefault.
				Foreground(t.pixel(t.frame[2*y][x])).
				Background(t.pixel(t.frame[2*y+1][x]))
			s.SetContent(x, y, '▀', nil, st)
		}
	}
}

func (t *term) pixel(on bool) tcell.Color {
	if on {
		return t.fg
	}
	return t.bg
}

func tcellColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
