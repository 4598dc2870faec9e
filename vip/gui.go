package vip

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/draw"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nf/c8/chip8"
)

func newGUI(v *VIP, cfg *Config) *gui {
	scale := cfg.Scale
	if scale < 1 {
		scale = 1
	}
	return &gui{
		v:      v,
		keymap: cfg.Keymap,
		scale:  scale,
		fg:     cfg.Foreground,
		bg:     cfg.Background,
	}
}

type gui struct {
	mu sync.Mutex
	v  *VIP

	keymap Keymap
	scale  int
	fg, bg color.RGBA

	keys  keyQueue
	frame chip8.Frame
	buf   screen.Buffer
	dirty bool
}

func (g *gui) Swap(v *VIP) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}

func (g *gui) vip() *VIP {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.v
}

func (g *gui) Run(exit <-chan bool) (err error) {
	driver.Main(func(s screen.Screen) {
		w, e := s.NewWindow(&screen.NewWindowOptions{
			Title:  "c8",
			Width:  chip8.Width * g.scale,
			Height: chip8.Height * g.scale,
		})
		if e != nil {
			err = e
			return
		}
		defer w.Release()

		go sendUpdates(exit, w.Send)

		defer g.release()

		var sz size.Event
		for {
			e := w.NextEvent()

			select {
			case <-exit:
				return
			default:
			}

			switch e := e.(type) {
			case size.Event:
				sz = e
				if sz.WidthPx+sz.HeightPx == 0 {
					return
				}
				g.dirty = true

			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}

			case paint.Event:
				g.dirty = true

			case key.Event:
				if e.Code == key.CodeEscape {
					return
				}
				k, ok := g.keymap.Lookup(codeRune(e.Code))
				if !ok {
					break
				}
				switch e.Direction {
				case key.DirPress:
					g.keys.down(k)
				case key.DirRelease:
					g.keys.up(k)
				}

			case update:
				v := g.vip()
				select {
				case <-v.update:
					g.sync(v.m)
					v.updateDone <- true
				default:
					// cpu is busy
				}
				if g.dirty && sz.WidthPx > 0 && sz.HeightPx > 0 {
					if e := g.paint(s, w, sz); e != nil {
						err = fmt.Errorf("paint: %w", e)
						return
					}
				}

			case error:
				err = e
				return
			}
		}
	})
	return err
}

type update struct{}

// sendUpdates sends an update event every frame until exit is closed, then
// sends one more so that a loop blocked waiting for events sees the exit.
func sendUpdates(exit <-chan bool, send func(event any)) {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			send(update{})
		case <-exit:
			send(update{})
			return
		}
	}
}

// sync exchanges input and output with m. It must only be called while the
// frontend holds the machine.
func (g *gui) sync(m *chip8.Machine) {
	g.keys.apply(m)
	if f, changed := m.Frame(); changed {
		g.frame = f
		g.dirty = true
	}
}

func (g *gui) paint(s screen.Screen, w screen.Window, sz size.Event) (err error) {
	b := sz.Bounds()
	if g.buf == nil || g.buf.Size() != b.Size() {
		g.release()
		if g.buf, err = s.NewBuffer(b.Size()); err != nil {
			return err
		}
	}
	dst := g.buf.RGBA()
	draw.Draw(dst, dst.Bounds(), image.NewUniform(g.bg), image.Point{}, draw.Src)
	src := g.frame.Image(g.fg, g.bg)
	draw.NearestNeighbor.Scale(dst, fit(b, src.Bounds()), src, src.Bounds(), draw.Src, nil)
	w.Upload(image.Point{}, g.buf, b)
	w.Publish()
	g.dirty = false
	return nil
}

func (g *gui) release() {
	if g.buf != nil {
		g.buf.Release()
		g.buf = nil
	}
}

// fit returns the largest rectangle with the aspect ratio of src that fits
// centred within dst.
func fit(dst, src image.Rectangle) image.Rectangle {
	dw, dh := dst.Dx(), dst.Dy()
	sw, sh := src.Dx(), src.Dy()
	w, h := dw, dw*sh/sw
	if h > dh {
		w, h = dh*sw/sh, dh
	}
	at := image.Point{dst.Min.X + (dw-w)/2, dst.Min.Y + (dh-h)/2}
	return image.Rectangle{at, at.Add(image.Point{w, h})}
}

// keyQueue holds key transitions that arrive between frames.
type keyQueue struct {
	events []keyEvent
}

type keyEvent struct {
	key  byte
	down bool
}

func (q *keyQueue) down(k byte) { q.events = append(q.events, keyEvent{k, true}) }
func (q *keyQueue) up(k byte)   { q.events = append(q.events, keyEvent{k, false}) }

func (q *keyQueue) apply(m *chip8.Machine) {
	for _, e := range q.events {
		if e.down {
			m.KeyDown(e.key)
		} else {
			m.KeyUp(e.key)
		}
	}
	q.events = q.events[:0]
}
