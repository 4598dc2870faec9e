package chip8

import (
	"image"
	"image/color"
)

// Display dimensions in pixels.
const (
	Width  = 64
	Height = 32
)

// Frame is a snapshot of the display, indexed [y][x].
type Frame [Height][Width]bool

// At reports whether the pixel at (x, y) is on. Coordinates wrap.
func (f *Frame) At(x, y int) bool {
	return f[wrap(y, Height)][wrap(x, Width)]
}

// Image renders the frame as a two-colour paletted image, one image pixel
// per display pixel.
func (f *Frame) Image(on, off color.Color) *image.Paletted {
	m := image.NewPaletted(image.Rect(0, 0, Width, Height), color.Palette{off, on})
	for y := range f {
		for x, px := range f[y] {
			if px {
				m.Pix[y*m.Stride+x] = 1
			}
		}
	}
	return m
}

// Display is the 64x32 monochrome display buffer. Sprites are XORed onto
// it and coordinates wrap at the edges.
type Display struct {
	px    Frame
	dirty bool
}

// Clear turns every pixel off.
func (d *Display) Clear() {
	d.px = Frame{}
	d.dirty = true
}

// Blit XORs the sprite onto the display with its top-left corner at (x, y),
// one byte per row, most significant bit leftmost. It reports whether any
// pixel was turned off.
func (d *Display) Blit(x, y int, sprite []byte) (collided bool) {
	x, y = wrap(x, Width), wrap(y, Height)
	for r, row := range sprite {
		py := (y + r) % Height
		for b := 0; b < 8; b++ {
			if row&(0x80>>b) == 0 {
				continue
			}
			px := (x + b) % Width
			if d.px[py][px] {
				collided = true
			}
			d.px[py][px] = !d.px[py][px]
		}
	}
	d.dirty = true
	return collided
}

// Dirty reports whether the display changed since the last Consume.
func (d *Display) Dirty() bool { return d.dirty }

// Consume returns a copy of the display and whether it changed since the
// previous call, and clears the dirty flag.
func (d *Display) Consume() (Frame, bool) {
	dirty := d.dirty
	d.dirty = false
	return d.px, dirty
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
