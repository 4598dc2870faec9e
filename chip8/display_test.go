package chip8

import (
	"image/color"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDisplay_Blit(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		sprite []byte
		on     [][2]int
	}{
		{"origin", 0, 0, []byte{0x80}, [][2]int{{0, 0}}},
		{"row", 8, 4, []byte{0xa0}, [][2]int{{8, 4}, {10, 4}}},
		{"wrap right", 62, 0, []byte{0xf0}, [][2]int{{62, 0}, {63, 0}, {0, 0}, {1, 0}}},
		{"wrap bottom", 0, 31, []byte{0x80, 0x80}, [][2]int{{0, 31}, {0, 0}}},
		{"corner", 63, 31, []byte{0xc0, 0xc0}, [][2]int{{63, 31}, {0, 31}, {63, 0}, {0, 0}}},
		{"start wraps", 64 + 1, 32 + 2, []byte{0x80}, [][2]int{{1, 2}}},
		{"negative start", -1, -1, []byte{0x80}, [][2]int{{63, 31}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Display
			collided := d.Blit(tt.x, tt.y, tt.sprite)
			assert.False(t, collided)

			f, dirty := d.Consume()
			assert.True(t, dirty)
			want := Frame{}
			for _, p := range tt.on {
				want[p[1]][p[0]] = true
			}
			if f != want {
				for y := range f {
					for x := range f[y] {
						if f[y][x] != want[y][x] {
							t.Errorf("pixel (%d, %d) = %v, want %v", x, y, f[y][x], want[y][x])
						}
					}
				}
			}
		})
	}
}

func TestDisplay_Collision(t *testing.T) {
	var d Display
	assert.False(t, d.Blit(0, 0, []byte{0xf0}))
	assert.False(t, d.Blit(4, 0, []byte{0xf0}))
	assert.True(t, d.Blit(3, 0, []byte{0x80}))

	f, _ := d.Consume()
	assert.False(t, f[0][3])
	assert.True(t, f[0][4])
}

func TestDisplay_EmptySpriteMarksDirty(t *testing.T) {
	var d Display
	assert.False(t, d.Blit(0, 0, nil))
	assert.True(t, d.Dirty())
}

func TestDisplay_Consume(t *testing.T) {
	var d Display
	_, dirty := d.Consume()
	assert.False(t, dirty)

	d.Blit(1, 1, []byte{0x80})
	f, dirty := d.Consume()
	assert.True(t, dirty)
	assert.True(t, f.At(1, 1))

	f, dirty = d.Consume()
	assert.False(t, dirty)
	assert.True(t, f.At(1, 1))

	d.Clear()
	f, dirty = d.Consume()
	assert.True(t, dirty)
	assert.False(t, f.At(1, 1))
}

func TestFrame_At(t *testing.T) {
	var f Frame
	f[31][63] = true
	assert.True(t, f.At(63, 31))
	assert.True(t, f.At(-1, -1))
	assert.True(t, f.At(127, 63))
	assert.False(t, f.At(0, 0))
}

func TestFrame_Image(t *testing.T) {
	var f Frame
	f[2][5] = true

	m := f.Image(color.White, color.Black)

	assert.Equal(t, Width, m.Bounds().Dx())
	assert.Equal(t, Height, m.Bounds().Dy())
	assert.Equal(t, uint8(1), m.ColorIndexAt(5, 2))
	assert.Equal(t, uint8(0), m.ColorIndexAt(0, 0))
}
