package main

import (
	"fmt"
	"image/color"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"

	"github.com/nf/c8/chip8"
	"github.com/nf/c8/vip"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ffcc00", color.RGBA{0xff, 0xcc, 0x00, 0xff}, false},
		{"#0a0B0c", color.RGBA{0x0a, 0x0b, 0x0c, 0xff}, false},
		{"#fc0", color.RGBA{0xff, 0xcc, 0x00, 0xff}, false},
		{"ffcc00", color.RGBA{}, true},
		{"#ggg", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			if tt.wantErr {
				assert.True(t, err != nil)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"200", 0x200, false},
		{"$2a4", 0x2a4, false},
		{"0xfff", 0xfff, false},
		{"1000", 0, true},
		{"zz", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddr(tt.in)
			if tt.wantErr {
				assert.True(t, err != nil)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateMsg(t *testing.T) {
	m := chip8.New(chip8.DefaultConfig())
	assert.NoError(t, m.LoadProgram([]byte{0x62, 0x03, 0x22, 0x00}))
	assert.NoError(t, m.Step())
	assert.NoError(t, m.Step())

	msg := stateMsg(m, vip.BreakState)

	for _, want := range []string{
		"200 6203 LDB",
		"[break]",
		"v: 00 00 03",
		"rs: ( 204 )",
	} {
		assert.True(t, strings.Contains(msg, want), fmt.Sprintf("%q not in %q", want, msg))
	}
}
