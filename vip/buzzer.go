package vip

import (
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Buzzer is the machine's single-tone sound device.
type Buzzer interface {
	Start()
	Stop()
}

type nopBuzzer struct{}

func (nopBuzzer) Start() {}
func (nopBuzzer) Stop()  {}

const (
	sampleRate = beep.SampleRate(44100)
	volume     = 0.2
)

// beeper plays a square wave through the speaker while on.
type beeper struct {
	on     atomic.Bool
	period int
	phase  int // only touched by the speaker goroutine
}

func newBeeper(hz int) (*beeper, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/30)); err != nil {
		return nil, err
	}
	b := &beeper{period: int(sampleRate) / hz}
	speaker.Play(beep.StreamerFunc(b.stream))
	return b, nil
}

func (b *beeper) Start() { b.on.Store(true) }
func (b *beeper) Stop()  { b.on.Store(false) }

func (b *beeper) stream(samples [][2]float64) (n int, ok bool) {
	on := b.on.Load()
	for i := range samples {
		var s float64
		if on {
			s = volume
			if b.phase >= b.period/2 {
				s = -volume
			}
		}
		b.phase = (b.phase + 1) % b.period
		samples[i][0], samples[i][1] = s, s
	}
	return len(samples), true
}
