package vip

import "github.com/nf/c8/chip8"

// backlog records the most recently executed instructions so they can be
// printed when the machine halts.
type backlog struct {
	entries []traceEntry
	n       int
}

type traceEntry struct {
	addr  uint16
	instr chip8.Instr
}

const maxBacklog = 100

func (b *backlog) Add(addr uint16, in chip8.Instr) {
	if b.n < len(b.entries) {
		b.entries[b.n] = traceEntry{addr, in}
	} else {
		b.entries = append(b.entries, traceEntry{addr, in})
	}
	b.n = (b.n + 1) % maxBacklog
}

// Emit calls f for each recorded instruction, oldest first.
func (b *backlog) Emit(f func(addr uint16, in chip8.Instr)) {
	if len(b.entries) == 0 {
		return
	}
	for i := b.n; ; i++ {
		i %= len(b.entries)
		f(b.entries[i].addr, b.entries[i].instr)
		if (i+1)%maxBacklog == b.n {
			break
		}
	}
}

