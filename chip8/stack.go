package chip8

import (
	"fmt"
	"strings"
)

// MinStackDepth is the smallest return stack a Machine will be built with.
const MinStackDepth = 8

// Stack implements the CHIP-8 return address stack.
type Stack struct {
	Addrs []uint16
	Ptr   int
}

func newStack(depth int) Stack {
	if depth < MinStackDepth {
		depth = MinStackDepth
	}
	return Stack{Addrs: make([]uint16, depth)}
}

// push panics with StackOverflow if the stack is full.
func (s *Stack) push(addr uint16) {
	if s.Ptr == len(s.Addrs) {
		panic(StackOverflow)
	}
	s.Addrs[s.Ptr] = addr
	s.Ptr++
}

// pop panics with StackUnderflow if the stack is empty.
func (s *Stack) pop() uint16 {
	if s.Ptr == 0 {
		panic(StackUnderflow)
	}
	s.Ptr--
	return s.Addrs[s.Ptr]
}

func (s *Stack) reset() {
	for i := range s.Addrs {
		s.Addrs[i] = 0
	}
	s.Ptr = 0
}

func (s Stack) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, v := range s.Addrs[:s.Ptr] {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%.3x", v)
	}
	b.WriteByte(' ')
	b.WriteByte(')')
	return b.String()
}
