package chip8

// State is the execution state of a Machine.
type State byte

const (
	// Running machines execute one instruction per Step.
	Running State = iota
	// AwaitingKey machines are suspended on Fx0A until a key goes down.
	AwaitingKey
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingKey:
		return "awaiting key"
	}
	return "unknown"
}

// Keypad latches the state of the 16-key hexadecimal keypad, and the
// register that receives the next key press while the machine waits on one.
type Keypad struct {
	Down  [16]bool
	State State
	Reg   byte // destination of Fx0A; valid only while AwaitingKey
}

func (k *Keypad) await(reg byte) {
	k.State = AwaitingKey
	k.Reg = reg
}

// press latches key k as held. If the keypad was awaiting a key it resumes,
// and press returns the destination register and true.
func (k *Keypad) press(key byte) (reg byte, resumed bool) {
	k.Down[key&0xf] = true
	if k.State != AwaitingKey {
		return 0, false
	}
	k.State = Running
	return k.Reg, true
}

func (k *Keypad) release(key byte) {
	k.Down[key&0xf] = false
}
