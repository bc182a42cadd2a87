package audio

// Reassembler accumulates the agent's synthesized PCM for the current turn.
// It is not safe for concurrent use; the agent session owns it from a single
// goroutine.
type Reassembler struct {
	buf []byte
}

func NewReassembler() *Reassembler {
	return &Reassembler{buf: make([]byte, 0, 64<<10)}
}

// Append copies b onto the live accumulation.
func (r *Reassembler) Append(b []byte) {
	r.buf = append(r.buf, b...)
}

// Reset discards unplayed audio. The backing array is kept for the next turn.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

func (r *Reassembler) Len() int { return len(r.buf) }

func (r *Reassembler) Empty() bool { return len(r.buf) == 0 }

// Bytes returns a copy of the accumulation.
func (r *Reassembler) Bytes() []byte {
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out
}
