package common

// Buffer is an owned, growable byte buffer. Reserve grows the backing array on
// demand; whether Release gives memory back is decided once, at construction.
type Buffer struct {
	data    []byte
	initial int
	shrink  bool
}

// NewBuffer allocates a Buffer of initial bytes. When shrink is false the
// buffer keeps whatever capacity it has grown to for its whole lifetime.
func NewBuffer(initial int, shrink bool) *Buffer {
	return &Buffer{
		data:    make([]byte, initial),
		initial: initial,
		shrink:  shrink,
	}
}

// Reserve returns a slice of exactly n bytes backed by the buffer, growing it
// if needed. The content is undefined.
func (b *Buffer) Reserve(n int) []byte {
	if n > cap(b.data) {
		b.data = make([]byte, n)
	}
	return b.data[:n]
}

// Release hands back memory grown beyond the initial size, if the buffer was
// built with a shrink policy. It is a no-op otherwise.
func (b *Buffer) Release() {
	if b.shrink && cap(b.data) > b.initial {
		b.data = make([]byte, b.initial)
	}
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}
