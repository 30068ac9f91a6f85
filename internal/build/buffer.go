package build

import "sync"

// Buffer is the compiler-output stream shared between the build worker
// (writer) and the UI poller (reader). Writes append under a mutex;
// Drain takes and clears the whole buffer atomically.
type Buffer struct {
	mu sync.Mutex
	b  []byte
}

// Write implements io.Writer for the compiler's merged output.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b = append(b.b, p...)
	return len(p), nil
}

// Append adds a string to the stream.
func (b *Buffer) Append(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b = append(b.b, s...)
}

// Drain returns everything accumulated since the last drain and
// empties the buffer.
func (b *Buffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := string(b.b)
	b.b = b.b[:0]
	return s
}

// Reset discards any buffered output.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b = b.b[:0]
}
