package common

// CircularBuffer is a fixed-size sample ring for streaming analysis. Writes
// overwrite the oldest sample once the ring is full, and the buffer tracks how
// many samples arrived since the caller last consumed a hop.
type CircularBuffer struct {
	buffer   []float64
	size     int
	writePos int
	count    int

	sinceLastHop int
	primed       bool
}

// NewCircularBuffer creates a new circular buffer
func NewCircularBuffer(size int) *CircularBuffer {
	if size < 1 {
		size = 1
	}
	return &CircularBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// WriteSample appends one sample, overwriting the oldest when full
func (cb *CircularBuffer) WriteSample(sample float64) {
	cb.buffer[cb.writePos] = sample
	cb.writePos++
	if cb.writePos == cb.size {
		cb.writePos = 0
	}
	if cb.count < cb.size {
		cb.count++
	}
	cb.sinceLastHop++
}

// Write appends a block of samples
func (cb *CircularBuffer) Write(data []float64) int {
	for _, sample := range data {
		cb.WriteSample(sample)
	}
	return len(data)
}

// CopyOrdered copies the ring into dst from oldest to newest sample.
// dst must hold at least Size() values; the number copied is returned.
func (cb *CircularBuffer) CopyOrdered(dst []float64) int {
	if len(dst) < cb.size {
		return 0
	}
	// writePos is the oldest sample once the ring has wrapped
	n := copy(dst, cb.buffer[cb.writePos:])
	copy(dst[n:], cb.buffer[:cb.writePos])
	return cb.size
}

// ConsumeHop reports whether the ring is full and at least hop new samples
// arrived; if so it consumes one hop. The samples that first fill the ring
// count as a single hop, so a backlog yields one frame per further hop.
func (cb *CircularBuffer) ConsumeHop(hop int) bool {
	if hop < 1 {
		hop = 1
	}
	if !cb.IsFull() || cb.sinceLastHop < hop {
		return false
	}
	if !cb.primed {
		cb.primed = true
		cb.sinceLastHop -= cb.size
		return true
	}
	cb.sinceLastHop -= hop
	return true
}

// PendingSinceHop returns the samples written since the last consumed hop
func (cb *CircularBuffer) PendingSinceHop() int {
	return cb.sinceLastHop
}

// Available returns number of valid samples in the ring
func (cb *CircularBuffer) Available() int {
	return cb.count
}

// Size returns the ring capacity
func (cb *CircularBuffer) Size() int {
	return cb.size
}

// Clear empties the buffer
func (cb *CircularBuffer) Clear() {
	for i := range cb.buffer {
		cb.buffer[i] = 0
	}
	cb.writePos = 0
	cb.count = 0
	cb.sinceLastHop = 0
	cb.primed = false
}

// IsFull returns true if buffer is full
func (cb *CircularBuffer) IsFull() bool {
	return cb.count == cb.size
}
