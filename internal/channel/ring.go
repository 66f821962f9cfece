// ABOUTME: Bounded ring of outbound encoded audio frames
// ABOUTME: Length-prefixed entries with evict-oldest overflow behavior
package channel

import (
	"encoding/binary"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// FrameRing buffers outbound audio payloads between the capture path and
// the channel writer. Frames are stored length-prefixed in one byte ring;
// when the ring fills, the oldest frames are evicted so capture never
// blocks and memory stays bounded. Pop order is capture order.
type FrameRing struct {
	mu    sync.Mutex
	rb    *ringbuffer.RingBuffer
	count int
}

// NewFrameRing creates a ring holding up to capacity bytes of frames.
func NewFrameRing(capacity int) *FrameRing {
	return &FrameRing{
		rb: ringbuffer.New(capacity).SetBlocking(false),
	}
}

// Push appends one frame, evicting the oldest frames if needed. A frame
// larger than the whole ring is dropped outright.
func (r *FrameRing) Push(payload string) bool {
	need := len(payload) + 4

	r.mu.Lock()
	defer r.mu.Unlock()

	if need > r.rb.Capacity() {
		return false
	}

	for r.rb.Free() < need {
		if !r.dropOldestLocked() {
			r.rb.Reset()
			r.count = 0
			break
		}
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := r.rb.Write(prefix[:]); err != nil {
		return false
	}
	if _, err := r.rb.Write([]byte(payload)); err != nil {
		return false
	}
	r.count++
	return true
}

// Pop removes and returns the oldest frame.
func (r *FrameRing) Pop() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return "", false
	}

	var prefix [4]byte
	if n, err := r.rb.Read(prefix[:]); err != nil || n != 4 {
		r.rb.Reset()
		r.count = 0
		return "", false
	}
	size := binary.LittleEndian.Uint32(prefix[:])

	data := make([]byte, size)
	if n, err := r.rb.Read(data); err != nil || n != int(size) {
		r.rb.Reset()
		r.count = 0
		return "", false
	}
	r.count--
	return string(data), true
}

// Len returns the number of buffered frames.
func (r *FrameRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *FrameRing) dropOldestLocked() bool {
	if r.count == 0 {
		return false
	}

	var prefix [4]byte
	if n, err := r.rb.Read(prefix[:]); err != nil || n != 4 {
		return false
	}
	size := binary.LittleEndian.Uint32(prefix[:])

	skip := make([]byte, size)
	if n, err := r.rb.Read(skip); err != nil || n != int(size) {
		return false
	}
	r.count--
	return true
}
