package status

// ringBuffer is a fixed-capacity FIFO of recent activity.
// Not safe for concurrent use; the Tracker lock guards it.
type ringBuffer struct {
	buf      []Activity
	capacity int
	head     int // next write position
	count    int
	dropped  int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]Activity, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(a Activity) {
	r.buf[r.head] = a
	r.head = (r.head + 1) % r.capacity
	if r.count == r.capacity {
		// Overwrote the oldest entry
		r.dropped++
		return
	}
	r.count++
}

// items returns a copy, oldest first.
func (r *ringBuffer) items() []Activity {
	if r.count == 0 {
		return nil
	}

	result := make([]Activity, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}
	return result
}
