// Package smoothing provides the fixed-window filters used to stabilise
// noisy landmark signals.
package smoothing

// Summable is a value that can be accumulated in a Buffer. The method set
// matches the mgl64 vector types, so mgl64.Vec2 and mgl64.Vec3 are Summable.
// Implementations must be plain values; the zero value is the additive identity.
type Summable[T any] interface {
	Add(T) T
	Sub(T) T
	Mul(float64) T
}

// Scalar is a float64 sample.
type Scalar float64

// Add returns s + o.
func (s Scalar) Add(o Scalar) Scalar { return s + o }

// Sub returns s - o.
func (s Scalar) Sub(o Scalar) Scalar { return s - o }

// Mul returns s * k.
func (s Scalar) Mul(k float64) Scalar { return Scalar(float64(s) * k) }

// Buffer is a fixed-capacity FIFO of the most recent samples.
// Push evicts the oldest sample once full; Mean is maintained with a running sum.
type Buffer[T Summable[T]] struct {
	data  []T
	pos   int
	count int
	sum   T
}

// NewBuffer creates a Buffer holding up to capacity samples.
// A capacity below 1 is treated as 1.
func NewBuffer[T Summable[T]](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		data: make([]T, capacity),
	}
}

// Push adds a sample, evicting the oldest one when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	if b.count == len(b.data) {
		b.sum = b.sum.Sub(b.data[b.pos])
	} else {
		b.count++
	}
	b.data[b.pos] = v
	b.sum = b.sum.Add(v)
	b.pos = (b.pos + 1) % len(b.data)

	// Running sums drift; rebase once per full revolution.
	if b.pos == 0 && b.count == len(b.data) {
		b.rebase()
	}
}

// Mean returns the arithmetic mean of the stored samples, or the zero value when empty.
func (b *Buffer[T]) Mean() T {
	var zero T
	if b.count == 0 {
		return zero
	}
	return b.sum.Mul(1 / float64(b.count))
}

// Len returns the number of stored samples.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Clear empties the buffer.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.pos = 0
	b.count = 0
	b.sum = zero
}

// Values returns the stored samples in insertion order.
func (b *Buffer[T]) Values() []T {
	if b.count == 0 {
		return nil
	}
	out := make([]T, b.count)
	if b.count < len(b.data) {
		copy(out, b.data[:b.count])
		return out
	}
	n := copy(out, b.data[b.pos:])
	copy(out[n:], b.data[:b.pos])
	return out
}

func (b *Buffer[T]) rebase() {
	var sum T
	for _, v := range b.data {
		sum = sum.Add(v)
	}
	b.sum = sum
}
