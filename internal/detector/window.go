package detector

// Window is a bounded FIFO buffer of recent latency values in milliseconds.
// When full, appending evicts the oldest value. It is owned by the Detector
// and is not safe for concurrent use.
type Window struct {
	values   []float64
	capacity int
}

// NewWindow creates a window holding up to capacity values.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 50
	}
	return &Window{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Append records a new value, evicting the oldest if the window is full.
func (w *Window) Append(v float64) {
	if len(w.values) == w.capacity {
		copy(w.values[0:], w.values[1:])
		w.values = w.values[:w.capacity-1]
	}
	w.values = append(w.values, v)
}

// Len returns the number of stored values.
func (w *Window) Len() int {
	return len(w.values)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Values returns a copy of the current contents in arrival order.
func (w *Window) Values() []float64 {
	return append([]float64(nil), w.values...)
}

// Last returns the most recently appended value, or zero when empty.
func (w *Window) Last() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return w.values[len(w.values)-1]
}
