package main

import "sync"

// EstimateSample is the immutable record produced by the Kalman task
// and consumed by the FSM (spec.md §3).
type EstimateSample struct {
	Altitude             float32
	VerticalVelocity     float32
	VerticalAcceleration float32
	ApogeePrediction     float32
	Timestamp            int64 // monotonic tick count, milliseconds
}

// estimateField selects one float32 field out of a sample, for the
// windowed-statistics helpers below (spec.md §4.2).
type estimateField func(EstimateSample) float64

func fieldAltitude(s EstimateSample) float64     { return float64(s.Altitude) }
func fieldAcceleration(s EstimateSample) float64 { return float64(s.VerticalAcceleration) }
func fieldTimestamp(s EstimateSample) float64    { return float64(s.Timestamp) }

// EstimateRingBuffer is the fixed-capacity, single-producer
// multi-consumer queue of spec.md §3: indexed from newest (0)
// backwards, push overwrites the oldest sample once full, reads do
// not remove. It is the "ring-buffer of estimates" the design notes
// (spec.md §9) ask for: a fixed-capacity circular buffer plus pure
// functions over a slice.
type EstimateRingBuffer struct {
	mu       sync.Mutex
	samples  [ringBufferCapacity]EstimateSample
	count    int // number of valid samples, saturates at capacity
	writeIdx int // next slot to write
}

// NewEstimateRingBuffer returns an empty ring buffer, as required by
// spec.md §3's lifecycle: "initialised empty before the Kalman task
// starts and grows until steady state."
func NewEstimateRingBuffer() *EstimateRingBuffer {
	return &EstimateRingBuffer{}
}

// Push appends the newest sample, overwriting the oldest once the
// buffer is full. Called only from the Kalman task (spec.md §5: single
// producer, lock-free push in the design's conceptual model; here
// guarded by the ring's own mutex as spec.md §5 permits for readers).
func (b *EstimateRingBuffer) Push(s EstimateSample) {
	b.mu.Lock()
	b.samples[b.writeIdx] = s
	b.writeIdx = (b.writeIdx + 1) % ringBufferCapacity
	if b.count < ringBufferCapacity {
		b.count++
	}
	b.mu.Unlock()
}

// Len reports how many valid samples are currently held.
func (b *EstimateRingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// at returns the sample at newest-offset i (0 = most recent). Caller
// must hold b.mu.
func (b *EstimateRingBuffer) at(i int) EstimateSample {
	idx := (b.writeIdx - 1 - i + ringBufferCapacity) % ringBufferCapacity
	return b.samples[idx]
}

// Mean is the arithmetic mean of field over samples [start, start+len)
// counted from newest. Fails closed (returns 0) if the window exceeds
// the number of samples available, or len <= 0, or start is
// out-of-range (spec.md §4.2, §8).
func (b *EstimateRingBuffer) Mean(field estimateField, start, length int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if length <= 0 || start < 0 || start+length > b.count {
		return 0
	}

	sum := 0.0
	for i := start; i < start+length; i++ {
		sum += field(b.at(i))
	}
	return sum / float64(length)
}

// SecondDerivativeMean is the mean of the second finite difference of
// field with respect to timeField over the window, using central
// differences where possible and forward/backward differences at the
// edges (spec.md §4.2). Fails closed the same way Mean does.
func (b *EstimateRingBuffer) SecondDerivativeMean(field, timeField estimateField, start, length int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if length <= 0 || start < 0 || start+length > b.count {
		return 0
	}

	// secondDerivOf3 estimates f''(t) at the middle of three samples
	// ordered oldest-to-newest-in-time (tNext is the most recent of the
	// three), from the two bracketing slopes either side of it.
	secondDerivOf3 := func(fNext, fCur, fPrev, tNext, tCur, tPrev float64) float64 {
		dtFwd := tNext - tCur
		dtBwd := tCur - tPrev
		if dtFwd == 0 || dtBwd == 0 {
			return 0
		}
		slopeFwd := (fNext - fCur) / dtFwd
		slopeBwd := (fCur - fPrev) / dtBwd
		dtAvg := (dtFwd + dtBwd) / 2
		if dtAvg == 0 {
			return 0
		}
		return (slopeFwd - slopeBwd) / dtAvg
	}

	// secondDeriv approximates f''(t) near sample index i (newest-offset,
	// 0-based within the buffer) using three samples, all drawn from
	// [start, start+length) — never reaching outside the window. Newest-
	// offset indices run backwards in time, so the "next" sample in time
	// is always the lower offset.
	secondDeriv := func(i int) float64 {
		switch {
		case i-1 >= start && i+1 < start+length:
			// Interior: centered on i itself.
			return secondDerivOf3(
				field(b.at(i-1)), field(b.at(i)), field(b.at(i+1)),
				timeField(b.at(i-1)), timeField(b.at(i)), timeField(b.at(i+1)),
			)
		case i+2 < start+length:
			// Newest edge of the window (i-1 would fall outside it):
			// centered one sample older than i, using i, i+1, i+2.
			return secondDerivOf3(
				field(b.at(i)), field(b.at(i+1)), field(b.at(i+2)),
				timeField(b.at(i)), timeField(b.at(i+1)), timeField(b.at(i+2)),
			)
		case i-2 >= start:
			// Oldest edge of the window (i+1 would fall outside it):
			// centered one sample newer than i, using i-2, i-1, i.
			return secondDerivOf3(
				field(b.at(i-2)), field(b.at(i-1)), field(b.at(i)),
				timeField(b.at(i-2)), timeField(b.at(i-1)), timeField(b.at(i)),
			)
		default:
			return 0
		}
	}

	sum := 0.0
	for i := start; i < start+length; i++ {
		sum += secondDeriv(i)
	}
	return sum / float64(length)
}
