package main

import "sync"

// KalmanFilter is the 3-state linear Kalman filter of spec.md §4.1.
// State vector X: [altitude, vertical_velocity, vertical_acceleration].
// Measurement vector Z: [altitude, vertical_acceleration].
//
// Generalizes WingFC's 2-state attitude filter: same predict/update
// shape, same hand-rolled Matrix type, a third state and a
// non-identity F/H.
type KalmanFilter struct {
	mu sync.Mutex // guards the published estimate slot (spec.md §5)

	X *Matrix // (3x1) [altitude, vel, accel]
	P *Matrix // (3x3) estimate error covariance
	Q *Matrix // (3x3) process noise covariance
	R *Matrix // (2x2) measurement noise covariance
	F *Matrix // (3x3) state transition matrix
	H *Matrix // (2x3) observation matrix

	apogeePrediction float32
	latest           EstimateSample
	ring             *EstimateRingBuffer
}

// NewKalmanFilter builds a filter with zeroed matrices; call
// Initialize before the first Step, per spec.md §4.1.
func NewKalmanFilter(ring *EstimateRingBuffer) *KalmanFilter {
	return &KalmanFilter{
		X:    NewMatrix(3, 1),
		P:    NewMatrix(3, 3),
		Q:    NewMatrix(3, 3),
		R:    NewMatrix(2, 2),
		F:    NewMatrix(3, 3),
		H:    NewMatrix(2, 3),
		ring: ring,
	}
}

// Initialize seeds the filter per spec.md §4.1: altitude from the mean
// of baroInitSamples barometer samples taken baroInitSpacingMs apart,
// velocity and acceleration at zero, P at zero. baroSample must block
// for roughly baroInitSpacingMs between calls (the sensor-sampling
// task keeps refreshing the cache concurrently).
func (kf *KalmanFilter) Initialize(baroSample func() float64) {
	sum := 0.0
	for i := 0; i < baroInitSamples; i++ {
		sum += baroSample()
	}

	kf.X.Set(0, 0, sum/float64(baroInitSamples))
	kf.X.Set(1, 0, 0)
	kf.X.Set(2, 0, 0)

	// P starts at zero: the filter is self-confident in the initial mean.
	kf.P = NewMatrix(3, 3)

	// H: altitude from barometer, acceleration from IMU.
	kf.H.Set(0, 0, 1)
	kf.H.Set(1, 2, 1)

	// R: diag(2.0, 0.1).
	kf.R.Set(0, 0, rAltitudeVariance)
	kf.R.Set(1, 1, rAccelVariance)

	// F and Q seeded with the nominal Kalman task period, converted to
	// seconds, as spec.md §4.1 requires ("Reported dt for F and Q
	// seeding uses a nominal sample interval equal to the Kalman task
	// period").
	nominalDt := float64(kalmanStepPeriodMs) / 1000.0
	kf.setF(nominalDt)
	kf.setQ(nominalDt, spectralDensity)
	kf.Q = kf.Q.Scale(qCalibrationFactor)
}

// setF recomputes F(dt) per spec.md §4.1: [[1,dt,dt²/2],[0,1,dt],[0,0,1]].
func (kf *KalmanFilter) setF(dt float64) {
	kf.F.Set(0, 0, 1)
	kf.F.Set(0, 1, dt)
	kf.F.Set(0, 2, dt*dt/2)
	kf.F.Set(1, 0, 0)
	kf.F.Set(1, 1, 1)
	kf.F.Set(1, 2, dt)
	kf.F.Set(2, 0, 0)
	kf.F.Set(2, 1, 0)
	kf.F.Set(2, 2, 1)
}

// setQ recomputes Q(dt, sd) per spec.md §4.1's closed form. The
// Q[0,1] factor of 80 is a deliberate empirical tuning artifact
// (spec.md §9) and is preserved bit-for-bit.
func (kf *KalmanFilter) setQ(dt, sd float64) {
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	dt5 := dt4 * dt

	q00 := dt5 / 20
	q01 := dt4 / 8 * 80
	q02 := dt3 / 6
	q11 := dt3 / 8
	q12 := dt2 / 2
	q22 := dt

	kf.Q.Set(0, 0, q00)
	kf.Q.Set(0, 1, q01)
	kf.Q.Set(0, 2, q02)
	kf.Q.Set(1, 0, q01)
	kf.Q.Set(1, 1, q11)
	kf.Q.Set(1, 2, q12)
	kf.Q.Set(2, 0, q02)
	kf.Q.Set(2, 1, q12)
	kf.Q.Set(2, 2, q22)

	kf.Q = kf.Q.Scale(sd)
}

// Step advances the filter by one tick, per spec.md §4.1's numbered
// procedure. dtMs is the elapsed time since the previous step, in
// milliseconds; phase is the FSM's current phase (read without any
// FSM-internal lock, per spec.md §5); baroAltitude/highGAz are the
// freshly-read sensor snapshots; the apogee prediction already stored
// via UpdateApogee is carried through unchanged.
func (kf *KalmanFilter) Step(dtMs float64, phase FlightPhase, baroAltitude, highGAz float64, now int64) {
	// 1. Skip if current FSM phase <= Idle.
	if phase <= Idle {
		return
	}

	dt := dtMs / 1000.0

	// 2. Recompute F(dt) and Q(dt, sd). qCalibrationFactor is applied only
	// once, at Initialize — kalmanFilter.cpp's per-step SetQ (invoked from
	// kfTickFunction) scales by sd alone, with no calibration factor.
	kf.setF(dt)
	kf.setQ(dt, spectralDensity)

	// 3. Priori.
	xPriori := kf.F.Multiply(kf.X)
	pPriori := kf.F.Multiply(kf.P).Multiply(kf.F.Transpose()).Add(kf.Q)

	// 4. Zero H[1,2] once phase >= Apogee: body-frame vertical
	// acceleration is no longer a reliable proxy after vehicle tumble.
	if phase >= Apogee {
		kf.H.Set(1, 2, 0)
	}

	// 5. Gain K = P- Hᵀ (H P- Hᵀ + R)⁻¹.
	hT := kf.H.Transpose()
	innovationCov := kf.H.Multiply(pPriori).Multiply(hT).Add(kf.R)
	k := pPriori.Multiply(hT).Multiply(innovationCov.Inverse())

	// 6. Measurement vector y: altitude from barometer, acceleration
	// from the high-g IMU with gravity removed and an empirical bias
	// subtracted. Preserved literally per spec.md §9.
	y := NewMatrix(2, 1)
	y.Set(0, 0, baroAltitude)
	y.Set(1, 0, highGAz*accelGravity-accelBias)

	// 7. Posteriori.
	innovation := y.Subtract(kf.H.Multiply(xPriori))
	kf.X = xPriori.Add(k.Multiply(innovation))
	identity := Identity(3)
	kf.P = identity.Subtract(k.Multiply(kf.H)).Multiply(pPriori)

	// 8. Publish.
	sample := EstimateSample{
		Altitude:             float32(kf.X.At(0, 0)),
		VerticalVelocity:     float32(kf.X.At(1, 0)),
		VerticalAcceleration: float32(kf.X.At(2, 0)),
		ApogeePrediction:     kf.apogeePrediction,
		Timestamp:            now,
	}
	kf.mu.Lock()
	kf.latest = sample
	kf.mu.Unlock()
	kf.ring.Push(sample)
}

// Latest returns the most recently published estimate.
func (kf *KalmanFilter) Latest() EstimateSample {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	return kf.latest
}

// UpdateApogee carries an externally computed apogee prediction
// through to the next published sample (spec.md §4.1: "updated
// externally ... and carried through unchanged").
func (kf *KalmanFilter) UpdateApogee(estimate float32) {
	kf.mu.Lock()
	kf.apogeePrediction = estimate
	kf.mu.Unlock()
}
