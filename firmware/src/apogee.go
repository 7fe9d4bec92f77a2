package main

import "math"

// ApogeePredictor integrates a drag-only ballistic model forward from
// the current Kalman estimate to predict apogee altitude. Grounded on
// original_source/TARS's gnc/rk4.h: a fixed-step RK4 integrator over
// state [altitude, velocity], accelerated by gravity and a drag term.
// spec.md §4.1 explicitly puts this computation outside the estimator
// core's contract ("updated externally ... and carried through
// unchanged"); this is one concrete, simplified such external
// collaborator — the spline-interpolated drag coefficient table in
// rk4.h is replaced here with a constant effective drag coefficient,
// since reproducing the original's curve-fit table is out of scope
// for this core.
type ApogeePredictor struct {
	dragCoefficient float64 // Cd * A / (2 * m), lumped drag parameter
	airDensityKgM3  float64 // treated as constant over the prediction horizon
	stepS           float64
	maxSteps        int
}

// NewApogeePredictor returns a predictor with reasonable defaults for
// a small sounding rocket in the lower troposphere.
func NewApogeePredictor() *ApogeePredictor {
	return &ApogeePredictor{
		dragCoefficient: 0.0015,
		airDensityKgM3:  1.225,
		stepS:           0.05,
		maxSteps:        4000,
	}
}

// accel returns [dAlt/dt, dVel/dt] for state [altitude, velocity].
func (p *ApogeePredictor) accel(state [2]float64) [2]float64 {
	altitude, velocity := state[0], state[1]
	drag := p.dragCoefficient * p.airDensityKgM3 * velocity * math.Abs(velocity)
	return [2]float64{velocity, -accelGravity - drag}
}

func addScaled(a, b [2]float64, scale float64) [2]float64 {
	return [2]float64{a[0] + b[0]*scale, a[1] + b[1]*scale}
}

// rk4Step advances state by dt using classic 4th-order Runge-Kutta.
func (p *ApogeePredictor) rk4Step(state [2]float64, dt float64) [2]float64 {
	k1 := p.accel(state)
	k2 := p.accel(addScaled(state, k1, dt/2))
	k3 := p.accel(addScaled(state, k2, dt/2))
	k4 := p.accel(addScaled(state, k3, dt))

	next := [2]float64{0, 0}
	for i := 0; i < 2; i++ {
		next[i] = state[i] + (dt/6)*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return next
}

// Predict integrates forward from the current altitude/velocity until
// velocity crosses zero (apogee) or maxSteps is exhausted, and returns
// the predicted apogee altitude. Safe to call from the apogee-refresh
// task; it does not mutate shared state.
func (p *ApogeePredictor) Predict(altitude, velocity float64) float32 {
	if velocity <= 0 {
		return float32(altitude)
	}

	state := [2]float64{altitude, velocity}
	for i := 0; i < p.maxSteps; i++ {
		next := p.rk4Step(state, p.stepS)
		if next[1] <= 0 {
			return float32(next[0])
		}
		state = next
	}
	return float32(state[0])
}
