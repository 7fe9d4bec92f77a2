package main

import (
	"sync"
	"sync/atomic"
)

// FlightPhase is the tagged enumeration of spec.md §3, in
// monotonic-expected order. The "Detect" variants are hysteresis
// antechambers that may revert.
type FlightPhase int32

const (
	Init FlightPhase = iota
	Idle
	LaunchDetect
	Boost
	BurnoutDetect
	CoastPreGnc
	CoastGnc
	ApogeeDetect
	Apogee
	DrogueDetect
	Drogue
	MainDetect
	Main
	LandedDetect
	Landed
	Abort
)

func (p FlightPhase) String() string {
	switch p {
	case Init:
		return "Init"
	case Idle:
		return "Idle"
	case LaunchDetect:
		return "LaunchDetect"
	case Boost:
		return "Boost"
	case BurnoutDetect:
		return "BurnoutDetect"
	case CoastPreGnc:
		return "CoastPreGnc"
	case CoastGnc:
		return "CoastGnc"
	case ApogeeDetect:
		return "ApogeeDetect"
	case Apogee:
		return "Apogee"
	case DrogueDetect:
		return "DrogueDetect"
	case Drogue:
		return "Drogue"
	case MainDetect:
		return "MainDetect"
	case Main:
		return "Main"
	case LandedDetect:
		return "LandedDetect"
	case Landed:
		return "Landed"
	case Abort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// PhaseContext holds the running FSM's recorded transition timestamps
// and the elapsed counters recomputed each tick (spec.md §3).
type PhaseContext struct {
	LaunchTime  int64
	BurnoutTime int64
	ApogeeTime  int64
	DrogueTime  int64
	MainTime    int64
	LandingTime int64
}

// FSM is the eleven-... sixteen-variant flight-phase sequencer of
// spec.md §4.3. The phase itself is stored as an atomic so the Kalman
// task can read it each step (spec.md §4.1 step 1, step 4) without
// acquiring any FSM-internal lock — spec.md §5's "global abort flag,
// written once, read many times; atomicity of a machine word is
// assumed" extends naturally to the current phase as well.
type FSM struct {
	mu      sync.Mutex // guards ctx; the FSM task is its sole writer
	phase   atomic.Int32
	ctx     PhaseContext
	aborted atomic.Bool

	ring *EstimateRingBuffer
}

// NewFSM creates an FSM in Init, per spec.md §3's lifecycle ("Phase
// context is created at boot in Init").
func NewFSM(ring *EstimateRingBuffer) *FSM {
	f := &FSM{ring: ring}
	f.phase.Store(int32(Init))
	return f
}

// Phase returns the current flight phase. Safe to call from any task.
func (f *FSM) Phase() FlightPhase {
	return FlightPhase(f.phase.Load())
}

// SetAbort sets the sticky abort flag. Safe to call from the telemetry
// task on receipt of a ground ABORT command (spec.md §6).
func (f *FSM) SetAbort() {
	f.aborted.Store(true)
}

// Context returns a copy of the recorded transition timestamps.
func (f *FSM) Context() PhaseContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctx
}

func (f *FSM) setPhase(p FlightPhase) {
	f.phase.Store(int32(p))
}

// since returns now-t in milliseconds.
func since(now, t int64) float64 {
	return float64(now - t)
}

// Tick advances the FSM by at most one transition, per spec.md §4.3.
// latest is the most recent published estimate; now is the current
// monotonic tick. spec.md §3's ring-buffer invariant ("the estimate
// ring buffer always contains at least one sample before the FSM
// leaves Init") is enforced by stalling in Init until the ring has a
// sample.
func (f *FSM) Tick(latest EstimateSample, now int64) {
	if f.aborted.Load() {
		f.setPhase(Abort)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	phase := f.Phase()
	if phase == Abort {
		// Abort absorbs: once entered, no transition leaves it.
		return
	}

	acc := float64(latest.VerticalAcceleration)
	vel := float64(latest.VerticalVelocity)

	altWin := func(k int) float64 { return f.ring.Mean(fieldAltitude, k, 3) }
	accWin := func(k int) float64 { return f.ring.Mean(fieldAcceleration, k, 3) }
	altSecondDeriv := func(k int) float64 {
		return f.ring.SecondDerivativeMean(fieldAltitude, fieldTimestamp, k, 3)
	}

	switch phase {
	case Init:
		if f.ring.Len() < 1 {
			// Stall: the ring buffer has no sample yet.
			return
		}
		f.setPhase(Idle)

	case Idle:
		if acc > launchLinearAccelerationThresh {
			f.ctx.LaunchTime = now
			f.setPhase(LaunchDetect)
		}

	case LaunchDetect:
		if acc < launchLinearAccelerationThresh {
			f.setPhase(Idle)
			break
		}
		if since(now, f.ctx.LaunchTime) > launchTimeThresh {
			f.setPhase(Boost)
		}

	case Boost:
		if acc < coastThresh {
			f.ctx.BurnoutTime = now
			f.setPhase(BurnoutDetect)
			break
		}
		if since(now, f.ctx.LaunchTime) > burnTimeThreshMs {
			f.ctx.BurnoutTime = now
			f.setPhase(CoastPreGnc)
		}

	case BurnoutDetect:
		if acc > coastThresh {
			f.setPhase(Boost)
			break
		}
		if since(now, f.ctx.BurnoutTime) > coastTimeThresh {
			f.setPhase(CoastPreGnc)
		}

	case CoastPreGnc:
		if since(now, f.ctx.BurnoutTime) > coastAcDelayThresh {
			f.setPhase(CoastGnc)
		}

	case CoastGnc:
		if abs(vel)*0.02 < apogeeAltimeterThreshold {
			f.ctx.ApogeeTime = now
			f.setPhase(ApogeeDetect)
			break
		}
		if since(now, f.ctx.BurnoutTime) > coastToApogeeTimeThresh {
			f.ctx.ApogeeTime = now
			f.setPhase(Apogee)
		}

	case ApogeeDetect:
		if abs(altWin(0)-altWin(3)) > apogeeAltimeterThreshold {
			f.setPhase(CoastGnc)
			break
		}
		if since(now, f.ctx.ApogeeTime) > apogeeTimeThresh {
			f.setPhase(Apogee)
		}

	case Apogee:
		if abs(accWin(0)-accWin(3)) > drogueAccelerationChangeThresholdImu {
			f.setPhase(DrogueDetect)
			break
		}
		if since(now, f.ctx.ApogeeTime) > drogueDeployTimeSinceApogeeThreshold {
			f.ctx.DrogueTime = now
			f.setPhase(Drogue)
		}

	case DrogueDetect:
		if abs(altSecondDeriv(0)-altSecondDeriv(3)) > drogueAccelerationChangeThresholdAltimeter {
			f.ctx.DrogueTime = now
			f.setPhase(Drogue)
		} else {
			f.setPhase(Apogee)
		}

	case Drogue:
		if since(now, f.ctx.DrogueTime) > refreshTimer && abs(accWin(0)-accWin(3)) > mainAccelerationChangeThresholdImu {
			f.setPhase(MainDetect)
			break
		}
		if since(now, f.ctx.DrogueTime) > mainDeployTimeSinceDrogueThreshold {
			f.ctx.MainTime = now
			f.setPhase(Main)
		}

	case MainDetect:
		if abs(altSecondDeriv(0)-altSecondDeriv(3)) > mainAccelerationChangeThresholdAltimeter {
			f.ctx.MainTime = now
			f.setPhase(Main)
		} else {
			f.setPhase(Drogue)
		}

	case Main:
		if abs(altWin(0)-altWin(3)) < landingAltimeterThreshold {
			f.ctx.LandingTime = now
			f.setPhase(LandedDetect)
			break
		}
		// Preserved exactly as spec.md §4.3/§9 describe: this timeout
		// reuses mainDeployTimeSinceDrogueThreshold rather than a
		// dedicated Main timeout threshold.
		if since(now, f.ctx.DrogueTime) > mainDeployTimeSinceDrogueThreshold {
			f.ctx.LandingTime = now
			f.setPhase(Landed)
		}

	case LandedDetect:
		if abs(altWin(0)-altWin(3)) > landingAltimeterThreshold {
			f.setPhase(Main)
			break
		}
		if since(now, f.ctx.LandingTime) > landingTimeThresh {
			f.setPhase(Landed)
		}

	case Landed:
		// Terminal.
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
