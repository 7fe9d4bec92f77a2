package main

import "testing"

func newTestFSM() (*FSM, *EstimateRingBuffer) {
	ring := NewEstimateRingBuffer()
	ring.Push(EstimateSample{Timestamp: 0})
	f := NewFSM(ring)
	f.Tick(EstimateSample{}, 0) // Init -> Idle, now that the ring is non-empty
	return f, ring
}

func TestFSMStallsInInitUntilRingHasASample(t *testing.T) {
	ring := NewEstimateRingBuffer()
	f := NewFSM(ring)

	f.Tick(EstimateSample{}, 0)
	if f.Phase() != Init {
		t.Fatalf("Phase() = %v, want Init while ring buffer is still empty", f.Phase())
	}

	ring.Push(EstimateSample{Timestamp: 0})
	f.Tick(EstimateSample{}, 1)
	if f.Phase() != Idle {
		t.Fatalf("Phase() = %v, want Idle once the ring buffer holds a sample", f.Phase())
	}
}

func TestFSMQuietIdleStaysIdle(t *testing.T) {
	f, _ := newTestFSM()
	for now := int64(0); now < 1000; now += fsmTickPeriodMs {
		f.Tick(EstimateSample{VerticalAcceleration: float32(accelGravity)}, now)
	}
	if f.Phase() != Idle {
		t.Fatalf("Phase() = %v, want Idle under 1g quiescent acceleration", f.Phase())
	}
}

func TestFSMLaunchTransientIsRejected(t *testing.T) {
	f, _ := newTestFSM()

	f.Tick(EstimateSample{VerticalAcceleration: float32(launchLinearAccelerationThresh + 1)}, 0)
	if f.Phase() != LaunchDetect {
		t.Fatalf("Phase() = %v, want LaunchDetect on an acceleration spike", f.Phase())
	}

	// The spike drops back below threshold well before launchTimeThresh
	// elapses: LaunchDetect should revert to Idle, not confirm Boost.
	f.Tick(EstimateSample{VerticalAcceleration: 0}, 10)
	if f.Phase() != Idle {
		t.Fatalf("Phase() = %v, want Idle after a launch transient reverts", f.Phase())
	}
}

func TestFSMCleanLaunchReachesBoost(t *testing.T) {
	f, _ := newTestFSM()
	acc := float32(launchLinearAccelerationThresh + 5)

	f.Tick(EstimateSample{VerticalAcceleration: acc}, 0)
	if f.Phase() != LaunchDetect {
		t.Fatalf("Phase() = %v, want LaunchDetect", f.Phase())
	}

	f.Tick(EstimateSample{VerticalAcceleration: acc}, int64(launchTimeThresh)+1)
	if f.Phase() != Boost {
		t.Fatalf("Phase() = %v, want Boost once sustained past launchTimeThresh", f.Phase())
	}
}

func TestFSMBurnoutByTimeout(t *testing.T) {
	f, _ := newTestFSM()
	acc := float32(launchLinearAccelerationThresh + 5)

	f.Tick(EstimateSample{VerticalAcceleration: acc}, 0)
	f.Tick(EstimateSample{VerticalAcceleration: acc}, int64(launchTimeThresh)+1)
	if f.Phase() != Boost {
		t.Fatalf("Phase() = %v, want Boost", f.Phase())
	}

	// Sustain high acceleration (never drops below coastThresh) but let
	// burnTimeThreshMs elapse: Boost should transition on the timeout
	// path straight to CoastPreGnc.
	launchTime := int64(launchTimeThresh) + 1
	f.Tick(EstimateSample{VerticalAcceleration: acc}, launchTime+int64(burnTimeThreshMs)+1)
	if f.Phase() != CoastPreGnc {
		t.Fatalf("Phase() = %v, want CoastPreGnc after burnTimeThreshMs elapses", f.Phase())
	}
}

func TestFSMApogeeViaVelocityCollapse(t *testing.T) {
	f, _ := newTestFSM()
	f.setPhase(CoastGnc)
	f.ctx.BurnoutTime = 0

	f.Tick(EstimateSample{VerticalVelocity: 1}, 100)
	if f.Phase() != ApogeeDetect {
		t.Fatalf("Phase() = %v, want ApogeeDetect once |vel|*0.02 drops under threshold", f.Phase())
	}
}

func TestFSMLandedConfirmed(t *testing.T) {
	f, ring := newTestFSM()
	f.setPhase(Main)
	f.ctx.DrogueTime = 0

	for i := 0; i < 6; i++ {
		ring.Push(EstimateSample{Altitude: 10, Timestamp: int64(i) * 100})
	}

	f.Tick(EstimateSample{Altitude: 10}, 1000)
	if f.Phase() != LandedDetect {
		t.Fatalf("Phase() = %v, want LandedDetect once altitude stops changing", f.Phase())
	}

	f.Tick(EstimateSample{Altitude: 10}, int64(landingTimeThresh)+1001)
	if f.Phase() != Landed {
		t.Fatalf("Phase() = %v, want Landed once landingTimeThresh elapses", f.Phase())
	}
}

func TestFSMAbortIsSticky(t *testing.T) {
	f, _ := newTestFSM()
	f.setPhase(Boost)
	f.SetAbort()

	f.Tick(EstimateSample{VerticalAcceleration: float32(launchLinearAccelerationThresh + 5)}, 100)
	if f.Phase() != Abort {
		t.Fatalf("Phase() = %v, want Abort once the sticky flag is set", f.Phase())
	}

	f.Tick(EstimateSample{VerticalAcceleration: 0}, 200)
	if f.Phase() != Abort {
		t.Fatalf("Phase() = %v, Abort must not be left by any later tick", f.Phase())
	}
}
