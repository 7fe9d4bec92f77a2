package main

import "sync"

// FlapCommand is neutral or an extension fraction in [0, 1], commanded
// to the aerodynamic drag flap servo.
type FlapCommand float64

const (
	flapNeutral   FlapCommand = 0
	flapMaxExtend FlapCommand = 1
)

// ActuatorPolicy computes the drag-flap command from the current
// phase and estimate, per spec.md §4.4: active only in CoastGnc,
// neutral everywhere else. Supplemented in SPEC_FULL.md §4.2 with a
// concrete proportional-overshoot law, reusing WingFC's
// PIDController the way WingFC always builds one even for a
// single-term loop (pid.go).
//
// Compute has a side effect on the PID loop's internal integral, so
// it must be called from exactly one task (the actuator tick); other
// tasks that need the most recent command (telemetry, logging) read
// it back through Last.
type ActuatorPolicy struct {
	mu   sync.Mutex
	loop *PIDController
	last FlapCommand
}

// NewActuatorPolicy builds the flap loop with the gains in config.go.
func NewActuatorPolicy() *ActuatorPolicy {
	return &ActuatorPolicy{loop: NewPIDController(flapP, flapI, flapD)}
}

// Compute advances the flap loop by one tick and returns the new
// command. dtS is the actuator task's period in seconds.
func (a *ActuatorPolicy) Compute(phase FlightPhase, estimate EstimateSample, dtS float64) FlapCommand {
	var command FlapCommand
	if phase != CoastGnc {
		command = flapNeutral
	} else {
		overshoot := float64(estimate.ApogeePrediction) - targetApogeeAltitudeM
		raw := a.loop.Update(overshoot, dtS)
		command = FlapCommand(constrain(raw, float64(flapNeutral), float64(flapMaxExtend)))
	}

	a.mu.Lock()
	a.last = command
	a.mu.Unlock()
	return command
}

// Last returns the most recently computed command without advancing
// the loop. Safe to call from any task.
func (a *ActuatorPolicy) Last() FlapCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
