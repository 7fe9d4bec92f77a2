package main

import (
	"machine"
	"time"
)

// Status indicator patterns, adapted from WingFC's led.go. The pin
// itself is the out-of-scope buzzer/LED hardware spec.md §1 calls an
// external collaborator; what's kept here is WingFC's
// pattern-selection state machine, retargeted from flight-controller
// lifecycle states to spec.md §3's flight phases.
const (
	statusOff       = 0
	statusOn        = 1
	statusSlowFlash = 2
	statusFastFlash = 3
	statusAlternate = 4
)

// statusIndicator drives a single status pin through a named blink
// pattern. Mirrors WingFC's ledState exactly, renamed.
type statusIndicator struct {
	pin        machine.Pin
	pattern    int
	lastToggle time.Time
	onDuration time.Duration
	isOn       bool
}

func newStatusIndicator(pin machine.Pin) *statusIndicator {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &statusIndicator{pin: pin, pattern: statusOff, lastToggle: time.Now()}
}

func (s *statusIndicator) setPattern(pattern int) {
	s.pattern = pattern
}

// update toggles the pin according to the current pattern. Call once
// per status-indicator tick.
func (s *statusIndicator) update() {
	now := time.Now()
	switch s.pattern {
	case statusOff:
		s.pin.Low()
		s.isOn = false
	case statusOn:
		s.pin.High()
		s.isOn = true
	case statusSlowFlash:
		s.toggle(now, 250*time.Millisecond)
	case statusFastFlash:
		s.toggle(now, 50*time.Millisecond)
	case statusAlternate:
		s.toggle(now, 500*time.Millisecond)
	}
}

func (s *statusIndicator) toggle(now time.Time, onDuration time.Duration) {
	s.onDuration = onDuration
	if now.Sub(s.lastToggle) < s.onDuration {
		return
	}
	if s.isOn {
		s.pin.Low()
	} else {
		s.pin.High()
	}
	s.isOn = !s.isOn
	s.lastToggle = now
}

// patternForPhase maps a flight phase to a status pattern: steady
// during boost and descent-under-chute, flashing during the
// hysteresis "Detect" antechambers (operator cue that a transition is
// pending), rapid flash in Abort.
func patternForPhase(phase FlightPhase) int {
	switch phase {
	case Init, Idle:
		return statusSlowFlash
	case LaunchDetect, BurnoutDetect, ApogeeDetect, DrogueDetect, MainDetect, LandedDetect:
		return statusAlternate
	case Boost, CoastPreGnc, CoastGnc, Apogee, Drogue, Main:
		return statusOn
	case Landed:
		return statusOff
	case Abort:
		return statusFastFlash
	default:
		return statusOff
	}
}
