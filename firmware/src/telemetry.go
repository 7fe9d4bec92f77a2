package main

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/google/shlex"
)

// telemetryMagic tags the start of a downlink frame so a ground
// receiver losing mid-stream sync can scan forward to the next one.
const telemetryMagic uint16 = 0xFC01

// TelemetryFrame is the fixed-layout downlink packet recovered from
// original_source/TARS's telemetry.h, supplementing spec.md §6 (which
// lists the fields a telemetry packet carries but leaves the wire
// layout to "downstream's concern"). Every field here is one spec.md
// §6 output plus the current flight phase, fixed-width and
// little-endian so a small ground radio can decode it without a
// schema.
type TelemetryFrame struct {
	Magic                uint16
	Phase                int32
	Timestamp            int64
	Altitude             float32
	VerticalVelocity     float32
	VerticalAcceleration float32
	ApogeePrediction     float32
	FlapCommand          float32
}

// Encode serialises the frame to its wire layout.
func (t TelemetryFrame) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, t.Magic)
	binary.Write(buf, binary.LittleEndian, t.Phase)
	binary.Write(buf, binary.LittleEndian, t.Timestamp)
	binary.Write(buf, binary.LittleEndian, t.Altitude)
	binary.Write(buf, binary.LittleEndian, t.VerticalVelocity)
	binary.Write(buf, binary.LittleEndian, t.VerticalAcceleration)
	binary.Write(buf, binary.LittleEndian, t.ApogeePrediction)
	binary.Write(buf, binary.LittleEndian, t.FlapCommand)
	return buf.Bytes()
}

// newTelemetryFrame builds a frame from the current estimate, FSM
// phase, and commanded flap position.
func newTelemetryFrame(phase FlightPhase, estimate EstimateSample, flap FlapCommand) TelemetryFrame {
	return TelemetryFrame{
		Magic:                telemetryMagic,
		Phase:                int32(phase),
		Timestamp:            estimate.Timestamp,
		Altitude:             estimate.Altitude,
		VerticalVelocity:     estimate.VerticalVelocity,
		VerticalAcceleration: estimate.VerticalAcceleration,
		ApogeePrediction:     estimate.ApogeePrediction,
		FlapCommand:          float32(flap),
	}
}

// GroundCommand is the small grammar recovered from the same original
// telemetry source: an operator-typed ABORT, or a PING used only to
// verify the uplink is alive.
type GroundCommand int

const (
	CommandNone GroundCommand = iota
	CommandAbort
	CommandPing
)

// parseGroundCommand tokenizes a line of uplinked text with shlex, the
// way a shell would, and maps the first token to a command. Unknown or
// malformed input is CommandNone — never treated as an abort.
func parseGroundCommand(line string) GroundCommand {
	tokens, err := shlex.Split(line)
	if err != nil || len(tokens) == 0 {
		return CommandNone
	}
	switch strings.ToUpper(tokens[0]) {
	case "ABORT":
		return CommandAbort
	case "PING":
		return CommandPing
	default:
		return CommandNone
	}
}

// applyGroundCommand dispatches a parsed command against the running
// FSM. The only command with an effect is ABORT, which sets the sticky
// abort flag spec.md §5 describes; PING and CommandNone are no-ops.
func applyGroundCommand(cmd GroundCommand, f *FSM) {
	if cmd == CommandAbort {
		f.SetAbort()
	}
}
