package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// telemetryMagic must match firmware/src/telemetry.go's frame tag.
const telemetryMagic uint16 = 0xFC01

const telemetryFrameSize = 2 + 4 + 8 + 4*5 // magic, phase, timestamp, 5 float32 fields

// TelemetryFrame mirrors the wire layout firmware/src/telemetry.go
// encodes. Decoded here byte-for-byte rather than shared via an
// import, since the firmware module is TinyGo-only and not meant to
// be pulled into a desktop binary.
type TelemetryFrame struct {
	Phase                int32
	TimestampMs          int64
	Altitude             float32
	VerticalVelocity     float32
	VerticalAcceleration float32
	ApogeePrediction     float32
	FlapCommand          float32
}

func decodeTelemetryFrame(raw []byte) (TelemetryFrame, error) {
	if len(raw) < telemetryFrameSize {
		return TelemetryFrame{}, fmt.Errorf("short frame: got %d bytes, want %d", len(raw), telemetryFrameSize)
	}
	var magic uint16
	var f TelemetryFrame
	r := bytes.NewReader(raw)
	fields := []any{&magic, &f.Phase, &f.TimestampMs, &f.Altitude, &f.VerticalVelocity, &f.VerticalAcceleration, &f.ApogeePrediction, &f.FlapCommand}
	for _, field := range fields {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return TelemetryFrame{}, err
		}
	}
	if magic != telemetryMagic {
		return TelemetryFrame{}, fmt.Errorf("bad frame magic: got %#x, want %#x", magic, telemetryMagic)
	}
	return f, nil
}

// Downlink is the serial radio bridge between the ground PC and the
// rocket's downlink radio, grounded on the retrieved pack's own
// go.bug.st/serial usage pattern (banshee-data-velocity.report's
// RadarPort): a thin wrapper owning the open port plus a Monitor loop.
type Downlink struct {
	port serial.Port
}

func NewDownlink(name string, baud int) (*Downlink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return &Downlink{port: port}, nil
}

func (d *Downlink) Close() error {
	return d.port.Close()
}

// Monitor reads fixed-size telemetry frames off the port and sends
// decoded frames to out until ctx is cancelled or the port closes.
// Frames that fail to decode (a dropped byte, a resync after signal
// loss) are logged-and-skipped by the caller's consumer, not here —
// Monitor's job ends at producing well-formed frames.
func (d *Downlink) Monitor(ctx context.Context, out chan<- TelemetryFrame) error {
	buf := make([]byte, telemetryFrameSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := io.ReadFull(d.port, buf); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		frame, err := decodeTelemetryFrame(buf)
		if err != nil {
			continue
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
