package main

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/google/shlex"
)

// --- MOCK HARDWARE AND DEPENDENCIES FOR TESTING ---
//
// Mirrors crsf_test.go's mockUART: this module has no dependency on
// firmware/src (a TinyGo `package main`, not importable), so the
// framing logic under test is reproduced here in miniature, the same
// way crsf_test.go reproduces readReceiver's state machine rather than
// importing it.

type mockUART struct {
	dataChan chan byte
}

func (m *mockUART) ReadByte() (byte, error) {
	select {
	case b := <-m.dataChan:
		return b, nil
	case <-time.After(10 * time.Millisecond):
		return 0, nil
	}
}

var uart *mockUART

// TelemetryFrame mirrors firmware/src/telemetry.go's wire layout.
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

const telemetryMagic uint16 = 0xFC01

func (t TelemetryFrame) encode() []byte {
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

func decodeTelemetryFrame(raw []byte) (TelemetryFrame, error) {
	var t TelemetryFrame
	r := bytes.NewReader(raw)
	for _, field := range []any{&t.Magic, &t.Phase, &t.Timestamp, &t.Altitude, &t.VerticalVelocity, &t.VerticalAcceleration, &t.ApogeePrediction, &t.FlapCommand} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return TelemetryFrame{}, err
		}
	}
	return t, nil
}

func TestTelemetryFrameRoundTrips(t *testing.T) {
	want := TelemetryFrame{
		Magic:                telemetryMagic,
		Phase:                6,
		Timestamp:            123456,
		Altitude:             3041.5,
		VerticalVelocity:     -12.25,
		VerticalAcceleration: -9.5,
		ApogeePrediction:     3050.0,
		FlapCommand:          0.42,
	}

	got, err := decodeTelemetryFrame(want.encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch.\nwant: %+v\ngot:  %+v", want, got)
	}
}

func TestTelemetryFrameRejectsShortFrame(t *testing.T) {
	_, err := decodeTelemetryFrame([]byte{0x01, 0xFC})
	if err == nil {
		t.Fatal("expected an error decoding a truncated frame")
	}
}

// parseGroundCommand mirrors firmware/src/telemetry.go's command
// grammar: an operator-typed line, tokenized like a shell would be.
func parseGroundCommand(line string) string {
	tokens, err := shlex.Split(line)
	if err != nil || len(tokens) == 0 {
		return "NONE"
	}
	switch strings.ToUpper(tokens[0]) {
	case "ABORT":
		return "ABORT"
	case "PING":
		return "PING"
	default:
		return "NONE"
	}
}

func TestGroundCommandAbort(t *testing.T) {
	if got := parseGroundCommand("ABORT"); got != "ABORT" {
		t.Errorf("parseGroundCommand(%q) = %q, want ABORT", "ABORT", got)
	}
	if got := parseGroundCommand("abort"); got != "ABORT" {
		t.Errorf("parseGroundCommand is case-sensitive and shouldn't be: got %q", got)
	}
}

func TestGroundCommandPing(t *testing.T) {
	if got := parseGroundCommand("PING"); got != "PING" {
		t.Errorf("parseGroundCommand(%q) = %q, want PING", "PING", got)
	}
}

func TestGroundCommandUnknownIsNoop(t *testing.T) {
	for _, line := range []string{"", "   ", "launch now", "ABORTXYZ", "'unterminated"} {
		if got := parseGroundCommand(line); got != "NONE" {
			t.Errorf("parseGroundCommand(%q) = %q, want NONE", line, got)
		}
	}
}

// TestGroundCommandOverSerialLineFraming exercises the same
// mockUART transport idiom as crsf_test.go: commands arrive byte by
// byte over a serial link and must be reassembled on newline before
// being parsed.
func TestGroundCommandOverSerialLineFraming(t *testing.T) {
	mockUart := &mockUART{dataChan: make(chan byte, 32)}
	uart = mockUart

	resultChan := make(chan string, 1)
	go func() {
		var line []byte
		for {
			b, _ := uart.ReadByte()
			if b == '\n' {
				resultChan <- parseGroundCommand(string(line))
				return
			}
			if b != 0 {
				line = append(line, b)
			}
		}
	}()

	for _, b := range []byte("ABORT\n") {
		mockUart.dataChan <- b
	}

	select {
	case got := <-resultChan:
		if got != "ABORT" {
			t.Errorf("framed command = %q, want ABORT", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for framed ground command")
	}
}
