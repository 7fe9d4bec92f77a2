// Command groundstation reads the downlink telemetry stream off a
// serial radio bridge, persists every decoded frame, and renders a
// post-flight altitude/velocity/acceleration chart. It is a desktop
// companion to the firmware core, not part of the flight-critical
// path: nothing here runs on the rocket.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB0", "serial port the ground radio bridge is attached to")
	baud := flag.Int("baud", 57600, "serial baud rate")
	dbPath := flag.String("db", "flights.sqlite", "path to the flight telemetry database")
	chartFlight := flag.String("chart", "", "if set, render a post-flight chart for this flight ID and exit")
	flag.Parse()

	store, err := NewStore(*dbPath)
	if err != nil {
		log.Fatalf("opening flight database: %v", err)
	}
	defer store.Close()

	if *chartFlight != "" {
		id, err := uuid.Parse(*chartFlight)
		if err != nil {
			log.Fatalf("invalid flight id %q: %v", *chartFlight, err)
		}
		if err := renderFlightChart(store, id, id.String()+".html"); err != nil {
			log.Fatalf("rendering chart: %v", err)
		}
		return
	}

	flightID := uuid.New()
	log.Printf("starting flight session %s", flightID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	link, err := NewDownlink(*port, *baud)
	if err != nil {
		log.Fatalf("opening downlink port %s: %v", *port, err)
	}
	defer link.Close()

	frames := make(chan TelemetryFrame, 32)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		return link.Monitor(ctx, frames)
	})
	g.Go(func() error {
		return persistFrames(ctx, store, flightID, frames)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("groundstation exited: %v", err)
	}

	log.Printf("flight session %s ended; rendering chart", flightID)
	if err := renderFlightChart(store, flightID, flightID.String()+".html"); err != nil {
		log.Printf("rendering chart: %v", err)
	}
}

func persistFrames(ctx context.Context, store *Store, flightID uuid.UUID, frames <-chan TelemetryFrame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := store.RecordFrame(flightID, frame); err != nil {
				log.Printf("recording frame: %v", err)
			}
		}
	}
}
