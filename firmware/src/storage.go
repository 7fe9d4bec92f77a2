package main

import (
	"encoding/binary"
	"math"
	"sync"

	"tinygo.org/x/drivers/sdcard"
	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

// storageRecord is one line of the on-board flight log: every
// published estimate plus the phase it was observed under. Not part
// of spec.md's own contract (§1 calls SD logging an external
// collaborator the core only drives through an interface); this is
// the concrete collaborator original_source/TARS's own SD logger
// plays, adapted to the estimate/phase shape this core publishes.
type storageRecord struct {
	Timestamp int64
	Phase     int32
	Altitude  float32
	Velocity  float32
	Accel     float32
	Apogee    float32
}

func (r storageRecord) encode() []byte {
	buf := make([]byte, 0, 28)
	put := func(v any) {
		switch x := v.(type) {
		case int64:
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, uint64(x))
			buf = append(buf, b...)
		case int32:
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, uint32(x))
			buf = append(buf, b...)
		case float32:
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(x))
			buf = append(buf, b...)
		}
	}
	put(r.Timestamp)
	put(r.Phase)
	put(r.Altitude)
	put(r.Velocity)
	put(r.Accel)
	put(r.Apogee)
	return buf
}

// StorageQueue is a small fixed-capacity FIFO of records awaiting a
// flush to the SD card, drained by the storage task (spec.md §2's
// storage-drain task). Mirrors the estimate ring buffer's
// mutex-guarded, fixed-capacity shape (ringbuffer.go) rather than an
// unbounded channel, since spec.md §5 rules out unbounded buffering
// anywhere in this core.
type StorageQueue struct {
	mu      sync.Mutex
	records [64]storageRecord
	head    int
	count   int
}

func (q *StorageQueue) Push(r storageRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := (q.head + q.count) % len(q.records)
	q.records[idx] = r
	if q.count < len(q.records) {
		q.count++
	} else {
		// Full: drop the oldest rather than blocking the publisher.
		q.head = (q.head + 1) % len(q.records)
	}
}

// drainOne pops the oldest queued record, if any.
func (q *StorageQueue) drainOne() (storageRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return storageRecord{}, false
	}
	r := q.records[q.head]
	q.head = (q.head + 1) % len(q.records)
	q.count--
	return r, true
}

// FlightLog owns the mounted littlefs filesystem over the SD card and
// the append-only log file records are drained into.
type FlightLog struct {
	fs   tinyfs.Filesystem
	file tinyfs.File
}

// NewFlightLog mounts a littlefs volume backed by the SD card on the
// pin configured in config.go and opens the flight log for appending.
// A mount or open failure here is a fatal peripheral init failure
// (spec.md §7 kind 2): the caller is expected to halt rather than
// start any periodic task against a nil FlightLog.
func NewFlightLog(card *sdcard.Device) (*FlightLog, error) {
	fs := littlefs.New(card)
	if err := fs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	}); err != nil {
		return nil, err
	}
	if err := fs.Mount(); err != nil {
		return nil, err
	}
	f, err := fs.OpenFile("flight.log", tinyfs.O_APPEND|tinyfs.O_CREATE|tinyfs.O_WRONLY)
	if err != nil {
		return nil, err
	}
	return &FlightLog{fs: fs, file: f}, nil
}

// drain writes every queued record to the open log file. Run from the
// storage-drain task at storageDrainPeriodMs. Write failures are
// logged and the record is dropped — matching spec.md §7's treatment
// of non-fatal I/O faults elsewhere in this core.
func (l *FlightLog) drain(q *StorageQueue) {
	for {
		rec, ok := q.drainOne()
		if !ok {
			return
		}
		if _, err := l.file.Write(rec.encode()); err != nil {
			println("flight log write failed, dropping record:", err.Error())
			return
		}
	}
}
