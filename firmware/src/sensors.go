package main

import (
	"sync"
	"time"

	"tinygo.org/x/drivers/adxl345"
	"tinygo.org/x/drivers/bmp280"
	"tinygo.org/x/drivers/bno055"
	"tinygo.org/x/drivers/lis3mdl"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

// Unit conversions for raw driver readings. Mirrors WingFC's main.go
// microGToMS2/microDPSToRadS constants, generalized to every driver
// in the sensor cache rather than a single IMU.
const (
	microGToMS2    = 9.80665 / 1e6
	microDPSToRadS = 3.14159265358979 / (180 * 1e6)
)

// Snapshot is a single cached reading plus the tick it was taken at.
// spec.md §3: "A mutable cache per sensor ... A stale flag is not
// maintained — consumers tolerate re-reads of unchanged values."
type Snapshot[T any] struct {
	Value     T
	Timestamp int64
}

// SensorCache is one mutex-guarded cache, one per physical sensor
// (spec.md §3, §5, §9 "struct-of-sensors owned by a scheduler root,
// each sensor paired with its own fine-grained lock"). Generalizes
// WingFC's channelsMutex/Channels pair, which was a single global
// cache for one data source; here every sensor gets its own.
type SensorCache[T any] struct {
	mu       sync.Mutex
	snapshot Snapshot[T]
	ok       bool
}

// Update stores a fresh reading. Called only from the sensor-sampling
// task (spec.md §5: "one writer ... per cache").
func (c *SensorCache[T]) Update(value T, now int64) {
	c.mu.Lock()
	c.snapshot = Snapshot[T]{Value: value, Timestamp: now}
	c.ok = true
	c.mu.Unlock()
}

// Read returns the last successfully cached reading. If no reading has
// ever landed, ok is false and callers should treat the zero value as
// not-yet-available rather than as a real measurement.
func (c *SensorCache[T]) Read() (Snapshot[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.ok
}

// BarometerReading is the altitude reading consumed by the Kalman
// estimator (spec.md §6: "barometer.altitude() → meters above takeoff
// reference").
type BarometerReading struct {
	AltitudeM float64
}

// HighGReading is the body-frame accelerometer reading consumed by the
// Kalman estimator (spec.md §6: "high_g.acceleration().az → body-frame
// vertical, gravities").
type HighGReading struct {
	AzG float64
}

// LowGReading is the secondary IMU's accel+gyro reading. Not part of
// the filter's measurement vector; retained for telemetry and for a
// future attitude estimator, per spec.md §1's explicit non-goal of
// lateral/attitude filtering in this core.
type LowGReading struct {
	AccelX, AccelY, AccelZ float64
	GyroX, GyroY, GyroZ    float64
}

// MagnetometerReading and OrientationReading are sampled and cached by
// the sensor task (spec.md §2) but, like LowGReading, are not consumed
// by the Kalman estimator or FSM — this core filters only the vertical
// axis (spec.md §1 Non-goals).
type MagnetometerReading struct {
	X, Y, Z float64
}

type OrientationReading struct {
	W, X, Y, Z float64 // quaternion, as reported by the orientation unit
}

// SensorRig owns every sensor cache and the driver handles that feed
// them. It is the struct-of-sensors root called out in spec.md §9,
// replacing WingFC's single package-level lsm *lsm6ds3tr.Device.
type SensorRig struct {
	baro  bmp280.Device
	highG adxl345.Device
	lowG  *lsm6ds3tr.Device
	mag   lis3mdl.Device
	ahrs  bno055.Device

	Barometer    SensorCache[BarometerReading]
	HighG        SensorCache[HighGReading]
	LowG         SensorCache[LowGReading]
	Magnetometer SensorCache[MagnetometerReading]
	Orientation  SensorCache[OrientationReading]
}

// sampleAll refreshes every sensor cache once. Run from the 6 ms
// sensor-sampling task (spec.md §2). Driver read failures are sensor
// read transient failures (spec.md §7 kind 1): logged, and the cache
// simply keeps its last value by not being updated this tick.
func (r *SensorRig) sampleAll(now int64) {
	if alt, err := r.baro.ReadAltitude(); err == nil {
		r.Barometer.Update(BarometerReading{AltitudeM: float64(alt)}, now)
	} else {
		println("barometer read failed, holding last value:", err.Error())
	}

	if _, _, z, err := r.highG.ReadAcceleration(); err == nil {
		r.HighG.Update(HighGReading{AzG: float64(z) * microGToMS2 / accelGravity}, now)
	} else {
		println("high-g accelerometer read failed, holding last value:", err.Error())
	}

	if ax, ay, az, err := r.lowG.ReadAcceleration(); err == nil {
		gx, gy, gz, gerr := r.lowG.ReadRotation()
		if gerr == nil {
			r.LowG.Update(LowGReading{
				AccelX: float64(ax) * microGToMS2,
				AccelY: float64(ay) * microGToMS2,
				AccelZ: float64(az) * microGToMS2,
				GyroX:  float64(gx) * microDPSToRadS,
				GyroY:  float64(gy) * microDPSToRadS,
				GyroZ:  float64(gz) * microDPSToRadS,
			}, now)
		}
	} else {
		println("low-g IMU read failed, holding last value:", err.Error())
	}

	if mx, my, mz, err := r.mag.ReadMagneticField(); err == nil {
		r.Magnetometer.Update(MagnetometerReading{X: float64(mx), Y: float64(my), Z: float64(mz)}, now)
	} else {
		println("magnetometer read failed, holding last value:", err.Error())
	}

	if w, x, y, z, err := r.ahrs.ReadQuaternion(); err == nil {
		r.Orientation.Update(OrientationReading{W: float64(w), X: float64(x), Y: float64(y), Z: float64(z)}, now)
	} else {
		println("orientation unit read failed, holding last value:", err.Error())
	}
}

// nowMillis is the monotonic tick source used throughout the core.
// spec.md §3: "timestamp is a monotonic tick count."
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
