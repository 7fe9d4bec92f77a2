package main

import "machine"

// ApogeeFC Configuration
// All user-configurable parameters and hardware mappings.
// Mirrors WingFC's config.go: a plain const table, no runtime config
// loading — config/CLI loading is out of scope for this core.

// --- Task Periods (spec.md §2) ---
const (
	sensorSamplePeriodMs   = 6
	kalmanStepPeriodMs     = 50
	fsmTickPeriodMs        = 6
	actuatorTickPeriodMs   = 6
	downlinkBufferPeriodMs = 80
	downlinkSendPeriodMs   = 200
	storageDrainPeriodMs   = 6
)

// --- Kalman Filter Constants (spec.md §4.1) ---
const (
	// spectralDensity is the fixed scalar tuning parameter (sd) of the
	// process-noise covariance, applied on top of the 13.0 calibration
	// factor baked into Initialize. Tuned per flight.
	spectralDensity = 0.2

	// qCalibrationFactor is the fixed scale_fact from the original
	// filter's Initialize(): preserved bit-for-bit, not derived from
	// the continuous-time model.
	qCalibrationFactor = 13.0

	// accelGravity and accelBias reproduce az*9.81 - 0.981 - 0.51 literally.
	accelGravity = 9.81
	accelBias    = 0.981 + 0.51

	// rAltitudeVariance and rAccelVariance are R's diagonal (spec.md §4.1).
	rAltitudeVariance = 2.0
	rAccelVariance    = 0.1

	// baroInitSamples/baroInitSpacingMs: initial altitude seeding (spec.md §4.1).
	baroInitSamples   = 30
	baroInitSpacingMs = 100
)

// ringBufferCapacity is N in spec.md §3's estimate ring buffer; must be
// at least 6 to satisfy the windowed statistics in spec.md §4.2 (the
// widest window used is offset 3, length 3, i.e. samples [0,6)).
const ringBufferCapacity = 32

// --- Flight-Phase Threshold Table (spec.md §6) ---
// A single compile-time constant table, tuned per flight. Units:
// acceleration in m/s^2, time in ms, altitude differences in m.
const (
	launchLinearAccelerationThresh = 3 * accelGravity // 3 g
	launchTimeThresh               = 250.0            // ms

	coastThresh      = 0.3 * accelGravity // 0.3 g
	coastTimeThresh  = 1000.0             // ms
	burnTimeThreshMs = 4500.0             // ms

	coastAcDelayThresh      = 500.0   // ms
	coastToApogeeTimeThresh = 20000.0 // ms

	apogeeAltimeterThreshold = 1.0    // m
	apogeeTimeThresh         = 1500.0 // ms

	drogueAccelerationChangeThresholdImu       = 5.0    // m/s^2
	drogueAccelerationChangeThresholdAltimeter = 2.0    // m
	drogueDeployTimeSinceApogeeThreshold       = 2000.0 // ms

	mainAccelerationChangeThresholdImu       = 3.0    // m/s^2
	mainAccelerationChangeThresholdAltimeter = 2.0    // m
	mainDeployTimeSinceDrogueThreshold       = 15000.0 // ms

	landingAltimeterThreshold = 0.5    // m
	landingTimeThresh         = 3000.0 // ms

	// refreshTimer: the minimum dwell in Drogue before re-checking for
	// the main-chute IMU trigger (spec.md §4.3, Drogue row).
	refreshTimer = 1000.0 // ms
)

// --- Sensor / Peripheral Addressing ---
const (
	baroI2CAddress = 0x76 // BMP280 default address
	lowGI2CAddr    = 0x6A // LSM6DS3TR default address
	magI2CAddr     = 0x1E // LIS3MDL default address
	ahrsI2CAddr    = 0x28 // BNO055 default address
)

// --- Hardware Pin Mapping ---
const (
	radioCS   = machine.D10
	radioRST  = machine.D9
	radioDIO1 = machine.D11

	sdCardCS = machine.D4

	statusLEDPin = machine.LED

	flapServoPin = machine.D2
)

// --- Actuator Policy Constants (spec.md §4.4, SPEC_FULL.md §4.2) ---
const (
	// flapP, flapI, flapD are the gains for the single-axis flap loop.
	// Mirrors WingFC's config.go P, I, D constant group; I and D are
	// zeroed by default the way WingFC always builds a full
	// PIDController even for a P-only axis.
	flapP = 0.08
	flapI = 0.0
	flapD = 0.0

	// targetApogeeAltitudeM is the desired apogee above the pad; the
	// flap law commands extension proportional to predicted overshoot.
	targetApogeeAltitudeM = 3000.0
)
