package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/adxl345"
	"tinygo.org/x/drivers/bmp280"
	"tinygo.org/x/drivers/bno055"
	"tinygo.org/x/drivers/lis3mdl"
	"tinygo.org/x/drivers/lsm6ds3tr"
	"tinygo.org/x/drivers/sdcard"
	"tinygo.org/x/drivers/sx126x"
)

const Version = "0.1.0"

// main replaces WingFC's single ticker-based flightState switch with
// the cooperative scheduling model of spec.md §2: a fixed set of
// infinite-loop tasks, each its own goroutine with its own ticker,
// sharing state only through the mutex-guarded caches, ring buffer,
// FSM, and abort flag spec.md §5 describes. WingFC's own
// INITIALIZATION case — halt-and-retry-forever on a fatal peripheral
// failure before any control loop starts — is kept as the model for
// setup below.
func main() {
	time.Sleep(2 * time.Second)
	println("apogeefc - Version", Version)
	println("Sounding-rocket flight-control core")

	rig := mustInitSensors()
	ring := NewEstimateRingBuffer()
	fsm := NewFSM(ring)
	kf := NewKalmanFilter(ring)
	actuator := NewActuatorPolicy()
	predictor := NewApogeePredictor()
	status := newStatusIndicator(statusLEDPin)
	flapPWM, flapCh := mustInitFlapServo()
	storageQueue := &StorageQueue{}
	flightLog := mustInitFlightLog()
	radio := mustInitRadio()

	kf.Initialize(func() float64 {
		time.Sleep(baroInitSpacingMs * time.Millisecond)
		rig.sampleAll(nowMillis())
		snap, ok := rig.Barometer.Read()
		if !ok {
			return 0
		}
		return snap.Value.AltitudeM
	})

	println("Initialization complete. Entering scheduled flight loop.")

	go sensorSamplingTask(rig)
	go kalmanStepTask(kf, fsm, rig)
	go fsmTickTask(fsm, kf)
	go actuatorTickTask(actuator, fsm, kf, flapPWM, flapCh)
	go apogeeRefreshTask(kf, fsm, predictor)
	go storageDrainTask(flightLog, storageQueue)
	go statusIndicatorTask(status, fsm)
	go groundCommandTask(fsm)
	go downlinkTask(fsm, kf, actuator, storageQueue, radio)

	select {}
}

func mustInitSensors() *SensorRig {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		haltOnFatal("could not configure I2C bus", err)
	}

	rig := &SensorRig{
		baro:  bmp280.New(i2c),
		highG: adxl345.New(i2c),
		lowG:  lsm6ds3tr.New(i2c),
		mag:   lis3mdl.New(i2c),
		ahrs:  bno055.New(i2c),
	}

	rig.baro.Configure()
	rig.highG.Configure(adxl345.Configuration{})
	if err := rig.lowG.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_8G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
		GyroRange:       lsm6ds3tr.GYRO_1000DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
	}); err != nil {
		haltOnFatal("could not configure low-g IMU", err)
	}
	if !rig.lowG.Connected() {
		haltOnFatal("low-g IMU not connected", nil)
	}
	rig.mag.Configure(lis3mdl.Configuration{})
	rig.ahrs.Configure()

	println("sensor rig initialized.")
	return rig
}

func mustInitFlapServo() (*machine.PWM, uint8) {
	pwm := machine.PWM2
	if err := pwm.Configure(machine.PWMConfig{Period: 20 * 1000 * 1000}); err != nil {
		haltOnFatal("could not configure flap servo PWM", err)
	}
	ch, err := pwm.Channel(flapServoPin)
	if err != nil {
		haltOnFatal("could not get flap servo PWM channel", err)
	}
	return pwm, ch
}

func mustInitFlightLog() *FlightLog {
	spi := machine.SPI0
	if err := spi.Configure(machine.SPIConfig{Frequency: 4 * machine.MHz}); err != nil {
		haltOnFatal("could not configure SPI bus for SD card", err)
	}
	card := sdcard.New(spi, sdCardCS)
	if err := card.Configure(); err != nil {
		haltOnFatal("could not configure SD card", err)
	}
	log, err := NewFlightLog(&card)
	if err != nil {
		haltOnFatal("could not mount flight log filesystem", err)
	}
	return log
}

func mustInitRadio() *sx126x.Device {
	spi := machine.SPI1
	if err := spi.Configure(machine.SPIConfig{Frequency: 4 * machine.MHz}); err != nil {
		haltOnFatal("could not configure SPI bus for downlink radio", err)
	}
	radio := sx126x.New(spi)
	radio.CS = radioCS
	radio.RST = radioRST
	radio.DIO1 = radioDIO1
	radio.Reset()
	if err := radio.DetectDevice(); err != nil {
		haltOnFatal("downlink radio not detected", err)
	}
	radio.LoraConfig(sx126x.LoraConfig{
		Freq:           915000000,
		Bw:             sx126x.SX126X_LORA_BW_125_0,
		Sf:             sx126x.SX126X_LORA_SF9,
		Cr:             sx126x.SX126X_LORA_CR_4_5,
		HeaderType:     sx126x.SX126X_LORA_HEADER_EXPLICT,
		Preamble:       8,
		Ldr:            0,
		Iq:             sx126x.SX126X_LORA_IQ_STANDARD,
		Crc:            sx126x.SX126X_LORA_CRC_ON,
		SyncWord:       sx126x.SX126X_LORA_MAC_PRIVATE_SYNCWORD,
		LoraTxPowerDBm: 14,
	})
	return radio
}

// haltOnFatal mirrors WingFC's INITIALIZATION case: a fatal peripheral
// setup failure (spec.md §7 kind 2) halts in a retry-print loop rather
// than letting any periodic task start against a half-initialized rig.
func haltOnFatal(msg string, err error) {
	for {
		if err != nil {
			println(msg+":", err.Error())
		} else {
			println(msg)
		}
		time.Sleep(time.Second)
	}
}

func sensorSamplingTask(rig *SensorRig) {
	ticker := time.NewTicker(sensorSamplePeriodMs * time.Millisecond)
	for range ticker.C {
		rig.sampleAll(nowMillis())
	}
}

func kalmanStepTask(kf *KalmanFilter, fsm *FSM, rig *SensorRig) {
	ticker := time.NewTicker(kalmanStepPeriodMs * time.Millisecond)
	for range ticker.C {
		baro, _ := rig.Barometer.Read()
		highG, _ := rig.HighG.Read()
		kf.Step(float64(kalmanStepPeriodMs), fsm.Phase(), baro.Value.AltitudeM, highG.Value.AzG, nowMillis())
	}
}

func fsmTickTask(fsm *FSM, kf *KalmanFilter) {
	ticker := time.NewTicker(fsmTickPeriodMs * time.Millisecond)
	for range ticker.C {
		fsm.Tick(kf.Latest(), nowMillis())
	}
}

func actuatorTickTask(actuator *ActuatorPolicy, fsm *FSM, kf *KalmanFilter, pwm *machine.PWM, ch uint8) {
	ticker := time.NewTicker(actuatorTickPeriodMs * time.Millisecond)
	dtS := float64(actuatorTickPeriodMs) / 1000.0
	for range ticker.C {
		cmd := actuator.Compute(fsm.Phase(), kf.Latest(), dtS)
		top := float64(pwm.Top())
		duty := mapRange(float64(cmd), float64(flapNeutral), float64(flapMaxExtend), 0, top)
		pwm.Set(ch, uint32(duty))
	}
}

func apogeeRefreshTask(kf *KalmanFilter, fsm *FSM, predictor *ApogeePredictor) {
	ticker := time.NewTicker(kalmanStepPeriodMs * time.Millisecond)
	for range ticker.C {
		if fsm.Phase() != CoastGnc {
			continue
		}
		latest := kf.Latest()
		estimate := predictor.Predict(float64(latest.Altitude), float64(latest.VerticalVelocity))
		kf.UpdateApogee(estimate)
	}
}

func storageDrainTask(log *FlightLog, q *StorageQueue) {
	ticker := time.NewTicker(storageDrainPeriodMs * time.Millisecond)
	for range ticker.C {
		log.drain(q)
	}
}

func statusIndicatorTask(status *statusIndicator, fsm *FSM) {
	ticker := time.NewTicker(20 * time.Millisecond)
	for range ticker.C {
		status.setPattern(patternForPhase(fsm.Phase()))
		status.update()
	}
}

func groundCommandTask(fsm *FSM) {
	uart := machine.DefaultUART
	uart.Configure(machine.UARTConfig{BaudRate: 57600})
	line := make([]byte, 0, 64)
	buf := make([]byte, 1)
	for {
		n, err := uart.Read(buf)
		if err != nil || n == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if buf[0] == '\n' {
			applyGroundCommand(parseGroundCommand(string(line)), fsm)
			line = line[:0]
			continue
		}
		if len(line) < cap(line) {
			line = append(line, buf[0])
		}
	}
}

func downlinkTask(fsm *FSM, kf *KalmanFilter, actuator *ActuatorPolicy, q *StorageQueue, radio *sx126x.Device) {
	buffer := time.NewTicker(downlinkBufferPeriodMs * time.Millisecond)
	send := time.NewTicker(downlinkSendPeriodMs * time.Millisecond)
	var latestFrame TelemetryFrame

	for {
		select {
		case <-buffer.C:
			phase := fsm.Phase()
			estimate := kf.Latest()
			flap := actuator.Last()
			latestFrame = newTelemetryFrame(phase, estimate, flap)
			q.Push(storageRecord{
				Timestamp: estimate.Timestamp,
				Phase:     int32(phase),
				Altitude:  estimate.Altitude,
				Velocity:  estimate.VerticalVelocity,
				Accel:     estimate.VerticalAcceleration,
				Apogee:    estimate.ApogeePrediction,
			})
		case <-send.C:
			transmitFrame(radio, latestFrame)
		}
	}
}

// transmitFrame hands an encoded frame to the downlink radio. Send
// failures are logged and dropped, matching spec.md §7's treatment of
// non-fatal I/O faults elsewhere in this core: a lost telemetry frame
// is not a flight-safety concern.
func transmitFrame(radio *sx126x.Device, f TelemetryFrame) {
	if err := radio.LoraTx(f.Encode(), 2000); err != nil {
		println("telemetry send failed, dropping frame:", err.Error())
	}
}
