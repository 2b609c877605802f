// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// CountsPerGauss is the 18-bit output sensitivity.
const CountsPerGauss = 16384

// MidScale is the 18-bit output for zero field.
const MidScale = 1 << 17

const countsToGauss = 1.0 / CountsPerGauss

// ProductID is the content of RegProductID.
type ProductID uint8

// Valid reports whether the ID identifies an MMC5983MA.
func (p ProductID) Valid() bool { return p == ExpectedProductID }

func (p ProductID) String() string { return fmt.Sprintf("0x%02X", uint8(p)) }

// MagneticField is a three-axis measurement in raw counts.
//
// Values read straight from the device are unsigned 18-bit magnitudes with
// zero field at MidScale. Calibrated values have the offset removed and may be
// negative.
type MagneticField struct {
	X, Y, Z int32
}

// Gauss scales the counts. No offset is applied.
func (f MagneticField) Gauss() (x, y, z float64) {
	return float64(f.X) * countsToGauss, float64(f.Y) * countsToGauss, float64(f.Z) * countsToGauss
}

// Sub removes a calibration offset from a raw measurement.
func (f MagneticField) Sub(o CalibrationOffset) MagneticField {
	return MagneticField{X: f.X - o.X, Y: f.Y - o.Y, Z: f.Z - o.Z}
}

func (f MagneticField) String() string {
	x, y, z := f.Gauss()
	return fmt.Sprintf("{X:%d Y:%d Z:%d (%.5fG %.5fG %.5fG)}", f.X, f.Y, f.Z, x, y, z)
}

// CalibrationOffset is the sensor bridge offset in raw counts, derived by
// averaging a SET and a RESET measurement.
type CalibrationOffset struct {
	X, Y, Z int32
}

// DefaultOffset is mid-scale on every axis, i.e. no correction.
var DefaultOffset = CalibrationOffset{X: MidScale, Y: MidScale, Z: MidScale}

// offsetFrom averages two measurements taken under opposite magnetization.
func offsetFrom(set, reset MagneticField) CalibrationOffset {
	return CalibrationOffset{
		X: (set.X + reset.X) / 2,
		Y: (set.Y + reset.Y) / 2,
		Z: (set.Z + reset.Z) / 2,
	}
}

// Temperature is the raw content of RegTOut.
type Temperature uint8

// Celsius converts with 0.8°C/LSB from -75°C.
func (t Temperature) Celsius() float64 {
	return -75.0 + float64(t)*0.8
}

// Physic converts to periph's temperature unit.
func (t Temperature) Physic() physic.Temperature {
	return physic.ZeroCelsius - 75*physic.Celsius + physic.Temperature(t)*800*physic.MilliCelsius
}

func (t Temperature) String() string { return fmt.Sprintf("%.1f°C", t.Celsius()) }

// Bandwidth selects the decimation filter and thereby the measurement time.
type Bandwidth uint8

const (
	BW100Hz Bandwidth = 0b00
	BW200Hz Bandwidth = 0b01
	BW400Hz Bandwidth = 0b10
	BW800Hz Bandwidth = 0b11
)

// Frequency returns the filter bandwidth.
func (b Bandwidth) Frequency() physic.Frequency {
	return physic.Frequency(100<<(b&0b11)) * physic.Hertz
}

func (b Bandwidth) String() string { return fmt.Sprintf("%dHz", 100<<(b&0b11)) }

// BandwidthFromHz maps 100, 200, 400 or 800.
func BandwidthFromHz(hz int) (Bandwidth, error) {
	switch hz {
	case 100:
		return BW100Hz, nil
	case 200:
		return BW200Hz, nil
	case 400:
		return BW400Hz, nil
	case 800:
		return BW800Hz, nil
	}
	return 0, fmt.Errorf("mmc5983: unsupported bandwidth %dHz", hz)
}

// OutputDataRate is the continuous-mode measurement frequency.
type OutputDataRate uint8

const (
	ODR1Hz OutputDataRate = iota
	ODR10Hz
	ODR20Hz
	ODR50Hz
	ODR100Hz
	ODR200Hz  // requires BW200Hz or faster
	ODR1000Hz // requires BW800Hz
)

var odrHz = [...]int{1, 10, 20, 50, 100, 200, 1000}

// bits is the CM_FREQ code; codes start at 0b001.
func (r OutputDataRate) bits() uint8 {
	if int(r) >= len(odrHz) {
		return 0b001
	}
	return uint8(r) + 1
}

func decodeOutputRate(bits uint8) OutputDataRate {
	if bits < 0b001 || bits > 0b111 {
		return ODR1Hz
	}
	return OutputDataRate(bits - 1)
}

// Hz returns the rate in samples per second.
func (r OutputDataRate) Hz() int {
	if int(r) >= len(odrHz) {
		return odrHz[0]
	}
	return odrHz[r]
}

// Frequency returns the rate as a periph frequency.
func (r OutputDataRate) Frequency() physic.Frequency {
	return physic.Frequency(r.Hz()) * physic.Hertz
}

func (r OutputDataRate) String() string { return fmt.Sprintf("%dHz", r.Hz()) }

// OutputDataRateFromHz maps 1, 10, 20, 50, 100, 200 or 1000.
func OutputDataRateFromHz(hz int) (OutputDataRate, error) {
	for i, v := range odrHz {
		if v == hz {
			return OutputDataRate(i), nil
		}
	}
	return 0, fmt.Errorf("mmc5983: unsupported output data rate %dHz", hz)
}

// SetResetPeriod is the number of measurements between automatic SET pulses.
type SetResetPeriod uint8

const (
	Every1 SetResetPeriod = iota
	Every25
	Every75
	Every100
	Every250
	Every500
	Every1000
	Every2000
)

var periodSamples = [...]int{1, 25, 75, 100, 250, 500, 1000, 2000}

// Samples returns the period length in measurements.
func (p SetResetPeriod) Samples() int { return periodSamples[p&0b111] }

func (p SetResetPeriod) String() string { return fmt.Sprintf("every %d", p.Samples()) }

// SetResetPeriodFromSamples maps 1, 25, 75, 100, 250, 500, 1000 or 2000.
func SetResetPeriodFromSamples(n int) (SetResetPeriod, error) {
	for i, v := range periodSamples {
		if v == n {
			return SetResetPeriod(i), nil
		}
	}
	return 0, fmt.Errorf("mmc5983: unsupported SET/RESET period %d", n)
}

// ContinuousConfig parameterizes the switch to continuous mode.
type ContinuousConfig struct {
	Rate OutputDataRate
	// AutoSetReset enables a SET pulse every Period measurements.
	AutoSetReset bool
	Period       SetResetPeriod
}

// ModeConfig describes the acquisition mode as held in the control shadow.
type ModeConfig struct {
	Continuous   bool
	Rate         OutputDataRate
	AutoSetReset bool
	Period       SetResetPeriod
}

func (m ModeConfig) String() string {
	if !m.Continuous {
		return "one-shot"
	}
	if !m.AutoSetReset {
		return fmt.Sprintf("continuous %s", m.Rate)
	}
	return fmt.Sprintf("continuous %s, auto SET %s", m.Rate, m.Period)
}

// State is a copy of the driver's register shadow.
type State struct {
	Control0 Control0
	Control1 Control1
	Control2 Control2
	Control3 Control3
	Offset   CalibrationOffset
}
