// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/spi"
)

// handle holds the operations available in both modes. A handle with a nil
// core has been released.
type handle struct {
	c *core
}

func (h *handle) core() (*core, error) {
	if h.c == nil {
		return nil, ErrHandleReleased
	}
	return h.c, nil
}

// OneShot is a driver in one-shot mode: every measurement is triggered
// explicitly.
type OneShot struct {
	handle
}

// Continuous is a driver in continuous mode: the device converts at the
// configured output data rate.
type Continuous struct {
	handle
}

// New returns a one-shot driver over t. The device is not accessed until
// Init.
func New(t Transport) *OneShot {
	return &OneShot{handle{newCore(t)}}
}

// NewI2C returns a one-shot driver for the device at addr on bus.
func NewI2C(bus i2c.Bus, addr uint16) *OneShot {
	return New(NewI2CTransport(bus, addr))
}

// NewSPI connects to port and returns a one-shot driver.
func NewSPI(port spi.Port) (*OneShot, error) {
	t, err := NewSPITransport(port)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

func (h *handle) String() string {
	if h.c == nil {
		return "MMC5983MA{released}"
	}
	return fmt.Sprintf("MMC5983MA{%v}", h.c.t)
}

// Release gives up the handle and returns the transport. The device is left
// in its current mode.
func (h *handle) Release() (Transport, error) {
	c, err := h.core()
	if err != nil {
		return nil, err
	}
	h.c = nil
	return c.t, nil
}

// Init verifies the product ID, resets the device, loads the factory trim,
// enables the measurement done interrupt and sets the bandwidth to 100Hz.
//
// A product ID mismatch returns an *IDError before any register is written.
// After any failure the device state is unknown; call Init again or give up.
func (h *handle) Init() error { return h.initWith(blocking{}) }

// InitContext is Init running cooperatively.
func (h *handle) InitContext(ctx context.Context) error { return h.initWith(cooperative{ctx}) }

func (h *handle) initWith(r runner) error {
	c, err := h.core()
	if err != nil {
		return err
	}
	return c.init(r)
}

// ProductID reads the product ID register.
func (h *handle) ProductID() (ProductID, error) { return h.productID(blocking{}) }

func (h *handle) ProductIDContext(ctx context.Context) (ProductID, error) {
	return h.productID(cooperative{ctx})
}

func (h *handle) productID(r runner) (ProductID, error) {
	c, err := h.core()
	if err != nil {
		return 0, err
	}
	return c.productID(r)
}

// Status reads the status register.
func (h *handle) Status() (Status, error) { return h.status(blocking{}) }

func (h *handle) StatusContext(ctx context.Context) (Status, error) {
	return h.status(cooperative{ctx})
}

func (h *handle) status(r runner) (Status, error) {
	c, err := h.core()
	if err != nil {
		return 0, err
	}
	return c.status(r)
}

// SetBandwidth selects the decimation filter.
func (h *handle) SetBandwidth(bw Bandwidth) error { return h.setBandwidth(blocking{}, bw) }

func (h *handle) SetBandwidthContext(ctx context.Context, bw Bandwidth) error {
	return h.setBandwidth(cooperative{ctx}, bw)
}

func (h *handle) setBandwidth(r runner, bw Bandwidth) error {
	c, err := h.core()
	if err != nil {
		return err
	}
	return c.setBandwidth(r, bw)
}

// Set applies a SET pulse and waits for it to settle.
func (h *handle) Set(d Delay) error { return h.pulse(blocking{}, d, Ctrl0Set) }

func (h *handle) SetContext(ctx context.Context, d Delay) error {
	return h.pulse(cooperative{ctx}, d, Ctrl0Set)
}

// Reset applies a RESET pulse and waits for it to settle.
func (h *handle) Reset(d Delay) error { return h.pulse(blocking{}, d, Ctrl0Reset) }

func (h *handle) ResetContext(ctx context.Context, d Delay) error {
	return h.pulse(cooperative{ctx}, d, Ctrl0Reset)
}

func (h *handle) pulse(r runner, d Delay, bit Control0) error {
	c, err := h.core()
	if err != nil {
		return err
	}
	return c.pulse(r, d, bit)
}

// SelfTestPositive drives the positive self-test current through the coils.
func (h *handle) SelfTestPositive(d Delay) error { return h.selfTest(blocking{}, d, Ctrl3STEnP) }

func (h *handle) SelfTestPositiveContext(ctx context.Context, d Delay) error {
	return h.selfTest(cooperative{ctx}, d, Ctrl3STEnP)
}

// SelfTestNegative drives the negative self-test current through the coils.
func (h *handle) SelfTestNegative(d Delay) error { return h.selfTest(blocking{}, d, Ctrl3STEnM) }

func (h *handle) SelfTestNegativeContext(ctx context.Context, d Delay) error {
	return h.selfTest(cooperative{ctx}, d, Ctrl3STEnM)
}

func (h *handle) selfTest(r runner, d Delay, bit Control3) error {
	c, err := h.core()
	if err != nil {
		return err
	}
	return c.selfTest(r, d, bit)
}

// Temperature measures the die temperature.
func (h *handle) Temperature() (Temperature, error) { return h.temperature(blocking{}) }

func (h *handle) TemperatureContext(ctx context.Context) (Temperature, error) {
	return h.temperature(cooperative{ctx})
}

func (h *handle) temperature(r runner) (Temperature, error) {
	c, err := h.core()
	if err != nil {
		return 0, err
	}
	return c.temperature(r)
}

// CalibrateOffset measures the bridge offset with a SET/RESET pair and
// stores it for CalibratedField. The magnetization is left in the RESET
// direction.
func (h *handle) CalibrateOffset(d Delay) (CalibrationOffset, error) {
	return h.calibrate(blocking{}, d)
}

func (h *handle) CalibrateOffsetContext(ctx context.Context, d Delay) (CalibrationOffset, error) {
	return h.calibrate(cooperative{ctx}, d)
}

func (h *handle) calibrate(r runner, d Delay) (CalibrationOffset, error) {
	c, err := h.core()
	if err != nil {
		return CalibrationOffset{}, err
	}
	return c.calibrate(r, d)
}

// CalibratedField triggers a measurement and returns it minus the stored
// offset.
func (h *handle) CalibratedField() (MagneticField, error) { return h.calibratedField(blocking{}) }

func (h *handle) CalibratedFieldContext(ctx context.Context) (MagneticField, error) {
	return h.calibratedField(cooperative{ctx})
}

func (h *handle) calibratedField(r runner) (MagneticField, error) {
	c, err := h.core()
	if err != nil {
		return MagneticField{}, err
	}
	return c.calibratedField(r)
}

// Offset returns the stored calibration offset, DefaultOffset until the first
// successful calibration.
func (h *handle) Offset() (CalibrationOffset, error) {
	c, err := h.core()
	if err != nil {
		return CalibrationOffset{}, err
	}
	return c.offset, nil
}

// State returns a copy of the control register shadow.
func (h *handle) State() (State, error) {
	c, err := h.core()
	if err != nil {
		return State{}, err
	}
	return c.state(), nil
}

// ReadRegisters reads every register in ReadableRegisters. It is meant for
// debugging and has no effect on the driver state.
func (h *handle) ReadRegisters() ([]RegisterValue, error) { return h.readRegisters(blocking{}) }

func (h *handle) ReadRegistersContext(ctx context.Context) ([]RegisterValue, error) {
	return h.readRegisters(cooperative{ctx})
}

func (h *handle) readRegisters(r runner) ([]RegisterValue, error) {
	c, err := h.core()
	if err != nil {
		return nil, err
	}
	return c.readRegisters(r)
}

// TryMagneticField returns the pending measurement if it is done. Otherwise
// it triggers a new measurement and returns ErrNotReady.
func (o *OneShot) TryMagneticField() (MagneticField, error) { return o.tryField(blocking{}) }

func (o *OneShot) TryMagneticFieldContext(ctx context.Context) (MagneticField, error) {
	return o.tryField(cooperative{ctx})
}

func (o *OneShot) tryField(r runner) (MagneticField, error) {
	c, err := o.core()
	if err != nil {
		return MagneticField{}, err
	}
	return c.tryField(r)
}

// MagneticField returns raw counts, calling TryMagneticField until it
// succeeds.
func (o *OneShot) MagneticField() (MagneticField, error) { return o.magneticField(blocking{}) }

func (o *OneShot) MagneticFieldContext(ctx context.Context) (MagneticField, error) {
	return o.magneticField(cooperative{ctx})
}

func (o *OneShot) magneticField(r runner) (MagneticField, error) {
	for {
		f, err := o.tryField(r)
		if !errors.Is(err, ErrNotReady) {
			return f, err
		}
		if err := r.poll(); err != nil {
			return MagneticField{}, err
		}
	}
}

// Measure always triggers a new conversion, waits for it and returns raw
// counts. Unlike MagneticField it never returns a conversion that finished
// before the call.
func (o *OneShot) Measure() (MagneticField, error) { return o.measure(blocking{}) }

func (o *OneShot) MeasureContext(ctx context.Context) (MagneticField, error) {
	return o.measure(cooperative{ctx})
}

func (o *OneShot) measure(r runner) (MagneticField, error) {
	c, err := o.core()
	if err != nil {
		return MagneticField{}, err
	}
	return c.measure(r)
}

// IntoContinuous starts continuous conversion. On success the one-shot
// handle is released and the returned handle owns the device. On failure the
// one-shot handle stays usable.
func (o *OneShot) IntoContinuous(cfg ContinuousConfig) (*Continuous, error) {
	return o.intoContinuous(blocking{}, cfg)
}

func (o *OneShot) IntoContinuousContext(ctx context.Context, cfg ContinuousConfig) (*Continuous, error) {
	return o.intoContinuous(cooperative{ctx}, cfg)
}

func (o *OneShot) intoContinuous(r runner, cfg ContinuousConfig) (*Continuous, error) {
	c, err := o.core()
	if err != nil {
		return nil, err
	}
	if err := c.enterContinuous(r, cfg); err != nil {
		return nil, err
	}
	o.c = nil
	return &Continuous{handle{c}}, nil
}

// MagneticField waits for the next conversion and returns raw counts.
func (m *Continuous) MagneticField() (MagneticField, error) { return m.nextField(blocking{}) }

func (m *Continuous) MagneticFieldContext(ctx context.Context) (MagneticField, error) {
	return m.nextField(cooperative{ctx})
}

func (m *Continuous) nextField(r runner) (MagneticField, error) {
	c, err := m.core()
	if err != nil {
		return MagneticField{}, err
	}
	return c.nextField(r)
}

// SetFrequency changes the output data rate.
func (m *Continuous) SetFrequency(rate OutputDataRate) error {
	return m.setFrequency(blocking{}, rate)
}

func (m *Continuous) SetFrequencyContext(ctx context.Context, rate OutputDataRate) error {
	return m.setFrequency(cooperative{ctx}, rate)
}

func (m *Continuous) setFrequency(r runner, rate OutputDataRate) error {
	c, err := m.core()
	if err != nil {
		return err
	}
	return c.setFrequency(r, rate)
}

// EnableAutoSetReset makes the device apply a SET pulse every p conversions.
func (m *Continuous) EnableAutoSetReset(p SetResetPeriod) error {
	return m.enableAutoSetReset(blocking{}, p)
}

func (m *Continuous) EnableAutoSetResetContext(ctx context.Context, p SetResetPeriod) error {
	return m.enableAutoSetReset(cooperative{ctx}, p)
}

func (m *Continuous) enableAutoSetReset(r runner, p SetResetPeriod) error {
	c, err := m.core()
	if err != nil {
		return err
	}
	return c.enableAutoSetReset(r, p)
}

// DisableAutoSetReset stops the periodic SET pulses.
func (m *Continuous) DisableAutoSetReset() error { return m.disableAutoSetReset(blocking{}) }

func (m *Continuous) DisableAutoSetResetContext(ctx context.Context) error {
	return m.disableAutoSetReset(cooperative{ctx})
}

func (m *Continuous) disableAutoSetReset(r runner) error {
	c, err := m.core()
	if err != nil {
		return err
	}
	return c.disableAutoSetReset(r)
}

// ModeConfig decodes the continuous mode settings from the shadow.
func (m *Continuous) ModeConfig() (ModeConfig, error) {
	c, err := m.core()
	if err != nil {
		return ModeConfig{}, err
	}
	return c.modeConfig(), nil
}

// IntoOneShot stops continuous conversion and periodic SET in one write. On
// success the continuous handle is released.
func (m *Continuous) IntoOneShot() (*OneShot, error) { return m.intoOneShot(blocking{}) }

func (m *Continuous) IntoOneShotContext(ctx context.Context) (*OneShot, error) {
	return m.intoOneShot(cooperative{ctx})
}

func (m *Continuous) intoOneShot(r runner) (*OneShot, error) {
	c, err := m.core()
	if err != nil {
		return nil, err
	}
	if err := c.exitContinuous(r); err != nil {
		return nil, err
	}
	m.c = nil
	return &OneShot{handle{c}}, nil
}
