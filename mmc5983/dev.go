// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"fmt"
)

const (
	// setResetSettleNs is the minimum hold time after a SET or RESET pulse.
	setResetSettleNs = 1000
	// selfTestSettleNs is the minimum hold time after a self-test pulse.
	selfTestSettleNs = 500
)

// Bits the device clears by itself after acting on them.
const (
	ctrl0SelfClearing = Ctrl0TMM | Ctrl0TMT | Ctrl0Set | Ctrl0Reset
	ctrl3SelfClearing = Ctrl3STEnP | Ctrl3STEnM
)

// RegisterValue is one entry of a register dump.
type RegisterValue struct {
	Reg   Register
	Value byte
}

func (v RegisterValue) String() string {
	return fmt.Sprintf("%s(0x%02X)=0x%02X", v.Reg, uint8(v.Reg), v.Value)
}

// core is the state shared by the mode handles: the transport, the shadow of
// the write-only control registers and the calibration offset.
//
// A shadow is only updated after the transport accepted the write.
type core struct {
	t      Transport
	ctrl0  Control0
	ctrl1  Control1
	ctrl2  Control2
	ctrl3  Control3
	offset CalibrationOffset
	buf    [fieldLen]byte
}

func newCore(t Transport) *core {
	return &core{t: t, offset: DefaultOffset}
}

func (c *core) write(r runner, v controlRegister) error {
	if err := r.step(); err != nil {
		return err
	}
	return c.t.WriteRegister(v.Address(), v.Encode())
}

func (c *core) writeControl0(r runner, v Control0) error {
	if err := c.write(r, v); err != nil {
		return err
	}
	c.ctrl0 = v.Difference(ctrl0SelfClearing)
	return nil
}

func (c *core) writeControl1(r runner, v Control1) error {
	if err := c.write(r, v); err != nil {
		return err
	}
	if v.Contains(Ctrl1SWRst) {
		// The device is back at its power-on defaults.
		c.ctrl1 = 0
		return nil
	}
	c.ctrl1 = v
	return nil
}

func (c *core) writeControl2(r runner, v Control2) error {
	if err := c.write(r, v); err != nil {
		return err
	}
	c.ctrl2 = v
	return nil
}

func (c *core) writeControl3(r runner, v Control3) error {
	if err := c.write(r, v); err != nil {
		return err
	}
	c.ctrl3 = v.Difference(ctrl3SelfClearing)
	return nil
}

func (c *core) readRegister(r runner, reg Register) (byte, error) {
	if err := r.step(); err != nil {
		return 0, err
	}
	return c.t.ReadRegister(reg)
}

func (c *core) productID(r runner) (ProductID, error) {
	b, err := c.readRegister(r, RegProductID)
	return ProductID(b), err
}

func (c *core) status(r runner) (Status, error) {
	b, err := c.readRegister(r, RegStatus)
	return DecodeStatus(b), err
}

// init identifies the part, resets it, loads the factory trim, enables the
// measurement done interrupt and selects the 100Hz bandwidth. The first
// failure aborts the sequence.
func (c *core) init(r runner) error {
	id, err := c.productID(r)
	if err != nil {
		return err
	}
	if !id.Valid() {
		return &IDError{ID: id}
	}
	if err := c.writeControl1(r, c.ctrl1.Union(Ctrl1SWRst)); err != nil {
		return err
	}
	if err := c.writeControl0(r, c.ctrl0.Union(Ctrl0OTPRead)); err != nil {
		return err
	}
	if err := c.writeControl0(r, c.ctrl0.Union(Ctrl0IntMeasDoneEn)); err != nil {
		return err
	}
	return c.setBandwidth(r, BW100Hz)
}

func (c *core) setBandwidth(r runner, bw Bandwidth) error {
	return c.writeControl1(r, c.ctrl1.WithBandwidth(bw))
}

// pulse sends a self-clearing control 0 bit and holds for the settling time.
// The device is not read back.
func (c *core) pulse(r runner, d Delay, bit Control0) error {
	if err := c.writeControl0(r, c.ctrl0.Union(bit)); err != nil {
		return err
	}
	return r.wait(d, setResetSettleNs)
}

func (c *core) selfTest(r runner, d Delay, bit Control3) error {
	if err := c.writeControl3(r, c.ctrl3.Union(bit)); err != nil {
		return err
	}
	return r.wait(d, selfTestSettleNs)
}

func (c *core) trigger(r runner) error {
	return c.writeControl0(r, c.ctrl0.Union(Ctrl0TMM))
}

// waitStatus polls the status register until every bit of want is set.
func (c *core) waitStatus(r runner, want Status) error {
	for {
		s, err := c.status(r)
		if err != nil {
			return err
		}
		if s.Contains(want) {
			return nil
		}
		if err := r.poll(); err != nil {
			return err
		}
	}
}

func (c *core) readField(r runner) (MagneticField, error) {
	if err := r.step(); err != nil {
		return MagneticField{}, err
	}
	if err := c.t.ReadConsecutive(RegXOut0, c.buf[:]); err != nil {
		return MagneticField{}, err
	}
	return DecodeField(c.buf), nil
}

// measure runs a one-shot measurement and returns the raw counts.
func (c *core) measure(r runner) (MagneticField, error) {
	if err := c.trigger(r); err != nil {
		return MagneticField{}, err
	}
	if err := c.waitStatus(r, StatusMeasMDone); err != nil {
		return MagneticField{}, err
	}
	return c.readField(r)
}

// tryField never blocks: it either returns a finished measurement or starts
// a new one and reports ErrNotReady.
func (c *core) tryField(r runner) (MagneticField, error) {
	s, err := c.status(r)
	if err != nil {
		return MagneticField{}, err
	}
	if s.MeasDone() {
		return c.readField(r)
	}
	if err := c.trigger(r); err != nil {
		return MagneticField{}, err
	}
	return MagneticField{}, ErrNotReady
}

// nextField waits for the free-running converter.
func (c *core) nextField(r runner) (MagneticField, error) {
	if err := c.waitStatus(r, StatusMeasMDone); err != nil {
		return MagneticField{}, err
	}
	return c.readField(r)
}

func (c *core) temperature(r runner) (Temperature, error) {
	if err := c.writeControl0(r, c.ctrl0.Union(Ctrl0TMT)); err != nil {
		return 0, err
	}
	if err := c.waitStatus(r, StatusMeasTDone); err != nil {
		return 0, err
	}
	b, err := c.readRegister(r, RegTOut)
	return Temperature(b), err
}

// calibrate measures once after a SET and once after a RESET pulse. The bridge
// output flips sign with the magnetization while the offset does not, so the
// mean of both is the offset.
func (c *core) calibrate(r runner, d Delay) (CalibrationOffset, error) {
	if err := c.pulse(r, d, Ctrl0Set); err != nil {
		return CalibrationOffset{}, err
	}
	set, err := c.measure(r)
	if err != nil {
		return CalibrationOffset{}, err
	}
	if err := c.pulse(r, d, Ctrl0Reset); err != nil {
		return CalibrationOffset{}, err
	}
	reset, err := c.measure(r)
	if err != nil {
		return CalibrationOffset{}, err
	}
	c.offset = offsetFrom(set, reset)
	return c.offset, nil
}

func (c *core) calibratedField(r runner) (MagneticField, error) {
	f, err := c.measure(r)
	if err != nil {
		return MagneticField{}, err
	}
	return f.Sub(c.offset), nil
}

// enterContinuous programs the periodic SET first so that it is active from
// the first continuous sample.
func (c *core) enterContinuous(r runner, cfg ContinuousConfig) error {
	if cfg.AutoSetReset {
		if err := c.writeControl2(r, c.ctrl2.WithSetPeriod(cfg.Period).Union(Ctrl2EnPrdSet)); err != nil {
			return err
		}
	}
	return c.setFrequency(r, cfg.Rate)
}

func (c *core) exitContinuous(r runner) error {
	return c.writeControl2(r, c.ctrl2.Difference(Ctrl2CMMEn|Ctrl2EnPrdSet))
}

func (c *core) setFrequency(r runner, rate OutputDataRate) error {
	return c.writeControl2(r, c.ctrl2.WithOutputRate(rate).Union(Ctrl2CMMEn))
}

func (c *core) enableAutoSetReset(r runner, p SetResetPeriod) error {
	return c.writeControl2(r, c.ctrl2.WithSetPeriod(p).Union(Ctrl2EnPrdSet))
}

func (c *core) disableAutoSetReset(r runner) error {
	return c.writeControl2(r, c.ctrl2.Difference(Ctrl2EnPrdSet))
}

func (c *core) modeConfig() ModeConfig {
	return ModeConfig{
		Continuous:   c.ctrl2.Contains(Ctrl2CMMEn),
		Rate:         c.ctrl2.OutputRate(),
		AutoSetReset: c.ctrl2.Contains(Ctrl2EnPrdSet),
		Period:       c.ctrl2.SetPeriod(),
	}
}

// readRegisters dumps ReadableRegisters. It never touches the shadow.
func (c *core) readRegisters(r runner) ([]RegisterValue, error) {
	out := make([]RegisterValue, 0, len(ReadableRegisters))
	for _, reg := range ReadableRegisters {
		b, err := c.readRegister(r, reg)
		if err != nil {
			return out, err
		}
		out = append(out, RegisterValue{Reg: reg, Value: b})
	}
	return out, nil
}

func (c *core) state() State {
	return State{
		Control0: c.ctrl0,
		Control1: c.ctrl1,
		Control2: c.ctrl2,
		Control3: c.ctrl3,
		Offset:   c.offset,
	}
}
