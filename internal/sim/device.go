// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim emulates the register file of an MMC5983MA so the tools and
// tests run without hardware. The device is reachable as a periph I²C bus and
// as a periph SPI port.
package sim

import (
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/relabs-tech/mmc5983/mmc5983"
)

const (
	regCount = int(mmc5983.RegProductID) + 1
	maxCount = 1<<18 - 1
)

// Device is a simulated magnetometer.
//
// A measurement becomes visible on the Latency-th status read after it
// starts. The done flag stays set until TM_M starts the next one-shot
// conversion. In continuous mode it drops while the next conversion runs.
type Device struct {
	mu sync.Mutex

	// Latency is the number of status reads a conversion takes.
	Latency int
	// SelfTestCounts is added to every axis by a positive self-test pulse and
	// subtracted by a negative one, for the next conversion.
	SelfTestCounts int32
	// TempRaw is returned by temperature conversions.
	TempRaw byte

	regs     [regCount]byte
	ctrl     [4]byte
	field    [3]float64
	bias     [3]int32
	polarity int32
	selfTest int32
	measLeft int
	tempLeft int
	writes   []Write
}

// Write is one register write seen by the device.
type Write struct {
	Reg   mmc5983.Register
	Value byte
}

// New returns a device in its power-on state exposed to the field (Gauss)
// with the given bridge offset (counts).
func New(field [3]float64, bias [3]int32) *Device {
	d := &Device{
		Latency:        2,
		SelfTestCounts: 1200,
		TempRaw:        125,
		field:          field,
		bias:           bias,
	}
	d.powerOn()
	return d
}

func (d *Device) powerOn() {
	d.regs = [regCount]byte{}
	d.ctrl = [4]byte{}
	d.regs[mmc5983.RegProductID] = mmc5983.ExpectedProductID
	d.polarity = 1
	d.selfTest = 0
	d.measLeft = -1
	d.tempLeft = -1
}

// SetField changes the ambient field in Gauss.
func (d *Device) SetField(x, y, z float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.field = [3]float64{x, y, z}
}

// Control returns the last value written to a control register.
func (d *Device) Control(reg mmc5983.Register) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !reg.Writable() {
		return 0
	}
	return d.ctrl[reg-mmc5983.RegControl0]
}

// Continuous reports whether the device free-runs.
func (d *Device) Continuous() bool {
	return mmc5983.DecodeControl2(d.Control(mmc5983.RegControl2)).Contains(mmc5983.Ctrl2CMMEn)
}

// Polarity is +1 after a SET pulse (and at power-on) and -1 after a RESET
// pulse.
func (d *Device) Polarity() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.polarity)
}

// Writes returns every register write since the last call.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.writes
	d.writes = nil
	return w
}

// Offset is the calibration offset a correct SET/RESET procedure finds.
func (d *Device) Offset() mmc5983.CalibrationOffset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return mmc5983.CalibrationOffset{
		X: mmc5983.MidScale + d.bias[0],
		Y: mmc5983.MidScale + d.bias[1],
		Z: mmc5983.MidScale + d.bias[2],
	}
}

func (d *Device) write(reg mmc5983.Register, v byte) {
	d.writes = append(d.writes, Write{reg, v})
	switch reg {
	case mmc5983.RegControl0:
		c := mmc5983.DecodeControl0(v)
		if c.Contains(mmc5983.Ctrl0Set) {
			d.polarity = 1
		}
		if c.Contains(mmc5983.Ctrl0Reset) {
			d.polarity = -1
		}
		if c.Contains(mmc5983.Ctrl0OTPRead) {
			d.setStatus(mmc5983.StatusOTPReadDone)
		}
		if c.Contains(mmc5983.Ctrl0TMM) && d.measLeft < 0 {
			d.clearStatus(mmc5983.StatusMeasMDone)
			d.measLeft = d.Latency
			d.settle()
		}
		if c.Contains(mmc5983.Ctrl0TMT) && d.tempLeft < 0 {
			d.clearStatus(mmc5983.StatusMeasTDone)
			d.tempLeft = d.Latency
			d.settle()
		}
		d.ctrl[0] = byte(c.Difference(mmc5983.Ctrl0TMM | mmc5983.Ctrl0TMT | mmc5983.Ctrl0Set | mmc5983.Ctrl0Reset))
	case mmc5983.RegControl1:
		c := mmc5983.DecodeControl1(v)
		if c.Contains(mmc5983.Ctrl1SWRst) {
			w := d.writes
			d.powerOn()
			d.writes = w
			return
		}
		d.ctrl[1] = byte(c)
	case mmc5983.RegControl2:
		was := d.continuous()
		d.ctrl[2] = byte(mmc5983.DecodeControl2(v))
		switch {
		case d.continuous() && d.measLeft < 0:
			d.measLeft = d.Latency
		case was && !d.continuous():
			d.measLeft = -1
		}
	case mmc5983.RegControl3:
		c := mmc5983.DecodeControl3(v)
		if c.Contains(mmc5983.Ctrl3STEnP) {
			d.selfTest = d.SelfTestCounts
		}
		if c.Contains(mmc5983.Ctrl3STEnM) {
			d.selfTest = -d.SelfTestCounts
		}
		d.ctrl[3] = byte(c.Difference(mmc5983.Ctrl3STEnP | mmc5983.Ctrl3STEnM))
	}
}

// continuous is Continuous for callers holding mu.
func (d *Device) continuous() bool {
	return mmc5983.DecodeControl2(d.ctrl[2]).Contains(mmc5983.Ctrl2CMMEn)
}

func (d *Device) read(reg mmc5983.Register) byte {
	if int(reg) >= regCount {
		return 0
	}
	switch {
	case reg == mmc5983.RegStatus:
		d.tick()
		return d.regs[reg]
	case reg.Writable():
		return 0
	}
	return d.regs[reg]
}

// tick advances pending conversions by one status read.
func (d *Device) tick() {
	if d.measLeft > 0 {
		if d.continuous() {
			d.clearStatus(mmc5983.StatusMeasMDone)
		}
		d.measLeft--
	}
	if d.tempLeft > 0 {
		d.tempLeft--
	}
	d.settle()
}

func (d *Device) settle() {
	if d.measLeft == 0 {
		d.latchField()
		d.setStatus(mmc5983.StatusMeasMDone)
		d.measLeft = -1
		if d.continuous() {
			d.measLeft = d.Latency
		}
	}
	if d.tempLeft == 0 {
		d.regs[mmc5983.RegTOut] = d.TempRaw
		d.setStatus(mmc5983.StatusMeasTDone)
		d.tempLeft = -1
	}
}

func (d *Device) latchField() {
	var out [3]uint32
	for i := range out {
		h := int32(math.Round(d.field[i] * mmc5983.CountsPerGauss))
		v := mmc5983.MidScale + d.bias[i] + d.polarity*h + d.selfTest
		out[i] = uint32(min(max(v, 0), maxCount))
	}
	d.selfTest = 0
	d.regs[mmc5983.RegXOut0] = byte(out[0] >> 10)
	d.regs[mmc5983.RegXOut1] = byte(out[0] >> 2)
	d.regs[mmc5983.RegYOut0] = byte(out[1] >> 10)
	d.regs[mmc5983.RegYOut1] = byte(out[1] >> 2)
	d.regs[mmc5983.RegZOut0] = byte(out[2] >> 10)
	d.regs[mmc5983.RegZOut1] = byte(out[2] >> 2)
	d.regs[mmc5983.RegXYZOut2] = byte(out[0]&3)<<6 | byte(out[1]&3)<<4 | byte(out[2]&3)<<2
}

func (d *Device) setStatus(s mmc5983.Status) {
	d.regs[mmc5983.RegStatus] |= s.Bits()
}

func (d *Device) clearStatus(s mmc5983.Status) {
	d.regs[mmc5983.RegStatus] &^= s.Bits()
}

// access runs one auto-incrementing register transaction.
func (d *Device) access(reg mmc5983.Register, w, r []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range w {
		d.write(reg+mmc5983.Register(i), v)
	}
	for i := range r {
		r[i] = d.read(reg + mmc5983.Register(i))
	}
}

// I2C returns the device as an I²C bus answering at addr.
func (d *Device) I2C(addr uint16) *I2CBus {
	return &I2CBus{d: d, addr: addr}
}

// SPI returns the device as an SPI port.
func (d *Device) SPI() *SPIPort {
	return &SPIPort{d: d}
}

// I2CBus implements i2c.BusCloser.
type I2CBus struct {
	d    *Device
	addr uint16
}

func (b *I2CBus) String() string { return fmt.Sprintf("sim-i2c@0x%02X", b.addr) }

func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	if addr != b.addr {
		return fmt.Errorf("sim: no device at 0x%02X", addr)
	}
	if len(w) == 0 {
		return fmt.Errorf("sim: missing register address")
	}
	b.d.access(mmc5983.Register(w[0]), w[1:], r)
	return nil
}

func (b *I2CBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *I2CBus) Close() error { return nil }

// SPIPort implements spi.PortCloser; Connect returns the port itself.
type SPIPort struct {
	d     *Device
	limit physic.Frequency
}

func (p *SPIPort) String() string { return "sim-spi" }

func (p *SPIPort) Close() error { return nil }

func (p *SPIPort) LimitSpeed(f physic.Frequency) error {
	p.limit = f
	return nil
}

func (p *SPIPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if mode != spi.Mode0 && mode != spi.Mode3 {
		return nil, fmt.Errorf("sim: unsupported spi mode %v", mode)
	}
	if bits != 8 {
		return nil, fmt.Errorf("sim: unsupported word size %d", bits)
	}
	if f > mmc5983.MaxSPISpeed {
		return nil, fmt.Errorf("sim: clock %s above %s", f, mmc5983.MaxSPISpeed)
	}
	return p, nil
}

func (p *SPIPort) Duplex() conn.Duplex { return conn.Full }

// Tx decodes one SPI frame. Bit 7 of the first byte selects a read.
func (p *SPIPort) Tx(w, r []byte) error {
	if len(w) == 0 {
		return fmt.Errorf("sim: empty spi frame")
	}
	reg := mmc5983.Register(w[0] & 0x3F)
	if w[0]&0x80 == 0 {
		p.d.access(reg, w[1:], nil)
		return nil
	}
	if len(r) != len(w) {
		return fmt.Errorf("sim: full duplex read needs equal buffers, got %d and %d", len(w), len(r))
	}
	r[0] = 0
	p.d.access(reg, nil, r[1:])
	return nil
}

func (p *SPIPort) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if err := p.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}
