// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"fmt"

	"tinygo.org/x/drivers"
)

// TinyGoI2CTransport adapts a TinyGo I²C bus such as machine.I2C.
type TinyGoI2CTransport struct {
	bus  drivers.I2C
	addr uint16
	w    [2]byte
}

// NewTinyGoI2CTransport returns a transport for the device at addr on bus.
func NewTinyGoI2CTransport(bus drivers.I2C, addr uint16) *TinyGoI2CTransport {
	return &TinyGoI2CTransport{bus: bus, addr: addr}
}

func (t *TinyGoI2CTransport) WriteRegister(reg Register, value byte) error {
	t.w[0], t.w[1] = byte(reg), value
	return commErr("write", reg, t.bus.Tx(t.addr, t.w[:2], nil))
}

func (t *TinyGoI2CTransport) ReadRegister(reg Register) (byte, error) {
	var r [1]byte
	t.w[0] = byte(reg)
	if err := t.bus.Tx(t.addr, t.w[:1], r[:]); err != nil {
		return 0, commErr("read", reg, err)
	}
	return r[0], nil
}

func (t *TinyGoI2CTransport) ReadConsecutive(start Register, p []byte) error {
	t.w[0] = byte(start)
	return commErr("burst read", start, t.bus.Tx(t.addr, t.w[:1], p))
}

func (t *TinyGoI2CTransport) String() string {
	return fmt.Sprintf("tinygo-i2c@0x%02X", t.addr)
}

// TinyGoSPITransport adapts a TinyGo SPI bus. TinyGo buses do not drive chip
// select, so the caller passes a function that asserts it (selected=true) and
// releases it around every frame. A nil cs is allowed when the line is tied
// low.
type TinyGoSPITransport struct {
	bus drivers.SPI
	cs  func(selected bool)
	f   spiFrames
}

// NewTinyGoSPITransport returns a transport over bus, which must be
// configured for mode 0.
func NewTinyGoSPITransport(bus drivers.SPI, cs func(selected bool)) *TinyGoSPITransport {
	return &TinyGoSPITransport{bus: bus, cs: cs}
}

func (t *TinyGoSPITransport) tx(w, r []byte) error {
	if t.cs == nil {
		return t.bus.Tx(w, r)
	}
	t.cs(true)
	err := t.bus.Tx(w, r)
	t.cs(false)
	return err
}

func (t *TinyGoSPITransport) WriteRegister(reg Register, value byte) error {
	return t.f.write(t.tx, reg, value)
}

func (t *TinyGoSPITransport) ReadRegister(reg Register) (byte, error) {
	return t.f.read(t.tx, reg)
}

func (t *TinyGoSPITransport) ReadConsecutive(start Register, p []byte) error {
	return t.f.burst(t.tx, start, p)
}

func (t *TinyGoSPITransport) String() string { return "tinygo-spi" }

var (
	_ Transport = (*TinyGoI2CTransport)(nil)
	_ Transport = (*TinyGoSPITransport)(nil)
)
