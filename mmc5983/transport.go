// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// I2CAddr is the fixed 7-bit I²C address.
const I2CAddr uint16 = 0x30

// MaxSPISpeed is the SPI clock limit of the part.
const MaxSPISpeed = 10 * physic.MegaHertz

const (
	spiReadFlag = 0x80
	spiBufLen   = 32
)

// Transport is the register access contract shared by every bus backend.
//
// ReadConsecutive fills p from start onwards using the auto-incrementing
// address pointer of the device.
type Transport interface {
	WriteRegister(reg Register, value byte) error
	ReadRegister(reg Register) (byte, error)
	ReadConsecutive(start Register, p []byte) error
}

// I2CTransport talks to the device through a periph I²C bus.
type I2CTransport struct {
	dev i2c.Dev
}

// NewI2CTransport returns a transport for the device at addr on bus.
func NewI2CTransport(bus i2c.Bus, addr uint16) *I2CTransport {
	return &I2CTransport{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (t *I2CTransport) WriteRegister(reg Register, value byte) error {
	return commErr("write", reg, t.dev.Tx([]byte{byte(reg), value}, nil))
}

func (t *I2CTransport) ReadRegister(reg Register) (byte, error) {
	var r [1]byte
	if err := t.dev.Tx([]byte{byte(reg)}, r[:]); err != nil {
		return 0, commErr("read", reg, err)
	}
	return r[0], nil
}

func (t *I2CTransport) ReadConsecutive(start Register, p []byte) error {
	return commErr("burst read", start, t.dev.Tx([]byte{byte(start)}, p))
}

func (t *I2CTransport) String() string {
	return fmt.Sprintf("%s@0x%02X", t.dev.Bus, t.dev.Addr)
}

// SPITransport talks to the device through a periph SPI connection in 4-wire
// mode.
//
// A burst read is a single full-duplex exchange through a fixed 32-byte
// buffer, so at most 31 bytes can be read at once.
type SPITransport struct {
	conn spi.Conn
	f    spiFrames
}

// NewSPITransport connects to port in mode 0 at MaxSPISpeed or the port's
// configured limit, whichever is lower.
func NewSPITransport(port spi.Port) (*SPITransport, error) {
	c, err := port.Connect(MaxSPISpeed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("mmc5983: spi connect: %w", err)
	}
	return NewSPIConnTransport(c), nil
}

// NewSPIConnTransport uses an already configured connection.
func NewSPIConnTransport(c spi.Conn) *SPITransport {
	return &SPITransport{conn: c}
}

func (t *SPITransport) WriteRegister(reg Register, value byte) error {
	return t.f.write(t.conn.Tx, reg, value)
}

func (t *SPITransport) ReadRegister(reg Register) (byte, error) {
	return t.f.read(t.conn.Tx, reg)
}

func (t *SPITransport) ReadConsecutive(start Register, p []byte) error {
	return t.f.burst(t.conn.Tx, start, p)
}

func (t *SPITransport) String() string {
	return t.conn.String()
}

// spiFrames builds the SPI register frames: bit 7 of the address byte selects
// a read.
type spiFrames struct {
	w [spiBufLen]byte
	r [spiBufLen]byte
}

type txFunc func(w, r []byte) error

func (f *spiFrames) write(tx txFunc, reg Register, value byte) error {
	f.w[0] = byte(reg) &^ spiReadFlag
	f.w[1] = value
	return commErr("write", reg, tx(f.w[:2], nil))
}

func (f *spiFrames) read(tx txFunc, reg Register) (byte, error) {
	f.w[0] = byte(reg) | spiReadFlag
	f.w[1] = 0
	if err := tx(f.w[:2], f.r[:2]); err != nil {
		return 0, commErr("read", reg, err)
	}
	return f.r[1], nil
}

func (f *spiFrames) burst(tx txFunc, start Register, p []byte) error {
	if len(p) >= spiBufLen {
		return fmt.Errorf("%w: burst of %d bytes exceeds %d", ErrInvalidInputData, len(p), spiBufLen-1)
	}
	n := len(p) + 1
	f.w[0] = byte(start) | spiReadFlag
	clear(f.w[1:n])
	if err := tx(f.w[:n], f.r[:n]); err != nil {
		return commErr("burst read", start, err)
	}
	copy(p, f.r[1:n])
	return nil
}

var (
	_ Transport = (*I2CTransport)(nil)
	_ Transport = (*SPITransport)(nil)
)
