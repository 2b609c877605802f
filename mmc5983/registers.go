// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"fmt"
	"strings"
)

// Register is a device register address.
type Register uint8

// Register map.
const (
	RegXOut0     Register = 0x00 // Xout[17:10]
	RegXOut1     Register = 0x01 // Xout[9:2]
	RegYOut0     Register = 0x02 // Yout[17:10]
	RegYOut1     Register = 0x03 // Yout[9:2]
	RegZOut0     Register = 0x04 // Zout[17:10]
	RegZOut1     Register = 0x05 // Zout[9:2]
	RegXYZOut2   Register = 0x06 // X/Y/Z[1:0]
	RegTOut      Register = 0x07
	RegStatus    Register = 0x08
	RegControl0  Register = 0x09
	RegControl1  Register = 0x0A
	RegControl2  Register = 0x0B
	RegControl3  Register = 0x0C
	RegProductID Register = 0x2F
)

// ExpectedProductID is the content of RegProductID on a genuine part.
const ExpectedProductID = 0x30

// fieldLen is the number of bytes in a full field burst (RegXOut0..RegXYZOut2).
const fieldLen = 7

var registerNames = map[Register]string{
	RegXOut0:     "XOUT0",
	RegXOut1:     "XOUT1",
	RegYOut0:     "YOUT0",
	RegYOut1:     "YOUT1",
	RegZOut0:     "ZOUT0",
	RegZOut1:     "ZOUT1",
	RegXYZOut2:   "XYZOUT2",
	RegTOut:      "TOUT",
	RegStatus:    "STATUS",
	RegControl0:  "CONTROL0",
	RegControl1:  "CONTROL1",
	RegControl2:  "CONTROL2",
	RegControl3:  "CONTROL3",
	RegProductID: "PRODUCT_ID",
}

func (r Register) String() string {
	if n, ok := registerNames[r]; ok {
		return n
	}
	return fmt.Sprintf("REG_0x%02X", uint8(r))
}

// Writable reports whether the register accepts writes.
func (r Register) Writable() bool {
	return r >= RegControl0 && r <= RegControl3
}

// ReadableRegisters lists the registers that return meaningful data on read.
// Control registers are write-only on the part.
var ReadableRegisters = []Register{
	RegXOut0, RegXOut1, RegYOut0, RegYOut1, RegZOut0, RegZOut1,
	RegXYZOut2, RegTOut, RegStatus, RegProductID,
}

// flagName pairs a named bit mask with its label for String methods.
type flagName struct {
	mask uint8
	name string
}

func formatFlags(v uint8, names []flagName) string {
	if v == 0 {
		return "0"
	}
	var parts []string
	for _, n := range names {
		if v&n.mask == n.mask {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Status is the read-only status register.
type Status uint8

const (
	StatusMeasMDone   Status = 1 << 0
	StatusMeasTDone   Status = 1 << 1
	StatusOTPReadDone Status = 1 << 4

	statusMask = StatusMeasMDone | StatusMeasTDone | StatusOTPReadDone
)

// DecodeStatus truncates reserved bits.
func DecodeStatus(b byte) Status { return Status(b) & statusMask }

func (s Status) Address() Register { return RegStatus }
func (s Status) Bits() uint8 { return uint8(s) }
func (s Status) Contains(o Status) bool { return s&o == o }
func (s Status) Union(o Status) Status { return (s | o) & statusMask }
func (s Status) Difference(o Status) Status { return s &^ o & statusMask }
func (s Status) Intersection(o Status) Status { return s & o & statusMask }

// MeasDone reports a completed magnetic measurement.
func (s Status) MeasDone() bool { return s.Contains(StatusMeasMDone) }

// TempDone reports a completed temperature measurement.
func (s Status) TempDone() bool { return s.Contains(StatusMeasTDone) }

// OTPReadDone reports that the factory trim has been loaded.
func (s Status) OTPReadDone() bool { return s.Contains(StatusOTPReadDone) }

func (s Status) String() string {
	return formatFlags(uint8(s), []flagName{
		{uint8(StatusMeasMDone), "MEAS_M_DONE"},
		{uint8(StatusMeasTDone), "MEAS_T_DONE"},
		{uint8(StatusOTPReadDone), "OTP_READ_DONE"},
	})
}

// Control0 is Internal Control 0: measurement triggers and SET/RESET pulses.
type Control0 uint8

const (
	Ctrl0TMM           Control0 = 1 << 0
	Ctrl0TMT           Control0 = 1 << 1
	Ctrl0IntMeasDoneEn Control0 = 1 << 2
	Ctrl0Set           Control0 = 1 << 3
	Ctrl0Reset         Control0 = 1 << 4
	Ctrl0AutoSR        Control0 = 1 << 5
	Ctrl0OTPRead       Control0 = 1 << 6

	control0Mask = Ctrl0TMM | Ctrl0TMT | Ctrl0IntMeasDoneEn | Ctrl0Set | Ctrl0Reset | Ctrl0AutoSR | Ctrl0OTPRead
)

// DecodeControl0 truncates reserved bits.
func DecodeControl0(b byte) Control0 { return Control0(b) & control0Mask }

func (c Control0) Address() Register { return RegControl0 }
func (c Control0) Encode() byte { return byte(c & control0Mask) }
func (c Control0) Bits() uint8 { return uint8(c) }
func (c Control0) Contains(o Control0) bool { return c&o == o }
func (c Control0) Union(o Control0) Control0 { return (c | o) & control0Mask }
func (c Control0) Difference(o Control0) Control0 { return c &^ o & control0Mask }
func (c Control0) Intersection(o Control0) Control0 { return c & o & control0Mask }

func (c Control0) String() string {
	return formatFlags(uint8(c), []flagName{
		{uint8(Ctrl0OTPRead), "OTP_READ"},
		{uint8(Ctrl0AutoSR), "AUTO_SR"},
		{uint8(Ctrl0Reset), "RESET"},
		{uint8(Ctrl0Set), "SET"},
		{uint8(Ctrl0IntMeasDoneEn), "INT_MEAS_DONE_EN"},
		{uint8(Ctrl0TMT), "TM_T"},
		{uint8(Ctrl0TMM), "TM_M"},
	})
}

// Control1 is Internal Control 1: bandwidth, channel inhibit and soft reset.
type Control1 uint8

const (
	Ctrl1BW0       Control1 = 1 << 0
	Ctrl1BW1       Control1 = 1 << 1
	Ctrl1XInhibit  Control1 = 1 << 3
	Ctrl1YZInhibit Control1 = 0b11 << 4
	Ctrl1SWRst     Control1 = 1 << 7

	Ctrl1BW = Ctrl1BW1 | Ctrl1BW0

	control1Mask = Ctrl1BW | Ctrl1XInhibit | Ctrl1YZInhibit | Ctrl1SWRst
)

// DecodeControl1 truncates reserved bits.
func DecodeControl1(b byte) Control1 { return Control1(b) & control1Mask }

func (c Control1) Address() Register { return RegControl1 }
func (c Control1) Encode() byte { return byte(c & control1Mask) }
func (c Control1) Bits() uint8 { return uint8(c) }
func (c Control1) Contains(o Control1) bool { return c&o == o }
func (c Control1) Union(o Control1) Control1 { return (c | o) & control1Mask }
func (c Control1) Difference(o Control1) Control1 { return c &^ o & control1Mask }
func (c Control1) Intersection(o Control1) Control1 { return c & o & control1Mask }

// WithBandwidth replaces the BW field.
func (c Control1) WithBandwidth(bw Bandwidth) Control1 {
	return c.Difference(Ctrl1BW).Union(Control1(bw) & Ctrl1BW)
}

// Bandwidth decodes the BW field.
func (c Control1) Bandwidth() Bandwidth {
	return Bandwidth(c.Intersection(Ctrl1BW))
}

func (c Control1) String() string {
	s := formatFlags(uint8(c.Difference(Ctrl1BW)), []flagName{
		{uint8(Ctrl1SWRst), "SW_RST"},
		{uint8(Ctrl1YZInhibit), "YZ_INHIBIT"},
		{uint8(Ctrl1XInhibit), "X_INHIBIT"},
	})
	return fmt.Sprintf("%s BW=%s", s, c.Bandwidth())
}

// Control2 is Internal Control 2: continuous mode and periodic SET.
//
// Ctrl2CMMEn and Ctrl2CMFreq2 share bit 2, as laid out in the register table
// this driver follows. Clearing CMM_EN therefore also clears the top bit of
// the rate code.
type Control2 uint8

const (
	Ctrl2CMFreq0  Control2 = 1 << 0
	Ctrl2CMFreq1  Control2 = 1 << 1
	Ctrl2CMFreq2  Control2 = 1 << 2
	Ctrl2CMMEn    Control2 = 1 << 2
	Ctrl2PrdSet0  Control2 = 1 << 3
	Ctrl2PrdSet1  Control2 = 1 << 4
	Ctrl2PrdSet2  Control2 = 1 << 5
	Ctrl2EnPrdSet Control2 = 1 << 7

	Ctrl2CMFreq = Ctrl2CMFreq2 | Ctrl2CMFreq1 | Ctrl2CMFreq0
	Ctrl2PrdSet = Ctrl2PrdSet2 | Ctrl2PrdSet1 | Ctrl2PrdSet0

	prdSetShift  = 3
	control2Mask = Ctrl2CMFreq | Ctrl2PrdSet | Ctrl2EnPrdSet
)

// DecodeControl2 truncates reserved bits.
func DecodeControl2(b byte) Control2 { return Control2(b) & control2Mask }

func (c Control2) Address() Register { return RegControl2 }
func (c Control2) Encode() byte { return byte(c & control2Mask) }
func (c Control2) Bits() uint8 { return uint8(c) }
func (c Control2) Contains(o Control2) bool { return c&o == o }
func (c Control2) Union(o Control2) Control2 { return (c | o) & control2Mask }
func (c Control2) Difference(o Control2) Control2 { return c &^ o & control2Mask }
func (c Control2) Intersection(o Control2) Control2 { return c & o & control2Mask }

// WithOutputRate replaces the CM_FREQ field.
func (c Control2) WithOutputRate(r OutputDataRate) Control2 {
	return c.Difference(Ctrl2CMFreq).Union(Control2(r.bits()))
}

// WithSetPeriod replaces the PRD_SET field.
func (c Control2) WithSetPeriod(p SetResetPeriod) Control2 {
	return c.Difference(Ctrl2PrdSet).Union(Control2(uint8(p)<<prdSetShift) & Ctrl2PrdSet)
}

// OutputRate decodes the CM_FREQ field. Unknown codes read as 1 Hz.
func (c Control2) OutputRate() OutputDataRate {
	return decodeOutputRate(uint8(c.Intersection(Ctrl2CMFreq)))
}

// SetPeriod decodes the PRD_SET field.
func (c Control2) SetPeriod() SetResetPeriod {
	return SetResetPeriod(uint8(c.Intersection(Ctrl2PrdSet)) >> prdSetShift)
}

func (c Control2) String() string {
	var parts []string
	if c.Contains(Ctrl2EnPrdSet) {
		parts = append(parts, "EN_PRD_SET")
	}
	if c.Contains(Ctrl2CMMEn) {
		parts = append(parts, "CMM_EN")
	}
	parts = append(parts, "CM_FREQ="+c.OutputRate().String(), "PRD_SET="+c.SetPeriod().String())
	return strings.Join(parts, " ")
}

// Control3 is Internal Control 3: self-test currents and SPI wiring.
type Control3 uint8

const (
	Ctrl3STEnP Control3 = 1 << 0
	Ctrl3STEnM Control3 = 1 << 1
	Ctrl3SPI3W Control3 = 1 << 6

	control3Mask = Ctrl3STEnP | Ctrl3STEnM | Ctrl3SPI3W
)

// DecodeControl3 truncates reserved bits.
func DecodeControl3(b byte) Control3 { return Control3(b) & control3Mask }

func (c Control3) Address() Register { return RegControl3 }
func (c Control3) Encode() byte { return byte(c & control3Mask) }
func (c Control3) Bits() uint8 { return uint8(c) }
func (c Control3) Contains(o Control3) bool { return c&o == o }
func (c Control3) Union(o Control3) Control3 { return (c | o) & control3Mask }
func (c Control3) Difference(o Control3) Control3 { return c &^ o & control3Mask }
func (c Control3) Intersection(o Control3) Control3 { return c & o & control3Mask }

func (c Control3) String() string {
	return formatFlags(uint8(c), []flagName{
		{uint8(Ctrl3SPI3W), "SPI_3W"},
		{uint8(Ctrl3STEnM), "ST_ENM"},
		{uint8(Ctrl3STEnP), "ST_ENP"},
	})
}

// controlRegister is implemented by the four writable control registers.
type controlRegister interface {
	Address() Register
	Encode() byte
}

var (
	_ controlRegister = Control0(0)
	_ controlRegister = Control1(0)
	_ controlRegister = Control2(0)
	_ controlRegister = Control3(0)
)

// FieldBits is RegXYZOut2: the two least significant bits of every axis.
type FieldBits uint8

func (f FieldBits) X() uint32 { return uint32(f>>6) & 0b11 }
func (f FieldBits) Y() uint32 { return uint32(f>>4) & 0b11 }
func (f FieldBits) Z() uint32 { return uint32(f>>2) & 0b11 }

// DecodeField assembles the 18-bit output of every axis from a burst read of
// RegXOut0..RegXYZOut2.
func DecodeField(b [fieldLen]byte) MagneticField {
	low := FieldBits(b[6])
	return MagneticField{
		X: int32(uint32(b[0])<<10 | uint32(b[1])<<2 | low.X()),
		Y: int32(uint32(b[2])<<10 | uint32(b[3])<<2 | low.Y()),
		Z: int32(uint32(b[4])<<10 | uint32(b[5])<<2 | low.Z()),
	}
}
