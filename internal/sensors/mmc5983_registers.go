// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/mmc5983/mmc5983"
)

// RegisterInfo describes one register for the debug tools.
type RegisterInfo struct {
	Address     string     `json:"address" yaml:"address"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Access      string     `json:"access" yaml:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty" yaml:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty" yaml:"bit_fields,omitempty"`
}

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits" yaml:"bits"` // "7" or "5:3"
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Values      string `json:"values,omitempty" yaml:"values,omitempty"`
}

func addr(r mmc5983.Register) string { return fmt.Sprintf("0x%02X", uint8(r)) }

// getMMC5983RegisterMap returns metadata for all MMC5983MA registers.
func getMMC5983RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Output registers
		{Address: addr(mmc5983.RegXOut0), Name: mmc5983.RegXOut0.String(), Description: "X output bits 17:10", Access: "R"},
		{Address: addr(mmc5983.RegXOut1), Name: mmc5983.RegXOut1.String(), Description: "X output bits 9:2", Access: "R"},
		{Address: addr(mmc5983.RegYOut0), Name: mmc5983.RegYOut0.String(), Description: "Y output bits 17:10", Access: "R"},
		{Address: addr(mmc5983.RegYOut1), Name: mmc5983.RegYOut1.String(), Description: "Y output bits 9:2", Access: "R"},
		{Address: addr(mmc5983.RegZOut0), Name: mmc5983.RegZOut0.String(), Description: "Z output bits 17:10", Access: "R"},
		{Address: addr(mmc5983.RegZOut1), Name: mmc5983.RegZOut1.String(), Description: "Z output bits 9:2", Access: "R"},
		{Address: addr(mmc5983.RegXYZOut2), Name: mmc5983.RegXYZOut2.String(), Description: "Low output bits", Access: "R",
			BitFields: []BitField{
				{Bits: "7:6", Name: "Xout[1:0]", Description: "X output bits 1:0"},
				{Bits: "5:4", Name: "Yout[1:0]", Description: "Y output bits 1:0"},
				{Bits: "3:2", Name: "Zout[1:0]", Description: "Z output bits 1:0"},
			}},
		{Address: addr(mmc5983.RegTOut), Name: mmc5983.RegTOut.String(), Description: "Temperature output", Access: "R",
			BitFields: []BitField{
				{Bits: "7:0", Name: "Tout", Description: "Temperature = -75°C + Tout × 0.8°C", Values: "0=-75°C, 255=129°C"},
			}},

		// Status
		{Address: addr(mmc5983.RegStatus), Name: mmc5983.RegStatus.String(), Description: "Device status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "4", Name: "OTP_Rd_Done", Description: "OTP memory read finished", Values: "0=Busy, 1=Done"},
				{Bits: "1", Name: "Meas_T_Done", Description: "Temperature measurement finished", Values: "0=Busy, 1=Done"},
				{Bits: "0", Name: "Meas_M_Done", Description: "Field measurement finished", Values: "0=Busy, 1=Done"},
			}},

		// Control registers (write only)
		{Address: addr(mmc5983.RegControl0), Name: mmc5983.RegControl0.String(), Description: "Internal control 0", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "OTP_Read", Description: "Reload factory trim from OTP"},
				{Bits: "5", Name: "Auto_SR_en", Description: "Automatic SET/RESET", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "Reset", Description: "RESET pulse, self clearing"},
				{Bits: "3", Name: "Set", Description: "SET pulse, self clearing"},
				{Bits: "2", Name: "INT_meas_done_en", Description: "Interrupt on measurement done", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "TM_T", Description: "Start a temperature measurement, self clearing"},
				{Bits: "0", Name: "TM_M", Description: "Start a field measurement, self clearing"},
			}},
		{Address: addr(mmc5983.RegControl1), Name: mmc5983.RegControl1.String(), Description: "Internal control 1", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "SW_RST", Description: "Software reset, self clearing"},
				{Bits: "5:4", Name: "YZ-inhibit", Description: "Disable Y and Z channels", Values: "0=Enabled, 3=Inhibited"},
				{Bits: "3", Name: "X-inhibit", Description: "Disable X channel", Values: "0=Enabled, 1=Inhibited"},
				{Bits: "1:0", Name: "BW", Description: "Decimation filter bandwidth", Values: "0=100Hz (8ms), 1=200Hz (4ms), 2=400Hz (2ms), 3=800Hz (0.5ms)"},
			}},
		{Address: addr(mmc5983.RegControl2), Name: mmc5983.RegControl2.String(), Description: "Internal control 2", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "En_prd_set", Description: "Periodic SET in continuous mode", Values: "0=Disabled, 1=Enabled"},
				{Bits: "5:3", Name: "Prd_set", Description: "Measurements between SET pulses", Values: "0=1, 1=25, 2=75, 3=100, 4=250, 5=500, 6=1000, 7=2000"},
				{Bits: "2", Name: "Cmm_en", Description: "Continuous mode, shares bit 2 with Cm_freq", Values: "0=One-shot, 1=Continuous"},
				{Bits: "2:0", Name: "Cm_freq", Description: "Continuous mode output rate", Values: "1=1Hz, 2=10Hz, 3=20Hz, 4=50Hz, 5=100Hz, 6=200Hz, 7=1000Hz"},
			}},
		{Address: addr(mmc5983.RegControl3), Name: mmc5983.RegControl3.String(), Description: "Internal control 3", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "Spi_3w", Description: "3-wire SPI", Values: "0=4-wire, 1=3-wire"},
				{Bits: "1", Name: "St_enm", Description: "Negative self-test current, self clearing"},
				{Bits: "0", Name: "St_enp", Description: "Positive self-test current, self clearing"},
			}},

		// Identification
		{Address: addr(mmc5983.RegProductID), Name: mmc5983.RegProductID.String(), Description: "Product ID", Access: "R",
			Default: fmt.Sprintf("0x%02X", mmc5983.ExpectedProductID)},
	}
}
