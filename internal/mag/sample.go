// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mag

import (
	"math"
	"time"

	"github.com/relabs-tech/mmc5983/internal/orientation"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

// Sample is one magnetometer reading as published on the broker.
type Sample struct {
	Time time.Time `json:"time" cbor:"1,keyasint"`
	Mode string    `json:"mode" cbor:"2,keyasint"` // "oneshot" or "continuous"

	// Raw counts straight from the output registers.
	RawX int32 `json:"raw_x" cbor:"3,keyasint"`
	RawY int32 `json:"raw_y" cbor:"4,keyasint"`
	RawZ int32 `json:"raw_z" cbor:"5,keyasint"`

	// Field after offset removal, in Gauss.
	X float64 `json:"x_gauss" cbor:"6,keyasint"`
	Y float64 `json:"y_gauss" cbor:"7,keyasint"`
	Z float64 `json:"z_gauss" cbor:"8,keyasint"`

	Norm    float64 `json:"norm_gauss" cbor:"9,keyasint"`
	Heading float64 `json:"heading_deg" cbor:"10,keyasint"`

	// TempC is nil for samples taken without a temperature conversion.
	TempC *float64 `json:"temp_c,omitempty" cbor:"11,keyasint,omitempty"`
}

// NewSample builds a sample from a raw reading and the offset in use.
func NewSample(t time.Time, mode string, raw mmc5983.MagneticField, off mmc5983.CalibrationOffset) Sample {
	x, y, z := raw.Sub(off).Gauss()
	return Sample{
		Time:    t,
		Mode:    mode,
		RawX:    raw.X,
		RawY:    raw.Y,
		RawZ:    raw.Z,
		X:       x,
		Y:       y,
		Z:       z,
		Norm:    math.Sqrt(x*x + y*y + z*z),
		Heading: orientation.HeadingFromField(x, y),
	}
}

// WithTemperature attaches a die temperature.
func (s Sample) WithTemperature(t mmc5983.Temperature) Sample {
	c := t.Celsius()
	s.TempC = &c
	return s
}
