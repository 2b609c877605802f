// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mmc5983/mmc5983"
)

func testSample() Sample {
	raw := mmc5983.MagneticField{
		X: mmc5983.MidScale + 4096,
		Y: mmc5983.MidScale + 4096,
		Z: mmc5983.MidScale - 8192,
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	return NewSample(ts, "oneshot", raw, mmc5983.DefaultOffset).WithTemperature(125)
}

func TestNewSample(t *testing.T) {
	s := testSample()
	assert.InDelta(t, 0.25, s.X, 1e-12)
	assert.InDelta(t, 0.25, s.Y, 1e-12)
	assert.InDelta(t, -0.5, s.Z, 1e-12)
	assert.InDelta(t, 0.6123724, s.Norm, 1e-6)
	assert.InDelta(t, 45, s.Heading, 1e-9)
	require.NotNil(t, s.TempC)
	assert.InDelta(t, 25.0, *s.TempC, 1e-9)
}

func TestEncodeDecode(t *testing.T) {
	s := testSample()
	for _, format := range []string{FormatJSON, FormatCBOR} {
		t.Run(format, func(t *testing.T) {
			data, err := Encode(format, s)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.True(t, s.Time.Equal(got.Time))
			got.Time = s.Time
			assert.Equal(t, s, got)
		})
	}
}

func TestCBORIsSmaller(t *testing.T) {
	s := testSample()
	j, err := Encode(FormatJSON, s)
	require.NoError(t, err)
	c, err := Encode(FormatCBOR, s)
	require.NoError(t, err)
	assert.Less(t, len(c), len(j))
}

func TestCodecErrors(t *testing.T) {
	_, err := Encode("xml", Sample{})
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte("{not json"))
	assert.ErrorContains(t, err, "json")

	_, err = Decode([]byte{0xff, 0x00})
	assert.ErrorContains(t, err, "cbor")
}

func TestTemperatureOmitted(t *testing.T) {
	s := NewSample(time.Unix(0, 0), "continuous", mmc5983.MagneticField{}, mmc5983.CalibrationOffset{})
	data, err := Encode(FormatJSON, s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "temp_c")
}
