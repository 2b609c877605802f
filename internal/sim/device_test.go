// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mmc5983/mmc5983"
)

var noDelay = mmc5983.DelayFunc(func(uint32) {})

func newI2CDriver(t *testing.T, d *Device) *mmc5983.OneShot {
	dev := mmc5983.NewI2C(d.I2C(mmc5983.I2CAddr), mmc5983.I2CAddr)
	require.NoError(t, dev.Init())
	return dev
}

func TestProductIDAndInit(t *testing.T) {
	d := New([3]float64{}, [3]int32{})
	dev := newI2CDriver(t, d)

	id, err := dev.ProductID()
	require.NoError(t, err)
	assert.True(t, id.Valid())

	st, err := dev.Status()
	require.NoError(t, err)
	assert.True(t, st.OTPReadDone())
	assert.Equal(t, byte(mmc5983.Ctrl0OTPRead|mmc5983.Ctrl0IntMeasDoneEn), d.Control(mmc5983.RegControl0))
}

func TestWrongAddressIsCommError(t *testing.T) {
	d := New([3]float64{}, [3]int32{})
	dev := mmc5983.NewI2C(d.I2C(0x31), mmc5983.I2CAddr)
	err := dev.Init()
	assert.ErrorIs(t, err, mmc5983.ErrCommunication)
	assert.Empty(t, d.Writes())
}

func TestCalibrationRecoversBias(t *testing.T) {
	field := [3]float64{0.25, -0.5, 0.125}
	bias := [3]int32{310, -1200, 45}
	d := New(field, bias)
	dev := newI2CDriver(t, d)

	off, err := dev.CalibrateOffset(noDelay)
	require.NoError(t, err)
	assert.Equal(t, d.Offset(), off)
	assert.Equal(t, -1, d.Polarity(), "calibration ends with a RESET pulse")

	// After RESET the bridge output is inverted.
	m, err := dev.CalibratedField()
	require.NoError(t, err)
	x, y, z := m.Gauss()
	assert.InDelta(t, -0.25, x, 1e-4)
	assert.InDelta(t, 0.5, y, 1e-4)
	assert.InDelta(t, -0.125, z, 1e-4)

	require.NoError(t, dev.Set(noDelay))
	m, err = dev.CalibratedField()
	require.NoError(t, err)
	x, y, z = m.Gauss()
	assert.InDelta(t, 0.25, x, 1e-4)
	assert.InDelta(t, -0.5, y, 1e-4)
	assert.InDelta(t, 0.125, z, 1e-4)
}

func TestSPIEndToEnd(t *testing.T) {
	d := New([3]float64{0, 0, 1}, [3]int32{})
	dev, err := mmc5983.NewSPI(d.SPI())
	require.NoError(t, err)
	require.NoError(t, dev.Init())

	m, err := dev.MagneticField()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale), m.X)
	assert.Equal(t, int32(mmc5983.MidScale+mmc5983.CountsPerGauss), m.Z)

	temp, err := dev.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 25.0, temp.Celsius(), 1e-9)
}

func TestContinuousMode(t *testing.T) {
	d := New([3]float64{0.5, 0, 0}, [3]int32{})
	dev := newI2CDriver(t, d)
	cont, err := dev.IntoContinuous(mmc5983.ContinuousConfig{Rate: mmc5983.ODR50Hz, AutoSetReset: true, Period: mmc5983.Every100})
	require.NoError(t, err)
	assert.True(t, d.Continuous())
	d.Writes()

	for i := 0; i < 3; i++ {
		m, err := cont.MagneticField()
		require.NoError(t, err)
		assert.Equal(t, int32(mmc5983.MidScale+8192), m.X)
	}
	assert.Empty(t, d.Writes(), "continuous reads never trigger")

	d.SetField(-0.5, 0, 0)
	m, err := cont.MagneticField()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale-8192), m.X)

	one, err := cont.IntoOneShot()
	require.NoError(t, err)
	assert.False(t, d.Continuous())
	c2 := mmc5983.DecodeControl2(d.Control(mmc5983.RegControl2))
	assert.False(t, c2.Contains(mmc5983.Ctrl2EnPrdSet))

	_, err = one.CalibratedField()
	assert.NoError(t, err)
}

func TestSelfTestShift(t *testing.T) {
	d := New([3]float64{}, [3]int32{})
	d.SelfTestCounts = 1000
	dev := newI2CDriver(t, d)

	require.NoError(t, dev.SelfTestPositive(noDelay))
	m, err := dev.Measure()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale+1000), m.Y)

	require.NoError(t, dev.SelfTestNegative(noDelay))
	m, err = dev.Measure()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale-1000), m.Y)

	m, err = dev.Measure()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale), m.Y)
}

func TestTryMagneticFieldCompletes(t *testing.T) {
	d := New([3]float64{0.5, 0, 0}, [3]int32{})
	dev := newI2CDriver(t, d)
	d.Writes()

	var (
		m   mmc5983.MagneticField
		err error
	)
	calls := 0
	for calls < 10 {
		calls++
		m, err = dev.TryMagneticField()
		if !errors.Is(err, mmc5983.ErrNotReady) {
			break
		}
	}
	require.NoError(t, err, "no result after %d calls", calls)
	assert.Equal(t, d.Latency+1, calls)
	assert.Equal(t, int32(mmc5983.MidScale+8192), m.X)

	// Triggers while a conversion is pending do not restart it.
	for _, w := range d.Writes() {
		assert.Equal(t, mmc5983.RegControl0, w.Reg)
	}

	// The done flag stays set, so only Measure sees a new field.
	d.SetField(-0.5, 0, 0)
	m, err = dev.TryMagneticField()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale+8192), m.X)
	m, err = dev.Measure()
	require.NoError(t, err)
	assert.Equal(t, int32(mmc5983.MidScale-8192), m.X)
}

func TestSoftwareReset(t *testing.T) {
	d := New([3]float64{}, [3]int32{})
	dev := newI2CDriver(t, d)
	require.NoError(t, dev.SetBandwidth(mmc5983.BW800Hz))
	assert.Equal(t, byte(mmc5983.BW800Hz), d.Control(mmc5983.RegControl1))
	require.NoError(t, dev.Init())
	assert.Equal(t, byte(0), d.Control(mmc5983.RegControl1))
}

func TestCooperativeOverSim(t *testing.T) {
	d := New([3]float64{0.1, 0.2, 0.3}, [3]int32{5, 6, 7})
	d.Latency = 50
	dev := mmc5983.NewI2C(d.I2C(mmc5983.I2CAddr), mmc5983.I2CAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, dev.InitContext(ctx))
	off, err := dev.CalibrateOffsetContext(ctx, mmc5983.SleepDelay{})
	require.NoError(t, err)
	assert.Equal(t, d.Offset(), off)
}

func TestSPIRejectsFastClock(t *testing.T) {
	d := New([3]float64{}, [3]int32{})
	_, err := d.SPI().Connect(20*mmc5983.MaxSPISpeed, 0, 8)
	assert.Error(t, err)
}
