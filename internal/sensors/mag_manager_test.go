// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/sim"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

type closeCounter struct{ n int }

func (c *closeCounter) Close() error { c.n++; return nil }

func newTestManager(t *testing.T, field [3]float64) (*MagManager, *sim.Device, *closeCounter) {
	t.Helper()
	d := sim.New(field, [3]int32{100, -50, 25})
	closer := &closeCounter{}
	m := NewMagManager(mmc5983.NewI2C(d.I2C(mmc5983.I2CAddr), mmc5983.I2CAddr), closer)
	m.delay = mmc5983.DelayFunc(func(uint32) {})
	return m, d, closer
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MQTTBroker = "tcp://localhost:1883"
	cfg.MagBus = "sim"
	return cfg
}

func TestSetupOneShot(t *testing.T) {
	m, d, _ := newTestManager(t, [3]float64{0.25, 0, 0})
	cfg := testConfig()
	cfg.MagBandwidthHz = 400
	cfg.MagCalibrateOnStart = true
	require.NoError(t, m.Setup(cfg))

	assert.Equal(t, ModeOneShot, m.Mode())
	st, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, mmc5983.BW400Hz, st.Control1.Bandwidth())
	assert.Equal(t, d.Offset(), st.Offset)
	assert.Equal(t, 1, d.Polarity(), "bring-up leaves the sensor SET")

	s, err := m.ReadSample(true)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, s.X, 1e-4)
	assert.InDelta(t, 0.0, s.Y, 1e-4)
	assert.InDelta(t, 0.0, s.Heading, 1e-6)
	assert.Equal(t, ModeOneShot, s.Mode)
	require.NotNil(t, s.TempC)
	assert.InDelta(t, 25.0, *s.TempC, 1e-9)
}

func TestSetupContinuous(t *testing.T) {
	m, d, closer := newTestManager(t, [3]float64{0, 0.5, 0})
	cfg := testConfig()
	cfg.MagMode = ModeContinuous
	cfg.MagODRHz = 100
	cfg.MagAutoSRPeriod = 500
	cfg.MagCalibrateOnStart = true
	require.NoError(t, m.Setup(cfg))
	assert.True(t, d.Continuous())
	assert.Equal(t, ModeContinuous, m.Mode())

	mc, err := m.ModeConfig()
	require.NoError(t, err)
	assert.True(t, mc.Continuous)
	assert.True(t, mc.AutoSetReset)
	assert.Equal(t, mmc5983.Every500, mc.Period)
	assert.Equal(t, mmc5983.ODR100Hz, mc.Rate)

	s, err := m.ReadSample(false)
	require.NoError(t, err)
	assert.Nil(t, s.TempC)
	assert.Equal(t, ModeContinuous, s.Mode)
	assert.InDelta(t, 90.0, s.Heading, 1e-3)

	require.NoError(t, m.AutoSetReset(false, 0))
	mc, err = m.ModeConfig()
	require.NoError(t, err)
	assert.False(t, mc.AutoSetReset)

	require.NoError(t, m.Close())
	assert.False(t, d.Continuous(), "close returns to one-shot")
	assert.Equal(t, 1, closer.n)

	_, err = m.ReadSample(false)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOneShotSamplesAreFresh(t *testing.T) {
	m, d, _ := newTestManager(t, [3]float64{0.25, 0, 0})
	cfg := testConfig()
	cfg.MagCalibrateOnStart = true
	require.NoError(t, m.Setup(cfg))

	s, err := m.ReadSample(false)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, s.X, 1e-4)

	d.SetField(-0.125, 0.5, 0)
	s, err = m.ReadSample(false)
	require.NoError(t, err)
	assert.InDelta(t, -0.125, s.X, 1e-4)
	assert.InDelta(t, 0.5, s.Y, 1e-4)

	raw, err := m.RawField()
	require.NoError(t, err)
	assert.Equal(t, s.RawX, raw.X)
}

func TestModeSwitching(t *testing.T) {
	m, d, _ := newTestManager(t, [3]float64{})
	require.NoError(t, m.Setup(testConfig()))

	assert.Error(t, m.SetFrequency(mmc5983.ODR50Hz), "rate needs continuous mode")
	require.NoError(t, m.Continuous(mmc5983.ContinuousConfig{Rate: mmc5983.ODR1000Hz}))
	require.NoError(t, m.SetFrequency(mmc5983.ODR200Hz))
	require.NoError(t, m.Continuous(mmc5983.ContinuousConfig{Rate: mmc5983.ODR50Hz, AutoSetReset: true, Period: mmc5983.Every25}))
	mc, err := m.ModeConfig()
	require.NoError(t, err)
	assert.Equal(t, mmc5983.ODR50Hz, mc.Rate)
	assert.Equal(t, mmc5983.Every25, mc.Period)

	require.NoError(t, m.OneShot())
	require.NoError(t, m.OneShot())
	assert.False(t, d.Continuous())
	_, err = m.RawField()
	assert.NoError(t, err)
}

func TestPulsesAndRegisters(t *testing.T) {
	m, d, _ := newTestManager(t, [3]float64{})
	require.NoError(t, m.Setup(testConfig()))

	require.NoError(t, m.Pulse("reset"))
	assert.Equal(t, -1, d.Polarity())
	require.NoError(t, m.Pulse("set"))
	assert.Equal(t, 1, d.Polarity())
	require.NoError(t, m.Pulse("selftest+"))
	require.NoError(t, m.Pulse("selftest-"))
	assert.Error(t, m.Pulse("zap"))

	id, err := m.ReadRegister(mmc5983.RegProductID)
	require.NoError(t, err)
	assert.Equal(t, byte(mmc5983.ExpectedProductID), id)
	_, err = m.ReadRegister(mmc5983.RegControl0)
	assert.Error(t, err)

	regs, err := m.ReadAllRegisters()
	require.NoError(t, err)
	assert.Len(t, regs, len(mmc5983.ReadableRegisters))
}

func TestNotInitialized(t *testing.T) {
	m := &MagManager{}
	_, err := m.ProductID()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, m.OneShot(), ErrNotInitialized)
	assert.NoError(t, m.Close())
}

func TestRegisterMap(t *testing.T) {
	regs := (&MagManager{}).GetRegisterMap()
	seen := map[string]bool{}
	for _, r := range regs {
		assert.False(t, seen[r.Address], "duplicate %s", r.Address)
		seen[r.Address] = true
	}
	for _, reg := range mmc5983.ReadableRegisters {
		assert.True(t, seen[addr(reg)], "missing %s", reg)
	}
	assert.True(t, seen["0x0B"])
}

func TestOpenMagnetometerSim(t *testing.T) {
	dev, closer, err := OpenMagnetometer(testConfig())
	require.NoError(t, err)
	defer closer.Close()
	require.NoError(t, dev.Init())

	cfg := testConfig()
	cfg.MagBus = "usb"
	_, _, err = OpenMagnetometer(cfg)
	assert.Error(t, err)
}
